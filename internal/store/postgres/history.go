package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/hrimport/internal/core"
)

// DefaultRunListLimit caps ListRuns when no limit is given.
const DefaultRunListLimit = 50

// DefaultFacultyListLimit caps ListFaculty when no limit is given.
const DefaultFacultyListLimit = 100

// ListRuns returns recorded runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}
	rows, err := s.pool.Query(ctx, `SELECT run_id, file_name, total_rows, created, updated, unchanged,
			failed, warnings, changed_by, started_at, duration_ms
		FROM ingestion_run
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []core.RunSummary{}
	for rows.Next() {
		var r core.RunSummary
		var changedBy pgtype.Text
		var durationMS int64
		if err := rows.Scan(&r.RunID, &r.FileName, &r.TotalRows, &r.Created, &r.Updated, &r.Unchanged,
			&r.Failed, &r.Warnings, &changedBy, &r.StartedAt, &durationMS); err != nil {
			return nil, mapErr(err)
		}
		r.ChangedBy = changedBy.String
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, mapErr(rows.Err())
}

// ListAudit returns the audit entries of one run in write order.
func (s *Store) ListAudit(ctx context.Context, runID string) ([]core.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, run_id, table_name, action, record_id, old_data, new_data,
			changed_by, ip_address, user_agent, remarks, created_at
		FROM audit_log
		WHERE run_id = $1
		ORDER BY id`, runID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []core.AuditEntry{}
	for rows.Next() {
		var (
			e                                     core.AuditEntry
			action                                string
			oldData, newData                      []byte
			changedBy, ipAddress, userAgent, note pgtype.Text
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.TableName, &action, &e.RecordID, &oldData, &newData,
			&changedBy, &ipAddress, &userAgent, &note, &e.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		e.Action = core.AuditAction(action)
		if oldData != nil {
			e.OldData = json.RawMessage(oldData)
		}
		if newData != nil {
			e.NewData = json.RawMessage(newData)
		}
		e.ChangedBy = changedBy.String
		e.IPAddress = ipAddress.String
		e.UserAgent = userAgent.String
		e.Remarks = note.String
		out = append(out, e)
	}
	return out, mapErr(rows.Err())
}

// ListFaculty returns faculty records in ID order after afterID.
func (s *Store) ListFaculty(ctx context.Context, afterID int64, limit int) ([]core.Faculty, error) {
	if limit <= 0 {
		limit = DefaultFacultyListLimit
	}
	rows, err := s.pool.Query(ctx, `SELECT `+facultyColumns+`
		FROM faculty
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := []core.Faculty{}
	for rows.Next() {
		f, err := scanFaculty(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, *f)
	}
	return out, mapErr(rows.Err())
}

// PurgeAudit deletes up to limit audit entries created before cutoff,
// oldest first.
func (s *Store) PurgeAudit(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_log
		WHERE id IN (
			SELECT id FROM audit_log
			WHERE created_at < $1
			ORDER BY id
			LIMIT $2
		)`, cutoff, limit)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
