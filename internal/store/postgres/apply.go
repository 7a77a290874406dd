package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/hrimport/internal/core"
)

// Apply writes one row's plan and its audit entries in one transaction.
func (s *Store) Apply(ctx context.Context, plan *core.Plan) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback(ctx)

	if err := s.apply(ctx, tx, plan); err != nil {
		return mapErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(fmt.Errorf("commit row %d: %w", plan.Row, err))
	}
	return nil
}

func (s *Store) apply(ctx context.Context, tx pgx.Tx, plan *core.Plan) error {
	for _, ref := range plan.PendingDesignations() {
		if err := upsertDesignation(ctx, tx, plan, ref); err != nil {
			return fmt.Errorf("designation %q: %w", ref.Designation.Key, err)
		}
	}

	switch plan.Person.Action {
	case core.ActionCreate:
		id, err := s.insertPerson(ctx, tx, plan.Person.After)
		if err != nil {
			return fmt.Errorf("insert person: %w", err)
		}
		plan.SetPersonID(id)
	case core.ActionUpdate:
		if err := s.updatePerson(ctx, tx, plan.Person.After); err != nil {
			return fmt.Errorf("update person %d: %w", plan.Person.After.ID, err)
		}
	}

	switch plan.Faculty.Action {
	case core.ActionCreate:
		id, err := insertFaculty(ctx, tx, plan.Faculty.After)
		if err != nil {
			return fmt.Errorf("insert faculty: %w", err)
		}
		plan.SetFacultyID(id)
	case core.ActionUpdate:
		if err := updateFaculty(ctx, tx, plan.Faculty.After); err != nil {
			return fmt.Errorf("update faculty %d: %w", plan.Faculty.After.ID, err)
		}
	}

	inserted := plan.Qualifications[:0]
	for _, q := range plan.Qualifications {
		err := tx.QueryRow(ctx, `INSERT INTO qualification (person_id, category, title, institution, country, year)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT DO NOTHING
			RETURNING id`,
			plan.Person.After.ID, string(q.Category), q.Title, q.Institution, q.Country, q.Year,
		).Scan(&q.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("insert qualification %q: %w", q.Title, err)
		}
		q.PersonID = plan.Person.After.ID
		inserted = append(inserted, q)
	}
	plan.Qualifications = inserted

	return insertAudit(ctx, tx, plan.AuditEntries(ctx))
}

// upsertDesignation inserts the designation unless another run already
// did; either way the faculty slot is linked to the surviving row.
func upsertDesignation(ctx context.Context, tx pgx.Tx, plan *core.Plan, ref *core.DesignationRef) error {
	var id int64
	err := tx.QueryRow(ctx, `INSERT INTO designation (label, key, kind) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
		RETURNING id`,
		ref.Designation.Label, ref.Designation.Key, string(ref.Designation.Kind),
	).Scan(&id)
	if err == nil {
		plan.Link(ref, id, true)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if err := tx.QueryRow(ctx, `SELECT id FROM designation WHERE key = $1`, ref.Designation.Key).Scan(&id); err != nil {
		return err
	}
	plan.Link(ref, id, false)
	return nil
}

func (s *Store) insertPerson(ctx context.Context, tx pgx.Tx, p core.Person) (int64, error) {
	cnic, index, err := s.sealCNIC(p.CNIC)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO person (
			first_name, last_name, father_or_husband_name, sex, email, cnic, cnic_index,
			cnic_expiry, date_of_birth, mobile, blood_group, marital_status, num_dependents, date_of_marriage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		p.FirstName, p.LastName, p.FatherOrHusbandName, string(p.Sex), p.Email, cnic, index,
		p.CNICExpiry, p.DateOfBirth, p.Mobile, string(p.BloodGroup), string(p.MaritalStatus), p.NumDependents, p.DateOfMarriage,
	).Scan(&id)
	return id, err
}

func (s *Store) updatePerson(ctx context.Context, tx pgx.Tx, p core.Person) error {
	cnic, index, err := s.sealCNIC(p.CNIC)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE person SET
			first_name = $2, last_name = $3, father_or_husband_name = $4, sex = $5, email = $6,
			cnic = $7, cnic_index = $8, cnic_expiry = $9, date_of_birth = $10, mobile = $11,
			blood_group = $12, marital_status = $13, num_dependents = $14, date_of_marriage = $15,
			updated_at = now()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.FatherOrHusbandName, string(p.Sex), p.Email,
		cnic, index, p.CNICExpiry, p.DateOfBirth, p.Mobile,
		string(p.BloodGroup), string(p.MaritalStatus), p.NumDependents, p.DateOfMarriage,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func insertFaculty(ctx context.Context, tx pgx.Tx, f core.Faculty) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `INSERT INTO faculty (
			person_id, code, title, academic_designation_id, administrative_designation_id, status, date_of_joining
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		f.PersonID, f.Code, f.Title, f.AcademicDesignationID, f.AdministrativeDesignationID, string(f.Status), f.DateOfJoining,
	).Scan(&id)
	return id, err
}

func updateFaculty(ctx context.Context, tx pgx.Tx, f core.Faculty) error {
	tag, err := tx.Exec(ctx, `UPDATE faculty SET
			code = $2, title = $3, academic_designation_id = $4, administrative_designation_id = $5,
			status = $6, date_of_joining = $7, updated_at = now()
		WHERE id = $1`,
		f.ID, f.Code, f.Title, f.AcademicDesignationID, f.AdministrativeDesignationID, string(f.Status), f.DateOfJoining,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func jsonColumn(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func insertAudit(ctx context.Context, tx pgx.Tx, entries []core.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		oldData, err := jsonColumn(e.OldData)
		if err != nil {
			return fmt.Errorf("encode audit old data: %w", err)
		}
		newData, err := jsonColumn(e.NewData)
		if err != nil {
			return fmt.Errorf("encode audit new data: %w", err)
		}
		batch.Queue(`INSERT INTO audit_log (
				run_id, table_name, action, record_id, old_data, new_data, changed_by, ip_address, user_agent, remarks
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.RunID, e.TableName, string(e.Action), e.RecordID, oldData, newData,
			nullable(e.ChangedBy), nullable(e.IPAddress), nullable(e.UserAgent), nullable(e.Remarks),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RecordRun stores the run summary and the full report.
func (s *Store) RecordRun(ctx context.Context, report *core.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO ingestion_run (
			run_id, file_name, total_rows, created, updated, unchanged, failed, warnings,
			changed_by, started_at, duration_ms, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		report.RunID, report.FileName, report.TotalRows, report.Created, report.Updated, report.Unchanged,
		report.Failed(), len(report.Warnings), nullable(core.ActorFromContext(ctx)),
		report.StartedAt, report.Duration.Milliseconds(), body,
	)
	return mapErr(err)
}
