package core

import (
	"context"
	"strings"
	"time"
)

// AuditAction is the kind of change an audit entry records.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
)

// Audited table names.
const (
	TablePerson        = "person"
	TableFaculty       = "faculty"
	TableDesignation   = "designation"
	TableQualification = "qualification"
)

// AuditEntry is one row of the change log written alongside every applied
// plan. OldData/NewData are JSON-encoded by the store.
type AuditEntry struct {
	ID        int64       `json:"id,omitempty"`
	RunID     string      `json:"runId"`
	TableName string      `json:"tableName"`
	Action    AuditAction `json:"action"`
	RecordID  int64       `json:"recordId"`
	OldData   any         `json:"oldData,omitempty"`
	NewData   any         `json:"newData,omitempty"`
	ChangedBy string      `json:"changedBy,omitempty"`
	IPAddress string      `json:"ipAddress,omitempty"`
	UserAgent string      `json:"userAgent,omitempty"`
	Remarks   string      `json:"remarks,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// AuditEntries lists the audit rows for an applied plan. Call it after the
// store has set generated IDs.
func (p *Plan) AuditEntries(ctx context.Context) []AuditEntry {
	base := AuditEntry{
		RunID:     p.RunID,
		ChangedBy: ActorFromContext(ctx),
		IPAddress: IPAddressFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
	}
	var out []AuditEntry

	for _, ref := range p.Designations {
		if !ref.Create {
			continue
		}
		e := base
		e.TableName = TableDesignation
		e.Action = AuditCreate
		e.RecordID = ref.Designation.ID
		e.NewData = ref.Designation
		out = append(out, e)
	}

	if e, ok := changeEntry(base, TablePerson, p.Person.Action, p.Person.After.ID, p.Person.Before, p.Person.After, p.Person.Fields); ok {
		out = append(out, e)
	}
	if e, ok := changeEntry(base, TableFaculty, p.Faculty.Action, p.Faculty.After.ID, p.Faculty.Before, p.Faculty.After, p.Faculty.Fields); ok {
		out = append(out, e)
	}

	for _, q := range p.Qualifications {
		e := base
		e.TableName = TableQualification
		e.Action = AuditCreate
		e.RecordID = q.ID
		e.NewData = q
		out = append(out, e)
	}

	return out
}

func changeEntry[T any](base AuditEntry, table string, action Action, id int64, before *T, after T, fields []string) (AuditEntry, bool) {
	switch action {
	case ActionCreate:
		base.Action = AuditCreate
	case ActionUpdate:
		base.Action = AuditUpdate
		base.Remarks = "changed: " + strings.Join(fields, ", ")
	default:
		return AuditEntry{}, false
	}
	base.TableName = table
	base.RecordID = id
	if before != nil {
		base.OldData = *before
	}
	base.NewData = after
	return base, true
}
