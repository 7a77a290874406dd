package core

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Action is the mutation planned for one entity.
type Action string

const (
	ActionNone   Action = "none"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// PersonChange is the planned write for the row's Person.
type PersonChange struct {
	Action Action
	Before *Person // nil on create
	After  Person
	Fields []string // changed fields on update
}

// FacultyChange is the planned write for the row's Faculty.
type FacultyChange struct {
	Action Action
	Before *Faculty
	After  Faculty
	Fields []string
}

// DesignationRef links a Faculty designation slot to a Designation row.
// Create means the label was unseen at resolve time; the store reports
// through Link whether it actually inserted the row.
type DesignationRef struct {
	Kind        DesignationKind
	Designation Designation
	Create      bool
}

// Plan is the mutation set for one row. The store applies it atomically
// and fills in the generated IDs through the Set/Link methods.
type Plan struct {
	RunID          string
	Row            int
	Person         PersonChange
	Faculty        FacultyChange
	Designations   []*DesignationRef
	Qualifications []Qualification
}

// Store is the storage collaborator: lookups plus one atomic Apply per row.
// Lookups return ErrNotFound on a miss; infrastructure failures wrap
// ErrStorageUnavailable. Apply returns ErrConflict when a unique key was
// claimed concurrently.
type Store interface {
	Reader
	Apply(ctx context.Context, plan *Plan) error
	RecordRun(ctx context.Context, report *Report) error
}

// History is the operator read side of the run log and the roster.
// ListFaculty pages by ID: it returns up to limit records with ID > afterID.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	ListAudit(ctx context.Context, runID string) ([]AuditEntry, error)
	ListFaculty(ctx context.Context, afterID int64, limit int) ([]Faculty, error)
}

// Reader is the lookup half of Store.
type Reader interface {
	FindPersonByID(ctx context.Context, id int64) (*Person, error)
	FindPersonByCNIC(ctx context.Context, cnic string) (*Person, error)
	FindPersonsByNameAndDOB(ctx context.Context, firstName string, lastName pgtype.Text, dob pgtype.Date) ([]Person, error)
	FindFacultyByCode(ctx context.Context, code string) (*Faculty, error)
	FindFacultyByPerson(ctx context.Context, personID int64) (*Faculty, error)
	FindDesignation(ctx context.Context, key string) (*Designation, error)
	FindQualifications(ctx context.Context, personID int64) ([]Qualification, error)
}

// Outcome classifies the plan for the run report.
func (p *Plan) Outcome() Outcome {
	switch {
	case p.Person.Action == ActionCreate:
		return OutcomeCreated
	case p.Person.Action == ActionUpdate,
		p.Faculty.Action != ActionNone,
		len(p.Qualifications) > 0:
		return OutcomeUpdated
	default:
		return OutcomeUnchanged
	}
}

// SetPersonID records the generated Person ID and propagates it to the
// faculty and qualification rows.
func (p *Plan) SetPersonID(id int64) {
	p.Person.After.ID = id
	p.Faculty.After.PersonID = id
	for i := range p.Qualifications {
		p.Qualifications[i].PersonID = id
	}
}

// SetFacultyID records the generated Faculty ID.
func (p *Plan) SetFacultyID(id int64) {
	p.Faculty.After.ID = id
}

// Link records the designation row backing ref and points the matching
// faculty slot at it. created is false when the row already existed.
func (p *Plan) Link(ref *DesignationRef, id int64, created bool) {
	ref.Designation.ID = id
	ref.Create = created
	fk := pgtype.Int8{Int64: id, Valid: true}
	switch ref.Kind {
	case DesignationAcademic:
		p.Faculty.After.AcademicDesignationID = fk
	case DesignationAdministrative:
		p.Faculty.After.AdministrativeDesignationID = fk
	}
}

// PendingDesignations returns the refs whose row must be found or created
// at apply time.
func (p *Plan) PendingDesignations() []*DesignationRef {
	var out []*DesignationRef
	for _, ref := range p.Designations {
		if ref.Create {
			out = append(out, ref)
		}
	}
	return out
}
