package core

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// RawRow is one data line of the input, keyed by canonical column.
type RawRow struct {
	Number int               // 1-based data-row position
	Line   int               // 1-based line/row in the source file
	Values map[Column]string // recognised columns
	Extra  map[string]string // unrecognised columns, by original label
}

// Get returns the raw cell for a canonical column, or "".
func (r RawRow) Get(c Column) string {
	return r.Values[c]
}

// QualificationInput is one qualification parsed from the wide column groups.
type QualificationInput struct {
	Category    QualificationCategory
	Title       string
	Institution pgtype.Text
	Country     pgtype.Text
	Year        pgtype.Int4
}

// NormalizedRecord is a fully cleaned roster row.
type NormalizedRecord struct {
	FirstName           string
	LastName            pgtype.Text
	FatherOrHusbandName pgtype.Text
	Sex                 Sex
	Email               pgtype.Text
	CNIC                pgtype.Text
	CNICExpiry          pgtype.Date
	DateOfBirth         pgtype.Date
	Mobile              pgtype.Text
	BloodGroup          BloodGroup
	MaritalStatus       MaritalStatus
	NumDependents       pgtype.Int4
	DateOfMarriage      pgtype.Date
	Title               pgtype.Text

	AcademicDesignation       pgtype.Text
	AdministrativeDesignation pgtype.Text
	Code                      pgtype.Text
	Status                    Status
	DateOfJoining             pgtype.Date

	Qualifications []QualificationInput
}

// HasIdentifier reports whether the record carries any key that can
// safely tie it to an existing person.
func (r *NormalizedRecord) HasIdentifier() bool {
	return r.CNIC.Valid || r.Email.Valid || r.Code.Valid
}

// Person is a persisted individual.
type Person struct {
	ID                  int64         `json:"id"`
	FirstName           string        `json:"firstName"`
	LastName            pgtype.Text   `json:"lastName"`
	FatherOrHusbandName pgtype.Text   `json:"fatherOrHusbandName"`
	Sex                 Sex           `json:"sex"`
	Email               pgtype.Text   `json:"email"`
	CNIC                pgtype.Text   `json:"-"`
	CNICExpiry          pgtype.Date   `json:"cnicExpiry"`
	DateOfBirth         pgtype.Date   `json:"dateOfBirth"`
	Mobile              pgtype.Text   `json:"mobile"`
	BloodGroup          BloodGroup    `json:"bloodGroup"`
	MaritalStatus       MaritalStatus `json:"maritalStatus"`
	NumDependents       int32         `json:"numDependents"`
	DateOfMarriage      pgtype.Date   `json:"dateOfMarriage"`
}

// Faculty is the employment record of a Person.
type Faculty struct {
	ID                          int64       `json:"id"`
	PersonID                    int64       `json:"personId"`
	Code                        pgtype.Text `json:"code"`
	Title                       pgtype.Text `json:"title"`
	AcademicDesignationID       pgtype.Int8 `json:"academicDesignationId"`
	AdministrativeDesignationID pgtype.Int8 `json:"administrativeDesignationId"`
	Status                      Status      `json:"status"`
	DateOfJoining               pgtype.Date `json:"dateOfJoining"`
}

// Designation is an append-only lookup row, unique by Key.
type Designation struct {
	ID    int64           `json:"id"`
	Label string          `json:"label"`
	Key   string          `json:"key"`
	Kind  DesignationKind `json:"kind"`
}

// Qualification belongs to a Person.
type Qualification struct {
	ID          int64                 `json:"id"`
	PersonID    int64                 `json:"personId"`
	Category    QualificationCategory `json:"category"`
	Title       string                `json:"title"`
	Institution pgtype.Text           `json:"institution"`
	Country     pgtype.Text           `json:"country"`
	Year        pgtype.Int4           `json:"year"`
}

// Outcome is the per-row result counted in the report.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// Report summarises one ingestion run.
type Report struct {
	RunID     string         `json:"runId"`
	FileName  string         `json:"fileName"`
	DryRun    bool           `json:"dryRun"`
	TotalRows int            `json:"totalRows"`
	Created   int            `json:"created"`
	Updated   int            `json:"updated"`
	Unchanged int            `json:"unchanged"`
	RowErrors []RowError     `json:"rowErrors"`
	Warnings  []FieldWarning `json:"warnings"`
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
}

// Failed returns the number of rejected rows.
func (r *Report) Failed() int {
	return len(r.RowErrors)
}

func (r *Report) count(o Outcome) {
	switch o {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeUnchanged:
		r.Unchanged++
	}
}

// RunSummary is a recorded ingestion run as listed to operators.
type RunSummary struct {
	RunID     string        `json:"runId"`
	FileName  string        `json:"fileName"`
	TotalRows int           `json:"totalRows"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Failed    int           `json:"failed"`
	Warnings  int           `json:"warnings"`
	ChangedBy string        `json:"changedBy,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}
