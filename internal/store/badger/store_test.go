package badger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/hrimport/internal/core"
	"github.com/JonMunkholm/hrimport/internal/secure"
)

func openTestStore(t *testing.T, sealer *secure.Sealer) *Store {
	t.Helper()
	s, err := OpenMemory(sealer)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

func date(y int, m time.Month, d int) pgtype.Date {
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func createPlan(cnic, code string) *core.Plan {
	return &core.Plan{
		RunID: "run-1",
		Row:   1,
		Person: core.PersonChange{
			Action: core.ActionCreate,
			After: core.Person{
				FirstName:     "Ali",
				LastName:      text("Khan"),
				CNIC:          text(cnic),
				DateOfBirth:   date(1985, time.March, 14),
				Sex:           core.SexMale,
				BloodGroup:    core.BloodGroupUnknown,
				MaritalStatus: core.MaritalUnknown,
			},
		},
		Faculty: core.FacultyChange{
			Action: core.ActionCreate,
			After:  core.Faculty{Code: text(code), Status: core.StatusActive},
		},
	}
}

func TestApply_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, nil)

	plan := createPlan("4210112345671", "F-001")
	plan.Designations = []*core.DesignationRef{{
		Kind:        core.DesignationAcademic,
		Create:      true,
		Designation: core.Designation{Label: "Lecturer", Key: "lecturer", Kind: core.DesignationAcademic},
	}}
	plan.Qualifications = []core.Qualification{{Category: core.QualificationEducational, Title: "MSc", Year: pgtype.Int4{Int32: 2010, Valid: true}}}
	require.NoError(t, s.Apply(ctx, plan))

	personID := plan.Person.After.ID
	require.Positive(t, personID)
	assert.Equal(t, personID, plan.Faculty.After.PersonID)

	p, err := s.FindPersonByCNIC(ctx, "4210112345671")
	require.NoError(t, err)
	assert.Equal(t, "Ali", p.FirstName)
	assert.Equal(t, "4210112345671", p.CNIC.String)
	assert.True(t, p.DateOfBirth.Time.Equal(date(1985, time.March, 14).Time))

	byID, err := s.FindPersonByID(ctx, personID)
	require.NoError(t, err)
	assert.Equal(t, p, byID)

	f, err := s.FindFacultyByCode(ctx, "F-001")
	require.NoError(t, err)
	assert.Equal(t, personID, f.PersonID)
	assert.Equal(t, plan.Designations[0].Designation.ID, f.AcademicDesignationID.Int64)

	f2, err := s.FindFacultyByPerson(ctx, personID)
	require.NoError(t, err)
	assert.Equal(t, f, f2)

	d, err := s.FindDesignation(ctx, "lecturer")
	require.NoError(t, err)
	assert.Equal(t, "Lecturer", d.Label)

	quals, err := s.FindQualifications(ctx, personID)
	require.NoError(t, err)
	require.Len(t, quals, 1)
	assert.Equal(t, "MSc", quals[0].Title)

	matches, err := s.FindPersonsByNameAndDOB(ctx, "ALI", text("khan"), date(1985, time.March, 14))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFind_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, nil)

	_, err := s.FindPersonByCNIC(ctx, "4210112345671")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.FindPersonByID(ctx, 42)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.FindFacultyByCode(ctx, "F-001")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.FindDesignation(ctx, "lecturer")
	assert.ErrorIs(t, err, core.ErrNotFound)

	quals, err := s.FindQualifications(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, quals)

	matches, err := s.FindPersonsByNameAndDOB(ctx, "Ali", text("Khan"), pgtype.Date{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestApply_DuplicateCNICConflicts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, nil)

	require.NoError(t, s.Apply(ctx, createPlan("4210112345671", "F-001")))
	err := s.Apply(ctx, createPlan("4210112345671", "F-002"))
	assert.ErrorIs(t, err, core.ErrConflict)

	// The failed transaction left nothing behind.
	_, err = s.FindFacultyByCode(ctx, "F-002")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestApply_DuplicateCodeConflicts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, nil)

	require.NoError(t, s.Apply(ctx, createPlan("4210112345671", "F-001")))
	err := s.Apply(ctx, createPlan("4210112345672", "F-001"))
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestApply_UpdateMovesIndexes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, nil)

	first := createPlan("4210112345671", "F-001")
	require.NoError(t, s.Apply(ctx, first))

	before := first.Person.After
	after := before
	after.CNIC = text("4210112345679")
	after.DateOfBirth = date(1986, time.April, 1)
	fBefore := first.Faculty.After
	fAfter := fBefore
	fAfter.Code = text("F-101")

	update := &core.Plan{
		RunID:   "run-2",
		Person:  core.PersonChange{Action: core.ActionUpdate, Before: &before, After: after, Fields: []string{"cnic", "date_of_birth"}},
		Faculty: core.FacultyChange{Action: core.ActionUpdate, Before: &fBefore, After: fAfter, Fields: []string{"code"}},
	}
	require.NoError(t, s.Apply(ctx, update))

	_, err := s.FindPersonByCNIC(ctx, "4210112345671")
	assert.ErrorIs(t, err, core.ErrNotFound)
	p, err := s.FindPersonByCNIC(ctx, "4210112345679")
	require.NoError(t, err)
	assert.Equal(t, before.ID, p.ID)

	old, err := s.FindPersonsByNameAndDOB(ctx, "Ali", text("Khan"), date(1985, time.March, 14))
	require.NoError(t, err)
	assert.Empty(t, old)

	_, err = s.FindFacultyByCode(ctx, "F-001")
	assert.ErrorIs(t, err, core.ErrNotFound)
	f, err := s.FindFacultyByCode(ctx, "F-101")
	require.NoError(t, err)
	assert.Equal(t, fBefore.ID, f.ID)
}

func TestApply_DesignationCreatedConcurrently(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, nil)

	lecturer := func() *core.DesignationRef {
		return &core.DesignationRef{
			Kind:        core.DesignationAcademic,
			Create:      true,
			Designation: core.Designation{Label: "Lecturer", Key: "lecturer", Kind: core.DesignationAcademic},
		}
	}

	a := createPlan("4210112345671", "F-001")
	a.Designations = []*core.DesignationRef{lecturer()}
	require.NoError(t, s.Apply(ctx, a))
	assert.True(t, a.Designations[0].Create)

	// Resolved before a committed, so it still asks to create.
	b := createPlan("4210112345672", "F-002")
	b.Designations = []*core.DesignationRef{lecturer()}
	require.NoError(t, s.Apply(ctx, b))

	assert.False(t, b.Designations[0].Create)
	assert.Equal(t, a.Designations[0].Designation.ID, b.Faculty.After.AcademicDesignationID.Int64)

	entries, err := s.ListAudit(ctx, "run-1")
	require.NoError(t, err)
	var designationRows int
	for _, e := range entries {
		if e.TableName == core.TableDesignation {
			designationRows++
		}
	}
	assert.Equal(t, 1, designationRows)
}

func TestSealer_CNICNotStoredInClear(t *testing.T) {
	ctx := context.Background()
	sealer, err := secure.NewSealer(bytes.Repeat([]byte{3}, secure.MinSecretLength))
	require.NoError(t, err)
	s := openTestStore(t, sealer)

	plan := createPlan("4210112345671", "F-001")
	require.NoError(t, s.Apply(ctx, plan))

	p, err := s.FindPersonByCNIC(ctx, "4210112345671")
	require.NoError(t, err)
	assert.Equal(t, "4210112345671", p.CNIC.String)

	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			assert.NotContains(t, string(item.Key()), "4210112345671")
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			assert.NotContains(t, string(val), "4210112345671", "key %q", item.Key())
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAudit_ActorAndListing(t *testing.T) {
	ctx := core.ContextWithActor(context.Background(), "hr-admin")
	s := openTestStore(t, nil)

	require.NoError(t, s.Apply(ctx, createPlan("4210112345671", "F-001")))

	entries, err := s.ListAudit(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, core.TablePerson, entries[0].TableName)
	assert.Equal(t, core.TableFaculty, entries[1].TableName)
	for _, e := range entries {
		assert.Equal(t, core.AuditCreate, e.Action)
		assert.Equal(t, "hr-admin", e.ChangedBy)
		assert.False(t, e.CreatedAt.IsZero())
	}

	none, err := s.ListAudit(ctx, "run-unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, nil)

	start := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		report := &core.Report{RunID: id, FileName: id + ".csv", TotalRows: i + 1, Created: i, StartedAt: start.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, s.RecordRun(ctx, report))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
	assert.Equal(t, 3, runs[0].TotalRows)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListFaculty_Pages(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, nil)

	for i, cnic := range []string{"4210112345671", "4210112345672", "4210112345673"} {
		require.NoError(t, s.Apply(ctx, createPlan(cnic, "F-00"+string(rune('1'+i)))))
	}

	first, err := s.ListFaculty(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "F-001", first[0].Code.String)
	assert.Equal(t, "F-002", first[1].Code.String)

	rest, err := s.ListFaculty(ctx, first[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "F-003", rest[0].Code.String)

	none, err := s.ListFaculty(ctx, rest[0].ID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPurgeAudit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, nil)

	require.NoError(t, s.Apply(ctx, createPlan("4210112345671", "F-001")))
	require.NoError(t, s.Apply(ctx, createPlan("4210112345672", "F-002")))

	n, err := s.PurgeAudit(ctx, time.Now().Add(-time.Hour), 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.PurgeAudit(ctx, time.Now().Add(time.Hour), 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = s.PurgeAudit(ctx, time.Now().Add(time.Hour), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := s.ListAudit(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, err := OpenMemory(nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(context.Background()), core.ErrStorageUnavailable)
}
