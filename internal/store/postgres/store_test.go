package postgres

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/hrimport/internal/core"
	"github.com/JonMunkholm/hrimport/internal/secure"
)

// Integration tests run against a disposable database named by
// HRIMPORT_TEST_DATABASE_URL; every table is truncated first.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("HRIMPORT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("HRIMPORT_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, PoolConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE audit_log, ingestion_run, qualification, faculty, designation, person RESTART IDENTITY`)
	require.NoError(t, err)

	sealer, err := secure.NewSealer(bytes.Repeat([]byte{9}, secure.MinSecretLength))
	require.NoError(t, err)
	return New(pool, sealer)
}

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

func TestIntegration_IngestRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := core.ContextWithActor(context.Background(), "hr-admin")
	svc := core.NewService(s, core.Options{CountryCode: core.DefaultCountryCode})

	data := []byte("Employee Name,CNIC #,Code,Date of Birth,Academic Designation,Qualification 1,Year 1\n" +
		"Ali Khan,42101-1234567-1,F-001,14/03/1985,Lecturer,MSc,2010\n" +
		"Sara Ahmed,42101-7654321-2,F-002,02/02/1990,  lecturer ,,\n")

	report, err := svc.Ingest(ctx, core.IngestRequest{FileName: "roster.csv", Data: data})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Empty(t, report.RowErrors)

	p, err := s.FindPersonByCNIC(ctx, "4210112345671")
	require.NoError(t, err)
	assert.Equal(t, "4210112345671", p.CNIC.String)

	var stored string
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT cnic FROM person WHERE id = $1`, p.ID).Scan(&stored))
	assert.NotEqual(t, "4210112345671", stored)

	matches, err := s.FindPersonsByNameAndDOB(ctx, "ali", text("KHAN"), p.DateOfBirth)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	a, err := s.FindFacultyByCode(ctx, "F-001")
	require.NoError(t, err)
	b, err := s.FindFacultyByCode(ctx, "F-002")
	require.NoError(t, err)
	assert.Equal(t, a.AcademicDesignationID, b.AcademicDesignationID)

	page, err := s.ListFaculty(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, a.ID, page[0].ID)
	rest, err := s.ListFaculty(ctx, page[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, b.ID, rest[0].ID)

	quals, err := s.FindQualifications(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, quals, 1)
	assert.EqualValues(t, 2010, quals[0].Year.Int32)

	again, err := svc.Ingest(ctx, core.IngestRequest{FileName: "roster.csv", Data: data})
	require.NoError(t, err)
	assert.Equal(t, 2, again.Unchanged)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, again.RunID, runs[0].RunID)
	assert.Equal(t, "hr-admin", runs[0].ChangedBy)

	entries, err := s.ListAudit(ctx, report.RunID)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	n, err := s.PurgeAudit(ctx, time.Now().Add(time.Hour), 1000)
	require.NoError(t, err)
	assert.EqualValues(t, len(entries), n)
}

func TestIntegration_DuplicateCNICConflicts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	plan := func(code string) *core.Plan {
		return &core.Plan{
			RunID: "run-1",
			Person: core.PersonChange{Action: core.ActionCreate, After: core.Person{
				FirstName: "Ali", CNIC: text("4210112345671"),
				Sex: core.SexUnknown, BloodGroup: core.BloodGroupUnknown, MaritalStatus: core.MaritalUnknown,
			}},
			Faculty: core.FacultyChange{Action: core.ActionCreate, After: core.Faculty{Code: text(code), Status: core.StatusUnknown}},
		}
	}

	require.NoError(t, s.Apply(ctx, plan("F-001")))
	assert.ErrorIs(t, s.Apply(ctx, plan("F-002")), core.ErrConflict)

	_, err := s.FindFacultyByCode(ctx, "F-002")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
