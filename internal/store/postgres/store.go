// Package postgres is the production core.Store, backed by pgx.
//
// CNICs are sealed at rest when a Sealer is configured: the cnic column
// holds the secretbox ciphertext and cnic_index the HMAC blind index used
// for lookups. Without a Sealer both columns hold the plain CNIC.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/hrimport/internal/core"
	"github.com/JonMunkholm/hrimport/internal/secure"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig mirrors the pool settings exposed through configuration.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens and pings a connection pool.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the roster tables if they do not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Store implements core.Store, core.History and core.AuditPurger.
type Store struct {
	pool   *pgxpool.Pool
	sealer *secure.Sealer
}

var (
	_ core.Store       = (*Store)(nil)
	_ core.History     = (*Store)(nil)
	_ core.AuditPurger = (*Store)(nil)
)

// New returns a Store on pool. sealer may be nil.
func New(pool *pgxpool.Pool, sealer *secure.Sealer) *Store {
	return &Store{pool: pool, sealer: sealer}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.pool.Ping(ctx))
}

func (s *Store) cnicIndex(cnic string) string {
	if s.sealer != nil {
		return s.sealer.BlindIndex(cnic)
	}
	return cnic
}

// sealCNIC returns the stored cnic and cnic_index column values.
func (s *Store) sealCNIC(cnic pgtype.Text) (pgtype.Text, pgtype.Text, error) {
	if !cnic.Valid {
		return pgtype.Text{}, pgtype.Text{}, nil
	}
	index := pgtype.Text{String: s.cnicIndex(cnic.String), Valid: true}
	if s.sealer == nil {
		return cnic, index, nil
	}
	sealed, err := s.sealer.Seal(cnic.String)
	if err != nil {
		return pgtype.Text{}, pgtype.Text{}, err
	}
	return pgtype.Text{String: sealed, Valid: true}, index, nil
}

const personColumns = `id, first_name, last_name, father_or_husband_name, sex, email, cnic,
	cnic_expiry, date_of_birth, mobile, blood_group, marital_status, num_dependents, date_of_marriage`

func (s *Store) scanPerson(row pgx.Row) (*core.Person, error) {
	var p core.Person
	var sex, bloodGroup, marital string
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.FatherOrHusbandName, &sex, &p.Email, &p.CNIC,
		&p.CNICExpiry, &p.DateOfBirth, &p.Mobile, &bloodGroup, &marital, &p.NumDependents, &p.DateOfMarriage,
	)
	if err != nil {
		return nil, err
	}
	p.Sex = core.Sex(sex)
	p.BloodGroup = core.BloodGroup(bloodGroup)
	p.MaritalStatus = core.MaritalStatus(marital)

	if p.CNIC.Valid && s.sealer != nil {
		plain, err := s.sealer.Open(p.CNIC.String)
		if err != nil {
			return nil, fmt.Errorf("open cnic of person %d: %w", p.ID, err)
		}
		p.CNIC.String = plain
	}
	return &p, nil
}

const facultyColumns = `id, person_id, code, title, academic_designation_id,
	administrative_designation_id, status, date_of_joining`

func scanFaculty(row pgx.Row) (*core.Faculty, error) {
	var f core.Faculty
	var status string
	err := row.Scan(
		&f.ID, &f.PersonID, &f.Code, &f.Title, &f.AcademicDesignationID,
		&f.AdministrativeDesignationID, &status, &f.DateOfJoining,
	)
	if err != nil {
		return nil, err
	}
	f.Status = core.Status(status)
	return &f, nil
}

// FindPersonByID returns core.ErrNotFound on a miss.
func (s *Store) FindPersonByID(ctx context.Context, id int64) (*core.Person, error) {
	p, err := s.scanPerson(s.pool.QueryRow(ctx, `SELECT `+personColumns+` FROM person WHERE id = $1`, id))
	return p, mapErr(err)
}

// FindPersonByCNIC looks up a canonical CNIC through its index column.
func (s *Store) FindPersonByCNIC(ctx context.Context, cnic string) (*core.Person, error) {
	p, err := s.scanPerson(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM person WHERE cnic_index = $1`, s.cnicIndex(cnic)))
	return p, mapErr(err)
}

// FindPersonsByNameAndDOB matches names case-insensitively.
func (s *Store) FindPersonsByNameAndDOB(ctx context.Context, firstName string, lastName pgtype.Text, dob pgtype.Date) ([]core.Person, error) {
	if !dob.Valid {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+personColumns+` FROM person
		WHERE lower(first_name) = lower($1)
		  AND lower(coalesce(last_name, '')) = lower(coalesce($2, ''))
		  AND date_of_birth = $3
		ORDER BY id`, firstName, lastName, dob)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []core.Person
	for rows.Next() {
		p, err := s.scanPerson(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, *p)
	}
	return out, mapErr(rows.Err())
}

// FindFacultyByCode returns core.ErrNotFound on a miss.
func (s *Store) FindFacultyByCode(ctx context.Context, code string) (*core.Faculty, error) {
	f, err := scanFaculty(s.pool.QueryRow(ctx, `SELECT `+facultyColumns+` FROM faculty WHERE code = $1`, code))
	return f, mapErr(err)
}

// FindFacultyByPerson returns core.ErrNotFound on a miss.
func (s *Store) FindFacultyByPerson(ctx context.Context, personID int64) (*core.Faculty, error) {
	f, err := scanFaculty(s.pool.QueryRow(ctx, `SELECT `+facultyColumns+` FROM faculty WHERE person_id = $1`, personID))
	return f, mapErr(err)
}

// FindDesignation looks up a designation by its folded key.
func (s *Store) FindDesignation(ctx context.Context, key string) (*core.Designation, error) {
	var d core.Designation
	var kind string
	err := s.pool.QueryRow(ctx, `SELECT id, label, key, kind FROM designation WHERE key = $1`, key).
		Scan(&d.ID, &d.Label, &d.Key, &kind)
	if err != nil {
		return nil, mapErr(err)
	}
	d.Kind = core.DesignationKind(kind)
	return &d, nil
}

// FindQualifications lists a person's qualifications in insertion order.
func (s *Store) FindQualifications(ctx context.Context, personID int64) ([]core.Qualification, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, person_id, category, title, institution, country, year
		FROM qualification WHERE person_id = $1 ORDER BY id`, personID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []core.Qualification
	for rows.Next() {
		var q core.Qualification
		var category string
		if err := rows.Scan(&q.ID, &q.PersonID, &category, &q.Title, &q.Institution, &q.Country, &q.Year); err != nil {
			return nil, mapErr(err)
		}
		q.Category = core.QualificationCategory(category)
		out = append(out, q)
	}
	return out, mapErr(rows.Err())
}
