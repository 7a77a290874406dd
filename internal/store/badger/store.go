// Package badger is an embedded core.Store for single-node deployments,
// local dry runs and tests. Every Apply runs in one badger transaction.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/hrimport/internal/core"
	"github.com/JonMunkholm/hrimport/internal/secure"
)

const defaultSequenceBandwidth = 100

// Options configures Open.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// Sealer, when set, seals stored CNICs and blinds the CNIC index.
	Sealer *secure.Sealer
	Logger *slog.Logger
}

// Store implements core.Store, core.History and core.AuditPurger.
type Store struct {
	db     *badger.DB
	seqs   map[string]*badger.Sequence
	sealer *secure.Sealer
	logger *slog.Logger
}

var (
	_ core.Store       = (*Store)(nil)
	_ core.History     = (*Store)(nil)
	_ core.AuditPurger = (*Store)(nil)
)

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Warningf(msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Infof(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}

func (l *badgerLogger) Debugf(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}

// Open opens (or creates) the store.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("badger store: path is required")
		}
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, fmt.Errorf("badger store: create %s: %w", opts.Path, err)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts.Logger = &badgerLogger{logger: logger.With("component", "badger")}
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger store: open: %w", err)
	}

	s := &Store{db: db, seqs: make(map[string]*badger.Sequence), sealer: opts.Sealer, logger: logger}
	for _, name := range []string{personIDSeq, facultyIDSeq, designationIDSeq, qualificationIDSeq, auditIDSeq} {
		seq, err := db.GetSequence([]byte(name), defaultSequenceBandwidth)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("badger store: sequence %s: %w", name, err)
		}
		s.seqs[name] = seq
	}
	return s, nil
}

// OpenMemory opens an in-memory store.
func OpenMemory(sealer *secure.Sealer) (*Store, error) {
	return Open(Options{InMemory: true, Sealer: sealer})
}

// Close releases the ID sequences and closes the database.
func (s *Store) Close() error {
	for _, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			s.logger.Warn("release sequence", "error", err)
		}
	}
	return s.db.Close()
}

// Ping reports whether the database is open.
func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("%w: badger database is closed", core.ErrStorageUnavailable)
	}
	return ctx.Err()
}

func (s *Store) nextID(name string) (int64, error) {
	seq := s.seqs[name]
	for {
		n, err := seq.Next()
		if err != nil {
			return 0, err
		}
		// Sequences start at zero; IDs start at one.
		if n != 0 {
			return int64(n), nil
		}
	}
}

// storedPerson carries the CNIC that core.Person keeps out of JSON.
type storedPerson struct {
	core.Person
	CNIC string `json:"cnic,omitempty"`
}

func (s *Store) cnicIndex(cnic string) string {
	if s.sealer != nil {
		return s.sealer.BlindIndex(cnic)
	}
	return cnic
}

func (s *Store) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(s.db.View(fn))
}

func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(s.db.Update(fn))
}

// mapErr translates badger failures into the core storage contract.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrConflict),
		errors.Is(err, core.ErrStorageUnavailable),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	default:
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func getID(txn *badger.Txn, key []byte) (int64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	var id int64
	err = item.Value(func(val []byte) error {
		id, err = bytesID(val)
		return err
	})
	return id, err
}

func (s *Store) getPerson(txn *badger.Txn, id int64) (*core.Person, error) {
	var sp storedPerson
	if err := getJSON(txn, makePersonKey(id), &sp); err != nil {
		return nil, err
	}
	p := sp.Person
	if sp.CNIC != "" {
		cnic := sp.CNIC
		if s.sealer != nil {
			var err error
			if cnic, err = s.sealer.Open(sp.CNIC); err != nil {
				return nil, fmt.Errorf("open cnic of person %d: %w", id, err)
			}
		}
		p.CNIC = pgtype.Text{String: cnic, Valid: true}
	}
	return &p, nil
}

// FindPersonByID returns core.ErrNotFound on a miss.
func (s *Store) FindPersonByID(ctx context.Context, id int64) (*core.Person, error) {
	var p *core.Person
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		p, err = s.getPerson(txn, id)
		return err
	})
	return p, err
}

// FindPersonByCNIC looks up a canonical 13-digit CNIC.
func (s *Store) FindPersonByCNIC(ctx context.Context, cnic string) (*core.Person, error) {
	var p *core.Person
	err := s.view(ctx, func(txn *badger.Txn) error {
		id, err := getID(txn, makePersonCNICKey(s.cnicIndex(cnic)))
		if err != nil {
			return err
		}
		p, err = s.getPerson(txn, id)
		return err
	})
	return p, err
}

// FindPersonsByNameAndDOB returns every person with the composite key,
// compared case-insensitively.
func (s *Store) FindPersonsByNameAndDOB(ctx context.Context, firstName string, lastName pgtype.Text, dob pgtype.Date) ([]core.Person, error) {
	if !dob.Valid {
		return nil, nil
	}
	var out []core.Person
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := makePartialPersonNameKey(firstName, lastName, dob)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := bytesID(it.Item().Key()[len(prefix):])
			if err != nil {
				return err
			}
			p, err := s.getPerson(txn, id)
			if err != nil {
				return err
			}
			out = append(out, *p)
		}
		return nil
	})
	return out, err
}

// FindFacultyByCode returns core.ErrNotFound on a miss.
func (s *Store) FindFacultyByCode(ctx context.Context, code string) (*core.Faculty, error) {
	return s.facultyByIndex(ctx, makeFacultyCodeKey(code))
}

// FindFacultyByPerson returns core.ErrNotFound on a miss.
func (s *Store) FindFacultyByPerson(ctx context.Context, personID int64) (*core.Faculty, error) {
	return s.facultyByIndex(ctx, makeFacultyPersonKey(personID))
}

func (s *Store) facultyByIndex(ctx context.Context, key []byte) (*core.Faculty, error) {
	var f core.Faculty
	err := s.view(ctx, func(txn *badger.Txn) error {
		id, err := getID(txn, key)
		if err != nil {
			return err
		}
		return getJSON(txn, makeFacultyKey(id), &f)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// FindDesignation looks up a designation by its folded key.
func (s *Store) FindDesignation(ctx context.Context, key string) (*core.Designation, error) {
	var d core.Designation
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, makeDesignationKey(key), &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindQualifications lists a person's qualifications in insertion order.
func (s *Store) FindQualifications(ctx context.Context, personID int64) ([]core.Qualification, error) {
	var out []core.Qualification
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := makePartialQualificationKey(personID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var q core.Qualification
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &q)
			}); err != nil {
				return err
			}
			out = append(out, q)
		}
		return nil
	})
	return out, err
}
