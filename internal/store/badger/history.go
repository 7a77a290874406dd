package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"

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
	out := []core.RunSummary{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := []byte(runPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(prefix, 0xff)); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var r core.RunSummary
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// ListAudit returns the audit entries of one run in write order.
func (s *Store) ListAudit(ctx context.Context, runID string) ([]core.AuditEntry, error) {
	out := []core.AuditEntry{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := makePartialAuditKey(runID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e core.AuditEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// ListFaculty returns faculty records in ID order after afterID.
func (s *Store) ListFaculty(ctx context.Context, afterID int64, limit int) ([]core.Faculty, error) {
	if limit <= 0 {
		limit = DefaultFacultyListLimit
	}
	out := []core.Faculty{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		prefix := []byte(facultyPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(makeFacultyKey(afterID + 1)); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var f core.Faculty
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &f)
			}); err != nil {
				return err
			}
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

// PurgeAudit deletes up to limit audit entries created before cutoff,
// oldest first, and returns how many it removed.
func (s *Store) PurgeAudit(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var purged int64
	err := s.update(ctx, func(txn *badger.Txn) error {
		prefix := []byte(auditTimePrefix)
		end := makePartialAuditTimeKey(cutoff)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)

		var timeKeys, auditKeys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(timeKeys) < limit; it.Next() {
			item := it.Item()
			if bytes.Compare(item.Key(), end) >= 0 {
				break
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				it.Close()
				return err
			}
			timeKeys = append(timeKeys, item.KeyCopy(nil))
			auditKeys = append(auditKeys, val)
		}
		it.Close()

		for i := range timeKeys {
			if err := txn.Delete(auditKeys[i]); err != nil {
				return err
			}
			if err := txn.Delete(timeKeys[i]); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}
