package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/JonMunkholm/hrimport/internal/core"
)

// Apply writes one row's plan and its audit entries in a single
// transaction. A unique key already held by another entity, or a
// concurrent commit touching the same keys, returns core.ErrConflict.
func (s *Store) Apply(ctx context.Context, plan *core.Plan) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		for _, ref := range plan.PendingDesignations() {
			if err := s.applyDesignation(txn, plan, ref); err != nil {
				return fmt.Errorf("designation %q: %w", ref.Designation.Key, err)
			}
		}

		switch plan.Person.Action {
		case core.ActionCreate:
			id, err := s.nextID(personIDSeq)
			if err != nil {
				return err
			}
			plan.SetPersonID(id)
			if err := s.putPerson(txn, nil, plan.Person.After); err != nil {
				return fmt.Errorf("insert person: %w", err)
			}
		case core.ActionUpdate:
			if err := s.putPerson(txn, plan.Person.Before, plan.Person.After); err != nil {
				return fmt.Errorf("update person %d: %w", plan.Person.After.ID, err)
			}
		}

		switch plan.Faculty.Action {
		case core.ActionCreate:
			id, err := s.nextID(facultyIDSeq)
			if err != nil {
				return err
			}
			plan.SetFacultyID(id)
			if err := putFaculty(txn, nil, plan.Faculty.After); err != nil {
				return fmt.Errorf("insert faculty: %w", err)
			}
		case core.ActionUpdate:
			if err := putFaculty(txn, plan.Faculty.Before, plan.Faculty.After); err != nil {
				return fmt.Errorf("update faculty %d: %w", plan.Faculty.After.ID, err)
			}
		}

		for i := range plan.Qualifications {
			q := &plan.Qualifications[i]
			id, err := s.nextID(qualificationIDSeq)
			if err != nil {
				return err
			}
			q.ID = id
			q.PersonID = plan.Person.After.ID
			if err := setJSON(txn, makeQualificationKey(q.PersonID, q.ID), q); err != nil {
				return fmt.Errorf("insert qualification: %w", err)
			}
		}

		return s.writeAudit(txn, plan.AuditEntries(ctx))
	})
}

// applyDesignation finds or inserts the designation behind ref. Another
// row may have created it since the plan was resolved.
func (s *Store) applyDesignation(txn *badger.Txn, plan *core.Plan, ref *core.DesignationRef) error {
	var existing core.Designation
	err := getJSON(txn, makeDesignationKey(ref.Designation.Key), &existing)
	if err == nil {
		plan.Link(ref, existing.ID, false)
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}

	id, err := s.nextID(designationIDSeq)
	if err != nil {
		return err
	}
	ref.Designation.ID = id
	if err := setJSON(txn, makeDesignationKey(ref.Designation.Key), ref.Designation); err != nil {
		return err
	}
	plan.Link(ref, id, true)
	return nil
}

// claim points a unique index key at id, failing if another ID holds it.
func claim(txn *badger.Txn, key []byte, id int64) error {
	owner, err := getID(txn, key)
	switch {
	case err == nil && owner != id:
		return fmt.Errorf("%w: %s held by %d", core.ErrConflict, key, owner)
	case err != nil && !errors.Is(err, core.ErrNotFound):
		return err
	}
	return txn.Set(key, idBytes(id))
}

func (s *Store) putPerson(txn *badger.Txn, before *core.Person, after core.Person) error {
	sp := storedPerson{Person: after}
	if after.CNIC.Valid {
		if err := claim(txn, makePersonCNICKey(s.cnicIndex(after.CNIC.String)), after.ID); err != nil {
			return err
		}
		sp.CNIC = after.CNIC.String
		if s.sealer != nil {
			sealed, err := s.sealer.Seal(after.CNIC.String)
			if err != nil {
				return err
			}
			sp.CNIC = sealed
		}
	}

	if before != nil {
		if before.CNIC.Valid && before.CNIC != after.CNIC {
			if err := txn.Delete(makePersonCNICKey(s.cnicIndex(before.CNIC.String))); err != nil {
				return err
			}
		}
		if before.DateOfBirth.Valid {
			if err := txn.Delete(makePersonNameKey(before.FirstName, before.LastName, before.DateOfBirth, before.ID)); err != nil {
				return err
			}
		}
	}
	if after.DateOfBirth.Valid {
		if err := txn.Set(makePersonNameKey(after.FirstName, after.LastName, after.DateOfBirth, after.ID), []byte{}); err != nil {
			return err
		}
	}

	return setJSON(txn, makePersonKey(after.ID), sp)
}

func putFaculty(txn *badger.Txn, before *core.Faculty, after core.Faculty) error {
	if before == nil {
		if err := claim(txn, makeFacultyPersonKey(after.PersonID), after.ID); err != nil {
			return err
		}
	}
	if after.Code.Valid {
		if err := claim(txn, makeFacultyCodeKey(after.Code.String), after.ID); err != nil {
			return err
		}
	}
	if before != nil && before.Code.Valid && before.Code != after.Code {
		if err := txn.Delete(makeFacultyCodeKey(before.Code.String)); err != nil {
			return err
		}
	}
	return setJSON(txn, makeFacultyKey(after.ID), after)
}

func (s *Store) writeAudit(txn *badger.Txn, entries []core.AuditEntry) error {
	now := time.Now().UTC()
	for _, e := range entries {
		id, err := s.nextID(auditIDSeq)
		if err != nil {
			return err
		}
		e.ID = id
		e.CreatedAt = now
		key := makeAuditKey(e.RunID, id)
		if err := setJSON(txn, key, e); err != nil {
			return fmt.Errorf("audit %s %d: %w", e.TableName, e.RecordID, err)
		}
		if err := txn.Set(makeAuditTimeKey(now, id), key); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun stores the run summary. Dry runs are never recorded.
func (s *Store) RecordRun(ctx context.Context, report *core.Report) error {
	summary := core.RunSummary{
		RunID:     report.RunID,
		FileName:  report.FileName,
		TotalRows: report.TotalRows,
		Created:   report.Created,
		Updated:   report.Updated,
		Unchanged: report.Unchanged,
		Failed:    report.Failed(),
		Warnings:  len(report.Warnings),
		ChangedBy: core.ActorFromContext(ctx),
		StartedAt: report.StartedAt,
		Duration:  report.Duration,
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, makeRunKey(report.StartedAt, report.RunID), summary)
	})
}
