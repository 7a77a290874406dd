package core

// resolver.go decides, for one NormalizedRecord, which Person and Faculty
// it refers to and what must be written.
//
// Matching policy, first hit wins:
//  1. exact CNIC against Person
//  2. exact code against Faculty, then its Person
//  3. (first name, last name, date of birth), only for records that carry
//     a CNIC, email or code; more than one hit is AmbiguousMatch
//  4. otherwise a new Person with a new Faculty
//
// The resolver never writes. It produces a Plan that the orchestrator
// either commits through the Store or, in a dry run, only stages.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resolver matches records against stored and staged entities.
type Resolver struct {
	store Reader
	stage *staging
}

// NewResolver returns a Resolver with an empty staging overlay. Use one
// Resolver per ingestion run.
func NewResolver(store Reader) *Resolver {
	return &Resolver{store: store, stage: newStaging()}
}

// Resolve builds the Plan for rec. Policy failures are returned as
// *RowError; store failures are returned wrapped.
func (r *Resolver) Resolve(ctx context.Context, row int, rec *NormalizedRecord) (*Plan, error) {
	person, faculty, err := r.match(ctx, row, rec)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Row: row}

	if person == nil {
		plan.Person = PersonChange{Action: ActionCreate, After: mergePerson(newPerson(), rec)}
	} else {
		after := mergePerson(*person, rec)
		plan.Person = PersonChange{Action: ActionNone, Before: person, After: after}
		if fields := personChanges(*person, after); len(fields) > 0 {
			plan.Person.Action = ActionUpdate
			plan.Person.Fields = fields
		}
	}

	base := newFaculty(plan.Person.After.ID)
	if faculty != nil {
		base = *faculty
	}
	plan.Faculty.Before = faculty
	plan.Faculty.After = mergeFaculty(base, rec)

	if err := r.resolveDesignations(ctx, plan, rec); err != nil {
		return nil, err
	}

	switch {
	case faculty == nil:
		plan.Faculty.Action = ActionCreate
	default:
		fields := facultyChanges(*faculty, plan.Faculty.After)
		for _, ref := range plan.PendingDesignations() {
			fields = append(fields, string(ref.Kind)+"_designation_id")
		}
		if len(fields) > 0 {
			plan.Faculty.Action = ActionUpdate
			plan.Faculty.Fields = fields
		} else {
			plan.Faculty.Action = ActionNone
		}
	}

	quals, err := r.newQualifications(ctx, plan.Person.After.ID, person != nil, rec.Qualifications)
	if err != nil {
		return nil, err
	}
	plan.Qualifications = quals

	return plan, nil
}

// Stage makes a resolved plan visible to later rows. In a dry run the
// planned entities get temporary negative IDs first.
func (r *Resolver) Stage(plan *Plan, dryRun bool) {
	if dryRun {
		r.stage.assignTempIDs(plan)
	}
	r.stage.record(plan)
}

func (r *Resolver) match(ctx context.Context, row int, rec *NormalizedRecord) (*Person, *Faculty, error) {
	var person *Person
	var faculty *Faculty
	var err error

	if rec.CNIC.Valid {
		if person, err = r.personByCNIC(ctx, rec.CNIC.String); err != nil {
			return nil, nil, fmt.Errorf("find person by cnic: %w", err)
		}
	}

	if rec.Code.Valid {
		if faculty, err = r.facultyByCode(ctx, rec.Code.String); err != nil {
			return nil, nil, fmt.Errorf("find faculty by code: %w", err)
		}
	}

	if faculty != nil {
		switch {
		case person != nil && faculty.PersonID != person.ID:
			return nil, nil, &RowError{
				Row:     row,
				Field:   ColumnLabel(ColCode),
				Kind:    KindConflictingIdentifier,
				Message: fmt.Sprintf("code %q belongs to a different person than CNIC %s", rec.Code.String, MaskCNIC(rec.CNIC.String)),
			}
		case person == nil:
			if person, err = r.personByID(ctx, faculty.PersonID); err != nil {
				return nil, nil, fmt.Errorf("find person %d for code %q: %w", faculty.PersonID, rec.Code.String, err)
			}
			if person == nil {
				return nil, nil, fmt.Errorf("faculty %d references missing person %d: %w", faculty.ID, faculty.PersonID, ErrNotFound)
			}
			if rec.CNIC.Valid && person.CNIC.Valid && person.CNIC.String != rec.CNIC.String {
				return nil, nil, &RowError{
					Row:     row,
					Field:   ColumnLabel(ColCNIC),
					Kind:    KindConflictingIdentifier,
					Message: fmt.Sprintf("code %q is registered to a person with a different CNIC", rec.Code.String),
				}
			}
		}
	}

	if person == nil && rec.HasIdentifier() && rec.DateOfBirth.Valid {
		candidates, err := r.personsByComposite(ctx, rec)
		if err != nil {
			return nil, nil, fmt.Errorf("find person by name and date of birth: %w", err)
		}
		switch len(candidates) {
		case 0:
		case 1:
			person = &candidates[0]
		default:
			return nil, nil, &RowError{
				Row:     row,
				Field:   ColumnLabel(ColEmployeeName),
				Kind:    KindAmbiguousMatch,
				Message: fmt.Sprintf("%d existing people share this name and date of birth", len(candidates)),
			}
		}
	}

	if person != nil && faculty == nil {
		if faculty, err = r.facultyByPerson(ctx, person.ID); err != nil {
			return nil, nil, fmt.Errorf("find faculty for person %d: %w", person.ID, err)
		}
	}

	return person, faculty, nil
}

func (r *Resolver) resolveDesignations(ctx context.Context, plan *Plan, rec *NormalizedRecord) error {
	slots := []struct {
		kind  DesignationKind
		label string
	}{
		{DesignationAcademic, rec.AcademicDesignation.String},
		{DesignationAdministrative, rec.AdministrativeDesignation.String},
	}

	for _, slot := range slots {
		key := DesignationKey(slot.label)
		if key == "" {
			continue
		}
		d, err := r.designation(ctx, key)
		if err != nil {
			return fmt.Errorf("find designation %q: %w", slot.label, err)
		}
		ref := &DesignationRef{Kind: slot.kind}
		if d == nil {
			ref.Create = true
			ref.Designation = Designation{Label: CollapseSpace(CleanCell(slot.label)), Key: key, Kind: slot.kind}
			plan.Designations = append(plan.Designations, ref)
			continue
		}
		ref.Designation = *d
		plan.Designations = append(plan.Designations, ref)
		plan.Link(ref, d.ID, false)
	}
	return nil
}

// newQualifications drops inputs the person already holds, matched on
// category, case-insensitive title and year.
func (r *Resolver) newQualifications(ctx context.Context, personID int64, existingPerson bool, in []QualificationInput) ([]Qualification, error) {
	if len(in) == 0 {
		return nil, nil
	}

	held := make(map[string]bool)
	if existingPerson {
		existing, err := r.qualificationsOf(ctx, personID)
		if err != nil {
			return nil, fmt.Errorf("find qualifications for person %d: %w", personID, err)
		}
		for _, q := range existing {
			held[qualificationKey(q.Category, q.Title, q.Year.Int32, q.Year.Valid)] = true
		}
	}

	var out []Qualification
	for _, q := range in {
		key := qualificationKey(q.Category, q.Title, q.Year.Int32, q.Year.Valid)
		if held[key] {
			continue
		}
		held[key] = true
		out = append(out, Qualification{
			PersonID:    personID,
			Category:    q.Category,
			Title:       q.Title,
			Institution: q.Institution,
			Country:     q.Country,
			Year:        q.Year,
		})
	}
	return out, nil
}

func qualificationKey(c QualificationCategory, title string, year int32, hasYear bool) string {
	if !hasYear {
		year = 0
	}
	return fmt.Sprintf("%s|%s|%d", c, strings.ToLower(title), year)
}

// Lookups consult the staging overlay first, then the store. Temporary
// (negative) IDs exist only in staging.

func (r *Resolver) personByCNIC(ctx context.Context, cnic string) (*Person, error) {
	if p, ok := r.stage.personWithCNIC(cnic); ok {
		return &p, nil
	}
	p, err := found(r.store.FindPersonByCNIC(ctx, cnic))
	if err != nil || p == nil {
		return p, err
	}
	if staged, ok := r.stage.person(p.ID); ok {
		return &staged, nil
	}
	return p, nil
}

func (r *Resolver) personByID(ctx context.Context, id int64) (*Person, error) {
	if p, ok := r.stage.person(id); ok {
		return &p, nil
	}
	if id < 0 {
		return nil, nil
	}
	return found(r.store.FindPersonByID(ctx, id))
}

func (r *Resolver) facultyByCode(ctx context.Context, code string) (*Faculty, error) {
	if f, ok := r.stage.facultyWithCode(code); ok {
		return &f, nil
	}
	f, err := found(r.store.FindFacultyByCode(ctx, code))
	if err != nil || f == nil {
		return f, err
	}
	// The stored row may have been superseded by an earlier row of this run.
	if staged, ok := r.stage.faculties[f.ID]; ok {
		if staged.Code != f.Code {
			return nil, nil
		}
		return &staged, nil
	}
	return f, nil
}

func (r *Resolver) facultyByPerson(ctx context.Context, personID int64) (*Faculty, error) {
	if f, ok := r.stage.facultyOf(personID); ok {
		return &f, nil
	}
	if personID < 0 {
		return nil, nil
	}
	return found(r.store.FindFacultyByPerson(ctx, personID))
}

func (r *Resolver) designation(ctx context.Context, key string) (*Designation, error) {
	if d, ok := r.stage.designations[key]; ok {
		return &d, nil
	}
	return found(r.store.FindDesignation(ctx, key))
}

func (r *Resolver) qualificationsOf(ctx context.Context, personID int64) ([]Qualification, error) {
	staged := r.stage.qualifications[personID]
	if personID < 0 {
		return staged, nil
	}
	stored, err := r.store.FindQualifications(ctx, personID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return append(stored, staged...), nil
}

// personsByComposite merges store and staging hits by ID, preferring the
// staged version, and drops candidates whose CNIC contradicts the record.
func (r *Resolver) personsByComposite(ctx context.Context, rec *NormalizedRecord) ([]Person, error) {
	stored, err := r.store.FindPersonsByNameAndDOB(ctx, rec.FirstName, rec.LastName, rec.DateOfBirth)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	byID := make(map[int64]Person)
	var order []int64
	add := func(p Person) {
		if _, ok := byID[p.ID]; !ok {
			order = append(order, p.ID)
		}
		byID[p.ID] = p
	}
	for _, p := range stored {
		if staged, ok := r.stage.person(p.ID); ok {
			if !compositeMatch(staged, rec.FirstName, rec.LastName, rec.DateOfBirth) {
				continue
			}
			p = staged
		}
		add(p)
	}
	for _, p := range r.stage.personsNamed(rec.FirstName, rec.LastName, rec.DateOfBirth) {
		add(p)
	}

	var out []Person
	for _, id := range order {
		p := byID[id]
		if rec.CNIC.Valid && p.CNIC.Valid && p.CNIC.String != rec.CNIC.String {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func found[T any](v *T, err error) (*T, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// MaskCNIC keeps the last four digits for messages and logs.
func MaskCNIC(cnic string) string {
	if len(cnic) <= 4 {
		return strings.Repeat("*", len(cnic))
	}
	return strings.Repeat("*", len(cnic)-4) + cnic[len(cnic)-4:]
}
