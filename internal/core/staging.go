package core

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// staging is the in-run view of entities planned by earlier rows. The
// resolver consults it before the store so a later row sees a person or
// designation introduced earlier in the same file, including during a
// dry run where nothing reaches the store.
type staging struct {
	persons         map[int64]Person
	personByCNIC    map[string]int64
	faculties       map[int64]Faculty
	facultyByCode   map[string]int64
	facultyByPerson map[int64]int64
	designations    map[string]Designation
	qualifications  map[int64][]Qualification

	nextTempID int64
}

func newStaging() *staging {
	return &staging{
		persons:         make(map[int64]Person),
		personByCNIC:    make(map[string]int64),
		faculties:       make(map[int64]Faculty),
		facultyByCode:   make(map[string]int64),
		facultyByPerson: make(map[int64]int64),
		designations:    make(map[string]Designation),
		qualifications:  make(map[int64][]Qualification),
	}
}

func (s *staging) person(id int64) (Person, bool) {
	p, ok := s.persons[id]
	return p, ok
}

func (s *staging) personWithCNIC(cnic string) (Person, bool) {
	id, ok := s.personByCNIC[cnic]
	if !ok {
		return Person{}, false
	}
	return s.person(id)
}

func (s *staging) facultyWithCode(code string) (Faculty, bool) {
	id, ok := s.facultyByCode[code]
	if !ok {
		return Faculty{}, false
	}
	f, ok := s.faculties[id]
	return f, ok
}

func (s *staging) facultyOf(personID int64) (Faculty, bool) {
	id, ok := s.facultyByPerson[personID]
	if !ok {
		return Faculty{}, false
	}
	f, ok := s.faculties[id]
	return f, ok
}

// personsNamed returns staged persons with the given composite key.
func (s *staging) personsNamed(first string, last pgtype.Text, dob pgtype.Date) []Person {
	var out []Person
	for _, p := range s.persons {
		if compositeMatch(p, first, last, dob) {
			out = append(out, p)
		}
	}
	return out
}

func compositeMatch(p Person, first string, last pgtype.Text, dob pgtype.Date) bool {
	if !strings.EqualFold(p.FirstName, first) {
		return false
	}
	if p.LastName.Valid != last.Valid || (last.Valid && !strings.EqualFold(p.LastName.String, last.String)) {
		return false
	}
	return p.DateOfBirth.Valid && dob.Valid && p.DateOfBirth.Time.Equal(dob.Time)
}

// assignTempIDs gives planned entities negative IDs so a dry run can link
// them without touching the store.
func (s *staging) assignTempIDs(plan *Plan) {
	if plan.Person.Action == ActionCreate {
		plan.SetPersonID(s.tempID())
	}
	if plan.Faculty.Action == ActionCreate {
		plan.SetFacultyID(s.tempID())
	}
	seen := make(map[string]int64)
	for _, ref := range plan.PendingDesignations() {
		if id, ok := seen[ref.Designation.Key]; ok {
			plan.Link(ref, id, false)
			continue
		}
		id := s.tempID()
		seen[ref.Designation.Key] = id
		plan.Link(ref, id, true)
	}
	for i := range plan.Qualifications {
		plan.Qualifications[i].ID = s.tempID()
	}
}

func (s *staging) tempID() int64 {
	s.nextTempID--
	return s.nextTempID
}

// record makes the applied (or dry-run) plan visible to later rows.
func (s *staging) record(plan *Plan) {
	p := plan.Person.After
	if prev, ok := s.persons[p.ID]; ok && prev.CNIC.Valid && prev.CNIC != p.CNIC {
		delete(s.personByCNIC, prev.CNIC.String)
	}
	s.persons[p.ID] = p
	if p.CNIC.Valid {
		s.personByCNIC[p.CNIC.String] = p.ID
	}

	f := plan.Faculty.After
	if prev, ok := s.faculties[f.ID]; ok && prev.Code.Valid && prev.Code != f.Code {
		delete(s.facultyByCode, prev.Code.String)
	}
	s.faculties[f.ID] = f
	s.facultyByPerson[f.PersonID] = f.ID
	if f.Code.Valid {
		s.facultyByCode[f.Code.String] = f.ID
	}

	for _, ref := range plan.Designations {
		s.designations[ref.Designation.Key] = ref.Designation
	}

	s.qualifications[p.ID] = append(s.qualifications[p.ID], plan.Qualifications...)
}
