package core

// merge.go implements fill-forward: an incoming value replaces the stored
// one only when it is non-null. Null text/dates, Unknown enums and
// not-provided counts leave the stored value alone, so a partially filled
// re-upload never blanks out data.

import "github.com/jackc/pgx/v5/pgtype"

func newPerson() Person {
	return Person{Sex: SexUnknown, BloodGroup: BloodGroupUnknown, MaritalStatus: MaritalUnknown}
}

func newFaculty(personID int64) Faculty {
	return Faculty{PersonID: personID, Status: StatusUnknown}
}

func mergePerson(p Person, rec *NormalizedRecord) Person {
	if rec.FirstName != "" {
		p.FirstName = rec.FirstName
	}
	fillText(&p.LastName, rec.LastName)
	fillText(&p.FatherOrHusbandName, rec.FatherOrHusbandName)
	fillText(&p.Email, rec.Email)
	fillText(&p.CNIC, rec.CNIC)
	fillText(&p.Mobile, rec.Mobile)
	fillDate(&p.CNICExpiry, rec.CNICExpiry)
	fillDate(&p.DateOfBirth, rec.DateOfBirth)
	fillDate(&p.DateOfMarriage, rec.DateOfMarriage)
	fillEnum(&p.Sex, rec.Sex, SexUnknown)
	fillEnum(&p.BloodGroup, rec.BloodGroup, BloodGroupUnknown)
	fillEnum(&p.MaritalStatus, rec.MaritalStatus, MaritalUnknown)
	if rec.NumDependents.Valid {
		p.NumDependents = rec.NumDependents.Int32
	}
	return p
}

func mergeFaculty(f Faculty, rec *NormalizedRecord) Faculty {
	fillText(&f.Code, rec.Code)
	fillText(&f.Title, rec.Title)
	fillDate(&f.DateOfJoining, rec.DateOfJoining)
	fillEnum(&f.Status, rec.Status, StatusUnknown)
	return f
}

func fillText(dst *pgtype.Text, in pgtype.Text) {
	if in.Valid {
		*dst = in
	}
}

func fillDate(dst *pgtype.Date, in pgtype.Date) {
	if in.Valid {
		*dst = in
	}
}

func fillEnum[T comparable](dst *T, in, unknown T) {
	if in != unknown {
		*dst = in
	}
}

// personChanges lists the fields that differ between a and b.
func personChanges(a, b Person) []string {
	var out []string
	d := differ{&out}
	d.str("first_name", a.FirstName, b.FirstName)
	d.text("last_name", a.LastName, b.LastName)
	d.text("father_or_husband_name", a.FatherOrHusbandName, b.FatherOrHusbandName)
	d.str("sex", string(a.Sex), string(b.Sex))
	d.text("email", a.Email, b.Email)
	d.text("cnic", a.CNIC, b.CNIC)
	d.date("cnic_expiry", a.CNICExpiry, b.CNICExpiry)
	d.date("date_of_birth", a.DateOfBirth, b.DateOfBirth)
	d.text("mobile", a.Mobile, b.Mobile)
	d.str("blood_group", string(a.BloodGroup), string(b.BloodGroup))
	d.str("marital_status", string(a.MaritalStatus), string(b.MaritalStatus))
	if a.NumDependents != b.NumDependents {
		out = append(out, "num_dependents")
	}
	d.date("date_of_marriage", a.DateOfMarriage, b.DateOfMarriage)
	return out
}

// facultyChanges lists the fields that differ between a and b.
func facultyChanges(a, b Faculty) []string {
	var out []string
	d := differ{&out}
	d.text("code", a.Code, b.Code)
	d.text("title", a.Title, b.Title)
	d.int8("academic_designation_id", a.AcademicDesignationID, b.AcademicDesignationID)
	d.int8("administrative_designation_id", a.AdministrativeDesignationID, b.AdministrativeDesignationID)
	d.str("status", string(a.Status), string(b.Status))
	d.date("date_of_joining", a.DateOfJoining, b.DateOfJoining)
	return out
}

type differ struct {
	out *[]string
}

func (d differ) str(name, a, b string) {
	if a != b {
		*d.out = append(*d.out, name)
	}
}

func (d differ) text(name string, a, b pgtype.Text) {
	if a.Valid != b.Valid || (a.Valid && a.String != b.String) {
		*d.out = append(*d.out, name)
	}
}

func (d differ) date(name string, a, b pgtype.Date) {
	if a.Valid != b.Valid || (a.Valid && !a.Time.Equal(b.Time)) {
		*d.out = append(*d.out, name)
	}
}

func (d differ) int8(name string, a, b pgtype.Int8) {
	if a.Valid != b.Valid || (a.Valid && a.Int64 != b.Int64) {
		*d.out = append(*d.out, name)
	}
}
