package core

import (
	"fmt"
	"strings"
	"unicode"
)

// Column is a canonical roster column.
type Column string

const (
	ColEmployeeName              Column = "employee_name"
	ColFatherOrHusbandName       Column = "father_or_husband_name"
	ColSex                       Column = "sex"
	ColEmail                     Column = "email"
	ColPersonalEmail             Column = "personal_email"
	ColCNIC                      Column = "cnic"
	ColCNICExpiry                Column = "cnic_expiry"
	ColDateOfBirth               Column = "date_of_birth"
	ColMobile                    Column = "mobile"
	ColBloodGroup                Column = "blood_group"
	ColMaritalStatus             Column = "marital_status"
	ColDependents                Column = "num_dependents"
	ColDateOfMarriage            Column = "date_of_marriage"
	ColTitle                     Column = "title"
	ColAcademicDesignation       Column = "academic_designation"
	ColAdministrativeDesignation Column = "administrative_designation"
	ColCode                      Column = "code"
	ColStatus                    Column = "status"
	ColDateOfJoining             Column = "date_of_joining"
)

// ColumnSpec describes one canonical column and the header spellings
// accepted for it.
type ColumnSpec struct {
	Column   Column   `json:"column"`
	Label    string   `json:"label"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// qualificationGroup is one set of wide qualification columns.
type qualificationGroup struct {
	category                          QualificationCategory
	title, institution, country, year Column
}

var columnSpecs = []ColumnSpec{
	{ColEmployeeName, "Employee Name", []string{"Name", "Full Name", "Employee", "Faculty Name"}},
	{ColFatherOrHusbandName, "Father's Name / Husband's Name", []string{"Father's Name / Husband'sName", "Father/Husband Name", "Father Name", "Husband Name", "Father's Name", "Guardian Name"}},
	{ColSex, "Sex", []string{"Gender"}},
	{ColEmail, "Email", []string{"University Email", "Official Email", "Email 1", "E-mail", "Email Address"}},
	{ColPersonalEmail, "Email 2", []string{"Personal Email", "Alternate Email", "Other Email"}},
	{ColCNIC, "CNIC #", []string{"CNIC", "CNIC No", "CNIC Number", "NIC", "National ID"}},
	{ColCNICExpiry, "CNIC Expiry Date", []string{"CNIC Expiry", "CNIC Expiration", "NIC Expiry"}},
	{ColDateOfBirth, "Date of Birth", []string{"DOB", "Birth Date", "Date Of Birth (DD/MM/YYYY)"}},
	{ColMobile, "Mobile #", []string{"Mobile", "Mobile No", "Mobile Number", "Phone", "Phone Number", "Cell", "Contact No"}},
	{ColBloodGroup, "Blood Group", []string{"Blood Gorup", "Blood Type"}},
	{ColMaritalStatus, "Marital Status", []string{"Martial Status", "Marital"}},
	{ColDependents, "No Of Dependents", []string{"No Of Dependent", "No. of Dependendts", "Dependents", "Number of Dependents"}},
	{ColDateOfMarriage, "Date of Marriage", []string{"DOM", "Marriage Date"}},
	{ColTitle, "Title", []string{"Faculty Title", "Salutation"}},
	{ColAcademicDesignation, "Academic Designation", []string{"Designation", "Academic Rank"}},
	{ColAdministrativeDesignation, "Administrative Designation", []string{"Admin Designation", "Administrative Post", "Administrative Role"}},
	{ColCode, "Code", []string{"Employee Code", "Emp Code", "Faculty Code", "Employee ID", "Emp ID"}},
	{ColStatus, "Status", []string{"Employment Status", "Job Status"}},
	{ColDateOfJoining, "Date of Joining", []string{"DOJ", "Joining Date"}},
}

var qualificationGroups = buildQualificationGroups()

// headerIndex maps a folded header label to its canonical column.
var headerIndex = buildHeaderIndex()

func buildQualificationGroups() []qualificationGroup {
	var groups []qualificationGroup
	for i := 1; i <= 3; i++ {
		groups = append(groups, qualificationGroup{
			category:    QualificationEducational,
			title:       Column(fmt.Sprintf("qualification_%d", i)),
			institution: Column(fmt.Sprintf("qualification_%d_institution", i)),
			country:     Column(fmt.Sprintf("qualification_%d_country", i)),
			year:        Column(fmt.Sprintf("qualification_%d_year", i)),
		})
	}
	for i := 1; i <= 2; i++ {
		groups = append(groups, qualificationGroup{
			category:    QualificationProfessional,
			title:       Column(fmt.Sprintf("professional_qualification_%d", i)),
			institution: Column(fmt.Sprintf("professional_qualification_%d_institution", i)),
			country:     Column(fmt.Sprintf("professional_qualification_%d_country", i)),
			year:        Column(fmt.Sprintf("professional_qualification_%d_year", i)),
		})
	}
	return groups
}

// qualificationSpecs lists the wide qualification columns. Professional
// groups reuse the "Country N" and "Year N" labels, so a sheet exported
// as-is carries them twice; the parser suffixes repeats with ".1".
func qualificationSpecs() []ColumnSpec {
	var specs []ColumnSpec
	edu, prof := 0, 0
	for _, g := range qualificationGroups {
		if g.category == QualificationEducational {
			edu++
			specs = append(specs,
				ColumnSpec{g.title, fmt.Sprintf("Qualification %d", edu), []string{fmt.Sprintf("Degree %d", edu)}},
				ColumnSpec{g.institution, fmt.Sprintf("University %d", edu), []string{fmt.Sprintf("Institution %d", edu)}},
				ColumnSpec{g.country, fmt.Sprintf("Country %d", edu), nil},
				ColumnSpec{g.year, fmt.Sprintf("Year %d", edu), nil},
			)
			continue
		}
		prof++
		specs = append(specs,
			ColumnSpec{g.title, fmt.Sprintf("Professional Qualification %d", prof), nil},
			ColumnSpec{g.institution, fmt.Sprintf("University/Institute %d", prof), []string{fmt.Sprintf("Institute %d", prof)}},
			ColumnSpec{g.country, fmt.Sprintf("Country %d.1", prof), nil},
			ColumnSpec{g.year, fmt.Sprintf("Year %d.1", prof), nil},
		)
	}
	return specs
}

func buildHeaderIndex() map[string]Column {
	idx := make(map[string]Column)
	add := func(label string, col Column) {
		key := FoldHeader(label)
		if existing, ok := idx[key]; ok && existing != col {
			panic(fmt.Sprintf("header %q maps to both %s and %s", label, existing, col))
		}
		idx[key] = col
	}
	for _, spec := range AllColumns() {
		add(spec.Label, spec.Column)
		add(string(spec.Column), spec.Column)
		for _, syn := range spec.Synonyms {
			add(syn, spec.Column)
		}
	}
	return idx
}

// AllColumns returns every canonical column, roster fields first.
func AllColumns() []ColumnSpec {
	all := make([]ColumnSpec, 0, len(columnSpecs)+4*len(qualificationGroups))
	all = append(all, columnSpecs...)
	all = append(all, qualificationSpecs()...)
	return all
}

// FoldHeader reduces a header label to lowercase letters and digits, so
// "CNIC #", "cnic" and " C.N.I.C " compare equal.
func FoldHeader(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveColumn maps a header label to its canonical column.
func ResolveColumn(label string) (Column, bool) {
	col, ok := headerIndex[FoldHeader(label)]
	return col, ok
}
