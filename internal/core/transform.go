package core

// transform.go turns a RawRow into a NormalizedRecord.
//
// The transformer applies one normalizer per recognised column and
// collects soft failures as FieldWarnings. Only a missing employee name
// rejects the row; everything else degrades to null/Unknown so the row
// still reaches the resolver.

// Transformer applies the field normalizers to parsed rows.
type Transformer struct {
	// CountryCode replaces the national trunk '0' on mobile numbers.
	// Empty leaves local numbers as digits.
	CountryCode string
}

// NewTransformer returns a Transformer using countryCode for mobiles.
func NewTransformer(countryCode string) *Transformer {
	return &Transformer{CountryCode: countryCode}
}

var columnLabels = func() map[Column]string {
	m := make(map[Column]string)
	for _, spec := range AllColumns() {
		m[spec.Column] = spec.Label
	}
	return m
}()

// ColumnLabel returns the display label of a canonical column.
func ColumnLabel(c Column) string {
	if l, ok := columnLabels[c]; ok {
		return l
	}
	return string(c)
}

// rowWarnings accumulates warnings for one row.
type rowWarnings struct {
	row  int
	list []FieldWarning
}

func (w *rowWarnings) add(col Column, err error) {
	if err == nil {
		return
	}
	w.list = append(w.list, FieldWarning{Row: w.row, Field: ColumnLabel(col), Message: err.Error()})
}

// Transform normalizes one row. It returns either a record with its
// warnings or a RowError, never both.
func (t *Transformer) Transform(row RawRow) (*NormalizedRecord, []FieldWarning, *RowError) {
	first, last, err := SplitName(row.Get(ColEmployeeName))
	if err != nil {
		return nil, nil, &RowError{
			Row:     row.Number,
			Field:   ColumnLabel(ColEmployeeName),
			Kind:    KindMissingRequiredField,
			Message: "employee name is required",
			Err:     err,
		}
	}

	w := &rowWarnings{row: row.Number}
	rec := &NormalizedRecord{FirstName: first, LastName: last}

	rec.FatherOrHusbandName = NormalizeText(row.Get(ColFatherOrHusbandName))
	rec.Title = NormalizeText(row.Get(ColTitle))
	rec.AcademicDesignation = NormalizeText(row.Get(ColAcademicDesignation))
	rec.AdministrativeDesignation = NormalizeText(row.Get(ColAdministrativeDesignation))
	rec.Code = NormalizeCode(row.Get(ColCode))

	rec.Sex, err = NormalizeSex(row.Get(ColSex))
	w.add(ColSex, err)
	rec.BloodGroup, err = NormalizeBloodGroup(row.Get(ColBloodGroup))
	w.add(ColBloodGroup, err)
	rec.MaritalStatus, err = NormalizeMaritalStatus(row.Get(ColMaritalStatus))
	w.add(ColMaritalStatus, err)
	rec.Status, err = NormalizeStatus(row.Get(ColStatus))
	w.add(ColStatus, err)

	rec.CNIC, err = NormalizeCNIC(row.Get(ColCNIC))
	w.add(ColCNIC, err)
	rec.Mobile, err = NormalizePhone(row.Get(ColMobile), t.CountryCode)
	w.add(ColMobile, err)

	rec.Email, err = NormalizeEmail(row.Get(ColEmail))
	w.add(ColEmail, err)
	if !rec.Email.Valid {
		rec.Email, err = NormalizeEmail(row.Get(ColPersonalEmail))
		w.add(ColPersonalEmail, err)
	}

	rec.NumDependents, err = NormalizeDependents(row.Get(ColDependents))
	w.add(ColDependents, err)

	rec.CNICExpiry, err = NormalizeDate(row.Get(ColCNICExpiry))
	w.add(ColCNICExpiry, err)
	rec.DateOfBirth, err = NormalizeDate(row.Get(ColDateOfBirth))
	w.add(ColDateOfBirth, err)
	rec.DateOfMarriage, err = NormalizeDate(row.Get(ColDateOfMarriage))
	w.add(ColDateOfMarriage, err)
	rec.DateOfJoining, err = NormalizeDate(row.Get(ColDateOfJoining))
	w.add(ColDateOfJoining, err)

	if rec.MaritalStatus == MaritalSingle && rec.DateOfMarriage.Valid {
		w.list = append(w.list, FieldWarning{
			Row:     row.Number,
			Field:   ColumnLabel(ColDateOfMarriage),
			Message: "date of marriage ignored for a single person",
		})
		rec.DateOfMarriage.Valid = false
	}

	rec.Qualifications = extractQualifications(row, w)

	return rec, w.list, nil
}

// extractQualifications reads the wide qualification column groups.
// A group without a title is skipped.
func extractQualifications(row RawRow, w *rowWarnings) []QualificationInput {
	var out []QualificationInput
	for _, g := range qualificationGroups {
		title := NormalizeText(row.Get(g.title))
		if !title.Valid {
			continue
		}
		year, err := NormalizeYear(row.Get(g.year))
		w.add(g.year, err)

		out = append(out, QualificationInput{
			Category:    g.category,
			Title:       title.String,
			Institution: NormalizeText(row.Get(g.institution)),
			Country:     NormalizeText(row.Get(g.country)),
			Year:        year,
		})
	}
	return out
}
