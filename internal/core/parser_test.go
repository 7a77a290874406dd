package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
)

func parseCSV(t *testing.T, content string) *ParsedFile {
	t.Helper()
	pf, err := ParseFile("roster.csv", []byte(content), ParseOptions{})
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	return pf
}

// ----------------------------------------------------------------------------
// CSV Tests
// ----------------------------------------------------------------------------

func TestParseFile_CSV(t *testing.T) {
	pf := parseCSV(t, "Employee Name,CNIC #,Mobile #,Remarks\n"+
		"Ali Khan,35202-1234567-1,0300-1234567,new hire\n"+
		"Sara Ahmed,42101-7654321-2,,\n")

	if pf.Format != FormatCSV {
		t.Errorf("Format = %q, want %q", pf.Format, FormatCSV)
	}
	if pf.Encoding != EncodingUTF8 {
		t.Errorf("Encoding = %q, want %q", pf.Encoding, EncodingUTF8)
	}
	if len(pf.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(pf.Rows))
	}

	row := pf.Rows[0]
	if row.Number != 1 {
		t.Errorf("Number = %d, want 1", row.Number)
	}
	if row.Line != 2 {
		t.Errorf("Line = %d, want 2", row.Line)
	}
	if got := row.Get(ColEmployeeName); got != "Ali Khan" {
		t.Errorf("employee_name = %q, want %q", got, "Ali Khan")
	}
	if got := row.Get(ColMobile); got != "0300-1234567" {
		t.Errorf("mobile = %q, want %q", got, "0300-1234567")
	}
	if got := row.Extra["Remarks"]; got != "new hire" {
		t.Errorf("Extra[Remarks] = %q, want %q", got, "new hire")
	}
	if len(pf.Unmapped) != 1 || pf.Unmapped[0] != "Remarks" {
		t.Errorf("Unmapped = %v, want [Remarks]", pf.Unmapped)
	}
}

func TestParseFile_HeaderSynonymsAndTypos(t *testing.T) {
	pf := parseCSV(t, "Name,Gender,Blood Gorup,Martial Status,No. of Dependendts,Father's Name / Husband'sName\n"+
		"Ali Khan,M,B+,Married,2,Akbar Khan\n")

	want := map[Column]string{
		ColEmployeeName:        "Ali Khan",
		ColSex:                 "M",
		ColBloodGroup:          "B+",
		ColMaritalStatus:       "Married",
		ColDependents:          "2",
		ColFatherOrHusbandName: "Akbar Khan",
	}
	for col, v := range want {
		if got := pf.Rows[0].Get(col); got != v {
			t.Errorf("%s = %q, want %q", col, got, v)
		}
	}
	if len(pf.Unmapped) != 0 {
		t.Errorf("Unmapped = %v, want none", pf.Unmapped)
	}
}

func TestParseFile_RepeatedQualificationLabels(t *testing.T) {
	pf := parseCSV(t, "Employee Name,Qualification 1,Country 1,Year 1,Professional Qualification 1,Country 1,Year 1\n"+
		"Ali Khan,PhD,Pakistan,2011,CFA,USA,2015\n")

	row := pf.Rows[0]
	if got := row.Get("qualification_1_country"); got != "Pakistan" {
		t.Errorf("qualification_1_country = %q, want Pakistan", got)
	}
	if got := row.Get("professional_qualification_1_country"); got != "USA" {
		t.Errorf("professional_qualification_1_country = %q, want USA", got)
	}
	if got := row.Get("professional_qualification_1_year"); got != "2015" {
		t.Errorf("professional_qualification_1_year = %q, want 2015", got)
	}
	if pf.Header[5] != "Country 1.1" {
		t.Errorf("Header[5] = %q, want %q", pf.Header[5], "Country 1.1")
	}
}

func TestParseFile_DuplicateColumnFirstWins(t *testing.T) {
	pf := parseCSV(t, "Employee Name,Email,University Email\nAli Khan,first@uni.edu.pk,second@uni.edu.pk\n")

	row := pf.Rows[0]
	if got := row.Get(ColEmail); got != "first@uni.edu.pk" {
		t.Errorf("email = %q, want first@uni.edu.pk", got)
	}
	if got := row.Extra["University Email"]; got != "second@uni.edu.pk" {
		t.Errorf("Extra[University Email] = %q, want second@uni.edu.pk", got)
	}
}

func TestParseFile_BlankRowsKeepNumbering(t *testing.T) {
	pf := parseCSV(t, "Employee Name,Code\nAli Khan,1\n,\nSara Ahmed,2\n")

	if len(pf.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(pf.Rows))
	}
	if pf.Rows[1].Number != 3 {
		t.Errorf("second row Number = %d, want 3", pf.Rows[1].Number)
	}
}

func TestParseFile_HeaderSearch(t *testing.T) {
	content := "Faculty Roster,,\nGenerated 2024-01-05,,\n,,\nEmployee Name,CNIC #,Code\nAli Khan,35202-1234567-1,E1\n"

	pf := parseCSV(t, content)
	if pf.Header[0] != "Employee Name" {
		t.Errorf("Header[0] = %q, want Employee Name", pf.Header[0])
	}
	if len(pf.Rows) != 1 || pf.Rows[0].Get(ColCode) != "E1" {
		t.Errorf("Rows = %+v, want one row with code E1", pf.Rows)
	}

	// Outside the search window the first non-empty row is used.
	pf, err := ParseFile("roster.csv", []byte(content), ParseOptions{MaxHeaderSearchRows: 2})
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if pf.Header[0] != "Faculty Roster" {
		t.Errorf("Header[0] = %q, want Faculty Roster", pf.Header[0])
	}
}

// ----------------------------------------------------------------------------
// Encoding Tests
// ----------------------------------------------------------------------------

func TestParseFile_Encodings(t *testing.T) {
	const text = "Employee Name,Father's Name\nZoë Ali,Müller Ali\n"

	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatalf("encode utf-16: %v", err)
	}

	tests := []struct {
		name     string
		data     []byte
		wantEnc  string
		wantName string
	}{
		{"utf-8", []byte(text), EncodingUTF8, "Zoë Ali"},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, text...), EncodingUTF8BOM, "Zoë Ali"},
		{"utf-16le bom", utf16, EncodingUTF16, "Zoë Ali"},
		{"windows-1252", []byte("Employee Name,Father's Name\nZo\xeb Ali,M\xfcller Ali\n"), EncodingWindows1252, "Zoë Ali"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf, err := ParseFile("roster.csv", tt.data, ParseOptions{})
			if err != nil {
				t.Fatalf("ParseFile error: %v", err)
			}
			if pf.Encoding != tt.wantEnc {
				t.Errorf("Encoding = %q, want %q", pf.Encoding, tt.wantEnc)
			}
			if len(pf.Rows) != 1 {
				t.Fatalf("len(Rows) = %d, want 1", len(pf.Rows))
			}
			if got := pf.Rows[0].Get(ColEmployeeName); got != tt.wantName {
				t.Errorf("employee_name = %q, want %q", got, tt.wantName)
			}
			if got := pf.Rows[0].Get(ColFatherOrHusbandName); got != "Müller Ali" {
				t.Errorf("father_or_husband_name = %q, want %q", got, "Müller Ali")
			}
		})
	}
}

// ----------------------------------------------------------------------------
// XLSX Tests
// ----------------------------------------------------------------------------

func buildWorkbook(t *testing.T, rows map[string][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for cell, values := range rows {
		values := values
		if err := f.SetSheetRow("Sheet1", cell, &values); err != nil {
			t.Fatalf("SetSheetRow(%s): %v", cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestParseFile_XLSX(t *testing.T) {
	data := buildWorkbook(t, map[string][]any{
		"A1": {"Faculty Roster"},
		"A3": {"Employee Name", "CNIC #", "Date of Birth", "Code"},
		"A4": {"Ali Khan", "35202-1234567-1", 31122, 1234},
	})

	pf, err := ParseFile("roster.xlsx", data, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if pf.Format != FormatXLSX {
		t.Errorf("Format = %q, want %q", pf.Format, FormatXLSX)
	}
	if pf.Sheet != "Sheet1" {
		t.Errorf("Sheet = %q, want Sheet1", pf.Sheet)
	}
	if len(pf.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(pf.Rows))
	}

	row := pf.Rows[0]
	if row.Line != 4 {
		t.Errorf("Line = %d, want 4", row.Line)
	}
	if got := row.Get(ColDateOfBirth); got != "31122" {
		t.Errorf("date_of_birth = %q, want raw serial 31122", got)
	}
	if got := row.Get(ColCode); got != "1234" {
		t.Errorf("code = %q, want 1234", got)
	}
}

// ----------------------------------------------------------------------------
// Unreadable File Tests
// ----------------------------------------------------------------------------

func TestParseFile_Unreadable(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantReason string
	}{
		{"empty", nil, "empty file"},
		{"whitespace only", []byte(" \n\t\n"), "empty file"},
		{"legacy xls", append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 64)...), "legacy .xls"},
		{"binary", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), "invalid csv"},
		{"broken zip", append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0x01}, 32)...), "invalid xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf, err := ParseFile("upload.bin", tt.data, ParseOptions{})
			if pf != nil {
				t.Errorf("ParseFile returned a result alongside the error")
			}
			var ufe *UnreadableFileError
			if !errors.As(err, &ufe) {
				t.Fatalf("error = %v, want *UnreadableFileError", err)
			}
			if !strings.Contains(ufe.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want it to contain %q", ufe.Reason, tt.wantReason)
			}
		})
	}
}
