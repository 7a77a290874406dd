package core

// normalize.go holds the field normalizers applied to every roster cell.
//
// HR exports are messy in predictable ways:
//   - names typed with stray spaces, titles pasted into the wrong column
//   - dates in half a dozen day-first layouts, or as spreadsheet serials
//   - CNICs with or without dashes, phones with trunk zeros or 00 prefixes
//   - placeholder text ("N/A", "-", "nan") where a cell should be blank
//
// Every normalizer is total. It returns a canonical value (Valid=false for
// null) and, when the input was non-empty but unusable, an error describing
// why. The error is a soft warning; callers keep going with the null value.

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MinYear and the current year plus one bound every accepted date.
const MinYear = 1900

// CNICDigits is the length of a canonical CNIC.
const CNICDigits = 13

// Phone digit bounds, excluding the leading '+'.
const (
	MinPhoneDigits = 10
	MaxPhoneDigits = 13
)

// DefaultCountryCode replaces a national trunk '0' on mobile numbers.
const DefaultCountryCode = "92"

// minExcelSerial keeps four-digit years ("1990") from being read as serials.
// 10000 is 1927-05-18, earlier than any plausible employee record.
const minExcelSerial = 10000

// dateLayouts are tried in order. Day-first wins for ambiguous input.
var dateLayouts = []string{
	"2006-1-2", "2006/1/2", "2006.1.2",
	"2/1/2006", "2-1-2006", "2.1.2006",
	"2-Jan-2006", "2 Jan 2006", "2 Jan, 2006",
	"2-January-2006", "2 January 2006", "2 January, 2006",
	"Jan 2, 2006", "Jan 2 2006", "January 2, 2006", "January 2 2006",
}

// timestampLayouts cover exports that append a time of day.
var timestampLayouts = []string{
	"2006-1-2 15:04:05", "2006-01-02T15:04:05", time.RFC3339,
	"2/1/2006 15:04:05", "2/1/2006 15:04",
}

// monthFirstLayouts only succeed when day-first could not, i.e. when the
// second number is above 12.
var monthFirstLayouts = []string{
	"1/2/2006", "1-2-2006", "1.2.2006",
}

var (
	twoDigitYearRegex = regexp.MustCompile(`^\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2}$`)
	excelSerialRegex  = regexp.MustCompile(`^\d{5}(\.\d+)?$`)
	leadingDigits     = regexp.MustCompile(`^\d+`)
	spreadsheetFloat  = regexp.MustCompile(`^(\d+)\.0+$`)
)

var placeholders = map[string]struct{}{
	"n/a": {}, "na": {}, "#n/a": {}, "-": {}, "--": {}, "nan": {},
	"null": {}, "none": {}, "nil": {}, "not available": {},
}

// CleanCell strips spreadsheet artifacts from a cell:
// - surrounding whitespace, including non-breaking spaces
// - Excel formula prefix (="...")
// - surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimFunc(s, unicode.IsSpace)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimFunc(s, unicode.IsSpace)
}

// CollapseSpace trims s and folds internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func isPlaceholder(s string) bool {
	if s == "" {
		return true
	}
	_, ok := placeholders[strings.ToLower(s)]
	return ok
}

// NormalizeText cleans a free-text cell. Placeholders become null.
func NormalizeText(raw string) pgtype.Text {
	s := CollapseSpace(CleanCell(raw))
	if isPlaceholder(s) {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// NormalizeCode cleans an institution code. Spreadsheets tend to store
// numeric codes as floats, so "1234.0" becomes "1234".
func NormalizeCode(raw string) pgtype.Text {
	t := NormalizeText(raw)
	if !t.Valid {
		return t
	}
	if m := spreadsheetFloat.FindStringSubmatch(t.String); m != nil {
		t.String = m[1]
	}
	return t
}

// SplitName splits "Employee Name" on its last whitespace boundary.
// A single token yields a null last name.
func SplitName(raw string) (first string, last pgtype.Text, err error) {
	s := CollapseSpace(norm.NFC.String(CleanCell(raw)))
	if isPlaceholder(s) {
		return "", pgtype.Text{}, ErrMissingRequiredField
	}

	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return s, pgtype.Text{}, nil
	}
	return s[:i], pgtype.Text{String: s[i+1:], Valid: true}, nil
}

// NormalizeDate parses a date cell into a calendar date (UTC midnight).
// Empty input is null without error.
func NormalizeDate(raw string) (pgtype.Date, error) {
	s := CollapseSpace(CleanCell(raw))
	if isPlaceholder(s) {
		return pgtype.Date{}, nil
	}

	t, ok := parseDate(s)
	if !ok {
		if twoDigitYearRegex.MatchString(s) {
			return pgtype.Date{}, fmt.Errorf("%w: %q has a two-digit year", ErrInvalidDate, s)
		}
		return pgtype.Date{}, fmt.Errorf("%w: %q is not a recognised date", ErrInvalidDate, s)
	}

	maxYear := time.Now().Year() + 1
	if t.Year() < MinYear || t.Year() > maxYear {
		return pgtype.Date{}, fmt.Errorf("%w: %q is outside %d-%d", ErrInvalidDate, s, MinYear, maxYear)
	}

	return pgtype.Date{Time: t, Valid: true}, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, group := range [][]string{dateLayouts, timestampLayouts, monthFirstLayouts} {
		for _, layout := range group {
			if t, err := time.Parse(layout, s); err == nil {
				return truncateDay(t), true
			}
		}
	}

	if excelSerialRegex.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err == nil && serial >= minExcelSerial {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return truncateDay(t), true
			}
		}
	}

	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeCNIC reduces a CNIC to its 13 digits.
func NormalizeCNIC(raw string) (pgtype.Text, error) {
	s := CleanCell(raw)
	if isPlaceholder(s) {
		return pgtype.Text{}, nil
	}

	// Numeric workbook cells may come back in exponent form.
	if strings.ContainsAny(s, "eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			s = strconv.FormatFloat(f, 'f', 0, 64)
		}
	}

	digits := onlyDigits(s)
	if len(digits) != CNICDigits {
		return pgtype.Text{}, fmt.Errorf("%w: %q has %d digits, want %d", ErrInvalidCNIC, s, len(digits), CNICDigits)
	}
	return pgtype.Text{String: digits, Valid: true}, nil
}

// NormalizePhone reduces a phone cell to digits with an optional leading
// '+'. A "00" prefix becomes '+'; a national trunk '0' is replaced by
// countryCode when one is given. Cells listing several numbers keep the
// first valid one.
func NormalizePhone(raw, countryCode string) (pgtype.Text, error) {
	s := CleanCell(raw)
	if isPlaceholder(s) {
		return pgtype.Text{}, nil
	}

	for _, candidate := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == ',' || r == ';'
	}) {
		if phone, ok := canonicalPhone(candidate, countryCode); ok {
			return pgtype.Text{String: phone, Valid: true}, nil
		}
	}

	return pgtype.Text{}, fmt.Errorf("%w: %q needs %d-%d digits", ErrInvalidPhone, s, MinPhoneDigits, MaxPhoneDigits)
}

func canonicalPhone(s, countryCode string) (string, bool) {
	s = strings.TrimSpace(s)
	plus := strings.HasPrefix(s, "+")
	digits := onlyDigits(s)

	if !plus && strings.HasPrefix(digits, "00") {
		plus = true
		digits = digits[2:]
	}
	if len(digits) < MinPhoneDigits || len(digits) > MaxPhoneDigits {
		return "", false
	}
	if !plus && countryCode != "" && strings.HasPrefix(digits, "0") {
		plus = true
		digits = countryCode + digits[1:]
	}
	if plus {
		return "+" + digits, true
	}
	return digits, true
}

// NormalizeEmail returns the first valid address in a cell, lowercased.
// Cells often hold several addresses separated by ";", "," or "/".
func NormalizeEmail(raw string) (pgtype.Text, error) {
	s := CleanCell(raw)
	if isPlaceholder(s) {
		return pgtype.Text{}, nil
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ',' || r == '/' || unicode.IsSpace(r)
	})
	for _, p := range parts {
		addr, err := mail.ParseAddress(p)
		if err != nil {
			continue
		}
		at := strings.LastIndexByte(addr.Address, '@')
		if at < 1 || !strings.Contains(addr.Address[at+1:], ".") {
			continue
		}
		return pgtype.Text{String: strings.ToLower(addr.Address), Valid: true}, nil
	}

	return pgtype.Text{}, fmt.Errorf("%w: %q", ErrInvalidEmail, s)
}

// NormalizeDependents parses the leading digits of a count. Blank is
// not-provided (Valid=false). Negative or non-numeric input yields a valid
// 0 together with an error.
func NormalizeDependents(raw string) (pgtype.Int4, error) {
	s := CleanCell(raw)
	if isPlaceholder(s) {
		return pgtype.Int4{}, nil
	}

	zero := pgtype.Int4{Int32: 0, Valid: true}
	m := leadingDigits.FindString(s)
	if m == "" {
		return zero, fmt.Errorf("%w: dependents %q is not a non-negative count", ErrInvalidNumber, s)
	}
	n, err := strconv.ParseInt(m, 10, 32)
	if err != nil {
		return zero, fmt.Errorf("%w: dependents %q: %v", ErrInvalidNumber, s, err)
	}
	return pgtype.Int4{Int32: int32(n), Valid: true}, nil
}

// NormalizeYear parses a qualification year such as "2011" or "2011.0".
func NormalizeYear(raw string) (pgtype.Int4, error) {
	s := CleanCell(raw)
	if isPlaceholder(s) {
		return pgtype.Int4{}, nil
	}
	if m := spreadsheetFloat.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	n, err := strconv.Atoi(s)
	maxYear := time.Now().Year() + 1
	if err != nil || n < MinYear || n > maxYear {
		return pgtype.Int4{}, fmt.Errorf("%w: year %q", ErrInvalidNumber, s)
	}
	return pgtype.Int4{Int32: int32(n), Valid: true}, nil
}

// DesignationKey is the canonical lookup key for a designation label:
// NFKC-normalized, case-folded, whitespace-collapsed. Empty for labels
// that should not create a designation.
func DesignationKey(label string) string {
	s := CollapseSpace(norm.NFKC.String(CleanCell(label)))
	if isPlaceholder(s) || strings.EqualFold(s, "unknown") {
		return ""
	}
	return cases.Fold().String(s)
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
