package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MaxHeaderSearchRows is how many leading rows are scanned for the header.
// Exports often carry a title block above the table.
const MaxHeaderSearchRows = 20

// File formats recognised by ParseFile.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var (
	zipSignature = []byte("PK\x03\x04")
	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ParseOptions tunes ParseFile.
type ParseOptions struct {
	MaxHeaderSearchRows int
}

// ParsedFile is the parser output: an ordered list of rows keyed by
// canonical column.
type ParsedFile struct {
	FileName  string
	Format    string
	Encoding  string
	Sheet     string
	Header    []string
	Mapped    map[Column]string // canonical column -> header label used
	Unmapped  []string
	Rows      []RawRow
	Malformed []RowError
}

// record is one source row before header mapping.
type record struct {
	line  int
	cells []string
	err   error
}

// ParseFile reads a CSV or XLSX roster. The format is sniffed from the
// content; the file name is only used in messages. Only a file that
// cannot be read as a table at all returns an error, always an
// *UnreadableFileError.
func ParseFile(fileName string, data []byte, opts ParseOptions) (*ParsedFile, error) {
	if opts.MaxHeaderSearchRows <= 0 {
		opts.MaxHeaderSearchRows = MaxHeaderSearchRows
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &UnreadableFileError{FileName: fileName, Reason: "empty file"}
	}

	pf := &ParsedFile{FileName: fileName}
	var records []record
	var err error

	switch {
	case bytes.HasPrefix(data, zipSignature):
		pf.Format = FormatXLSX
		records, pf.Sheet, err = readWorkbook(data)
	case bytes.HasPrefix(data, oleSignature):
		return nil, &UnreadableFileError{FileName: fileName, Reason: "legacy .xls workbooks are not supported, save as .xlsx or .csv"}
	default:
		pf.Format = FormatCSV
		records, pf.Encoding, err = readCSV(data)
	}
	if err != nil {
		return nil, &UnreadableFileError{FileName: fileName, Reason: "invalid " + pf.Format, Err: err}
	}

	headerAt := findHeaderRow(records, opts.MaxHeaderSearchRows)
	if headerAt < 0 {
		return nil, &UnreadableFileError{FileName: fileName, Reason: "empty file: no rows found"}
	}

	pf.applyHeader(records[headerAt].cells)

	number := 0
	for _, rec := range records[headerAt+1:] {
		number++
		if rec.err != nil {
			pf.Malformed = append(pf.Malformed, RowError{
				Row:     number,
				Kind:    KindMalformedRow,
				Message: fmt.Sprintf("line %d could not be parsed: %v", rec.line, rec.err),
				Err:     rec.err,
			})
			continue
		}
		if isEmptyRow(rec.cells) {
			continue
		}
		pf.Rows = append(pf.Rows, pf.buildRow(number, rec))
	}

	return pf, nil
}

func readCSV(data []byte) ([]record, string, error) {
	text, enc, err := decodeText(data)
	if err != nil {
		return nil, "", err
	}
	if looksBinary(text) {
		return nil, "", errors.New("binary content is not a text table")
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records []record
	for {
		cells, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, "", err
			}
			records = append(records, record{line: pe.StartLine, err: pe.Err})
			continue
		}
		line, _ := r.FieldPos(0)
		records = append(records, record{line: line, cells: cells})
	}

	if len(records) == 0 {
		return nil, "", errors.New("no records")
	}
	return records, enc, nil
}

func readWorkbook(data []byte) ([]record, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, "", errors.New("workbook has no sheets")
	}

	// Raw values keep date cells as serial numbers instead of the
	// locale-formatted (often two-digit-year) display text.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	records := make([]record, len(rows))
	for i, cells := range rows {
		records[i] = record{line: i + 1, cells: cells}
	}
	return records, sheet, nil
}

// findHeaderRow picks the row among the first maxRows that names the most
// canonical columns. Falls back to the first non-empty row.
func findHeaderRow(records []record, maxRows int) int {
	if len(records) < maxRows {
		maxRows = len(records)
	}

	best, bestScore := -1, 0
	for i := 0; i < maxRows; i++ {
		if records[i].err != nil {
			continue
		}
		seen := make(map[Column]bool)
		for _, cell := range records[i].cells {
			if col, ok := ResolveColumn(cell); ok {
				seen[col] = true
			}
		}
		if len(seen) > bestScore {
			best, bestScore = i, len(seen)
		}
	}
	if best >= 0 {
		return best
	}

	for i, rec := range records {
		if rec.err == nil && !isEmptyRow(rec.cells) {
			return i
		}
	}
	return -1
}

// applyHeader resolves header labels. A repeated label gets a ".N" suffix
// the way spreadsheet tools disambiguate, so the second "Country 1" reads
// as "Country 1.1". When two labels resolve to the same column the first
// one wins and the other is kept as an extra.
func (pf *ParsedFile) applyHeader(cells []string) {
	pf.Header = make([]string, len(cells))
	pf.Mapped = make(map[Column]string)
	seen := make(map[string]int)

	for i, cell := range cells {
		label := CollapseSpace(CleanCell(cell))
		if label == "" {
			label = fmt.Sprintf("column_%d", i+1)
		}
		key := FoldHeader(label)
		if n := seen[key]; n > 0 {
			label = fmt.Sprintf("%s.%d", label, n)
		}
		seen[key]++
		pf.Header[i] = label

		col, ok := ResolveColumn(label)
		if !ok {
			pf.Unmapped = append(pf.Unmapped, label)
			continue
		}
		if _, taken := pf.Mapped[col]; taken {
			pf.Unmapped = append(pf.Unmapped, label)
			continue
		}
		pf.Mapped[col] = label
	}
}

func (pf *ParsedFile) buildRow(number int, rec record) RawRow {
	row := RawRow{
		Number: number,
		Line:   rec.line,
		Values: make(map[Column]string, len(pf.Mapped)),
		Extra:  make(map[string]string),
	}

	for i, cell := range rec.cells {
		if i >= len(pf.Header) {
			if strings.TrimSpace(cell) != "" {
				row.Extra[fmt.Sprintf("column_%d", i+1)] = cell
			}
			continue
		}
		label := pf.Header[i]
		if col, ok := ResolveColumn(label); ok && pf.Mapped[col] == label {
			row.Values[col] = cell
			continue
		}
		if strings.TrimSpace(cell) != "" {
			row.Extra[label] = cell
		}
	}

	return row
}

func isEmptyRow(cells []string) bool {
	for _, v := range cells {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
