package core

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// TemplateSheet is the sheet name of the downloadable roster template.
const TemplateSheet = "Roster"

// TemplateHeader returns the canonical header labels in template order.
func TemplateHeader() []string {
	specs := AllColumns()
	header := make([]string, len(specs))
	for i, spec := range specs {
		header[i] = spec.Label
	}
	return header
}

// WriteTemplateXLSX builds an empty roster workbook with the canonical
// header row. Date columns are formatted as dates so values typed into
// the template come back as serials rather than locale text.
func WriteTemplateXLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	dateFormat := "dd-mmm-yyyy"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFormat})
	if err != nil {
		return nil, fmt.Errorf("create date style: %w", err)
	}

	for i, spec := range AllColumns() {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("cell name for column %d: %w", i+1, err)
		}
		if err := f.SetCellValue(TemplateSheet, cell, spec.Label); err != nil {
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(TemplateSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("style header %s: %w", cell, err)
		}

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name %d: %w", i+1, err)
		}
		if err := f.SetColWidth(TemplateSheet, name, name, templateWidth(spec.Column)); err != nil {
			return nil, fmt.Errorf("set width %s: %w", name, err)
		}
		if isDateColumn(spec.Column) {
			if err := f.SetColStyle(TemplateSheet, name, dateStyle); err != nil {
				return nil, fmt.Errorf("set date style %s: %w", name, err)
			}
			if err := f.SetCellStyle(TemplateSheet, cell, cell, headerStyle); err != nil {
				return nil, fmt.Errorf("style header %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(TemplateSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTemplateCSV returns the canonical header as a one-line CSV.
func WriteTemplateCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(TemplateHeader()); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func isDateColumn(c Column) bool {
	switch c {
	case ColCNICExpiry, ColDateOfBirth, ColDateOfMarriage, ColDateOfJoining:
		return true
	}
	return false
}

func templateWidth(c Column) float64 {
	switch c {
	case ColEmployeeName, ColFatherOrHusbandName, ColEmail, ColPersonalEmail,
		ColAcademicDesignation, ColAdministrativeDesignation:
		return 28
	case ColCNIC, ColMobile:
		return 18
	}
	return 16
}
