package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// TemplateFilename is the download name of the import template.
const TemplateFilename = "data_import_template.xlsx"

var templateHeadings = []string{"name", "email", "gender", "address", "phone_number", "password", "role"}

var templateRows = [][]any{
	{"John Doe", "john.doe@example.com", "male", "123 Main St, City, State", "+1234567890", "password123", "team"},
	{"Jane Smith", "jane.smith@example.com", "female", "456 Oak Ave, City, State", "+1987654321", "password123", "super_admin"},
}

var templateWidths = []float64{20, 30, 15, 40, 20, 15, 15}

// WriteTemplate writes the import template workbook: the expected headings
// on a shaded header row followed by two sample rows.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]any, len(templateHeadings))
	for i, h := range templateHeadings {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write headings: %w", err)
	}
	for i, row := range templateRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write sample row: %w", err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(templateHeadings), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style headings: %w", err)
	}

	for i, width := range templateWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("set width of %s: %w", col, err)
		}
	}

	return f.Write(w)
}
