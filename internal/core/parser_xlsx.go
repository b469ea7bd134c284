package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// decodeXLSX reads the first worksheet. Plain numbers become float64,
// booleans become bool, empty cells become nil and everything else
// (text, dates, formatted currency) keeps its displayed string.
func decodeXLSX(data []byte) ([][]Cell, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", ErrCorruptFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets found in xlsx file", ErrCorruptFile)
	}
	sheet := sheets[0]

	shown, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrCorruptFile, sheet, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrCorruptFile, sheet, err)
	}

	rows := make([][]Cell, len(shown))
	for r, cols := range shown {
		row := make([]Cell, len(cols))
		for c, text := range cols {
			rawText := text
			if r < len(raw) && c < len(raw[r]) {
				rawText = raw[r][c]
			}
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
			}
			typ, err := f.GetCellType(sheet, name)
			if err != nil {
				return nil, fmt.Errorf("%w: cell %s: %v", ErrCorruptFile, name, err)
			}
			row[c] = xlsxCell(typ, text, rawText)
		}
		rows[r] = row
	}
	return rows, nil
}

func xlsxCell(typ excelize.CellType, shown, raw string) Cell {
	if shown == "" && raw == "" {
		return nil
	}
	switch typ {
	case excelize.CellTypeBool:
		switch strings.ToUpper(raw) {
		case "1", "TRUE":
			return true
		case "0", "FALSE":
			return false
		}
		return shown
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		// Only take the numeric value when the displayed text is itself a
		// plain number; dates and currency formats keep their display text.
		if _, err := strconv.ParseFloat(shown, 64); err == nil {
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				return f
			}
		}
		return shown
	default:
		return shown
	}
}

// decodeXLS reads the first worksheet of a legacy BIFF workbook.
// Cells are returned as displayed strings; empty cells become nil.
func decodeXLS(data []byte) (rows [][]Cell, err error) {
	// The BIFF reader panics on some malformed streams.
	defer func() {
		if rec := recover(); rec != nil {
			rows = nil
			err = fmt.Errorf("%w: read xls: %v", ErrCorruptFile, rec)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: open xls: %v", ErrCorruptFile, err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: no sheets found in xls file", ErrCorruptFile)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("%w: unreadable first sheet", ErrCorruptFile)
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, []Cell{})
			continue
		}
		last := row.LastCol()
		cells := make([]Cell, 0, last)
		for c := 0; c < last; c++ {
			if c < row.FirstCol() {
				cells = append(cells, nil)
				continue
			}
			v := row.Col(c)
			if v == "" {
				cells = append(cells, nil)
				continue
			}
			cells = append(cells, v)
		}
		rows = append(rows, cells)
	}

	// MaxRow reports a row even for an empty sheet.
	for len(rows) > 0 && isBlank(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

func isBlank(row []Cell) bool {
	for _, v := range row {
		if v != nil && v != "" {
			return false
		}
	}
	return true
}
