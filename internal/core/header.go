package core

import "fmt"

// Resolve splits rows into a header and named data rows.
//
// headerRow is 1-based in the numbering of rows; zero selects the first row.
// Every row except the header is remapped positionally: cell i is stored
// under headers[i], missing cells become nil and extra cells are dropped.
// The remaining rows are renumbered 1..N in their original relative order.
// rows is never modified.
func Resolve(rows []ParsedRow, headerRow int) (HeaderSet, []ProcessedRow, error) {
	if headerRow == 0 {
		if len(rows) == 0 {
			return HeaderSet{}, []ProcessedRow{}, nil
		}
		headerRow = 1
	}
	if headerRow < 1 || headerRow > len(rows) {
		return nil, nil, fmt.Errorf("%w: row %d is outside 1..%d", ErrInvalidHeaderRow, headerRow, len(rows))
	}

	source := rows[headerRow-1].Data
	headers := make(HeaderSet, len(source))
	for i, v := range source {
		headers[i] = FormatCell(v)
	}

	processed := make([]ProcessedRow, 0, len(rows)-1)
	for i, row := range rows {
		if i == headerRow-1 {
			continue
		}
		data := make(map[string]Cell, len(headers))
		for c, label := range headers {
			var v Cell
			if c < len(row.Data) {
				v = row.Data[c]
			}
			// Duplicate labels: the rightmost column wins.
			data[label] = v
		}
		processed = append(processed, ProcessedRow{
			RowIndex: len(processed) + 1,
			Data:     data,
		})
	}

	return headers, processed, nil
}

// Columns returns the distinct labels of h in first-occurrence order.
// This is the key set every ProcessedRow built from h carries.
func (h HeaderSet) Columns() []string {
	seen := make(map[string]struct{}, len(h))
	out := make([]string, 0, len(h))
	for _, label := range h {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// OriginalRowFor maps a row number as displayed in the processed table back
// to its position in the original rows, given the header row currently in
// use. The header row is the only row missing from the processed table, so
// the mapping is purely positional.
func OriginalRowFor(currentHeader, displayedRow int) int {
	if currentHeader <= 0 {
		currentHeader = 1
	}
	if displayedRow < currentHeader {
		return displayedRow
	}
	return displayedRow + 1
}
