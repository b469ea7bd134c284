package core

import (
	"slices"
	"strconv"
	"strings"
)

// Project builds the export table from processed rows.
//
// Only rows whose RowIndex is in selected are kept, in ascending RowIndex
// order regardless of the order of selected. Each kept row is reduced to
// columns, in the given order; a column missing from a row yields nil.
// Repeated column names are collapsed to their first occurrence.
// With dedup set, a row whose rendered values equal an earlier kept row on
// every projected column is dropped.
func Project(rows []ProcessedRow, selected []int, columns []string, dedup bool) (*Table, error) {
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}
	cols := uniqueColumns(columns)
	if len(cols) == 0 {
		return nil, ErrNoColumnsSelected
	}

	want := make(map[int]struct{}, len(selected))
	for _, idx := range selected {
		want[idx] = struct{}{}
	}

	kept := make([]ProcessedRow, 0, len(want))
	for _, row := range rows {
		if _, ok := want[row.RowIndex]; ok {
			kept = append(kept, row)
		}
	}
	slices.SortStableFunc(kept, func(a, b ProcessedRow) int {
		return a.RowIndex - b.RowIndex
	})

	table := &Table{Columns: cols, Rows: make([]Record, 0, len(kept))}
	var seen map[string]struct{}
	if dedup {
		seen = make(map[string]struct{}, len(kept))
	}

	for _, row := range kept {
		rec := make(Record, len(cols))
		for i, col := range cols {
			rec[i] = row.Data[col]
		}
		if dedup {
			key := dedupKey(rec)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		table.Rows = append(table.Rows, rec)
	}

	return table, nil
}

func uniqueColumns(columns []string) []string {
	seen := make(map[string]struct{}, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// dedupKey quotes each rendered value so that no two distinct value
// sequences produce the same key.
func dedupKey(rec Record) string {
	var b strings.Builder
	for _, v := range rec {
		b.WriteString(strconv.Quote(FormatCell(v)))
	}
	return b.String()
}
