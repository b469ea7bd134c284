package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/JonMunkholm/dataport/internal/core"
)

// CSV writes RFC 4180 output with a header line. Every value is rendered
// with core.FormatCell.
type CSV struct{}

func (CSV) ContentType() string { return "text/csv; charset=utf-8" }

func (CSV) Extension() string { return "csv" }

func (CSV) Encode(w io.Writer, t *core.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range t.Rows {
		if err := cw.Write(core.RenderRecord(rec)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
