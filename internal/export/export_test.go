package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/dataport/internal/core"
)

func sampleTable() *core.Table {
	return &core.Table{
		Columns: []string{"name", "qty", "active"},
		Rows: []core.Record{
			{"Widget", 3.0, true},
			{"Gadget, large", 2.5, nil},
		},
	}
}

func TestEncoders(t *testing.T) {
	enc := Encoders()
	require.Len(t, enc, 3)

	assert.Equal(t, "xlsx", enc[core.FormatXLSX].Extension())
	assert.Equal(t, "csv", enc[core.FormatCSV].Extension())
	assert.Equal(t, "pdf", enc[core.FormatPDF].Extension())
	assert.Equal(t, "application/pdf", enc[core.FormatPDF].ContentType())
}

func TestXLSX_Encode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX{}.Encode(&buf, sampleTable()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "qty", "active"}, rows[0])
	assert.Equal(t, []string{"Widget", "3", "TRUE"}, rows[1])
	assert.Equal(t, []string{"Gadget, large", "2.5"}, rows[2])

	typ, err := f.GetCellType(sheetName, "B2")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeNumber, typ)

	styleID, err := f.GetCellStyle(sheetName, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestXLSX_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX{}.Encode(&buf, &core.Table{Columns: []string{"a"}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}}, rows)
}

func TestCSV_Encode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV{}.Encode(&buf, sampleTable()))

	assert.Equal(t, "name,qty,active\nWidget,3,true\n\"Gadget, large\",2.5,\n", buf.String())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestPDF_Encode(t *testing.T) {
	enc := &PDF{Now: func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }}

	var buf bytes.Buffer
	require.NoError(t, enc.Encode(&buf, sampleTable()))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestPDF_ManyRowsSpansPages(t *testing.T) {
	tbl := &core.Table{Columns: []string{"id", "note"}}
	for i := 0; i < 200; i++ {
		tbl.Rows = append(tbl.Rows, core.Record{float64(i), "a fairly long note that will need to be shortened to fit in its column"})
	}

	var one, many bytes.Buffer
	require.NoError(t, (&PDF{}).Encode(&one, &core.Table{Columns: tbl.Columns, Rows: tbl.Rows[:1]}))
	require.NoError(t, (&PDF{}).Encode(&many, tbl))

	assert.Equal(t, 1, pageCount(one.Bytes()))
	assert.Greater(t, pageCount(many.Bytes()), 1)
}

func pageCount(doc []byte) int {
	return bytes.Count(doc, []byte("/Type /Page")) - bytes.Count(doc, []byte("/Type /Pages"))
}

func TestWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, templateHeadings, rows[0])
	assert.Equal(t, "John Doe", rows[1][0])
	assert.Equal(t, "super_admin", rows[2][6])

	width, err := f.GetColWidth(sheet, "D")
	require.NoError(t, err)
	assert.Equal(t, 40.0, width)

	styleID, err := f.GetCellStyle(sheet, "G1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	assert.True(t, style.Font.Bold)
	assert.Equal(t, "FFFFFF", style.Font.Color)
	assert.Equal(t, []string{"4472C4"}, style.Fill.Color)
}
