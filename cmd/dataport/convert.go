package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataport/internal/core"
	"github.com/JonMunkholm/dataport/internal/export"
)

var (
	convertHeaderRow int
	convertRows      string
	convertColumns   []string
	convertDedup     bool
	convertFormat    string
	convertOutput    string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Export selected rows and columns of a file",
	Long: `Convert runs parse, header selection, projection and encoding in one go.

Rows are counted after the header row is removed, starting at 1.

Examples:
  # Everything as csv next to the input
  dataport convert customers.xlsx --format csv

  # Rows 1-20 and 25, two columns, duplicates removed, to stdout
  dataport convert data.csv --rows 1-20,25 --columns name,email --dedup -o -

  # Use the third row as header and write a pdf report
  dataport convert raw.xls --header-row 3 --format pdf -o report.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().IntVar(&convertHeaderRow, "header-row", 1, "1-based header row")
	convertCmd.Flags().StringVar(&convertRows, "rows", "all", "Rows to keep: all, or a list like 1-5,8")
	convertCmd.Flags().StringSliceVar(&convertColumns, "columns", nil, "Columns to keep (default: all)")
	convertCmd.Flags().BoolVar(&convertDedup, "dedup", false, "Remove duplicate output rows")
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "xlsx", "Output format: xlsx, csv, pdf")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file, - for stdout (default: input name with new extension)")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	format, err := core.ParseFormat(strings.ToLower(convertFormat))
	if err != nil {
		return fmt.Errorf("%w: %q", err, convertFormat)
	}
	enc := export.Encoders()[format]

	rows, err := parseFile(args[0])
	if err != nil {
		return err
	}
	headers, processed, err := core.Resolve(rows, convertHeaderRow)
	if err != nil {
		return err
	}

	selected, err := parseRowSpec(convertRows, len(processed))
	if err != nil {
		return err
	}
	columns := convertColumns
	if len(columns) == 0 {
		columns = headers.Columns()
	}

	table, err := core.Project(processed, selected, columns, convertDedup)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, table); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}

	out := convertOutput
	if out == "" {
		out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + "." + enc.Extension()
	}
	if out == "-" {
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return err
	}

	slog.Info("converted", "input", args[0], "output", out, "rows", len(table.Rows), "columns", len(table.Columns))
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows x %d columns to %s\n", len(table.Rows), len(table.Columns), out)
	return nil
}

// parseRowSpec expands "all" or a list such as "1-3,7" into row indices.
// Ranges are clamped to 1..total.
func parseRowSpec(spec string, total int) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "all") {
		out := make([]int, total)
		for i := range out {
			out[i] = i + 1
		}
		return out, nil
	}

	var out []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid row %q", part)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid row range %q", part)
			}
		}
		if end < start {
			return nil, fmt.Errorf("invalid row range %q", part)
		}
		for i := max(start, 1); i <= min(end, total); i++ {
			out = append(out, i)
		}
	}
	return out, nil
}
