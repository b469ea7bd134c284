package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataport/internal/core"
)

var (
	inspectHeaderRow int
	inspectPreview   int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the row count, resolved header and first rows of a file",
	Long: `Inspect parses a file and prints what the server would show after upload.

Examples:
  dataport inspect customers.xlsx
  dataport inspect export.csv --header-row 3 --preview 10`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectHeaderRow, "header-row", 1, "1-based header row")
	inspectCmd.Flags().IntVar(&inspectPreview, "preview", 5, "Number of data rows to print")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	rows, err := parseFile(args[0])
	if err != nil {
		return err
	}
	headers, processed, err := core.Resolve(rows, inspectHeaderRow)
	if err != nil {
		return err
	}
	columns := headers.Columns()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:        %s\n", args[0])
	fmt.Fprintf(out, "Rows:        %d parsed, %d data\n", len(rows), len(processed))
	fmt.Fprintf(out, "Header row:  %d\n", inspectHeaderRow)
	fmt.Fprintf(out, "Columns:     %d (%s)\n", len(columns), strings.Join(columns, ", "))

	n := min(inspectPreview, len(processed))
	if n <= 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\t%s\n", strings.Join(columns, "\t"))
	for _, row := range processed[:n] {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = core.FormatCell(row.Data[c])
		}
		fmt.Fprintf(tw, "%d\t%s\n", row.RowIndex, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
