// dataport converts spreadsheets offline with the same parse, re-header and
// export pipeline the server uses.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataport/internal/core"
	"github.com/JonMunkholm/dataport/internal/logging"
)

var version = "dev"

// Global flags
var (
	maxFileSize int64
	logLevel    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dataport",
	Short: "Inspect and convert xlsx, xls and csv files",
	Long: `dataport reads a spreadsheet or CSV file, applies a header row and writes
the selected rows and columns as xlsx, csv or pdf.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		logging.SetupTo(os.Stderr, logLevel, "text")
	},
}

func init() {
	rootCmd.PersistentFlags().Int64Var(&maxFileSize, "max-size", core.DefaultMaxFileSize, "Maximum input size in bytes")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

// parseFile reads and decodes path with the configured size ceiling.
func parseFile(path string) ([]core.ParsedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return core.NewParser(maxFileSize).Parse(f, info.Size(), path)
}
