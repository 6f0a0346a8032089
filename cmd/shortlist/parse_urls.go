package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/shortlist/internal/csvimport"
	"github.com/jonathan/shortlist/internal/linkedin"
)

var parseURLsFile string

var parseURLsCmd = &cobra.Command{
	Use:   "parse-urls",
	Short: "Extract LinkedIn profile URLs from a CSV or XLSX file",
	Long:  "Read a CSV or XLSX file the way the upload endpoint does and print what would be submitted.",
	RunE:  runParseURLs,
}

func init() {
	parseURLsCmd.Flags().StringVarP(&parseURLsFile, "file", "f", "", "CSV or XLSX file of profile URLs (required)")
	_ = parseURLsCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(parseURLsCmd)
}

// importSummary is what parse-urls prints.
type importSummary struct {
	File          string   `json:"file"`
	Rows          int      `json:"rows"`
	EmptyRows     int      `json:"empty_rows"`
	HeaderSkipped bool     `json:"header_skipped"`
	Valid         []string `json:"valid"`
	Invalid       []string `json:"invalid"`
	Repeats       []string `json:"repeats"`
}

func runParseURLs(cmd *cobra.Command, _ []string) error {
	parsed, err := readURLFile(parseURLsFile)
	if err != nil {
		return err
	}
	clean := linkedin.CleanURLs(parsed.URLs)

	summary := importSummary{
		File:          parseURLsFile,
		Rows:          parsed.Rows,
		EmptyRows:     parsed.EmptyRows,
		HeaderSkipped: parsed.HeaderSkipped,
		Valid:         orEmpty(clean.URLs),
		Invalid:       orEmpty(clean.Invalid),
		Repeats:       orEmpty(clean.Repeats),
	}
	return printJSON(cmd, summary)
}

func readURLFile(path string) (*csvimport.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := csvimport.Parse(f, path, csvimport.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return parsed, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
