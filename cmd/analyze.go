package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	anaOutputPath string
	anaDelimiter  string
	anaSheetName  string
	anaSampleRows int
	anaMaxRows    int
	anaJSON       bool
	anaContext    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Infer column types and summary statistics for a CSV/TSV/XLSX file",
	Example: `  csvdash analyze sales.csv
  csvdash analyze sales.xlsx --sheet Q3 --json -o summary.json
  csvdash analyze sales.csv --context`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		c, err := requireConfig()
		if err != nil {
			return err
		}
		st, err := loadFile(cmd.Context(), c, path, inputOptions{
			Delimiter: anaDelimiter,
			Sheet:     anaSheetName,
			MaxRows:   anaMaxRows,
		})
		if err != nil {
			return err
		}
		p := st.Processed()

		var write func(io.Writer) error
		switch {
		case anaJSON:
			write = func(w io.Writer) error {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(p.Summary)
			}
		case anaContext:
			write = func(w io.Writer) error {
				_, err := fmt.Fprintln(w, p.Summary.Context())
				return err
			}
		default:
			write = func(w io.Writer) error {
				_, err := fmt.Fprintln(w, p.Markdown(filepath.Base(path), anaSampleRows))
				return err
			}
		}
		if err := writeOutput(cmd.OutOrStdout(), anaOutputPath, write); err != nil {
			return err
		}
		if anaOutputPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	analyzeCmd.Flags().StringVar(&anaSheetName, "sheet", "", "XLSX: sheet name to analyze (first sheet if omitted)")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 5, "number of sample rows to include in the report")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 0, "maximum rows to read (0 = unlimited)")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "print the summary as JSON")
	analyzeCmd.Flags().BoolVar(&anaContext, "context", false, "print the data context sent to the chat model")
	analyzeCmd.MarkFlagsMutuallyExclusive("json", "context")
}
