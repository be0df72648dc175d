package cmd

import (
	"fmt"
	"io"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/ingest"
	"github.com/spf13/cobra"
)

var (
	trOps       []string
	trUndo      int
	trOutput    string
	trDelimiter string
	trSheetName string
	trQuiet     bool
)

var transformCmd = &cobra.Command{
	Use:   "transform <file>",
	Short: "Apply sort/delete/combine/filter operations and write the result as CSV",
	Example: `  csvdash transform sales.csv --op sort:revenue:desc --op delete:notes -o sorted.csv
  csvdash transform sales.csv --op combine:q1 --op filter:region=north --undo 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(trOps) == 0 {
			return fmt.Errorf("at least one --op is required")
		}
		ops := make([]opFunc, 0, len(trOps))
		for _, spec := range trOps {
			op, err := parseOp(spec)
			if err != nil {
				return err
			}
			ops = append(ops, op)
		}

		c, err := requireConfig()
		if err != nil {
			return err
		}
		st, err := loadFile(cmd.Context(), c, args[0], inputOptions{Delimiter: trDelimiter, Sheet: trSheetName})
		if err != nil {
			return err
		}
		for i, op := range ops {
			if _, err := st.Transform(cmd.Context(), op); err != nil {
				return fmt.Errorf("--op %s: %w", trOps[i], err)
			}
		}
		for i := 0; i < trUndo; i++ {
			if !st.Undo() {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: nothing left to undo after %d step(s)\n", i)
				break
			}
		}

		out := cmd.OutOrStdout()
		if !trQuiet {
			// History goes to stderr when the CSV itself is on stdout.
			hw := out
			if trOutput == "" {
				hw = cmd.ErrOrStderr()
			}
			for i, e := range st.History() {
				marker := " "
				if i == st.Index() {
					marker = "*"
				}
				info := e.Info()
				fmt.Fprintf(hw, "%s %d. [%s] %s (%d rows, %d columns)\n", marker, i, info.Type, info.Description, info.RowCount, info.ColumnCount)
			}
		}

		p := st.Processed()
		if err := writeOutput(out, trOutput, func(w io.Writer) error {
			return ingest.WriteCSV(w, p.Headers, p.Rows)
		}); err != nil {
			return err
		}
		if trOutput != "" && !trQuiet {
			fmt.Fprintf(out, "✓ Wrote %d rows to %s\n", len(p.Rows), trOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)
	transformCmd.Flags().StringArrayVar(&trOps, "op", nil, "operation: sort:col[:asc|desc], delete:col, combine:col, filter:col=value (repeatable, applied in order)")
	transformCmd.Flags().IntVar(&trUndo, "undo", 0, "number of operations to undo before writing")
	transformCmd.Flags().StringVarP(&trOutput, "output", "o", "", "write CSV to this path instead of stdout")
	transformCmd.Flags().StringVar(&trDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	transformCmd.Flags().StringVar(&trSheetName, "sheet", "", "XLSX: sheet name (first sheet if omitted)")
	transformCmd.Flags().BoolVarP(&trQuiet, "quiet", "q", false, "do not print the history")
}
