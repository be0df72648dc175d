package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/ai"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List chat providers and known model context windows",
	Example: `  csvdash models
  csvdash models --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		cat := ai.Models()
		if modelsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"providers": providerNames(), "models": cat})
		}
		fmt.Fprintf(out, "Providers: %s\n\n", strings.Join(providerNames(), ", "))
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tCONTEXT")
		for _, m := range cat {
			marker := ""
			if m.Name == ai.DefaultModel {
				marker = " (default)"
			}
			fmt.Fprintf(tw, "%s%s\t%d\n", m.Name, marker, m.ContextTokens)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print as JSON")
}
