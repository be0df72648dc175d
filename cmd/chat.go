package cmd

import (
	"fmt"
	"strings"

	"github.com/sheikhmuhammadzain/dataanalytics/internal/ai"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/relay"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/utils"
	"github.com/spf13/cobra"
)

var (
	chatProvider    string
	chatModel       string
	chatMaxTokens   int
	chatTemp        float64
	chatNoStream    bool
	chatQuiet       bool
	chatOllamaHost  string
	chatDelimiter   string
	chatSheetName   string
	chatPrintPrompt bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <file> <question...>",
	Short: "Ask a chat model about a dataset",
	Example: `  csvdash chat sales.csv "Which region has the highest mean revenue?"
  csvdash chat sales.csv --provider ollama --model llama3:latest "Summarize the data"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		question := strings.Join(args[1:], " ")
		st, err := loadFile(cmd.Context(), c, args[0], inputOptions{Delimiter: chatDelimiter, Sheet: chatSheetName})
		if err != nil {
			return err
		}
		dataContext := st.Processed().Summary.Context()

		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: chatProvider, OllamaHost: chatOllamaHost})
		if err != nil {
			return err
		}
		model := selectModel(c, chatModel)
		maxTokens := c.MaxTokens
		if cmd.Flags().Changed("max-tokens") {
			maxTokens = chatMaxTokens
		}
		temp := c.Temperature
		if cmd.Flags().Changed("temperature") {
			temp = chatTemp
		}

		rl := relay.New(rt, relay.Options{
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temp,
			Logger:      logger,
		})
		errw := cmd.ErrOrStderr()
		if chatPrintPrompt {
			req := rl.Request(dataContext, question)
			fmt.Fprintln(errw, "--print-prompt: sending the following messages --")
			for _, m := range req.Messages {
				fmt.Fprintf(errw, "[%s]\n%s\n\n", m.Role, m.Content)
			}
		}
		if !chatQuiet {
			tokens := utils.CountTokens(relay.SystemPrompt+dataContext) + utils.CountTokens(question)
			fmt.Fprintf(errw, "Provider: %s | Model: %s | Prompt tokens: ~%d\n", provider, model, tokens)
			if !ai.FitsContext(model, tokens, maxTokens) {
				fmt.Fprintln(errw, "⚠ Warning: data context exceeds the model's window and will be truncated")
			}
		}

		return askRelay(cmd.Context(), rl, dataContext, question, streamingOptions{
			Enabled:     !chatNoStream,
			Quiet:       chatQuiet,
			Writer:      errw,
			DeltaWriter: cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "chat provider: groq | openai | ollama (overrides config)")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "model name (overrides config)")
	chatCmd.Flags().IntVar(&chatMaxTokens, "max-tokens", 1000, "maximum completion tokens")
	chatCmd.Flags().Float64Var(&chatTemp, "temperature", 0.7, "sampling temperature")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "wait for the full answer instead of streaming")
	chatCmd.Flags().BoolVarP(&chatQuiet, "quiet", "q", false, "only print the answer")
	chatCmd.Flags().StringVar(&chatOllamaHost, "ollama-host", "", "Ollama host (overrides config)")
	chatCmd.Flags().StringVar(&chatDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	chatCmd.Flags().StringVar(&chatSheetName, "sheet", "", "XLSX: sheet name (first sheet if omitted)")
	chatCmd.Flags().BoolVar(&chatPrintPrompt, "print-prompt", false, "print the messages sent to the model")
}
