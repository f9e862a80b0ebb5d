package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/pipeline"
)

// NewAskCmd constructs the `docqa ask` command, which answers one or more
// questions over local files or URLs directly from the CLI.
func NewAskCmd() *cobra.Command {
	var files []string
	var urls []string
	var modelName string
	var temperature float64

	cmd := &cobra.Command{
		Use:   "ask [question]...",
		Short: "Answer questions over documents from the command line",
		Long: `Ask one or more questions over the supplied documents.

Documents are given as local files (--file) or URLs (--url). With neither,
questions run against the standing knowledge base populated by 'docqa ingest'.

Examples:
  docqa ask --file policy.pdf "What is the grace period for premium payment?"
  docqa ask --url https://example.com/handbook.pdf "How many vacation days do I get?"
  docqa ask "What does the ingested documentation say about retries?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New("docqa")
			ctx = logging.WithLogger(ctx, log)

			requireQdrant := len(files) == 0 && len(urls) == 0
			comps, err := buildComponents(ctx, log, requireQdrant)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer comps.close()

			query := pipeline.Query{
				Questions: args,
				Model:     modelName,
			}
			if cmd.Flags().Changed("temperature") {
				temp := float32(temperature)
				query.Temperature = &temp
			}

			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("ask: reading %s: %w", path, err)
				}
				name := filepath.Base(path)
				query.Sources = append(query.Sources, extract.Source{ID: name, Name: name, Data: data})
			}
			for _, u := range urls {
				query.Sources = append(query.Sources, extract.Source{ID: u, Name: u, URL: u})
			}

			results, err := comps.pipe.Run(ctx, query)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			for i, a := range results {
				if len(results) > 1 {
					fmt.Printf("Q: %s\n", query.Questions[i])
				}
				fmt.Println(a.Text)
				if len(a.Sources) > 0 {
					fmt.Printf("  (sources: %s)\n", strings.Join(a.Sources, ", "))
				}
				for _, warning := range a.Warnings {
					fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
				}
				if i < len(results)-1 {
					fmt.Println()
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Local document to answer over (repeatable)")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Document URL to answer over (repeatable)")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Override the configured model for this request")
	cmd.Flags().Float64VarP(&temperature, "temperature", "t", 0, "Override the sampling temperature for this request")

	return cmd
}
