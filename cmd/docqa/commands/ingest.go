package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/logging"
)

// NewIngestCmd constructs the `docqa ingest` command, which indexes documents
// into the persistent vector store.
func NewIngestCmd() *cobra.Command {
	var files []string
	var urls []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index documents into the standing knowledge base",
		Long: `Fetch, extract, and index documents into the Qdrant vector store.

Documents ingested here form the standing knowledge base: questions asked
without attached documents (via 'docqa ask' or POST /api/v1/run) are answered
against it.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: docqa-docs)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, nvidia (default: ollama)
  EMBEDDING_MODEL      Embedding model name override

Examples:
  docqa ingest --file handbook.pdf --file benefits.docx
  docqa ingest --url https://example.com/policy.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New("docqa")
			ctx = logging.WithLogger(ctx, log)

			if len(files) == 0 && len(urls) == 0 {
				return fmt.Errorf("ingest: at least one --file or --url is required")
			}

			comps, err := buildComponents(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer comps.close()

			var sources []extract.Source
			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("ingest: reading %s: %w", path, err)
				}
				name := filepath.Base(path)
				sources = append(sources, extract.Source{ID: name, Name: name, Data: data})
			}
			for _, u := range urls {
				sources = append(sources, extract.Source{ID: u, Name: u, URL: u})
			}

			log.Info("starting ingestion", slog.Int("sources", len(sources)))

			warnings, err := comps.pipe.IngestPersistent(ctx, sources)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}

			log.Info("ingestion complete",
				slog.Int("sources", len(sources)),
				slog.Int("failures", len(warnings)),
			)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Local document to ingest (repeatable)")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Document URL to ingest (repeatable)")

	return cmd
}
