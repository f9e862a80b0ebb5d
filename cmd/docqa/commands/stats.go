package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docqa/docqa-go/internal/answers"
)

// NewStatsCmd constructs the `docqa stats` command, which prints aggregate
// answer statistics from the local answer log.
func NewStatsCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show answer statistics from the local answer log",
		Long: `Print aggregate statistics over all answered questions.

Reads the SQLite answer log (default ~/.docqa/answers.db, override with
DOCQA_ANSWERS_DB). Use --recent to also list the latest answered questions.

Examples:
  docqa stats
  docqa stats --recent 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dbPath := os.Getenv("DOCQA_ANSWERS_DB")
			if dbPath == "" || dbPath == "disabled" {
				var err error
				dbPath, err = answers.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("stats: %w", err)
				}
			}

			log, err := answers.Open(dbPath)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer log.Close()

			stats, err := log.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			fmt.Printf("questions answered: %d\n", stats.Total)
			fmt.Printf("cache hits:         %d\n", stats.CacheHits)
			fmt.Printf("avg latency:        %.0f ms\n", stats.AvgLatencyMS)

			if recent > 0 {
				records, err := log.Recent(ctx, recent)
				if err != nil {
					return fmt.Errorf("stats: %w", err)
				}
				if len(records) > 0 {
					fmt.Println()
				}
				for _, r := range records {
					marker := ""
					if r.CacheHit {
						marker = " (cached)"
					}
					fmt.Printf("[%s] %s%s\n  %s\n",
						r.CreatedAt.Format("2006-01-02 15:04"), r.Question, marker, r.Answer)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&recent, "recent", "n", 0, "Also list the N most recent answers")

	return cmd
}
