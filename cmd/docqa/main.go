// Command docqa is the entry point for the document question-answering
// service. It provides a CLI interface (via Cobra) and an HTTP API for
// answering questions over uploaded documents and URLs.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/docqa/docqa-go/cmd/docqa/commands"
)

func main() {
	// Best-effort .env load for local development. Real environments set
	// variables directly.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
