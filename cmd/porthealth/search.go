package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/refurd/portfolio-health-system/internal/logging"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Similarity-search a message corpus",
	Long: `Index the message corpus into the vector store and return the
messages most similar to the query.

Examples:
  # Search a corpus
  porthealth search --input emails.json "budget approval"

  # Limit results
  porthealth search --input emails.json --limit 5 "server migration"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer logging.Sync(app.logger)

	if _, err := app.loadMessages(cmd); err != nil {
		return err
	}

	msgs, err := app.store.Messages(cmd.Context())
	if err != nil {
		return err
	}
	if err := app.search.IndexMessages(cmd.Context(), msgs); err != nil {
		return err
	}

	query := strings.Join(args, " ")
	hits, err := app.search.SearchMessages(cmd.Context(), query, searchLimit)
	if err != nil {
		return err
	}

	if len(hits) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, hit := range hits {
		fmt.Printf("%d. [%.3f] %s\n", i+1, hit.Score, hit.Subject)
		fmt.Printf("   From: %s  Date: %s  ID: %s\n", hit.From, hit.Date, hit.MessageID)
	}
	return nil
}
