package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/refurd/portfolio-health-system/internal/logging"
)

// topIssues bounds the run summary's issue listing.
const topIssues = 5

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a full portfolio analysis over a message corpus",
	Long: `Run the full analysis pipeline: reconstruct threads, track responses,
identify blockers and score priorities.

Examples:
  # Analyze a message corpus
  porthealth analyze --input emails.json

  # With an explicit config file
  porthealth analyze --config porthealth.yaml --input emails.json`,
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer logging.Sync(app.logger)

	total, err := app.loadMessages(cmd)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d messages from %s\n", total, inputPath)

	result, err := app.analysis.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Analysis Complete ===\n")
	fmt.Printf("Total threads analyzed: %d\n", result.Threads)
	fmt.Printf("High priority items: %d\n", result.HighPriority)
	fmt.Printf("Priority threshold: %.2f\n", result.PriorityThreshold)
	if result.ScoringFailures > 0 {
		fmt.Printf("Scoring failures: %d\n", result.ScoringFailures)
	}

	return printTopIssues(cmd, app)
}

// printTopIssues lists the highest-priority threads with their leading
// attention flags.
func printTopIssues(cmd *cobra.Command, app *app) error {
	ranked, err := app.search.HighPriorities(cmd.Context(), topIssues)
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		return nil
	}

	fmt.Printf("\n=== Top Priority Issues ===\n")
	for i, r := range ranked {
		subject := "Unknown"
		if r.Thread != nil {
			subject = r.Thread.Subject
		}
		fmt.Printf("\n%d. %s\n", i+1, subject)
		fmt.Printf("   Priority Score: %.2f\n", r.Priority.Score)
		fmt.Printf("   Days Stalled: %d\n", r.Priority.DaysStalled)

		type flagScore struct {
			flag  string
			score float64
		}
		flags := make([]flagScore, 0, len(r.Priority.AttentionScores))
		for flag, score := range r.Priority.AttentionScores {
			flags = append(flags, flagScore{flag, score})
		}
		sort.SliceStable(flags, func(a, b int) bool {
			if flags[a].score != flags[b].score {
				return flags[a].score > flags[b].score
			}
			return flags[a].flag < flags[b].flag
		})
		if len(flags) > 3 {
			flags = flags[:3]
		}
		for _, fs := range flags {
			fmt.Printf("   %s: %.2f\n", fs.flag, fs.score)
		}
	}
	return nil
}
