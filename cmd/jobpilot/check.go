package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/pipeline"
	"github.com/amishk599/jobpilot/internal/store"
)

var checkLimit int

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Search and rank once, print matches, exit",
	Long:  "One-shot search and rank. Nothing is applied to and nothing is written to the ledger.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().IntVarP(&checkLimit, "limit", "n", 20, "number of ranked jobs to print")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: nothing will be applied to or recorded")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	runner := pipeline.NewRunner(
		cfg.Profile,
		buildAggregator(cfg, httpClient, logger),
		buildRanker(cfg, logger),
		nil,
		store.NewNopLedger(),
		nil,
		pipeline.Options{
			MaxResults: cfg.Search.MaxResults,
			MaxAge:     cfg.Search.MaxAge,
			Timeout:    cfg.Run.Timeout,
		},
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx)
	if err != nil {
		logger.Error("check failed", "error", err)
		os.Exit(1)
	}
	printRanked(cmd.OutOrStdout(), report.Ranked, checkLimit)
	logger.Info("check complete", "ranked", len(report.Ranked), "source_failures", len(report.Failures))
	return nil
}

// printRanked writes the top n jobs as a table.
func printRanked(w io.Writer, jobs []model.ScoredJob, n int) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No matching jobs.")
		return
	}
	if n > 0 && len(jobs) > n {
		jobs = jobs[:n]
	}
	fmt.Fprintf(w, "%-6s %-8s %-40s %-25s %s\n", "Score", "Tier", "Title", "Company", "Location")
	fmt.Fprintln(w, strings.Repeat("─", 100))
	for _, j := range jobs {
		tier := j.RoleTier
		if tier == "" {
			tier = "-"
		}
		fmt.Fprintf(w, "%-6.1f %-8s %-40s %-25s %s\n", j.Score, tier, truncate(j.Job.Title, 40), truncate(j.Job.Company, 25), j.Job.Location)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
