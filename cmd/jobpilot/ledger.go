package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobpilot/internal/ledger"
	"github.com/amishk599/jobpilot/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	statusStyles = map[model.Status]lipgloss.Style{
		model.StatusApplied: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		model.StatusSkipped: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		model.StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

var ledgerRecent int

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Summarise the application ledger",
	Long:  "Reads the ledger without locking it and prints totals by status and platform plus the latest records.",
	RunE:  runLedger,
}

func init() {
	ledgerCmd.Flags().IntVarP(&ledgerRecent, "recent", "n", 10, "number of recent records to list")
	rootCmd.AddCommand(ledgerCmd)
}

func runLedger(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	records, err := readLedger(cfg, logger)
	if err != nil {
		logger.Error("failed to read ledger", "path", cfg.Ledger.Path, "error", err)
		os.Exit(1)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderLedger(cfg.Ledger.Path, records, ledgerRecent))
	return nil
}

func renderLedger(path string, records []model.ApplicationRecord, recent int) string {
	stats := ledger.Summarize(records)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Application ledger") + "  " + labelStyle.Render(path) + "\n\n")

	var summary strings.Builder
	fmt.Fprintf(&summary, "%s %d across %d runs\n", labelStyle.Render("Records:"), stats.Total, stats.Runs)
	for _, st := range []model.Status{model.StatusApplied, model.StatusSkipped, model.StatusFailed} {
		fmt.Fprintf(&summary, "%s %d\n", statusStyles[st].Render(fmt.Sprintf("%-8s", st)), stats.ByStatus[st])
	}
	platforms := make([]string, 0, len(stats.ByPlatform))
	for p := range stats.ByPlatform {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	for _, p := range platforms {
		fmt.Fprintf(&summary, "%s %d\n", labelStyle.Render(fmt.Sprintf("%-12s", p)), stats.ByPlatform[p])
	}
	b.WriteString(boxStyle.Render(strings.TrimRight(summary.String(), "\n")) + "\n")

	if recent <= 0 || len(records) == 0 {
		return b.String()
	}
	start := len(records) - recent
	if start < 0 {
		start = 0
	}
	b.WriteString("\n" + titleStyle.Render("Recent") + "\n")
	for i := len(records) - 1; i >= start; i-- {
		r := records[i]
		line := fmt.Sprintf("%s  %s  %s · %s",
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			statusStyles[r.Status].Render(fmt.Sprintf("%-8s", r.Status)),
			truncate(r.Title, 40),
			truncate(r.Company, 25),
		)
		if r.FailureReason != "" {
			line += "  " + labelStyle.Render(r.FailureReason)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
