package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List all configured job sources",
	Long:  "Reads the config and prints a table of all configured sources.",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-12s %-10s %-8s %s\n", "Source", "Status", "Boards", "Min delay")
	fmt.Println(strings.Repeat("─", 45))

	enabled, disabled := 0, 0
	for _, s := range cfg.Sources {
		status := "enabled"
		if !s.Enabled {
			status = "disabled"
			disabled++
		} else {
			enabled++
		}
		delay := "-"
		if s.MinDelay > 0 {
			delay = s.MinDelay.String()
		}
		fmt.Printf("%-12s %-10s %-8d %s\n", s.Name, status, len(s.Boards), delay)
	}

	fmt.Printf("\nTotal: %d sources (%d enabled, %d disabled)\n", len(cfg.Sources), enabled, disabled)
	if cfg.Search.MockFallback {
		fmt.Println("Sample postings are used when every source comes back empty.")
	}
	return nil
}
