package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpilot/internal/config"
	"github.com/amishk599/jobpilot/internal/scheduler"
	"github.com/amishk599/jobpilot/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	Long:  "Runs the pipeline immediately and then every run.interval; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.Run.Interval.String(),
		"sources", len(cfg.EnabledSources()),
		"core_roles", len(cfg.Profile.CoreRoles),
		"stretch_roles", len(cfg.Profile.StretchRoles),
		"apply", cfg.Apply.Enabled,
		"ledger", cfg.Ledger.Backend,
	)

	runner, closeLedger, err := buildRunner(cfg, logger)
	if err != nil {
		logger.Error("failed to set up pipeline", "error", err)
		os.Exit(1)
	}
	defer closeLedger()

	tasks := []scheduler.Task{{
		Name: "pipeline",
		Run: func(ctx context.Context) error {
			_, err := runner.Run(ctx)
			return err
		},
	}}
	if cfg.Ledger.Backend == config.LedgerSQLite && cfg.Ledger.Retention > 0 {
		tasks = append(tasks, scheduler.Task{
			Name: "prune-ledger",
			Run: func(context.Context) error {
				db, err := store.NewSQLiteLedger(cfg.Ledger.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				return db.Prune(cfg.Ledger.Retention)
			},
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(tasks, cfg.Run.Interval, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
