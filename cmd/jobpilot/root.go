package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobpilot/internal/aggregate"
	"github.com/amishk599/jobpilot/internal/ai"
	"github.com/amishk599/jobpilot/internal/apply"
	"github.com/amishk599/jobpilot/internal/config"
	"github.com/amishk599/jobpilot/internal/credential"
	"github.com/amishk599/jobpilot/internal/filter"
	"github.com/amishk599/jobpilot/internal/ledger"
	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/notifier"
	"github.com/amishk599/jobpilot/internal/pipeline"
	"github.com/amishk599/jobpilot/internal/platform"
	"github.com/amishk599/jobpilot/internal/rank"
	"github.com/amishk599/jobpilot/internal/ratelimit"
	"github.com/amishk599/jobpilot/internal/retry"
	"github.com/amishk599/jobpilot/internal/score"
	"github.com/amishk599/jobpilot/internal/source"
	"github.com/amishk599/jobpilot/internal/store"
)

var (
	cfgPath string
	debug   bool
	logJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "jobpilot",
	Short: "Find, rank and apply to jobs that fit your profile",
	Long: "JobPilot searches job sources for roles matching your profile, ranks them, " +
		"applies to the best matches and keeps a ledger of every application.",
	SilenceUsage: true,
	// Default to `start` so that `jobpilot` with no args runs the daemon.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBPILOT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
}

// loadConfig loads .env, resolves the config path and parses it.
// Priority: explicit path arg > JOBPILOT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	return config.Load(config.ResolvePath(path))
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if logJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// openLedger opens the configured ledger. The returned close func is never nil.
func openLedger(cfg *config.Config, logger *slog.Logger) (model.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case config.LedgerSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating ledger directory: %w", err)
		}
		db, err := store.NewSQLiteLedger(cfg.Ledger.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	default:
		l, err := ledger.Open(cfg.Ledger.Path, ledger.Options{LockTimeout: cfg.Ledger.LockTimeout}, logger)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil
	}
}

// readLedger loads every record without taking the ledger's write lock.
func readLedger(cfg *config.Config, logger *slog.Logger) ([]model.ApplicationRecord, error) {
	if cfg.Ledger.Backend == config.LedgerSQLite {
		if _, err := os.Stat(cfg.Ledger.Path); os.IsNotExist(err) {
			return nil, nil
		}
		db, err := store.NewSQLiteLedger(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.Records()
	}
	return ledger.ReadFile(cfg.Ledger.Path, logger)
}

func policyFor(base retry.Policy, o config.RetryConfig) retry.Policy {
	if o.MaxAttempts > 0 {
		base.MaxAttempts = o.MaxAttempts
	}
	if o.BaseDelay > 0 {
		base.BaseDelay = o.BaseDelay
	}
	if o.MaxDelay > 0 {
		base.MaxDelay = o.MaxDelay
	}
	return base
}

func boards(in []config.BoardConfig) []source.Board {
	out := make([]source.Board, len(in))
	for i, b := range in {
		out[i] = source.Board{Token: b.Token, Company: b.Company}
	}
	return out
}

func createSource(sc config.SourceConfig, httpClient *http.Client, logger *slog.Logger) (model.SourceAdapter, bool) {
	switch sc.Name {
	case config.SourceRemotive:
		return source.NewRemotiveAdapter(sc.BaseURL, httpClient, logger), true
	case config.SourceAdzuna:
		return source.NewAdzunaAdapter(sc.BaseURL, sc.Country, sc.AppID, sc.AppKey, sc.Currency, httpClient, logger), true
	case config.SourceJSearch:
		return source.NewJSearchAdapter(sc.BaseURL, sc.APIKey, httpClient, logger), true
	case config.SourceSerpAPI:
		return source.NewSerpAPIAdapter(sc.BaseURL, sc.APIKey, httpClient, logger), true
	case config.SourceLinkedIn:
		return source.NewLinkedInRapidAdapter(sc.BaseURL, sc.APIKey, httpClient, logger), true
	case config.SourceGreenhouse:
		return source.NewGreenhouseAdapter(sc.BaseURL, boards(sc.Boards), httpClient, logger), true
	case config.SourceLever:
		return source.NewLeverAdapter(sc.BaseURL, boards(sc.Boards), httpClient, logger), true
	case config.SourceAshby:
		return source.NewAshbyAdapter(sc.BaseURL, boards(sc.Boards), httpClient, logger), true
	case config.SourceGem:
		return source.NewGemAdapter(sc.BaseURL, boards(sc.Boards), httpClient, logger), true
	case config.SourceWorkday:
		return source.NewWorkdayAdapter(boards(sc.Boards), httpClient, logger), true
	case config.SourceMock:
		return source.NewMockAdapter(), true
	default:
		logger.Warn("unsupported source, skipping", "source", sc.Name)
		return nil, false
	}
}

func buildAggregator(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *aggregate.Aggregator {
	var sources []aggregate.Source
	for _, sc := range cfg.EnabledSources() {
		adapter, ok := createSource(sc, httpClient, logger)
		if !ok {
			continue
		}
		sources = append(sources, aggregate.Source{
			Adapter: adapter,
			Policy:  policyFor(retry.DefaultSourcePolicy, sc.Retry),
		})
		logger.Info("registered source", "source", sc.Name, "boards", len(sc.Boards))
	}

	opts := aggregate.Options{
		MaxLocations: cfg.Search.MaxLocations,
		Limiter:      ratelimit.NewKeyedLimiter(0, cfg.SourceDelays()),
	}
	if cfg.Search.MockFallback {
		opts.Fallback = source.NewMockAdapter()
	}
	return aggregate.New(sources, opts, logger)
}

func buildRanker(cfg *config.Config, logger *slog.Logger) *rank.Pipeline {
	return rank.New(rank.Options{
		MinScore: cfg.Ranking.MinScore,
		Score:    score.Options{FresherExperienceThreshold: cfg.Ranking.FresherExperienceThreshold},
		Filter:   filter.NewBlocklist(cfg.Ranking.ExcludeCompanies, cfg.Ranking.ExcludeTitleKeywords),
	}, logger)
}

func setupCoverLetter(cfg *config.Config, logger *slog.Logger) model.CoverLetterGenerator {
	if !cfg.CoverLetter.Enabled {
		return ai.NewTemplateCoverLetter()
	}
	provider := ai.NewOpenAIProvider(
		cfg.CoverLetter.BaseURL,
		cfg.CoverLetter.APIKey,
		cfg.CoverLetter.Model,
		&http.Client{Timeout: cfg.CoverLetter.Timeout},
	)
	logger.Info("cover letters enabled", "model", cfg.CoverLetter.Model)
	return ai.NewFallback(ai.NewLLMCoverLetter(provider, ai.CoverLetterTemplate, logger), logger)
}

func setupCredentials(cfg *config.Config, logger *slog.Logger) (model.CredentialProvider, error) {
	entries := make([]credential.Entry, len(cfg.Credentials.Entries))
	for i, e := range cfg.Credentials.Entries {
		entries[i] = credential.Entry{Platform: e.Platform, Username: e.Username, Password: e.Password, PasswordFile: e.PasswordFile}
	}
	static, err := credential.NewStaticProvider(entries)
	if err != nil {
		return nil, err
	}
	return credential.Chain{static, credential.NewKeyringProvider(cfg.Credentials.KeyringService, logger)}, nil
}

func loadResume(path string) (*model.Resume, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading resume: %w", err)
	}
	return &model.Resume{FileName: filepath.Base(path), Content: data}, nil
}

func buildApplier(cfg *config.Config, led model.Ledger, httpClient *http.Client, logger *slog.Logger) (*apply.Orchestrator, error) {
	creds, err := setupCredentials(cfg, logger)
	if err != nil {
		return nil, err
	}
	resume, err := loadResume(cfg.Apply.ResumePath)
	if err != nil {
		return nil, err
	}

	registry := platform.NewDefaultRegistry(httpClient, logger)
	if cfg.Apply.DryRun {
		// Rehearsal outcomes stay out of the ledger so real runs still apply.
		logger.Info("apply dry-run: forms are filled but never submitted or recorded")
		registry.DryRun()
		led = store.NewNopLedger()
	}

	return apply.New(cfg.Profile, apply.Deps{
		Adapters:    registry,
		Ledger:      led,
		Credentials: creds,
		CoverLetter: setupCoverLetter(cfg, logger),
	}, apply.Options{
		Applicant: apply.Applicant{
			FirstName: cfg.Applicant.FirstName,
			LastName:  cfg.Applicant.LastName,
			Email:     cfg.Applicant.Email,
			Phone:     cfg.Applicant.Phone,
		},
		Resume:          resume,
		StepPolicy:      policyFor(retry.DefaultStepPolicy, cfg.Apply.Retry),
		StepTimeout:     cfg.Apply.StepTimeout,
		MaxApplications: cfg.Apply.MaxApplications,
		Limiter:         ratelimit.NewKeyedLimiter(cfg.Apply.PlatformDelay, cfg.Apply.PlatformDelays),
	}, logger), nil
}

// buildRunner wires the full pipeline. The returned close func releases the ledger.
func buildRunner(cfg *config.Config, logger *slog.Logger) (*pipeline.Runner, func(), error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	led, closeLedger, err := openLedger(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var applier pipeline.Applier
	if cfg.Apply.Enabled {
		orch, err := buildApplier(cfg, led, httpClient, logger)
		if err != nil {
			closeLedger()
			return nil, nil, err
		}
		applier = orch
	} else {
		logger.Info("auto-apply disabled; ranking only")
	}

	runner := pipeline.NewRunner(
		cfg.Profile,
		buildAggregator(cfg, httpClient, logger),
		buildRanker(cfg, logger),
		applier,
		led,
		setupNotifier(cfg, httpClient, logger),
		pipeline.Options{
			MaxResults:    cfg.Search.MaxResults,
			MaxAge:        cfg.Search.MaxAge,
			ApplyMinScore: cfg.Apply.MinScore,
			Timeout:       cfg.Run.Timeout,
		},
		logger,
	)
	return runner, closeLedger, nil
}
