package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobpilot/internal/model"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "JOBPILOT_CONFIG"

// DefaultPath is used when neither a flag nor EnvConfigPath names a config file.
const DefaultPath = "config.yaml"

// Source names understood in the sources section.
const (
	SourceRemotive   = "remotive"
	SourceAdzuna     = "adzuna"
	SourceJSearch    = "jsearch"
	SourceSerpAPI    = "serpapi"
	SourceLinkedIn   = "linkedin"
	SourceGreenhouse = "greenhouse"
	SourceLever      = "lever"
	SourceAshby      = "ashby"
	SourceWorkday    = "workday"
	SourceGem        = "gem"
	SourceMock       = "mock"
)

// Ledger backends.
const (
	LedgerJSONL  = "jsonl"
	LedgerSQLite = "sqlite"
)

// Config is the root configuration for jobpilot.
type Config struct {
	Profile      model.Profile
	Applicant    ApplicantConfig
	Sources      []SourceConfig
	Search       SearchConfig
	Ranking      RankingConfig
	Apply        ApplyConfig
	Ledger       LedgerConfig
	CoverLetter  CoverLetterConfig
	Credentials  CredentialsConfig
	Notification NotificationConfig
	Run          RunConfig
}

// ApplicantConfig holds the contact details entered on application forms.
type ApplicantConfig struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// RetryConfig overrides a retry policy. Zero fields keep the default.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// SourceConfig describes one job source.
type SourceConfig struct {
	Name     string
	Enabled  bool
	BaseURL  string
	APIKey   string
	AppID    string
	AppKey   string
	Country  string
	Currency string
	Boards   []BoardConfig
	Retry    RetryConfig
	MinDelay time.Duration // minimum gap between requests to this source
}

// BoardConfig is one company board on an ATS source. For workday the token
// is the career site's CXS base URL.
type BoardConfig struct {
	Token   string `yaml:"token"`
	Company string `yaml:"company"`
}

// SearchConfig bounds aggregation.
type SearchConfig struct {
	MaxResults   int
	MaxLocations int
	MaxAge       time.Duration // zero keeps postings of any age
	MockFallback bool
}

// RankingConfig holds the listing threshold and blocklists.
type RankingConfig struct {
	MinScore                   float64
	FresherExperienceThreshold float64
	ExcludeCompanies           []string
	ExcludeTitleKeywords       []string
}

// ApplyConfig controls automatic applications.
type ApplyConfig struct {
	Enabled         bool
	DryRun          bool
	MinScore        float64
	MaxApplications int
	StepTimeout     time.Duration
	PlatformDelay   time.Duration
	PlatformDelays  map[string]time.Duration // per-platform overrides
	ResumePath      string
	Retry           RetryConfig
}

// LedgerConfig selects the application ledger.
type LedgerConfig struct {
	Backend     string
	Path        string
	LockTimeout time.Duration
	Retention   time.Duration // sqlite only; zero keeps every record
}

// CoverLetterConfig controls the optional LLM cover letter generator.
type CoverLetterConfig struct {
	Enabled bool
	BaseURL string        // defaults to https://api.openai.com/v1
	Model   string        // OpenAI-compatible model identifier
	APIKey  string        // expanded from env var by Load
	Timeout time.Duration // per-request timeout
}

// CredentialsConfig lists platform logins. Entries take precedence over the keyring.
type CredentialsConfig struct {
	KeyringService string
	Entries        []CredentialEntry
}

// CredentialEntry is one platform login from configuration.
type CredentialEntry struct {
	Platform     string `yaml:"platform"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// RunConfig bounds a single run and sets the daemon interval.
type RunConfig struct {
	Timeout  time.Duration
	Interval time.Duration
}

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultMaxResults    = 50
	defaultMaxLocations  = 2
	defaultMinScore      = 20
	defaultApplyMinScore = 65
	defaultStepTimeout   = 30 * time.Second
	defaultPlatformDelay = 5 * time.Second
	defaultLedgerPath    = "data/applications.jsonl"
	defaultSQLitePath    = "data/applications.db"
	defaultLockTimeout   = 10 * time.Second
	defaultCoverTimeout  = 30 * time.Second
	defaultRunTimeout    = 30 * time.Minute
	defaultRunInterval   = 24 * time.Hour
	maxScore             = 105
	slackWebhookPrefix   = "https://hooks.slack.com/"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Profile      rawProfile         `yaml:"profile"`
	Sources      []rawSource        `yaml:"sources"`
	Search       rawSearch          `yaml:"search"`
	Ranking      rawRanking         `yaml:"ranking"`
	Apply        rawApply           `yaml:"apply"`
	Ledger       rawLedger          `yaml:"ledger"`
	CoverLetter  rawCoverLetter     `yaml:"cover_letter"`
	Credentials  rawCredentials     `yaml:"credentials"`
	Notification NotificationConfig `yaml:"notification"`
	Run          rawRun             `yaml:"run"`
}

type rawProfile struct {
	Name            string   `yaml:"name"`
	Email           string   `yaml:"email"`
	Phone           string   `yaml:"phone"`
	Title           string   `yaml:"title"`
	Summary         string   `yaml:"summary"`
	ExperienceYears float64  `yaml:"experience_years"`
	ExperienceLevel string   `yaml:"experience_level"`
	Skills          []string `yaml:"skills"`
	CoreRoles       []string `yaml:"core_roles"`
	StretchRoles    []string `yaml:"stretch_roles"`
	Locations       []string `yaml:"locations"`
	SalaryMin       float64  `yaml:"salary_min"`
	SalaryMax       float64  `yaml:"salary_max"`
}

type rawRetry struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
	MaxDelay    string `yaml:"max_delay"`
}

type rawSource struct {
	Name     string        `yaml:"name"`
	Enabled  *bool         `yaml:"enabled"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	AppID    string        `yaml:"app_id"`
	AppKey   string        `yaml:"app_key"`
	Country  string        `yaml:"country"`
	Currency string        `yaml:"currency"`
	Boards   []BoardConfig `yaml:"boards"`
	Retry    rawRetry      `yaml:"retry"`
	MinDelay string        `yaml:"min_delay"`
}

type rawSearch struct {
	MaxResults   int    `yaml:"max_results"`
	MaxLocations int    `yaml:"max_locations"`
	MaxAge       string `yaml:"max_age"`
	MockFallback *bool  `yaml:"mock_fallback"`
}

type rawRanking struct {
	MinScore                   *float64 `yaml:"min_score"`
	FresherExperienceThreshold float64  `yaml:"fresher_experience_threshold"`
	ExcludeCompanies           []string `yaml:"exclude_companies"`
	ExcludeTitleKeywords       []string `yaml:"exclude_title_keywords"`
}

type rawApply struct {
	Enabled         bool              `yaml:"enabled"`
	DryRun          bool              `yaml:"dry_run"`
	MinScore        *float64          `yaml:"min_score"`
	MaxApplications int               `yaml:"max_applications"`
	StepTimeout     string            `yaml:"step_timeout"`
	PlatformDelay   string            `yaml:"platform_delay"`
	PlatformDelays  map[string]string `yaml:"platform_delays"`
	ResumePath      string            `yaml:"resume_path"`
	Retry           rawRetry          `yaml:"retry"`
}

type rawLedger struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	LockTimeout string `yaml:"lock_timeout"`
	Retention   string `yaml:"retention"`
}

type rawCoverLetter struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

type rawCredentials struct {
	KeyringService string            `yaml:"keyring_service"`
	Entries        []CredentialEntry `yaml:"entries"`
}

type rawRun struct {
	Timeout  string `yaml:"timeout"`
	Interval string `yaml:"interval"`
}

// ResolvePath picks the config file: an explicit flag value, then
// $JOBPILOT_CONFIG, then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

// LoadDotEnv loads a .env file next to the working directory if one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := build(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(raw rawConfig) (*Config, error) {
	var d duration

	cfg := &Config{
		Profile: model.Profile{
			Name:            strings.TrimSpace(raw.Profile.Name),
			Title:           raw.Profile.Title,
			Summary:         strings.TrimSpace(raw.Profile.Summary),
			ExperienceYears: raw.Profile.ExperienceYears,
			ExperienceLevel: raw.Profile.ExperienceLevel,
			Skills:          raw.Profile.Skills,
			CoreRoles:       raw.Profile.CoreRoles,
			StretchRoles:    raw.Profile.StretchRoles,
			Locations:       raw.Profile.Locations,
			SalaryMin:       raw.Profile.SalaryMin,
			SalaryMax:       raw.Profile.SalaryMax,
		}.Normalize(),
		Notification: raw.Notification,
	}
	first, last, _ := strings.Cut(cfg.Profile.Name, " ")
	cfg.Applicant = ApplicantConfig{
		FirstName: first,
		LastName:  strings.TrimSpace(last),
		Email:     strings.TrimSpace(raw.Profile.Email),
		Phone:     strings.TrimSpace(raw.Profile.Phone),
	}

	for i, rs := range raw.Sources {
		prefix := fmt.Sprintf("sources[%d]", i)
		sc := SourceConfig{
			Name:     strings.ToLower(strings.TrimSpace(rs.Name)),
			Enabled:  rs.Enabled == nil || *rs.Enabled,
			BaseURL:  rs.BaseURL,
			APIKey:   rs.APIKey,
			AppID:    rs.AppID,
			AppKey:   rs.AppKey,
			Country:  rs.Country,
			Currency: rs.Currency,
			Boards:   rs.Boards,
			Retry:    d.retry(prefix+".retry", rs.Retry),
			MinDelay: d.parse(prefix+".min_delay", rs.MinDelay, 0),
		}
		cfg.Sources = append(cfg.Sources, sc)
	}

	cfg.Search = SearchConfig{
		MaxResults:   orInt(raw.Search.MaxResults, defaultMaxResults),
		MaxLocations: orInt(raw.Search.MaxLocations, defaultMaxLocations),
		MaxAge:       d.parse("search.max_age", raw.Search.MaxAge, 0),
		MockFallback: raw.Search.MockFallback == nil || *raw.Search.MockFallback,
	}

	cfg.Ranking = RankingConfig{
		MinScore:                   orFloat(raw.Ranking.MinScore, defaultMinScore),
		FresherExperienceThreshold: raw.Ranking.FresherExperienceThreshold,
		ExcludeCompanies:           raw.Ranking.ExcludeCompanies,
		ExcludeTitleKeywords:       raw.Ranking.ExcludeTitleKeywords,
	}

	delays := make(map[string]time.Duration)
	for platform, v := range raw.Apply.PlatformDelays {
		delays[strings.ToLower(platform)] = d.parse(fmt.Sprintf("apply.platform_delays[%q]", platform), v, 0)
	}
	cfg.Apply = ApplyConfig{
		Enabled:         raw.Apply.Enabled,
		DryRun:          raw.Apply.DryRun,
		MinScore:        orFloat(raw.Apply.MinScore, defaultApplyMinScore),
		MaxApplications: raw.Apply.MaxApplications,
		StepTimeout:     d.parse("apply.step_timeout", raw.Apply.StepTimeout, defaultStepTimeout),
		PlatformDelay:   d.parse("apply.platform_delay", raw.Apply.PlatformDelay, defaultPlatformDelay),
		PlatformDelays:  delays,
		ResumePath:      raw.Apply.ResumePath,
		Retry:           d.retry("apply.retry", raw.Apply.Retry),
	}

	backend := strings.ToLower(raw.Ledger.Backend)
	if backend == "" {
		backend = LedgerJSONL
	}
	ledgerPath := raw.Ledger.Path
	if ledgerPath == "" {
		ledgerPath = defaultLedgerPath
		if backend == LedgerSQLite {
			ledgerPath = defaultSQLitePath
		}
	}
	cfg.Ledger = LedgerConfig{
		Backend:     backend,
		Path:        ledgerPath,
		LockTimeout: d.parse("ledger.lock_timeout", raw.Ledger.LockTimeout, defaultLockTimeout),
		Retention:   d.parse("ledger.retention", raw.Ledger.Retention, 0),
	}

	baseURL := raw.CoverLetter.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	cfg.CoverLetter = CoverLetterConfig{
		Enabled: raw.CoverLetter.Enabled,
		BaseURL: baseURL,
		Model:   raw.CoverLetter.Model,
		APIKey:  raw.CoverLetter.APIKey,
		Timeout: d.parse("cover_letter.timeout", raw.CoverLetter.Timeout, defaultCoverTimeout),
	}

	cfg.Credentials = CredentialsConfig{
		KeyringService: raw.Credentials.KeyringService,
		Entries:        raw.Credentials.Entries,
	}

	cfg.Run = RunConfig{
		Timeout:  d.parse("run.timeout", raw.Run.Timeout, defaultRunTimeout),
		Interval: d.parse("run.interval", raw.Run.Interval, defaultRunInterval),
	}

	if d.err != nil {
		return nil, d.err
	}
	return cfg, nil
}

// duration parses duration strings and keeps the first error.
type duration struct {
	err error
}

func (d *duration) parse(field, value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		if d.err == nil {
			d.err = fmt.Errorf("parse %s %q: %w", field, value, err)
		}
		return def
	}
	return v
}

func (d *duration) retry(field string, r rawRetry) RetryConfig {
	return RetryConfig{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   d.parse(field+".base_delay", r.BaseDelay, 0),
		MaxDelay:    d.parse(field+".max_delay", r.MaxDelay, 0),
	}
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// EnabledSources returns the enabled sources in configured order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// SourceDelays maps source names to their configured minimum request gap.
func (c *Config) SourceDelays() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, s := range c.Sources {
		if s.MinDelay > 0 {
			out[s.Name] = s.MinDelay
		}
	}
	return out
}

func validate(cfg *Config) error {
	if err := cfg.Profile.Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for i, s := range cfg.Sources {
		switch s.Name {
		case SourceRemotive, SourceMock:
		case SourceAdzuna:
			if s.Enabled && (s.AppID == "" || s.AppKey == "") {
				return fmt.Errorf("sources[%d]: adzuna requires app_id and app_key", i)
			}
		case SourceJSearch, SourceSerpAPI, SourceLinkedIn:
			if s.Enabled && s.APIKey == "" {
				return fmt.Errorf("sources[%d]: %s requires api_key", i, s.Name)
			}
		case SourceGreenhouse, SourceLever, SourceAshby, SourceWorkday, SourceGem:
			if s.Enabled && len(s.Boards) == 0 {
				return fmt.Errorf("sources[%d]: %s requires at least one board", i, s.Name)
			}
		case "":
			return fmt.Errorf("sources[%d]: name is required", i)
		default:
			return fmt.Errorf("sources[%d]: unknown source %q", i, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate source %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.Retry.MaxAttempts < 0 {
			return fmt.Errorf("sources[%d].retry.max_attempts must not be negative", i)
		}
	}

	if cfg.Search.MaxResults < 0 || cfg.Search.MaxLocations < 0 {
		return fmt.Errorf("search.max_results and search.max_locations must not be negative")
	}

	if cfg.Ranking.MinScore < 0 || cfg.Ranking.MinScore > maxScore {
		return fmt.Errorf("ranking.min_score must be between 0 and %d, got %v", maxScore, cfg.Ranking.MinScore)
	}

	if cfg.Apply.Enabled {
		if cfg.Apply.MinScore < 0 || cfg.Apply.MinScore > maxScore {
			return fmt.Errorf("apply.min_score must be between 0 and %d, got %v", maxScore, cfg.Apply.MinScore)
		}
		if cfg.Apply.MaxApplications < 0 {
			return fmt.Errorf("apply.max_applications must not be negative")
		}
		if cfg.Apply.StepTimeout <= 0 {
			return fmt.Errorf("apply.step_timeout must be positive, got %v", cfg.Apply.StepTimeout)
		}
		if cfg.Applicant.Email == "" {
			return fmt.Errorf("profile.email is required when apply.enabled is true")
		}
	}

	switch cfg.Ledger.Backend {
	case LedgerJSONL, LedgerSQLite:
	default:
		return fmt.Errorf("ledger.backend must be %q or %q, got %q", LedgerJSONL, LedgerSQLite, cfg.Ledger.Backend)
	}

	for i, e := range cfg.Credentials.Entries {
		if strings.TrimSpace(e.Platform) == "" {
			return fmt.Errorf("credentials.entries[%d]: platform is required", i)
		}
	}

	switch cfg.Notification.Type {
	case "", "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookPrefix) {
			return fmt.Errorf("notification.webhook_url must start with %s", slackWebhookPrefix)
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	if cfg.CoverLetter.Enabled {
		if cfg.CoverLetter.APIKey == "" {
			return fmt.Errorf("cover_letter.api_key is required when cover_letter.enabled is true")
		}
		if cfg.CoverLetter.Model == "" {
			return fmt.Errorf("cover_letter.model is required when cover_letter.enabled is true")
		}
	}

	if cfg.Run.Interval <= 0 {
		return fmt.Errorf("run.interval must be positive, got %v", cfg.Run.Interval)
	}
	if cfg.Run.Timeout < 0 {
		return fmt.Errorf("run.timeout must not be negative, got %v", cfg.Run.Timeout)
	}

	return nil
}
