package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalProfile = `
profile:
  name: Ada Lovelace
  email: ada@example.com
  experience_years: 4
  experience_level: Intermediate
  skills: [Go, PostgreSQL, go]
  core_roles: [Backend Engineer]
  stretch_roles: [Platform Engineer]
  locations: [Remote]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("TEST_ADZUNA_KEY", "secret-key")
	path := writeConfig(t, minimalProfile+`
sources:
  - name: remotive
  - name: adzuna
    app_id: abc
    app_key: ${TEST_ADZUNA_KEY}
    country: gb
    min_delay: 2s
    retry:
      max_attempts: 5
      base_delay: 500ms
  - name: greenhouse
    enabled: false
    boards:
      - token: acme
        company: Acme
search:
  max_results: 25
  max_age: 72h
ranking:
  min_score: 30
  exclude_companies: [Evil Corp]
apply:
  enabled: true
  min_score: 70
  max_applications: 5
  step_timeout: 45s
  platform_delays:
    LinkedIn: 30s
  dry_run: true
ledger:
  backend: sqlite
notification:
  type: slack
  webhook_url: https://hooks.slack.com/services/T/B/X
run:
  timeout: 10m
  interval: 6h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile.ExperienceLevel != "intermediate" || len(cfg.Profile.Skills) != 2 {
		t.Errorf("profile not normalized: %+v", cfg.Profile)
	}
	if cfg.Applicant.FirstName != "Ada" || cfg.Applicant.LastName != "Lovelace" || cfg.Applicant.Email != "ada@example.com" {
		t.Errorf("Applicant = %+v", cfg.Applicant)
	}
	if len(cfg.Sources) != 3 || len(cfg.EnabledSources()) != 2 {
		t.Fatalf("Sources = %+v", cfg.Sources)
	}
	adzuna := cfg.Sources[1]
	if adzuna.AppKey != "secret-key" || adzuna.MinDelay != 2*time.Second {
		t.Errorf("adzuna = %+v", adzuna)
	}
	if adzuna.Retry.MaxAttempts != 5 || adzuna.Retry.BaseDelay != 500*time.Millisecond || adzuna.Retry.MaxDelay != 0 {
		t.Errorf("adzuna retry = %+v", adzuna.Retry)
	}
	if d := cfg.SourceDelays(); len(d) != 1 || d["adzuna"] != 2*time.Second {
		t.Errorf("SourceDelays = %v", d)
	}
	if cfg.Search.MaxResults != 25 || cfg.Search.MaxLocations != 2 || cfg.Search.MaxAge != 72*time.Hour || !cfg.Search.MockFallback {
		t.Errorf("Search = %+v", cfg.Search)
	}
	if cfg.Ranking.MinScore != 30 || len(cfg.Ranking.ExcludeCompanies) != 1 {
		t.Errorf("Ranking = %+v", cfg.Ranking)
	}
	if !cfg.Apply.Enabled || !cfg.Apply.DryRun || cfg.Apply.MinScore != 70 || cfg.Apply.MaxApplications != 5 {
		t.Errorf("Apply = %+v", cfg.Apply)
	}
	if cfg.Apply.StepTimeout != 45*time.Second || cfg.Apply.PlatformDelays["linkedin"] != 30*time.Second {
		t.Errorf("Apply timings = %+v", cfg.Apply)
	}
	if cfg.Ledger.Backend != LedgerSQLite || cfg.Ledger.Path != "data/applications.db" {
		t.Errorf("Ledger = %+v", cfg.Ledger)
	}
	if cfg.Run.Timeout != 10*time.Minute || cfg.Run.Interval != 6*time.Hour {
		t.Errorf("Run = %+v", cfg.Run)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalProfile))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.MaxResults != 50 || cfg.Search.MaxAge != 0 {
		t.Errorf("Search = %+v", cfg.Search)
	}
	if cfg.Ranking.MinScore != 20 || cfg.Apply.MinScore != 65 || cfg.Apply.Enabled {
		t.Errorf("thresholds = %v / %v", cfg.Ranking.MinScore, cfg.Apply.MinScore)
	}
	if cfg.Apply.StepTimeout != 30*time.Second || cfg.Apply.PlatformDelay != 5*time.Second {
		t.Errorf("Apply = %+v", cfg.Apply)
	}
	if cfg.Ledger.Backend != LedgerJSONL || cfg.Ledger.Path != "data/applications.jsonl" || cfg.Ledger.LockTimeout != 10*time.Second {
		t.Errorf("Ledger = %+v", cfg.Ledger)
	}
	if cfg.CoverLetter.BaseURL != "https://api.openai.com/v1" || cfg.CoverLetter.Timeout != 30*time.Second {
		t.Errorf("CoverLetter = %+v", cfg.CoverLetter)
	}
	if cfg.Run.Interval != 24*time.Hour || cfg.Run.Timeout != 30*time.Minute {
		t.Errorf("Run = %+v", cfg.Run)
	}
}

func TestLoad_ExplicitZeroMinScore(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalProfile+`
ranking:
  min_score: 0
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ranking.MinScore != 0 {
		t.Errorf("MinScore = %v, want explicit 0", cfg.Ranking.MinScore)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "profile: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "no roles",
			content: "profile:\n  experience_level: senior\n",
			want:    "core or stretch role",
		},
		{
			name:    "bad duration",
			content: minimalProfile + "run:\n  interval: soon\n",
			want:    "run.interval",
		},
		{
			name:    "unknown source",
			content: minimalProfile + "sources:\n  - name: monster\n",
			want:    "unknown source",
		},
		{
			name:    "duplicate source",
			content: minimalProfile + "sources:\n  - name: remotive\n  - name: remotive\n",
			want:    "duplicate source",
		},
		{
			name:    "adzuna without keys",
			content: minimalProfile + "sources:\n  - name: adzuna\n",
			want:    "app_id",
		},
		{
			name:    "serpapi without key",
			content: minimalProfile + "sources:\n  - name: serpapi\n",
			want:    "serpapi requires api_key",
		},
		{
			name:    "disabled adzuna without keys is fine",
			content: minimalProfile + "sources:\n  - name: adzuna\n    enabled: false\n",
		},
		{
			name:    "board source without boards",
			content: minimalProfile + "sources:\n  - name: lever\n",
			want:    "board",
		},
		{
			name:    "ranking score out of range",
			content: minimalProfile + "ranking:\n  min_score: 200\n",
			want:    "ranking.min_score",
		},
		{
			name:    "apply without email",
			content: strings.Replace(minimalProfile, "  email: ada@example.com\n", "", 1) + "apply:\n  enabled: true\n",
			want:    "profile.email",
		},
		{
			name:    "unknown ledger backend",
			content: minimalProfile + "ledger:\n  backend: postgres\n",
			want:    "ledger.backend",
		},
		{
			name:    "slack without webhook",
			content: minimalProfile + "notification:\n  type: slack\n",
			want:    "webhook_url",
		},
		{
			name:    "slack with foreign webhook",
			content: minimalProfile + "notification:\n  type: slack\n  webhook_url: https://example.com/hook\n",
			want:    "hooks.slack.com",
		},
		{
			name:    "cover letter without key",
			content: minimalProfile + "cover_letter:\n  enabled: true\n  model: gpt-4o-mini\n",
			want:    "cover_letter.api_key",
		},
		{
			name:    "credential without platform",
			content: minimalProfile + "credentials:\n  entries:\n    - username: ada\n",
			want:    "platform is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Load: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if got := ResolvePath(""); got != DefaultPath {
		t.Errorf("ResolvePath() = %q, want %q", got, DefaultPath)
	}
	t.Setenv(EnvConfigPath, "/etc/jobpilot.yaml")
	if got := ResolvePath(""); got != "/etc/jobpilot.yaml" {
		t.Errorf("ResolvePath() with env = %q", got)
	}
	if got := ResolvePath("mine.yaml"); got != "mine.yaml" {
		t.Errorf("ResolvePath(flag) = %q, want flag to win", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("JOBPILOT_TEST_KEY=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JOBPILOT_TEST_KEY", "")
	os.Unsetenv("JOBPILOT_TEST_KEY")

	if err := LoadDotEnv(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("JOBPILOT_TEST_KEY"); got != "from-dotenv" {
		t.Errorf("JOBPILOT_TEST_KEY = %q", got)
	}
}
