package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/retry"
)

const (
	maxPromptSkills      = 8
	maxPromptDescription = 1500
	maxTemplateSkills    = 5
)

// coverLetterPolicy retries the LLM call once on rate limiting or a server error.
var coverLetterPolicy = retry.Policy{
	MaxAttempts: 2,
	BaseDelay:   2 * time.Second,
	MaxDelay:    5 * time.Second,
	JitterRatio: 0.2,
	Retryable: func(err error) bool {
		var httpErr *model.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
		}
		return false
	},
}

// LLMCoverLetter implements model.CoverLetterGenerator with an LLM.
type LLMCoverLetter struct {
	provider LLMProvider
	tmpl     *template.Template
	policy   retry.Policy
	logger   *slog.Logger
}

// NewLLMCoverLetter creates a generator that renders tmpl and sends it to provider.
func NewLLMCoverLetter(provider LLMProvider, tmpl *template.Template, logger *slog.Logger) *LLMCoverLetter {
	return &LLMCoverLetter{
		provider: provider,
		tmpl:     tmpl,
		policy:   coverLetterPolicy,
		logger:   logger,
	}
}

// promptData is the data passed to the cover letter template.
type promptData struct {
	Name        string
	Summary     string
	Skills      string
	Title       string
	Company     string
	Description string
}

// Generate writes a cover letter for job. Errors are returned to the caller,
// which falls back to the template letter.
func (g *LLMCoverLetter) Generate(ctx context.Context, profile model.Profile, job model.ScoredJob) (string, error) {
	desc := job.Job.Description
	if len(desc) > maxPromptDescription {
		desc = strings.ToValidUTF8(desc[:maxPromptDescription], "")
	}

	var promptBuf bytes.Buffer
	if err := g.tmpl.Execute(&promptBuf, promptData{
		Name:        candidateName(profile),
		Summary:     profile.Summary,
		Skills:      strings.Join(firstN(profile.Skills, maxPromptSkills), ", "),
		Title:       job.Job.Title,
		Company:     job.Job.Company,
		Description: desc,
	}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	letter, err := retry.Do(ctx, g.policy, g.logger, func(ctx context.Context, _ int) (string, error) {
		return g.provider.Complete(ctx, promptBuf.String())
	})
	if err != nil {
		return "", fmt.Errorf("llm complete: %w", err)
	}
	if letter == "" {
		return "", errors.New("llm returned an empty letter")
	}

	g.logger.Info("cover letter generated", "title", job.Job.Title, "company", job.Job.Company)
	return letter, nil
}

// TemplateCoverLetter fills a fixed letter from the profile. It never fails
// and is used when no LLM is configured or the LLM call fails.
type TemplateCoverLetter struct{}

// NewTemplateCoverLetter returns a TemplateCoverLetter.
func NewTemplateCoverLetter() *TemplateCoverLetter {
	return &TemplateCoverLetter{}
}

// Generate returns FallbackLetter(profile, job).
func (TemplateCoverLetter) Generate(_ context.Context, profile model.Profile, job model.ScoredJob) (string, error) {
	return FallbackLetter(profile, job), nil
}

// FallbackLetter renders the placeholder cover letter.
func FallbackLetter(profile model.Profile, job model.ScoredJob) string {
	var b strings.Builder
	b.WriteString("Dear Hiring Team,\n\n")
	fmt.Fprintf(&b, "I am writing to apply for the %s position at %s.\n\n", job.Job.Title, job.Job.Company)
	if profile.Summary != "" {
		b.WriteString(profile.Summary + "\n\n")
	}
	if skills := firstN(profile.Skills, maxTemplateSkills); len(skills) > 0 {
		fmt.Fprintf(&b, "My experience aligns with your requirements, including: %s.\n\n", strings.Join(skills, ", "))
	}
	b.WriteString("I would welcome the opportunity to discuss how my background can contribute to your team.\n\n")
	b.WriteString("Best regards,\n" + candidateName(profile))
	return b.String()
}

// Fallback wraps a generator so that its failures produce the template letter.
type Fallback struct {
	primary model.CoverLetterGenerator
	logger  *slog.Logger
}

// NewFallback returns a generator that never fails.
func NewFallback(primary model.CoverLetterGenerator, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, logger: logger}
}

// Generate calls the primary generator and substitutes the template letter on error.
func (f *Fallback) Generate(ctx context.Context, profile model.Profile, job model.ScoredJob) (string, error) {
	letter, err := f.primary.Generate(ctx, profile, job)
	if err != nil {
		f.logger.Warn("cover letter generation failed, using template",
			"title", job.Job.Title,
			"company", job.Job.Company,
			"error", err,
		)
		return FallbackLetter(profile, job), nil
	}
	return letter, nil
}

func candidateName(p model.Profile) string {
	if n := strings.TrimSpace(p.Name); n != "" {
		return n
	}
	return "Candidate"
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
