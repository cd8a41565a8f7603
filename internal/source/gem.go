package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/amishk599/jobpilot/internal/model"
)

const gemBaseURL = "https://api.gem.com/job_board/v0"

type gemJob struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Location       gemLocation `json:"location"`
	AbsoluteURL    string      `json:"absolute_url"`
	FirstPublished string      `json:"first_published_at"`
	Content        string      `json:"content"`
	ContentPlain   string      `json:"content_plain"`
}

type gemLocation struct {
	Name string `json:"name"`
}

// GemAdapter searches Gem public job boards.
type GemAdapter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	boards  *boardSource
}

// NewGemAdapter creates an adapter over the given boards.
func NewGemAdapter(baseURL string, boards []Board, client *http.Client, logger *slog.Logger) *GemAdapter {
	if baseURL == "" {
		baseURL = gemBaseURL
	}
	a := &GemAdapter{baseURL: baseURL, client: client, logger: logger}
	a.boards = newBoardSource(a.Name(), boards, logger, a.fetchBoard)
	return a
}

func (a *GemAdapter) Name() string { return "gem" }

// Search returns board postings whose title contains every word of query.
func (a *GemAdapter) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	return a.boards.search(ctx, query, location, limit)
}

func (a *GemAdapter) fetchBoard(ctx context.Context, b Board) ([]model.Job, error) {
	url := fmt.Sprintf("%s/%s/job_posts/", a.baseURL, b.Token)

	req, err := newGet(ctx, a.Name(), url)
	if err != nil {
		return nil, err
	}

	// Gem returns a bare array rather than an envelope.
	var raw []json.RawMessage
	if err := doJSON(a.client, a.Name(), req, &raw); err != nil {
		return nil, fmt.Errorf("gem fetch for %s: %w", b.Token, err)
	}

	return decodeEach(raw, a.Name(), a.logger, func(gj gemJob) (model.Job, bool) {
		if gj.Title == "" || gj.ID == "" {
			return model.Job{}, false
		}
		desc := gj.ContentPlain
		if desc == "" {
			desc = extractText(gj.Content)
		}
		return model.Job{
			ID:          gj.ID,
			Company:     b.Company,
			Title:       gj.Title,
			Location:    gj.Location.Name,
			Description: desc,
			URL:         gj.AbsoluteURL,
			PostedAt:    parseTime(gj.FirstPublished),
			Source:      a.Name(),
		}, true
	}), nil
}
