package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/amishk599/jobpilot/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

// ashbyJob represents a single job in the Ashby API response.
type ashbyJob struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Location         string `json:"location"`
	IsRemote         bool   `json:"isRemote"`
	JobURL           string `json:"jobUrl"`
	ApplyURL         string `json:"applyUrl"`
	PublishedAt      string `json:"publishedAt"`
	IsListed         bool   `json:"isListed"`
	DescriptionPlain string `json:"descriptionPlain"`
}

// ashbyResponse is the top-level Ashby job board API response.
type ashbyResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// AshbyAdapter searches Ashby public job boards.
type AshbyAdapter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	boards  *boardSource
}

// NewAshbyAdapter creates an adapter over the given boards.
func NewAshbyAdapter(baseURL string, boards []Board, client *http.Client, logger *slog.Logger) *AshbyAdapter {
	if baseURL == "" {
		baseURL = ashbyBaseURL
	}
	a := &AshbyAdapter{baseURL: baseURL, client: client, logger: logger}
	a.boards = newBoardSource(a.Name(), boards, logger, a.fetchBoard)
	return a
}

func (a *AshbyAdapter) Name() string { return "ashby" }

// Search returns listed postings whose title contains every word of query.
func (a *AshbyAdapter) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	return a.boards.search(ctx, query, location, limit)
}

func (a *AshbyAdapter) fetchBoard(ctx context.Context, b Board) ([]model.Job, error) {
	url := fmt.Sprintf("%s/%s", a.baseURL, b.Token)

	req, err := newGet(ctx, a.Name(), url)
	if err != nil {
		return nil, err
	}

	var ashbyResp ashbyResponse
	if err := doJSON(a.client, a.Name(), req, &ashbyResp); err != nil {
		return nil, fmt.Errorf("ashby fetch for %s: %w", b.Token, err)
	}

	return decodeEach(ashbyResp.Jobs, a.Name(), a.logger, func(aj ashbyJob) (model.Job, bool) {
		if !aj.IsListed || aj.Title == "" {
			return model.Job{}, false
		}
		loc := aj.Location
		if aj.IsRemote && loc == "" {
			loc = "Remote"
		}
		id := aj.ID
		if id == "" {
			id = aj.JobURL
		}
		link := aj.ApplyURL
		if link == "" {
			link = aj.JobURL
		}
		return model.Job{
			ID:          id,
			Company:     b.Company,
			Title:       aj.Title,
			Location:    loc,
			Description: aj.DescriptionPlain,
			URL:         link,
			PostedAt:    parseTime(aj.PublishedAt),
			Source:      a.Name(),
		}, true
	}), nil
}
