package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/amishk599/jobpilot/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
	UpdatedAt   string             `json:"updated_at"`
	Content     string             `json:"content"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// GreenhouseAdapter searches Greenhouse public job boards.
type GreenhouseAdapter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	boards  *boardSource
}

// NewGreenhouseAdapter creates an adapter over the given boards.
func NewGreenhouseAdapter(baseURL string, boards []Board, client *http.Client, logger *slog.Logger) *GreenhouseAdapter {
	if baseURL == "" {
		baseURL = greenhouseBaseURL
	}
	a := &GreenhouseAdapter{baseURL: baseURL, client: client, logger: logger}
	a.boards = newBoardSource(a.Name(), boards, logger, a.fetchBoard)
	return a
}

func (a *GreenhouseAdapter) Name() string { return "greenhouse" }

// Search returns board postings whose title contains every word of query.
func (a *GreenhouseAdapter) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	return a.boards.search(ctx, query, location, limit)
}

// fetchBoard retrieves all jobs (with content) from one Greenhouse board and
// normalizes them into the unified Job model.
func (a *GreenhouseAdapter) fetchBoard(ctx context.Context, b Board) ([]model.Job, error) {
	url := fmt.Sprintf("%s/%s/jobs?content=true", a.baseURL, b.Token)

	req, err := newGet(ctx, a.Name(), url)
	if err != nil {
		return nil, err
	}

	var ghResp greenhouseResponse
	if err := doJSON(a.client, a.Name(), req, &ghResp); err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", b.Token, err)
	}

	return decodeEach(ghResp.Jobs, a.Name(), a.logger, func(gj greenhouseJob) (model.Job, bool) {
		if gj.Title == "" {
			return model.Job{}, false
		}
		return model.Job{
			ID:          strconv.FormatInt(gj.ID, 10),
			Company:     b.Company,
			Title:       gj.Title,
			Location:    gj.Location.Name,
			Description: extractText(gj.Content),
			URL:         gj.AbsoluteURL,
			PostedAt:    parseTime(gj.UpdatedAt),
			Source:      a.Name(),
		}, true
	}), nil
}
