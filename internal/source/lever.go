package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team         string   `json:"team"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	WorkplaceType    string          `json:"workplaceType"`
	HostedURL        string          `json:"hostedUrl"`
	ApplyURL         string          `json:"applyUrl"`
	SalaryRange      *struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
	} `json:"salaryRange"`
}

// LeverAdapter searches Lever public postings.
type LeverAdapter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	boards  *boardSource
}

// NewLeverAdapter creates an adapter over the given company slugs.
func NewLeverAdapter(baseURL string, boards []Board, client *http.Client, logger *slog.Logger) *LeverAdapter {
	if baseURL == "" {
		baseURL = leverBaseURL
	}
	a := &LeverAdapter{baseURL: baseURL, client: client, logger: logger}
	a.boards = newBoardSource(a.Name(), boards, logger, a.fetchBoard)
	return a
}

func (a *LeverAdapter) Name() string { return "lever" }

// Search returns postings whose title contains every word of query.
func (a *LeverAdapter) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	return a.boards.search(ctx, query, location, limit)
}

func (a *LeverAdapter) fetchBoard(ctx context.Context, b Board) ([]model.Job, error) {
	url := fmt.Sprintf("%s/%s?mode=json", a.baseURL, b.Token)

	req, err := newGet(ctx, a.Name(), url)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := doJSON(a.client, a.Name(), req, &raw); err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", b.Token, err)
	}

	return decodeEach(raw, a.Name(), a.logger, func(lj leverJob) (model.Job, bool) {
		if lj.Text == "" {
			return model.Job{}, false
		}
		// Determine location: prefer allLocations if available, fallback to location
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}
		if lj.WorkplaceType == "remote" && !strings.Contains(strings.ToLower(location), "remote") {
			location = strings.TrimPrefix(location+", Remote", ", ")
		}

		// Convert createdAt (Unix milliseconds) to time.Time
		var postedAt *time.Time
		if lj.CreatedAt > 0 {
			t := time.UnixMilli(lj.CreatedAt)
			postedAt = &t
		}

		link := lj.ApplyURL
		if link == "" {
			link = lj.HostedURL
		}

		job := model.Job{
			ID:          lj.ID,
			Company:     b.Company,
			Title:       lj.Text,
			Location:    location,
			Description: lj.DescriptionPlain,
			URL:         link,
			PostedAt:    postedAt,
			Source:      a.Name(),
		}
		if lj.SalaryRange != nil {
			job.Salary = salaryRange(lj.SalaryRange.Min, lj.SalaryRange.Max, lj.SalaryRange.Currency)
		}
		return job, true
	}), nil
}
