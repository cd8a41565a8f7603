package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/amishk599/jobpilot/internal/model"
)

const adzunaBaseURL = "https://api.adzuna.com/v1/api/jobs"

type adzunaJob struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Company struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
	Description string  `json:"description"`
	RedirectURL string  `json:"redirect_url"`
	Created     string  `json:"created"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
}

type adzunaResponse struct {
	Results []json.RawMessage `json:"results"`
}

// AdzunaAdapter searches the Adzuna aggregator API.
type AdzunaAdapter struct {
	baseURL  string
	country  string
	appID    string
	appKey   string
	currency string
	client   *http.Client
	logger   *slog.Logger
}

// NewAdzunaAdapter creates an adapter for one Adzuna country index (e.g. "in").
func NewAdzunaAdapter(baseURL, country, appID, appKey, currency string, client *http.Client, logger *slog.Logger) *AdzunaAdapter {
	if baseURL == "" {
		baseURL = adzunaBaseURL
	}
	if country == "" {
		country = "in"
	}
	return &AdzunaAdapter{
		baseURL:  baseURL,
		country:  country,
		appID:    appID,
		appKey:   appKey,
		currency: currency,
		client:   client,
		logger:   logger,
	}
}

func (a *AdzunaAdapter) Name() string { return "adzuna" }

// Search fetches the first results page for query in location.
func (a *AdzunaAdapter) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	if a.appID == "" || a.appKey == "" {
		return nil, &model.SourceError{Kind: model.SourceAuth, Source: a.Name(), Err: errors.New("app_id and app_key are required")}
	}

	perPage := limit
	if perPage <= 0 || perPage > 50 {
		perPage = 20
	}
	params := url.Values{}
	params.Set("app_id", a.appID)
	params.Set("app_key", a.appKey)
	params.Set("what", query)
	params.Set("results_per_page", strconv.Itoa(perPage))
	params.Set("content-type", "application/json")
	if location != "" {
		params.Set("where", location)
	}

	endpoint := fmt.Sprintf("%s/%s/search/1?%s", a.baseURL, a.country, params.Encode())
	req, err := newGet(ctx, a.Name(), endpoint)
	if err != nil {
		return nil, err
	}

	var resp adzunaResponse
	if err := doJSON(a.client, a.Name(), req, &resp); err != nil {
		return nil, fmt.Errorf("adzuna search %q in %q: %w", query, location, err)
	}

	jobs := decodeEach(resp.Results, a.Name(), a.logger, func(aj adzunaJob) (model.Job, bool) {
		if aj.Title == "" {
			return model.Job{}, false
		}
		return model.Job{
			ID:          aj.ID,
			Title:       extractText(aj.Title),
			Company:     aj.Company.DisplayName,
			Location:    aj.Location.DisplayName,
			Description: extractText(aj.Description),
			Salary:      salaryRange(aj.SalaryMin, aj.SalaryMax, a.currency),
			URL:         aj.RedirectURL,
			PostedAt:    parseTime(aj.Created),
			Source:      a.Name(),
		}, true
	})

	return truncate(jobs, limit), nil
}
