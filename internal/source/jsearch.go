package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
)

const (
	jsearchBaseURL = "https://jsearch.p.rapidapi.com"
	jsearchHost    = "jsearch.p.rapidapi.com"
)

type jsearchJob struct {
	JobID             string  `json:"job_id"`
	JobTitle          string  `json:"job_title"`
	EmployerName      string  `json:"employer_name"`
	JobCity           string  `json:"job_city"`
	JobCountry        string  `json:"job_country"`
	JobIsRemote       bool    `json:"job_is_remote"`
	JobApplyLink      string  `json:"job_apply_link"`
	JobDescription    string  `json:"job_description"`
	PostedAtTimestamp int64   `json:"job_posted_at_timestamp"`
	MinSalary         float64 `json:"job_min_salary"`
	MaxSalary         float64 `json:"job_max_salary"`
	SalaryCurrency    string  `json:"job_salary_currency"`
}

type jsearchResponse struct {
	Data []json.RawMessage `json:"data"`
}

// JSearchAdapter searches the JSearch aggregator on RapidAPI.
type JSearchAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewJSearchAdapter creates an adapter; an empty baseURL uses the RapidAPI host.
func NewJSearchAdapter(baseURL, apiKey string, client *http.Client, logger *slog.Logger) *JSearchAdapter {
	if baseURL == "" {
		baseURL = jsearchBaseURL
	}
	return &JSearchAdapter{baseURL: baseURL, apiKey: apiKey, client: client, logger: logger}
}

func (a *JSearchAdapter) Name() string { return "jsearch" }

// Search runs a single-page "<query> in <location>" search.
func (a *JSearchAdapter) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	if a.apiKey == "" {
		return nil, &model.SourceError{Kind: model.SourceAuth, Source: a.Name(), Err: errors.New("api key is required")}
	}

	q := query
	if location != "" {
		q = query + " in " + location
	}
	params := url.Values{}
	params.Set("query", q)
	params.Set("num_pages", "1")

	req, err := newGet(ctx, a.Name(), a.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", a.apiKey)
	req.Header.Set("X-RapidAPI-Host", jsearchHost)

	var resp jsearchResponse
	if err := doJSON(a.client, a.Name(), req, &resp); err != nil {
		return nil, fmt.Errorf("jsearch search %q: %w", q, err)
	}

	jobs := decodeEach(resp.Data, a.Name(), a.logger, func(jj jsearchJob) (model.Job, bool) {
		if jj.JobTitle == "" {
			return model.Job{}, false
		}
		loc := jj.JobCity
		if loc == "" {
			loc = jj.JobCountry
		}
		if jj.JobIsRemote && !strings.Contains(strings.ToLower(loc), "remote") {
			loc = strings.TrimPrefix(loc+", Remote", ", ")
		}
		var postedAt *time.Time
		if jj.PostedAtTimestamp > 0 {
			t := time.Unix(jj.PostedAtTimestamp, 0).UTC()
			postedAt = &t
		}
		return model.Job{
			ID:          jj.JobID,
			Title:       jj.JobTitle,
			Company:     jj.EmployerName,
			Location:    loc,
			Description: jj.JobDescription,
			Salary:      salaryRange(jj.MinSalary, jj.MaxSalary, jj.SalaryCurrency),
			URL:         jj.JobApplyLink,
			PostedAt:    postedAt,
			Source:      a.Name(),
		}, true
	})

	return truncate(jobs, limit), nil
}
