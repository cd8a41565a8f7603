package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/amishk599/jobpilot/internal/model"
)

const (
	linkedinRapidBaseURL = "https://linkedin-jobs-search.p.rapidapi.com"
	linkedinRapidHost    = "linkedin-jobs-search.p.rapidapi.com"
)

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// linkedinJob covers both field spellings the API has used.
type linkedinJob struct {
	JobID          flexString `json:"job_id"`
	ID             flexString `json:"id"`
	JobTitle       string     `json:"job_title"`
	Title          string     `json:"title"`
	CompanyName    string     `json:"company_name"`
	Company        string     `json:"company"`
	JobLocation    string     `json:"job_location"`
	Location       string     `json:"location"`
	CleanURL       string     `json:"linkedin_job_url_cleaned"`
	JobURL         string     `json:"job_url"`
	URL            string     `json:"url"`
	JobDescription string     `json:"job_description"`
	Description    string     `json:"description"`
	PostedDate     string     `json:"posted_date"`
	PostedAt       string     `json:"posted_at"`
}

type linkedinRequest struct {
	SearchTerms string `json:"search_terms"`
	Location    string `json:"location"`
	Page        string `json:"page"`
}

// LinkedInRapidAdapter searches LinkedIn listings through the
// linkedin-jobs-search API on RapidAPI.
type LinkedInRapidAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewLinkedInRapidAdapter creates an adapter; an empty baseURL uses the RapidAPI host.
func NewLinkedInRapidAdapter(baseURL, apiKey string, client *http.Client, logger *slog.Logger) *LinkedInRapidAdapter {
	if baseURL == "" {
		baseURL = linkedinRapidBaseURL
	}
	return &LinkedInRapidAdapter{baseURL: baseURL, apiKey: apiKey, client: client, logger: logger}
}

func (a *LinkedInRapidAdapter) Name() string { return "linkedin" }

// Search posts a first-page search. The response is either a bare array or an
// object holding "results" or "jobs".
func (a *LinkedInRapidAdapter) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	if a.apiKey == "" {
		return nil, &model.SourceError{Kind: model.SourceAuth, Source: a.Name(), Err: errors.New("api key is required")}
	}

	req, err := newPostJSON(ctx, a.Name(), strings.TrimSuffix(a.baseURL, "/")+"/", linkedinRequest{
		SearchTerms: query,
		Location:    location,
		Page:        "1",
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", a.apiKey)
	req.Header.Set("X-RapidAPI-Host", linkedinRapidHost)

	var body json.RawMessage
	if err := doJSON(a.client, a.Name(), req, &body); err != nil {
		return nil, fmt.Errorf("linkedin search %q: %w", query, err)
	}
	raw, err := linkedinResults(body)
	if err != nil {
		return nil, &model.SourceError{Kind: model.SourceParse, Source: a.Name(), Err: err}
	}

	jobs := decodeEach(raw, a.Name(), a.logger, func(lj linkedinJob) (model.Job, bool) {
		title := first(lj.JobTitle, lj.Title)
		if title == "" {
			return model.Job{}, false
		}
		company := first(lj.CompanyName, lj.Company)
		loc := first(lj.JobLocation, lj.Location)
		id := first(string(lj.JobID), string(lj.ID))
		if id == "" {
			id = model.CompositeKey(title, company, loc)
		}
		return model.Job{
			ID:          id,
			Title:       title,
			Company:     company,
			Location:    loc,
			Description: extractText(first(lj.JobDescription, lj.Description)),
			URL:         first(lj.CleanURL, lj.JobURL, lj.URL),
			PostedAt:    parseTime(first(lj.PostedDate, lj.PostedAt)),
			Source:      a.Name(),
		}, true
	})

	return truncate(jobs, limit), nil
}

func linkedinResults(body json.RawMessage) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var obj struct {
		Results []json.RawMessage `json:"results"`
		Jobs    []json.RawMessage `json:"jobs"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if obj.Results != nil {
		return obj.Results, nil
	}
	return obj.Jobs, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
