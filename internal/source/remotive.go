package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/amishk599/jobpilot/internal/model"
)

const remotiveBaseURL = "https://remotive.com/api/remote-jobs"

// remotiveJob represents a single job in the Remotive API response.
type remotiveJob struct {
	ID                        int64    `json:"id"`
	URL                       string   `json:"url"`
	Title                     string   `json:"title"`
	CompanyName               string   `json:"company_name"`
	CandidateRequiredLocation string   `json:"candidate_required_location"`
	Description               string   `json:"description"`
	PublicationDate           string   `json:"publication_date"`
	Tags                      []string `json:"tags"`
}

type remotiveResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

// RemotiveAdapter searches the free Remotive remote-jobs API. Every posting is
// remote and the API has no location filter, so the location argument is ignored.
type RemotiveAdapter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRemotiveAdapter creates an adapter; an empty baseURL uses the public API.
func NewRemotiveAdapter(baseURL string, client *http.Client, logger *slog.Logger) *RemotiveAdapter {
	if baseURL == "" {
		baseURL = remotiveBaseURL
	}
	return &RemotiveAdapter{baseURL: baseURL, client: client, logger: logger}
}

func (a *RemotiveAdapter) Name() string { return "remotive" }

// IgnoresLocation reports that results are the same for every location.
func (a *RemotiveAdapter) IgnoresLocation() bool { return true }

// Search queries Remotive for query and normalizes results into the unified Job model.
func (a *RemotiveAdapter) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	params := url.Values{}
	params.Set("search", remotiveTerm(query))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	req, err := newGet(ctx, a.Name(), a.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp remotiveResponse
	if err := doJSON(a.client, a.Name(), req, &resp); err != nil {
		return nil, fmt.Errorf("remotive search %q: %w", query, err)
	}

	jobs := decodeEach(resp.Jobs, a.Name(), a.logger, func(rj remotiveJob) (model.Job, bool) {
		if rj.Title == "" || rj.CompanyName == "" {
			return model.Job{}, false
		}
		desc := extractText(rj.Description)
		if len(rj.Tags) > 0 {
			desc += " " + strings.Join(rj.Tags, " ")
		}
		loc := "Remote"
		if rj.CandidateRequiredLocation != "" {
			loc = "Remote, " + rj.CandidateRequiredLocation
		}
		return model.Job{
			ID:          strconv.FormatInt(rj.ID, 10),
			Title:       rj.Title,
			Company:     rj.CompanyName,
			Location:    loc,
			Description: desc,
			URL:         rj.URL,
			PostedAt:    parseTime(rj.PublicationDate),
			Source:      a.Name(),
		}, true
	})

	return truncate(jobs, limit), nil
}

// remotiveTerm shortens a role title to its most distinctive word; Remotive's
// search works best with short, broad terms rather than full titles.
func remotiveTerm(query string) string {
	generic := map[string]bool{
		"senior": true, "junior": true, "lead": true, "staff": true, "principal": true,
		"manager": true, "engineer": true, "specialist": true, "consultant": true,
		"ii": true, "iii": true, "iv": true,
	}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if !generic[w] {
			return w
		}
	}
	return strings.TrimSpace(query)
}
