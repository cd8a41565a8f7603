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
	"strings"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
)

const serpapiBaseURL = "https://serpapi.com"

type serpapiLink struct {
	Link string `json:"link"`
}

type serpapiJob struct {
	JobID              string        `json:"job_id"`
	Title              string        `json:"title"`
	CompanyName        string        `json:"company_name"`
	Location           string        `json:"location"`
	Description        string        `json:"description"`
	ApplyOptions       []serpapiLink `json:"apply_options"`
	RelatedLinks       []serpapiLink `json:"related_links"`
	ShareLink          string        `json:"share_link"`
	DetectedExtensions struct {
		PostedAt string `json:"posted_at"`
	} `json:"detected_extensions"`
}

// applyURL picks the first direct apply link, then any related link, then the
// Google share link.
func (j serpapiJob) applyURL() string {
	for _, opts := range [][]serpapiLink{j.ApplyOptions, j.RelatedLinks} {
		for _, o := range opts {
			if o.Link != "" {
				return o.Link
			}
		}
	}
	return j.ShareLink
}

type serpapiResponse struct {
	Error       string            `json:"error"`
	JobsResults []json.RawMessage `json:"jobs_results"`
}

// SerpAPIAdapter searches Google Jobs through SerpAPI.
type SerpAPIAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewSerpAPIAdapter creates an adapter; an empty baseURL uses serpapi.com.
func NewSerpAPIAdapter(baseURL, apiKey string, client *http.Client, logger *slog.Logger) *SerpAPIAdapter {
	if baseURL == "" {
		baseURL = serpapiBaseURL
	}
	return &SerpAPIAdapter{baseURL: baseURL, apiKey: apiKey, client: client, logger: logger, now: time.Now}
}

func (a *SerpAPIAdapter) Name() string { return "serpapi" }

// Search runs one google_jobs query. SerpAPI reports failures such as an
// exhausted plan in the body of a 200 response.
func (a *SerpAPIAdapter) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	if a.apiKey == "" {
		return nil, &model.SourceError{Kind: model.SourceAuth, Source: a.Name(), Err: errors.New("api key is required")}
	}

	params := url.Values{}
	params.Set("engine", "google_jobs")
	params.Set("q", query)
	if location != "" {
		params.Set("location", location)
	}
	params.Set("api_key", a.apiKey)

	req, err := newGet(ctx, a.Name(), a.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp serpapiResponse
	if err := doJSON(a.client, a.Name(), req, &resp); err != nil {
		return nil, fmt.Errorf("serpapi search %q: %w", query, err)
	}
	if resp.Error != "" && len(resp.JobsResults) == 0 {
		// "Google hasn't returned any results" is an empty page, not a failure.
		if strings.Contains(strings.ToLower(resp.Error), "any results") {
			return nil, nil
		}
		return nil, &model.SourceError{Kind: model.SourceNetwork, Source: a.Name(), Err: errors.New(resp.Error)}
	}

	now := a.now()
	jobs := decodeEach(resp.JobsResults, a.Name(), a.logger, func(sj serpapiJob) (model.Job, bool) {
		if sj.Title == "" {
			return model.Job{}, false
		}
		id := sj.JobID
		if id == "" {
			id = model.CompositeKey(sj.Title, sj.CompanyName, sj.Location)
		}
		return model.Job{
			ID:          id,
			Title:       sj.Title,
			Company:     sj.CompanyName,
			Location:    sj.Location,
			Description: sj.Description,
			URL:         sj.applyURL(),
			PostedAt:    parseRelativeAge(sj.DetectedExtensions.PostedAt, now),
			Source:      a.Name(),
		}, true
	})

	return truncate(jobs, limit), nil
}

// parseRelativeAge turns Google's "3 days ago" style ages into a timestamp.
// Unrecognised values return nil.
func parseRelativeAge(s string, now time.Time) *time.Time {
	f := strings.Fields(strings.ToLower(s))
	if len(f) < 2 {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(f[0], "+"))
	if err != nil {
		if f[0] != "a" && f[0] != "an" {
			return nil
		}
		n = 1
	}
	var unit time.Duration
	switch strings.TrimSuffix(f[1], "s") {
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "month":
		unit = 30 * 24 * time.Hour
	default:
		return nil
	}
	t := now.Add(-time.Duration(n) * unit).UTC()
	return &t
}
