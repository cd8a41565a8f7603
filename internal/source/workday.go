package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/retry"
)

const workdayPageSize = 20

// workdayListingResponse is the response from the Workday jobs listing endpoint.
type workdayListingResponse struct {
	Total       int              `json:"total"`
	JobPostings []workdayListing `json:"jobPostings"`
}

type workdayListing struct {
	Title         string `json:"title"`
	ExternalPath  string `json:"externalPath"`
	LocationsText string `json:"locationsText"`
	PostedOn      string `json:"postedOn"`
}

// workdayListingRequest is the POST body for the Workday jobs listing endpoint.
type workdayListingRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

// workdayDetailResponse is the response from the Workday job detail endpoint.
type workdayDetailResponse struct {
	JobPostingInfo workdayJobDetail `json:"jobPostingInfo"`
}

type workdayJobDetail struct {
	JobReqID            string   `json:"jobReqId"`
	Title               string   `json:"title"`
	Location            string   `json:"location"`
	PostedOn            string   `json:"postedOn"`
	StartDate           string   `json:"startDate"`
	ExternalURL         string   `json:"externalUrl"`
	JobDescription      string   `json:"jobDescription"`
	AdditionalLocations []string `json:"additionalLocations"`
}

// WorkdayAdapter searches Workday career sites. Each Board token is the
// site's CXS base URL, e.g.
// https://acme.wd5.myworkdayjobs.com/wday/cxs/acme/External.
// Unlike the other boards, Workday filters by query server-side.
type WorkdayAdapter struct {
	sites  []Board
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewWorkdayAdapter creates an adapter over the given career sites.
func NewWorkdayAdapter(sites []Board, client *http.Client, logger *slog.Logger) *WorkdayAdapter {
	return &WorkdayAdapter{sites: sites, client: client, logger: logger, now: time.Now}
}

func (a *WorkdayAdapter) Name() string { return "workday" }

// Search queries every site with query as search text, then fetches the
// detail of each listing in location. A site that fails permanently is
// skipped unless every site failed.
func (a *WorkdayAdapter) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	var out []model.Job
	var lastErr error
	searched := 0
	for _, site := range a.sites {
		jobs, err := a.searchSite(ctx, site, query, location, limit)
		if err != nil {
			if retry.SourceRetryable(err) {
				return nil, err
			}
			a.logger.Warn("skipping board", "source", a.Name(), "board", site.Token, "error", err)
			lastErr = err
			continue
		}
		searched++
		out = append(out, jobs...)
	}
	if searched == 0 && lastErr != nil {
		return nil, lastErr
	}
	return truncate(out, limit), nil
}

func (a *WorkdayAdapter) searchSite(ctx context.Context, site Board, query, location string, limit int) ([]model.Job, error) {
	base := strings.TrimRight(site.Token, "/")
	listings, err := a.fetchListings(ctx, base, query, limit)
	if err != nil {
		return nil, fmt.Errorf("workday listing fetch for %s: %w", site.Company, err)
	}

	var jobs []model.Job
	for _, l := range listings {
		if !isAmbiguousLocation(l.LocationsText) && !matchesLocation(l.LocationsText, location) {
			continue
		}
		job, err := a.fetchDetail(ctx, base, site.Company, l)
		if err != nil {
			if retry.SourceRetryable(err) {
				return nil, err
			}
			a.logger.Debug("skipping workday posting", "company", site.Company, "path", l.ExternalPath, "error", err)
			continue
		}
		if !matchesLocation(job.Location, location) {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// fetchListings pages through POST /jobs until limit listings are collected
// or the site has no more.
func (a *WorkdayAdapter) fetchListings(ctx context.Context, base, query string, limit int) ([]workdayListing, error) {
	var all []workdayListing
	for offset := 0; ; offset += workdayPageSize {
		body, err := json.Marshal(workdayListingRequest{
			AppliedFacets: map[string]any{},
			Limit:         workdayPageSize,
			Offset:        offset,
			SearchText:    query,
		})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/jobs", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", a.Name(), err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		var page workdayListingResponse
		if err := doJSON(a.client, a.Name(), req, &page); err != nil {
			return nil, err
		}
		all = append(all, page.JobPostings...)

		if len(page.JobPostings) == 0 || offset+workdayPageSize >= page.Total {
			return all, nil
		}
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
	}
}

func (a *WorkdayAdapter) fetchDetail(ctx context.Context, base, company string, listing workdayListing) (model.Job, error) {
	url := base + "/" + strings.TrimLeft(listing.ExternalPath, "/")
	req, err := newGet(ctx, a.Name(), url)
	if err != nil {
		return model.Job{}, err
	}

	var detail workdayDetailResponse
	if err := doJSON(a.client, a.Name(), req, &detail); err != nil {
		return model.Job{}, err
	}
	info := detail.JobPostingInfo

	location := info.Location
	if location == "" {
		location = listing.LocationsText
	}
	if len(info.AdditionalLocations) > 0 {
		location = location + "; " + strings.Join(info.AdditionalLocations, "; ")
	}
	id := info.JobReqID
	if id == "" {
		id = listing.ExternalPath
	}
	title := info.Title
	if title == "" {
		title = listing.Title
	}

	job := model.Job{
		ID:          id,
		Company:     company,
		Title:       title,
		Location:    location,
		Description: extractText(info.JobDescription),
		URL:         info.ExternalURL,
		Source:      a.Name(),
	}

	// Prefer startDate (format "2006-01-02"), fall back to postedOn parsing
	if info.StartDate != "" {
		if t, err := time.Parse("2006-01-02", info.StartDate); err == nil {
			job.PostedAt = &t
		}
	}
	if job.PostedAt == nil {
		postedOn := info.PostedOn
		if postedOn == "" {
			postedOn = listing.PostedOn
		}
		job.PostedAt = parsePostedOn(postedOn, a.now())
	}
	return job, nil
}

var ambiguousLocationRegex = regexp.MustCompile(`^\d+ Locations?$`)

// isAmbiguousLocation returns true for Workday location strings like
// "2 Locations" where the actual location is only known after the detail fetch.
func isAmbiguousLocation(loc string) bool {
	return ambiguousLocationRegex.MatchString(loc)
}

var daysAgoRegex = regexp.MustCompile(`^Posted (\d+)\+? Days? Ago$`)

// parsePostedOn converts a Workday relative date string to an approximate timestamp.
func parsePostedOn(postedOn string, now time.Time) *time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch postedOn {
	case "Posted Today":
		return &today
	case "Posted Yesterday":
		t := today.AddDate(0, 0, -1)
		return &t
	}

	m := daysAgoRegex.FindStringSubmatch(postedOn)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	t := today.AddDate(0, 0, -n)
	return &t
}
