package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/retry"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 8 << 20

// doJSON performs req and decodes a JSON body into out, classifying failures
// into SourceError kinds.
func doJSON(client *http.Client, source string, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &model.SourceError{Kind: model.SourceNetwork, Source: source, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(source, resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &model.SourceError{Kind: model.SourceNetwork, Source: source, Err: fmt.Errorf("read body: %w", err)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &model.SourceError{Kind: model.SourceParse, Source: source, Err: err}
	}
	return nil
}

func classifyStatus(source string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &model.SourceError{
			Kind:   model.SourceAuth,
			Source: source,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &model.SourceError{
			Kind:       model.SourceRateLimit,
			Source:     source,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	case resp.StatusCode >= 500:
		return &model.SourceError{
			Kind:   model.SourceNetwork,
			Source: source,
			Err: &model.HTTPError{
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
			},
		}
	default:
		// Other 4xx responses mean the request itself is malformed; retrying will not help.
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: unexpected status %d", source, resp.StatusCode),
		}
	}
}

// decodeEach decodes every raw record with fn, skipping (and logging) records
// that fail to parse so one bad posting does not sink the batch.
func decodeEach[T any](raw []json.RawMessage, source string, logger *slog.Logger, fn func(T) (model.Job, bool)) []model.Job {
	jobs := make([]model.Job, 0, len(raw))
	for i, r := range raw {
		var rec T
		if err := json.Unmarshal(r, &rec); err != nil {
			logger.Debug("skipping malformed record", "source", source, "index", i, "error", err)
			continue
		}
		job, ok := fn(rec)
		if !ok {
			logger.Debug("skipping incomplete record", "source", source, "index", i)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func newGet(ctx context.Context, source, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", source, err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func newPostJSON(ctx context.Context, source, rawURL string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", source, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", source, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
