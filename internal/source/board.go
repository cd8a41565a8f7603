package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
	"github.com/amishk599/jobpilot/internal/retry"
)

// Board identifies one company job board on an ATS (Greenhouse, Lever, Ashby).
type Board struct {
	Token   string // board token or company slug
	Company string // display name
}

// boardCacheTTL keeps a board listing for the duration of a run so that
// several role queries do not refetch the same board.
const boardCacheTTL = 10 * time.Minute

type boardEntry struct {
	jobs    []model.Job
	fetched time.Time
}

// boardSource turns whole-board ATS listings into a query-able source by
// caching each board and filtering it client-side.
type boardSource struct {
	name   string
	boards []Board
	list   func(ctx context.Context, b Board) ([]model.Job, error)
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]boardEntry
	now   func() time.Time
}

func newBoardSource(name string, boards []Board, logger *slog.Logger, list func(ctx context.Context, b Board) ([]model.Job, error)) *boardSource {
	return &boardSource{
		name:   name,
		boards: boards,
		list:   list,
		logger: logger,
		cache:  make(map[string]boardEntry),
		now:    time.Now,
	}
}

func (s *boardSource) listing(ctx context.Context, b Board) ([]model.Job, error) {
	s.mu.Lock()
	entry, ok := s.cache[b.Token]
	s.mu.Unlock()
	if ok && s.now().Sub(entry.fetched) < boardCacheTTL {
		return entry.jobs, nil
	}

	jobs, err := s.list(ctx, b)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[b.Token] = boardEntry{jobs: jobs, fetched: s.now()}
	s.mu.Unlock()
	return jobs, nil
}

// search filters every board by query and location. Transient failures are
// returned so the caller can retry (cached boards are not refetched);
// permanent failures of a single board are logged and the board is skipped
// unless every board failed.
func (s *boardSource) search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	var out []model.Job
	var lastErr error
	listed := 0
	for _, b := range s.boards {
		jobs, err := s.listing(ctx, b)
		if err != nil {
			if retry.SourceRetryable(err) {
				return nil, err
			}
			s.logger.Warn("skipping board", "source", s.name, "board", b.Token, "error", err)
			lastErr = err
			continue
		}
		listed++
		for _, j := range jobs {
			if matchesQuery(j.Title, query) && matchesLocation(j.Location, location) {
				out = append(out, j)
			}
		}
	}
	if listed == 0 && lastErr != nil {
		return nil, lastErr
	}
	return truncate(out, limit), nil
}
