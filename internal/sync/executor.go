package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/exaphy/stravasync/internal/notion"
)

// Writer is the destination write surface the executor needs. Satisfied by
// *notion.Client, which also owns per-request retry and backoff.
type Writer interface {
	CreatePage(ctx context.Context, databaseID string, f notion.Fields) (string, error)
	UpdatePage(ctx context.Context, pageID string, f notion.Fields) error
}

// WriteFailure records one decision that could not be applied.
type WriteFailure struct {
	ExternalID string
	Err        error
}

// Result accumulates what the executor did with a decision list.
type Result struct {
	Created  int
	Updated  int
	Skipped  int
	Failures []WriteFailure
}

// Executor applies reconciliation decisions to the destination. Writes are
// fanned out across a bounded worker pool over distinct external IDs, with a
// single token bucket enforcing the destination rate limit in aggregate. A
// failed write never aborts the run; it is recorded and the rest proceed.
type Executor struct {
	writer     Writer
	databaseID string
	workers    int
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewExecutor creates an executor writing into databaseID. writeInterval is
// the minimum average spacing between writes across all workers.
func NewExecutor(writer Writer, databaseID string, workers int, writeInterval time.Duration, logger zerolog.Logger) *Executor {
	if workers < 1 {
		workers = 1
	}
	if writeInterval <= 0 {
		writeInterval = time.Millisecond
	}
	return &Executor{
		writer:     writer,
		databaseID: databaseID,
		workers:    workers,
		limiter:    rate.NewLimiter(rate.Every(writeInterval), 1),
		logger:     logger.With().Str("component", "executor").Logger(),
	}
}

// Apply executes every decision. Skips are counted without touching the
// destination. On cancellation no new writes are issued; in-flight writes
// finish and everything left unattempted is accounted as failed so the
// summary always adds up.
func (e *Executor) Apply(ctx context.Context, decisions []Decision) Result {
	var result Result

	pending := make([]Decision, 0, len(decisions))
	for _, d := range decisions {
		if d.Kind == DecisionSkip {
			result.Skipped++
			continue
		}
		pending = append(pending, d)
	}
	if len(pending) == 0 {
		return result
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan Decision)
	)

	workers := e.workers
	if workers > len(pending) {
		workers = len(pending)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				outcome, err := e.applyOne(ctx, d)

				mu.Lock()
				switch {
				case err != nil:
					result.Failures = append(result.Failures, WriteFailure{ExternalID: d.ExternalID, Err: err})
				case outcome == DecisionCreate:
					result.Created++
				default:
					result.Updated++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for i, d := range pending {
		select {
		case jobs <- d:
		case <-ctx.Done():
			mu.Lock()
			for _, rest := range pending[i:] {
				result.Failures = append(result.Failures, WriteFailure{ExternalID: rest.ExternalID, Err: ctx.Err()})
			}
			mu.Unlock()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return result
}

// applyOne waits for a rate token, then issues the single write.
func (e *Executor) applyOne(ctx context.Context, d Decision) (DecisionKind, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return d.Kind, err
	}

	switch d.Kind {
	case DecisionCreate:
		pageID, err := e.writer.CreatePage(ctx, e.databaseID, d.Fields)
		if err != nil {
			e.logger.Warn().Str("strava_id", d.ExternalID).Err(err).Msg("create failed")
			return d.Kind, err
		}
		e.logger.Debug().Str("strava_id", d.ExternalID).Str("page_id", pageID).Msg("created page")
		return DecisionCreate, nil
	default:
		if err := e.writer.UpdatePage(ctx, d.PageID, d.Fields); err != nil {
			e.logger.Warn().Str("strava_id", d.ExternalID).Str("page_id", d.PageID).Err(err).Msg("update failed")
			return d.Kind, err
		}
		e.logger.Debug().Str("strava_id", d.ExternalID).Str("page_id", d.PageID).Msg("updated page")
		return DecisionUpdate, nil
	}
}
