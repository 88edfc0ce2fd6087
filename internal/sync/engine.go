package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/exaphy/stravasync/internal/notion"
	"github.com/exaphy/stravasync/internal/strava"
)

// Phase is the engine's position in the pipeline. A run moves strictly
// forward; Failed is reachable only while fetching or indexing, never while
// writing.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseFetchingSource Phase = "fetching_source"
	PhaseBuildingIndex  Phase = "building_index"
	PhaseReconciling    Phase = "reconciling"
	PhaseWriting        Phase = "writing"
	PhaseReporting      Phase = "reporting"
	PhaseDone           Phase = "done"
	PhaseFailed         Phase = "failed"
)

// Source produces all activities for one window. Satisfied by *strava.Client.
type Source interface {
	FetchWindow(ctx context.Context, w strava.Window) ([]strava.Activity, error)
}

// Destination is the read/write surface of the downstream database.
// Satisfied by *notion.Client.
type Destination interface {
	BuildIndex(ctx context.Context, databaseID string) (*notion.Index, error)
	Writer
}

// Summary is the outcome of a completed run. Failed entries carry the last
// error seen for that external ID.
type Summary struct {
	Window   string
	Phase    Phase
	Created  int
	Updated  int
	Skipped  int
	Failed   int
	Failures []WriteFailure
	Duration time.Duration
}

// EngineConfig holds the collaborators and tuning for NewEngine.
type EngineConfig struct {
	Source        Source
	Destination   Destination
	DatabaseID    string
	Workers       int
	WriteInterval time.Duration
	Logger        zerolog.Logger
}

// Engine drives one sync run end to end: fetch fully, index fully, reconcile,
// then write. No local state survives a run; the destination index is rebuilt
// every time so the destination stays the source of truth for idempotence.
type Engine struct {
	source     Source
	dest       Destination
	executor   *Executor
	databaseID string
	phase      Phase
	logger     zerolog.Logger
}

// NewEngine creates an engine from injected collaborators. Credentials live
// inside the collaborators; the engine itself never touches the environment.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger.With().Str("component", "engine").Logger()
	return &Engine{
		source:     cfg.Source,
		dest:       cfg.Destination,
		executor:   NewExecutor(cfg.Destination, cfg.DatabaseID, cfg.Workers, cfg.WriteInterval, cfg.Logger),
		databaseID: cfg.DatabaseID,
		phase:      PhaseIdle,
		logger:     logger,
	}
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() Phase {
	return e.phase
}

// Run synchronizes one window. Fatal source or index errors abort before any
// write is attempted; per-record write failures are accumulated into the
// summary and never abort the run.
func (e *Engine) Run(ctx context.Context, w strava.Window) (*Summary, error) {
	started := time.Now()

	e.transition(PhaseFetchingSource, w)
	activities, err := e.source.FetchWindow(ctx, w)
	if err != nil {
		e.transition(PhaseFailed, w)
		return nil, fmt.Errorf("fetching source activities: %w", err)
	}

	e.transition(PhaseBuildingIndex, w)
	index, err := e.dest.BuildIndex(ctx, e.databaseID)
	if err != nil {
		e.transition(PhaseFailed, w)
		return nil, fmt.Errorf("building destination index: %w", err)
	}

	e.transition(PhaseReconciling, w)
	decisions := Reconcile(activities, index)

	e.transition(PhaseWriting, w)
	result := e.executor.Apply(ctx, decisions)

	e.transition(PhaseReporting, w)
	summary := &Summary{
		Window:   w.Date(),
		Created:  result.Created,
		Updated:  result.Updated,
		Skipped:  result.Skipped,
		Failed:   len(result.Failures),
		Failures: result.Failures,
		Duration: time.Since(started),
	}

	e.transition(PhaseDone, w)
	summary.Phase = PhaseDone

	e.logger.Info().
		Str("window", summary.Window).
		Int("activities", len(activities)).
		Int("indexed", index.Len()).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("sync run complete")

	return summary, nil
}

func (e *Engine) transition(next Phase, w strava.Window) {
	e.logger.Info().Str("window", w.Date()).
		Str("from", string(e.phase)).Str("to", string(next)).Msg("phase transition")
	e.phase = next
}
