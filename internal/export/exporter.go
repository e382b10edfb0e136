package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pvries86/hass-ga-autoexpose/internal/exposure"
	"github.com/pvries86/hass-ga-autoexpose/internal/platform"
)

// historyTimeout bounds recording a run after the export itself finished,
// so a cancelled request still leaves a history row.
const historyTimeout = 5 * time.Second

// Recorder receives a summary of every run.
type Recorder interface {
	RecordExport(origin, status string, entities int, d time.Duration)
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures an Exporter.
type Options struct {
	Source     platform.Source
	OutputFile string

	// History is optional.
	History HistoryRepository

	// Recorders are optional.
	Recorders []Recorder

	Logger Logger
}

// Exporter resolves snapshots and writes the output file.
//
// Thread Safety:
//   - Run and Preview are safe for concurrent use; runs are serialised.
type Exporter struct {
	source     platform.Source
	outputFile string
	history    HistoryRepository
	recorders  []Recorder
	logger     Logger

	// write replaces the output file; swapped in tests.
	write func(path string, data []byte) error

	mu sync.Mutex // serialises runs

	lastMu sync.RWMutex
	last   *Run

	listenersMu sync.RWMutex
	listeners   []func(Run)
}

// New creates an Exporter.
func New(opts Options) *Exporter {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Exporter{
		source:     opts.Source,
		outputFile: opts.OutputFile,
		history:    opts.History,
		recorders:  opts.Recorders,
		logger:     logger,
		write:      WriteFileAtomic,
	}
}

// OutputFile returns the path the exporter writes to.
func (e *Exporter) OutputFile() string {
	return e.outputFile
}

// OnRun registers a callback invoked after every run, successful or not.
// Callbacks run synchronously on the exporting goroutine.
func (e *Exporter) OnRun(fn func(Run)) {
	e.listenersMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenersMu.Unlock()
}

// Last returns the most recent run, or nil before the first.
func (e *Exporter) Last() *Run {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	if e.last == nil {
		return nil
	}
	run := *e.last
	return &run
}

// Run performs one export.
//
// It fetches a snapshot, resolves it, encodes the YAML and replaces the
// output file on a separate goroutine. Cancellation is honoured until the
// write starts; once started the write is awaited and its result decides
// the run status. The run is recorded whatever the outcome. On failure the returned Run has
// status failed, the error is returned wrapped, and the previous output
// file is left in place. Callers are responsible for logging the error.
//
// Parameters:
//   - ctx: Context for cancellation
//   - origin: OriginManual or OriginAutomatic
//
// Returns:
//   - *Run: The recorded run (never nil unless origin is invalid)
//   - error: If any step failed
func (e *Exporter) Run(ctx context.Context, origin Origin) (*Run, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrigin, origin)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	run := &Run{
		ID:         newRunID(),
		Origin:     origin,
		OutputFile: e.outputFile,
		StartedAt:  time.Now().UTC(),
	}

	start := time.Now()
	entities, err := e.export(ctx)
	run.Duration = time.Since(start)
	run.Entities = entities

	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	} else {
		run.Status = StatusSuccess
		e.logger.Info("exported entities",
			"run_id", run.ID,
			"origin", string(origin),
			"entities", entities,
			"file", e.outputFile,
			"duration_ms", run.Duration.Milliseconds(),
		)
	}

	e.finish(ctx, run)

	if err != nil {
		return run, fmt.Errorf("export %s (%s): %w", run.ID, origin, err)
	}
	return run, nil
}

// Preview resolves the current snapshot without writing anything.
func (e *Exporter) Preview(ctx context.Context) (*exposure.Export, error) {
	if e.source == nil {
		return nil, ErrNoSource
	}
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return exposure.Resolve(snap), nil
}

// export does the work of a run and returns the number of entities written.
func (e *Exporter) export(ctx context.Context) (int, error) {
	result, err := e.Preview(ctx)
	if err != nil {
		return 0, err
	}

	for _, d := range result.Decisions {
		e.logger.Debug("exposure decision",
			"entity_id", d.EntityID,
			"include", d.Include,
			"reason", string(d.Reason),
		)
	}

	data, err := result.YAML()
	if err != nil {
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("before write: %w", err)
	}

	// The write may block on disk; keep it off the caller's goroutine.
	done := make(chan error, 1)
	go func() {
		done <- e.write(e.outputFile, data)
	}()

	// A started write is always awaited with the run lock held, so the
	// recorded status matches the file and a later run cannot be overtaken.
	var werr error
	select {
	case werr = <-done:
	case <-ctx.Done():
		e.logger.Warn("export cancelled during write, waiting for it to finish", "file", e.outputFile)
		werr = <-done
	}
	if werr != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, werr)
	}

	return result.Len(), nil
}

// finish records the run in history and recorders and notifies listeners.
func (e *Exporter) finish(ctx context.Context, run *Run) {
	e.lastMu.Lock()
	last := *run
	e.last = &last
	e.lastMu.Unlock()

	if e.history != nil {
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
		if err := e.history.Create(hctx, run); err != nil {
			e.logger.Warn("recording export history failed", "run_id", run.ID, "error", err)
		}
		cancel()
	}

	for _, r := range e.recorders {
		r.RecordExport(string(run.Origin), run.Status, run.Entities, run.Duration)
	}

	e.listenersMu.RLock()
	listeners := e.listeners
	e.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(*run)
	}
}
