package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/pvries86/hass-ga-autoexpose/internal/export"
	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/metrics"
	"github.com/pvries86/hass-ga-autoexpose/internal/notify"
	"github.com/pvries86/hass-ga-autoexpose/internal/platform"
)

// DefaultQueueSize is the event buffer used when Options.QueueSize is zero.
const DefaultQueueSize = 64

// Exporter is the subset of export.Exporter the trigger drives.
type Exporter interface {
	Run(ctx context.Context, origin export.Origin) (*export.Run, error)
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

// Options configures a Trigger.
type Options struct {
	Exporter Exporter
	Debounce time.Duration

	// Notifier may be nil to disable notifications.
	Notifier     notify.Notifier
	Notification notify.Notification

	QueueSize int
	Logger    Logger
}

// State is a point-in-time view of the trigger.
type State struct {
	Pending   bool          `json:"pending"`
	Deadline  time.Time     `json:"deadline,omitzero"`
	LastEvent time.Time     `json:"last_event,omitzero"`
	Debounce  time.Duration `json:"-"`
	Dropped   int           `json:"dropped_events"`
}

// Trigger schedules automatic exports after registry changes settle.
//
// Thread Safety:
//   - Notify, ExportNow, Pending and State are safe for concurrent use.
//   - Run must be called once.
type Trigger struct {
	exporter     Exporter
	debounce     time.Duration
	notifier     notify.Notifier
	notification notify.Notification
	logger       Logger

	events chan platform.RegistryEvent

	mu    sync.RWMutex
	state State

	workers sync.WaitGroup
}

// New creates a Trigger. Call Run to start processing events.
func New(opts Options) *Trigger {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Trigger{
		exporter:     opts.Exporter,
		debounce:     opts.Debounce,
		notifier:     opts.Notifier,
		notification: opts.Notification,
		logger:       logger,
		events:       make(chan platform.RegistryEvent, size),
		state:        State{Debounce: opts.Debounce},
	}
}

// Notify queues a registry event without blocking. When the queue is full
// the event is dropped; the queued events already re-arm the timer. If the
// dropped event was the last of a burst, the delay counts from the last
// queued event, which is earlier than the burst's final event.
func (t *Trigger) Notify(ev platform.RegistryEvent) {
	select {
	case t.events <- ev:
	default:
		t.mu.Lock()
		t.state.Dropped++
		t.mu.Unlock()
		t.logger.Warn("registry event queue full, dropping event",
			"action", ev.Action, "entity_id", ev.EntityID, "source", ev.Source)
	}
}

// Run processes events until ctx is cancelled. A pending export is
// cancelled on shutdown; Run returns after in-flight exports finish.
func (t *Trigger) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		t.setIdle()
		t.workers.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				t.logger.Info("pending export cancelled by shutdown")
			}
			return nil

		case ev := <-t.events:
			arms := ev.ArmsExport()
			metrics.RecordRegistryEvent(ev.Action, arms)
			if !arms {
				t.logger.Debug("registry event ignored", "action", ev.Action, "entity_id", ev.EntityID)
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(t.debounce)
			fire = timer.C
			t.setPending(time.Now())

			t.logger.Debug("export scheduled",
				"action", ev.Action,
				"entity_id", ev.EntityID,
				"source", ev.Source,
				"debounce", t.debounce.String(),
			)

		case <-fire:
			timer, fire = nil, nil
			t.setIdle()

			t.workers.Add(1)
			go func() {
				defer t.workers.Done()
				t.runAutomatic(ctx)
			}()
		}
	}
}

// ExportNow runs a manual export immediately. It does not touch a pending
// automatic export and never notifies.
func (t *Trigger) ExportNow(ctx context.Context) (*export.Run, error) {
	run, err := t.exporter.Run(ctx, export.OriginManual)
	if err != nil {
		t.logger.Error("manual export failed", "error", err)
		return run, err
	}
	return run, nil
}

// Pending reports whether an automatic export is scheduled.
func (t *Trigger) Pending() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Pending
}

// State returns a copy of the current trigger state.
func (t *Trigger) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Trigger) runAutomatic(ctx context.Context) {
	run, err := t.exporter.Run(ctx, export.OriginAutomatic)
	if err != nil {
		t.logger.Error("automatic export failed", "error", err)
		return
	}

	if t.notifier == nil {
		return
	}
	if err := t.notifier.Notify(ctx, t.notification); err != nil {
		t.logger.Warn("export notification failed", "run_id", run.ID, "error", err)
		return
	}
	t.logger.Debug("export notification sent", "run_id", run.ID, "notification_id", t.notification.ID)
}

func (t *Trigger) setPending(now time.Time) {
	t.mu.Lock()
	t.state.Pending = true
	t.state.LastEvent = now
	t.state.Deadline = now.Add(t.debounce)
	t.mu.Unlock()
}

func (t *Trigger) setIdle() {
	t.mu.Lock()
	t.state.Pending = false
	t.state.Deadline = time.Time{}
	t.mu.Unlock()
}
