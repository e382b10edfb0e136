package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pvries86/hass-ga-autoexpose/internal/platform"
)

// fakeSource returns a fixed snapshot or error.
type fakeSource struct {
	snap *platform.Snapshot
	err  error
}

func (f *fakeSource) Snapshot(ctx context.Context) (*platform.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.snap, f.err
}

// memoryHistory is an in-memory HistoryRepository.
type memoryHistory struct {
	mu   sync.Mutex
	runs []Run
}

func (m *memoryHistory) Create(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memoryHistory) List(_ context.Context, _ int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Run(nil), m.runs...), nil
}

// countingRecorder counts RecordExport calls by status.
type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) RecordExport(_, status string, _ int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[status]++
}

func kitchenSnapshot() *platform.Snapshot {
	return &platform.Snapshot{
		Settings: platform.AssistantSettings{
			{EntityID: "light.kitchen", ShouldExpose: platform.ExposeTrue},
			{EntityID: "sensor.internal", ShouldExpose: platform.ExposeUnset},
		},
		Entities: map[string]platform.RegistryEntry{
			"light.kitchen": {EntityID: "light.kitchen", Name: "Kitchen", Aliases: []string{"Kitchen Light"}, AreaID: "kitchen"},
		},
		Areas: map[string]platform.AreaEntry{"kitchen": {ID: "kitchen", Name: "Kitchen"}},
	}
}

func newTestExporter(t *testing.T, src platform.Source) (*Exporter, *memoryHistory, *countingRecorder, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "exposed.yaml")
	hist := &memoryHistory{}
	rec := &countingRecorder{}
	e := New(Options{
		Source:     src,
		OutputFile: out,
		History:    hist,
		Recorders:  []Recorder{rec},
	})
	return e, hist, rec, out
}

func TestExporter_Run(t *testing.T) {
	e, hist, rec, out := newTestExporter(t, &fakeSource{snap: kitchenSnapshot()})

	var notified []Run
	e.OnRun(func(r Run) { notified = append(notified, r) })

	run, err := e.Run(context.Background(), OriginManual)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !run.Succeeded() || run.Entities != 1 || run.Origin != OriginManual {
		t.Errorf("run = %+v", run)
	}
	if !strings.HasPrefix(run.ID, "exp-") || len(run.ID) != len("exp-")+8 {
		t.Errorf("run ID = %q", run.ID)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), "light.kitchen:") || strings.Contains(string(data), "sensor.internal") {
		t.Errorf("output =\n%s", data)
	}
	if !strings.Contains(string(data), "room: Kitchen") {
		t.Errorf("output missing room:\n%s", data)
	}

	if len(hist.runs) != 1 || hist.runs[0].ID != run.ID {
		t.Errorf("history = %+v", hist.runs)
	}
	if rec.counts[StatusSuccess] != 1 {
		t.Errorf("recorder counts = %v", rec.counts)
	}
	if len(notified) != 1 {
		t.Errorf("OnRun callbacks = %d, want 1", len(notified))
	}
	if last := e.Last(); last == nil || last.ID != run.ID {
		t.Errorf("Last() = %+v", last)
	}
}

func TestExporter_Run_SettingsUnavailable(t *testing.T) {
	src := &fakeSource{err: platform.ErrSettingsUnavailable}
	e, hist, rec, out := newTestExporter(t, src)

	run, err := e.Run(context.Background(), OriginAutomatic)
	if !errors.Is(err, platform.ErrSettingsUnavailable) {
		t.Fatalf("Run() error = %v, want ErrSettingsUnavailable", err)
	}
	if run == nil || run.Succeeded() || run.Error == "" {
		t.Errorf("run = %+v, want failed run", run)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("output file exists after failed run: %v", statErr)
	}
	if len(hist.runs) != 1 || hist.runs[0].Status != StatusFailed {
		t.Errorf("history = %+v, want one failed run", hist.runs)
	}
	if rec.counts[StatusFailed] != 1 {
		t.Errorf("recorder counts = %v", rec.counts)
	}
}

func TestExporter_Run_WriteFailureKeepsPrevious(t *testing.T) {
	e, _, _, out := newTestExporter(t, &fakeSource{snap: kitchenSnapshot()})
	if err := os.WriteFile(out, []byte("previous: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	e.write = func(string, []byte) error { return errors.New("disk full") }

	_, err := e.Run(context.Background(), OriginManual)
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("Run() error = %v, want ErrWriteFailed", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "previous: {}\n" {
		t.Errorf("output changed to %q", data)
	}
}

func TestExporter_Run_CancelledDuringWrite(t *testing.T) {
	e, hist, _, out := newTestExporter(t, &fakeSource{snap: kitchenSnapshot()})
	if err := os.WriteFile(out, []byte("previous\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	e.write = func(path string, data []byte) error {
		close(started)
		<-release
		return WriteFileAtomic(path, data)
	}

	type result struct {
		run *Run
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := e.Run(ctx, OriginManual)
		done <- result{run, err}
	}()

	<-started
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned before the started write finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	res := <-done
	if res.err != nil {
		t.Fatalf("Run() error = %v", res.err)
	}
	if res.run.Status != StatusSuccess || res.run.Entities != 1 {
		t.Errorf("run = %+v, want success with 1 entity", res.run)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "light.kitchen:") {
		t.Errorf("output = %q, want new export", data)
	}
	if len(hist.runs) != 1 || hist.runs[0].Status != StatusSuccess {
		t.Errorf("history = %+v, want one success", hist.runs)
	}
}

func TestExporter_Run_CancelledBeforeWrite(t *testing.T) {
	e, hist, _, out := newTestExporter(t, &fakeSource{snap: kitchenSnapshot()})
	if err := os.WriteFile(out, []byte("previous\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := e.Run(ctx, OriginManual)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if run.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", run.Status)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "previous\n" {
		t.Errorf("output changed to %q", data)
	}
	if len(hist.runs) != 1 || hist.runs[0].Status != StatusFailed {
		t.Errorf("history = %+v, want one failure", hist.runs)
	}
}

func TestExporter_Run_Idempotent(t *testing.T) {
	e, _, _, out := newTestExporter(t, &fakeSource{snap: kitchenSnapshot()})

	if _, err := e.Run(context.Background(), OriginManual); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(context.Background(), OriginManual); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("outputs differ:\n%s\nvs\n%s", first, second)
	}
}

func TestExporter_Run_InvalidOrigin(t *testing.T) {
	e, hist, _, _ := newTestExporter(t, &fakeSource{snap: kitchenSnapshot()})

	if _, err := e.Run(context.Background(), Origin("cron")); !errors.Is(err, ErrInvalidOrigin) {
		t.Errorf("Run() error = %v, want ErrInvalidOrigin", err)
	}
	if len(hist.runs) != 0 {
		t.Error("invalid origin was recorded")
	}
}

func TestExporter_Run_NoSource(t *testing.T) {
	e, _, _, _ := newTestExporter(t, nil)

	if _, err := e.Run(context.Background(), OriginManual); !errors.Is(err, ErrNoSource) {
		t.Errorf("Run() error = %v, want ErrNoSource", err)
	}
}

func TestExporter_Run_Serialised(t *testing.T) {
	e, hist, _, _ := newTestExporter(t, &fakeSource{snap: kitchenSnapshot()})

	var active, maxActive int
	var mu sync.Mutex
	e.write = func(path string, data []byte) error {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return WriteFileAtomic(path, data)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			origin := OriginManual
			if i%2 == 0 {
				origin = OriginAutomatic
			}
			if _, err := e.Run(context.Background(), origin); err != nil {
				t.Errorf("Run() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent writes = %d, want 1", maxActive)
	}
	if len(hist.runs) != 5 {
		t.Errorf("history runs = %d, want 5", len(hist.runs))
	}
}

func TestExporter_Preview(t *testing.T) {
	e, _, _, out := newTestExporter(t, &fakeSource{snap: kitchenSnapshot()})

	result, err := e.Preview(context.Background())
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if result.Len() != 1 || len(result.Decisions) != 2 {
		t.Errorf("Preview() = %d entries, %d decisions", result.Len(), len(result.Decisions))
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("Preview() wrote the output file")
	}
}

func TestRun_MarshalJSON(t *testing.T) {
	run := Run{ID: "exp-12345678", Origin: OriginManual, Status: StatusSuccess, Duration: 1500 * time.Millisecond}

	data, err := run.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	for _, want := range []string{`"id":"exp-12345678"`, `"origin":"manual"`, `"duration_ms":1500`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("JSON %s missing %s", data, want)
		}
	}
}
