package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pvries86/hass-ga-autoexpose/internal/infrastructure/config"
)

// testConfig returns a configuration for a local InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "autoexpose-dev-token",
		Org:           "autoexpose",
		Bucket:        "exports",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

// connectOrSkip connects to the local InfluxDB, skipping when none is running.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()

	client, err := Connect(testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestBatchSettings(t *testing.T) {
	tests := []struct {
		name         string
		batch, flush int
		wantBatch    int
		wantFlush    int
	}{
		{"configured", 50, 5, 50, 5},
		{"zero uses defaults", 0, 0, defaultBatchSize, defaultFlushInterval},
		{"negative uses defaults", -1, -10, defaultBatchSize, defaultFlushInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BatchSize, cfg.FlushInterval = tt.batch, tt.flush
			gotBatch, gotFlush := batchSettings(cfg)
			if gotBatch != tt.wantBatch || gotFlush != tt.wantFlush {
				t.Errorf("batchSettings() = (%d, %d), want (%d, %d)", gotBatch, gotFlush, tt.wantBatch, tt.wantFlush)
			}
		})
	}
}

func TestExportPoint(t *testing.T) {
	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	p := exportPoint("automatic", "success", 42, 1500*time.Microsecond, at)

	if p.Name() != measurementExportRuns {
		t.Errorf("Name() = %q, want %q", p.Name(), measurementExportRuns)
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["origin"] != "automatic" || tags["status"] != "success" {
		t.Errorf("tags = %v", tags)
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["entities"] != int64(42) {
		t.Errorf("entities field = %v, want 42", fields["entities"])
	}
	if fields["duration_ms"] != 1.5 {
		t.Errorf("duration_ms field = %v, want 1.5", fields["duration_ms"])
	}
}

func TestRecordExport_NotConnected(t *testing.T) {
	c := &Client{}
	// Must not panic with a nil write API.
	c.RecordExport("manual", "success", 1, time.Millisecond)
	c.Flush()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestRecordExport(t *testing.T) {
	client := connectOrSkip(t)

	writeErrs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case writeErrs <- err:
		default:
		}
	})

	client.RecordExport("manual", "success", 3, 20*time.Millisecond)
	client.Flush()

	select {
	case err := <-writeErrs:
		t.Errorf("async write error = %v", err)
	default:
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
