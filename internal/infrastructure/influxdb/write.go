package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementExportRuns is the measurement holding one point per export run.
const measurementExportRuns = "export_runs"

// RecordExport writes one export run. The write is non-blocking.
//
// Parameters:
//   - origin: "manual" or "automatic"
//   - status: "success" or "failed"
//   - entities: Number of entities written to the output file
//   - d: Wall time of the run
func (c *Client) RecordExport(origin, status string, entities int, d time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(exportPoint(origin, status, entities, d, time.Now()))
}

// exportPoint builds the point for an export run.
func exportPoint(origin, status string, entities int, d time.Duration, at time.Time) *write.Point {
	return write.NewPoint(
		measurementExportRuns,
		map[string]string{
			"origin": origin,
			"status": status,
		},
		map[string]interface{}{
			"entities":    int64(entities),
			"duration_ms": float64(d.Microseconds()) / 1000,
		},
		at,
	)
}
