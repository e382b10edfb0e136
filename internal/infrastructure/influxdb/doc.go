// Package influxdb records export runs in InfluxDB.
//
// Each run becomes one point in the "export_runs" measurement, tagged with
// its origin (manual or automatic) and status, carrying the number of
// exported entities and the run duration. The history table in SQLite is
// the source of truth; InfluxDB is optional and feeds dashboards.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without time-series recording
//	}
//	defer client.Close()
//
//	client.RecordExport("automatic", "success", 42, 15*time.Millisecond)
package influxdb
