// Package export runs exports: it takes a registry snapshot, resolves it,
// and atomically replaces the output YAML file.
//
// Every run is recorded, successful or not, in the export history table
// and reported to the configured Recorders (Prometheus, InfluxDB). Runs
// are serialised, so a manual export and a debounced automatic export
// never interleave their writes.
//
// A failed run leaves the previous output file untouched.
package export
