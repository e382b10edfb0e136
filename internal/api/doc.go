// Package api implements the HTTP API and WebSocket server of the exporter.
//
// This package provides:
//   - Manual export, export history and an exposure preview
//   - An endpoint for posting registry change events
//   - WebSocket hub broadcasting export runs and notifications
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, metrics, recovery, CORS)
//   - Prometheus metrics on /metrics
//
// # Security
//
// Authentication is enabled by setting security.jwt.secret. Without a
// secret every route is open, which suits a sidecar bound to localhost.
// Tokens are issued out of band with the -token flag of the binary.
// WebSocket connections use single-use tickets so tokens stay out of URLs.
//
// # Graceful Degradation
//
// The server runs without MQTT or the history database; the affected
// fields report as disconnected and the history list is empty.
package api
