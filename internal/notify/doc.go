// Package notify delivers the user-facing notification posted after an
// automatic export.
//
// A Notification carries a fixed ID so a client that keeps notifications by
// ID replaces the previous one instead of stacking them. Delivery is
// best-effort: the MQTT notifier publishes to the notification topic for
// the platform to pick up, the broadcast notifier pushes to connected
// WebSocket clients, and Multi fans out to both.
package notify
