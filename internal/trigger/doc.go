// Package trigger debounces registry change events into automatic exports.
//
// The trigger is a small state machine driven by one goroutine:
//
//	Idle --create/update--> Pending(deadline)
//	Pending --create/update--> Pending(new deadline)
//	Pending --deadline--> Idle, automatic export, notification on success
//
// Only the event loop touches the timer. Events arrive through Notify,
// which never blocks the caller (MQTT and fsnotify goroutines). Manual
// exports bypass the timer through ExportNow and never notify.
package trigger
