// Package notify delivers best-effort "state may have changed" signals
// for tracked runs.
//
// Notifications are wakeups, not state: a Channel implementation must
// never be treated as authoritative about a run's outcome. Subscribers
// react to an event by polling sooner; the poll is what writes state.
//
// Mux is the in-process router between one upstream feed (a WebSocket
// client, a Redis subscription) and the per-run subscribers. It is an
// explicit, injected shared resource so that lifecycle and shutdown
// stay visible — feeds publish into it, futures subscribe to it, and a
// single Close tears the whole thing down.
package notify
