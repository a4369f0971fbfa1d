// Package future provides the completion handle for a tracked run.
//
// A Future composes a minimal promise primitive (resolution state,
// waiters, ordered callbacks) with a poll scheduler and an optional
// notification channel. The poll loop is the single writer of terminal
// state; notifications only wake it early. A future resolves exactly
// once, after which its poller is stopped, its subscription released,
// and every registered callback invoked in registration order.
package future
