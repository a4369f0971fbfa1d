// Package poll drives repeated status fetches for a tracked run.
//
// A Scheduler owns one background goroutine that calls a StatusSource
// at a geometrically growing interval, reports every observation to its
// owner, and stops cooperatively. A push notification never carries
// state into the tracker; it only calls [Scheduler.Wake], which resets
// the interval to the floor and triggers an immediate confirming fetch.
//
// A Gate may be shared by many schedulers to bound the aggregate
// request rate one process sends to a single platform.
package poll
