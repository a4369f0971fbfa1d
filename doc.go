// Package await tracks the completion of long-running jobs on a remote
// execution platform. It provides a future-style handle that polls a
// status endpoint with geometric backoff, optionally listens on a push
// notification channel to shorten latency, and fans the final outcome
// out to any number of waiters and callbacks exactly once.
//
// # Quick Start
//
//	c, err := client.Dial("wss://platform.example.com/rpc",
//	    client.WithToken("pk_..."),
//	)
//	defer c.Close()
//
//	f := future.Track(ctx, c, await.Identity{JobID: "1234", RunID: "1"},
//	    future.WithChannel(c),
//	)
//	status, err := f.Result(ctx)
//
// # Architecture
//
// Polling is the single writer of terminal state. A push notification is
// never trusted as ground truth; it only wakes the poller early so the
// next status fetch confirms the change. This removes the race between
// "push says done" and "poll says done" entirely: both paths converge on
// one status fetch, and the future transitions at most once.
//
// The status source and notification channel are injected dependencies.
// Any type satisfying the small contracts in the poll and notify
// packages can drive a future; the client package ships a WebSocket
// implementation of both.
package await
