// Package promise provides a small, generic single-assignment promise used by the
// RPC layers to bridge asynchronous network completions to the call sites waiting on them.
//
// The package focuses on:
//   - Externally completable results (Complete / Fail) that can be settled exactly once
//   - Chained continuations that run inline or on a supplied Executor
//   - Composition (Map, Compose, CompleteWith) and a timeout wrapper (OrTimeout)
//
// Key Components:
//
//   - Promise: The single-assignment container. The first call to Complete, Fail or
//     CompleteWith wins, every later call is ignored and reports false.
//
//   - Executor: Decides where a continuation runs. Synchronous runs it on the goroutine
//     that settled the promise, Goroutine hands it to a fresh goroutine.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Continuations registered after the promise
//	was settled run immediately on the registering goroutine (or its executor).
//
// Usage:
//
//	p := promise.New[string]()
//	p.OrTimeout(10 * time.Second).Then(func(value string, err error) {
//	    // ...
//	})
//	p.Complete("pong")
package promise
