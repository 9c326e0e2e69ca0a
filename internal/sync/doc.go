// Package sync keeps the local tag collection filled from the upstream API.
//
// The Engine decides when the cache is inadequate (NeedsRefresh), pulls
// popular tags page by page and merges them into the collection
// (FetchAndMerge), and can rebuild the collection from scratch (Refresh).
//
// # Cycles
//
// A cycle is one fetch-merge-persist pass. Cycles never overlap: each runs
// under the engine's cycle mutex. Concurrent callers asking for the same kind
// of cycle share one in-flight run through singleflight, and that run is
// detached from any single caller's cancellation and bounded by the cycle
// timeout instead.
//
// # Outcomes
//
// An upstream failure aborts the cycle before anything is written and is
// returned as an error wrapping ErrUpstream. A persistence failure is logged
// and reported as a Result with Success false. Every cycle is recorded in
// the status tracker and the sync metrics.
//
// The coordinator subpackage runs the optional startup warm-up and the
// scheduled refresh loop.
package sync
