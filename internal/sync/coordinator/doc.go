// Package coordinator runs fetch cycles that are not triggered by requests.
//
// On Start the coordinator optionally warms the cache with a startup cycle
// (sync.refreshOnStartup) and then, when sync.refreshInterval is set, rebuilds
// the collection on a ticker whose period carries a small random jitter so that
// several replicas do not hit the upstream quota at the same moment. A scheduled
// rebuild fetches before it clears the store, so an upstream outage at a tick
// leaves the cached tags in place.
//
// Every cycle goes through the sync.Engine, so scheduled refreshes are
// serialized with request-triggered ones and share their status tracking.
//
//	c := coordinator.New(engine, cfg)
//	go func() { _ = c.Start(ctx) }()
//	defer c.Stop()
package coordinator
