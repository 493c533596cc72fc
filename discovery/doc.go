// Package discovery finds agents on behalf of a client. It asks remote
// registries in the order they were added, falls back to directly known
// agent endpoints, and caches fetched cards for a TTL.
//
//	svc, err := discovery.NewService(cfg, discovery.WithTokenSource(tokens.TokenSource(provider, scope)))
//	card, err := svc.DiscoverAgent(ctx, "calc")
//	res, err := svc.ListAvailableAgents(ctx, discovery.ListFilter{Skill: "translate"})
//	for _, w := range res.Warnings { ... } // sources that could not be reached
//
// Each registry gets its own HTTP client and circuit breaker, so one slow
// or failing registry does not hold up the others.
package discovery
