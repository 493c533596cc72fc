// Package registry holds the in-memory agent registry: the Store of
// registrations, the Monitor that demotes and evicts silent agents, the
// Gate that checks bearer tokens before mutations, and the gin Handler
// that serves all of it.
//
//	store := registry.NewStore(registry.WithLogger(log))
//	var reg registry.Registry = store
//	if validator != nil {
//		reg = registry.NewGate(store, validator, registry.Policy{RequiredScope: scope})
//	}
//	registry.NewHandler("agent-registry", reg).RegisterRoutes(engine)
//
// Writes to one agent id are serialized on a per-record lock. Writes to
// different ids never wait for each other.
package registry
