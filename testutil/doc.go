// Package testutil holds helpers shared by package tests: a manual clock,
// component lifecycle with automatic cleanup, signed test tokens, and an
// event-stream frame reader.
//
//	clock := testutil.NewClock()
//	store := registry.NewStore(registry.WithClock(clock.Now))
//	clock.Advance(45 * time.Second)
//
//	testutil.Start(t, monitor) // stopped when the test ends
package testutil
