// Package replication keeps one logical profile consistent across the
// relational, document and hierarchical stores.
//
// # Writes
//
// A write is normalized once and dispatched in parallel to every store the
// health snapshot marks available. Failed writes to the critical stores
// (relational, document) get one synchronous retry. The call succeeds as soon
// as a single store holds the profile; the remaining stores are handed to the
// repair Scheduler, which retries them in the background at fixed offsets
// from the original call.
//
// # Reads
//
// Reads go to the primary store first. A hit is propagated to the other
// available stores in the background. On a miss the remaining stores are
// tried in ranked order and the first hit is written back to the primary
// before it is returned. ErrProfileNotFound means every configured store
// answered and none holds the record; a miss while any store failed or was
// marked unavailable ends in ErrAllStoresUnavailable. Those two are the only
// errors a caller has to branch on.
//
// # Usage
//
//	mon := health.NewMonitor(adapters, health.Config{}, logger, m)
//	go mon.Run(ctx)
//
//	s := replication.New(mon, replication.Config{}, logger, m)
//	defer s.Close()
//
//	res, err := s.CreateOrUpdateProfile(ctx, "u1", profile.Record{"name": "Ada"})
//	p, err := s.GetProfile(ctx, "u1")
package replication
