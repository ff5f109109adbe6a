// Package reconcile detects drift of profiles across the backing stores.
//
// Every store is indexed by user id, the indices are joined into one union
// of ids, and each id gets a Result telling which stores hold it and which
// fields disagree with the reference store (relational by default).
//
// # Architecture
//
// 1. Engine: builds the union of ids, records presence per store and
//    compares fields of every copy against the reference copy.
//
// 2. Indexing: stores that page (store.Pager) are read page by page; stores
//    that only enumerate ids (store.IDLister) are read one profile at a time
//    through a small worker pool.
//
// 3. Cache: TTL-based caching of the indices with stampede protection, so
//    repeated targeted lookups do not rescan every store.
//
// # Plans
//
// ReconcileWithPlan turns results into sync_store actions: a store missing a
// profile, or holding a copy that disagrees with the reference, is rewritten
// from the reference copy. A profile missing from the reference store is
// backfilled from the first store that has it. ApplyPlan executes a plan and
// prefers batch upserts where a store offers them.
//
// # Usage Example
//
//	spec := &reconcile.Spec{
//	    Sources:  []store.Adapter{rel, doc, hier},
//	    CacheTTL: time.Minute,
//	}
//
//	plan, err := reconcile.ReconcileWithPlan(ctx, spec, reconcile.ReconcileOptions{DoSync: true})
//	executed, err := reconcile.ApplyPlan(ctx, spec, plan, reconcile.ReconcileOptions{DoSync: true, Confirmed: true})
package reconcile
