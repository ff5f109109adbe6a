package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"profile-store/core/profile"
	"profile-store/core/store"
)

// numApplyWorkers bounds concurrent single-profile writes in ApplyPlan.
const numApplyWorkers = 8

// ReconcileWithPlan performs reconciliation and returns a plan with results and actions.
// It does NOT execute actions; use ApplyPlan for that.
func ReconcileWithPlan(ctx context.Context, spec *Spec, opts ReconcileOptions) (*ReconcilePlan, error) {
	cache, err := GetOrBuildCache(ctx, spec)
	if err != nil {
		return nil, err
	}

	results := reconcileFromCache(cache, spec)
	summary, actions := buildPlanFromResults(results, cache, spec, opts)

	return &ReconcilePlan{
		Results: results,
		Actions: actions,
		Summary: summary,
	}, nil
}

// ApplyPlan executes the actions in a reconcile plan.
// Returns the number of actions executed and any error encountered.
// Requires opts.Confirmed=true and opts.DryRun=false to actually execute.
func ApplyPlan(ctx context.Context, spec *Spec, plan *ReconcilePlan, opts ReconcileOptions) (executed int, err error) {
	if !opts.Confirmed || opts.DryRun {
		return 0, nil
	}

	adapters := make(map[store.Name]store.Adapter, len(spec.Sources))
	for _, a := range spec.Sources {
		adapters[a.Name()] = a
	}

	// Group sync actions by target store for batch upserts
	byTarget := make(map[store.Name][]Action)
	var order []store.Name
	for _, action := range plan.Actions {
		if action.Type != ActionSyncStore {
			continue
		}
		if _, seen := byTarget[action.Target]; !seen {
			order = append(order, action.Target)
		}
		byTarget[action.Target] = append(byTarget[action.Target], action)
	}

	var errs []error
	for _, target := range order {
		actions := byTarget[target]
		a, ok := adapters[target]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown target store %s", target))
			continue
		}

		if batcher, ok := a.(store.BatchUpserter); ok {
			profiles := make([]profile.Profile, len(actions))
			for i, action := range actions {
				profiles[i] = action.Source
			}
			if err := batcher.PutProfiles(ctx, profiles); err != nil && !store.IsDegraded(err) {
				errs = append(errs, fmt.Errorf("batch sync %s: %w", target, err))
				continue
			}
			executed += len(actions)
			continue
		}

		n, err := syncEach(ctx, a, actions)
		executed += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	if spec.CacheTTL > 0 && executed > 0 {
		InvalidateCache(spec)
	}
	return executed, errors.Join(errs...)
}

// syncEach writes actions one at a time using a worker pool.
// Concurrent writes are safe as each action targets a distinct user id.
func syncEach(ctx context.Context, a store.Adapter, actions []Action) (int, error) {
	actionsCh := make(chan Action, len(actions))
	for _, action := range actions {
		actionsCh <- action
	}
	close(actionsCh)

	var (
		mu       sync.Mutex
		executed int
		errs     []error
		wg       sync.WaitGroup
	)
	wg.Add(numApplyWorkers)
	for i := 0; i < numApplyWorkers; i++ {
		go func() {
			defer wg.Done()
			for action := range actionsCh {
				_, err := a.PutProfile(ctx, action.Key, action.Source)
				mu.Lock()
				if err != nil && !store.IsDegraded(err) {
					errs = append(errs, fmt.Errorf("sync %s into %s: %w", action.Key, a.Name(), err))
				} else {
					executed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return executed, errors.Join(errs...)
}

// ReconcileAndApply is a convenience wrapper that plans and optionally applies actions.
func ReconcileAndApply(ctx context.Context, spec *Spec, opts ReconcileOptions) (*ReconcilePlan, int, error) {
	plan, err := ReconcileWithPlan(ctx, spec, opts)
	if err != nil {
		return nil, 0, err
	}

	executed, err := ApplyPlan(ctx, spec, plan, opts)
	return plan, executed, err
}

// buildPlanFromResults generates a summary and action plan from reconciliation results.
func buildPlanFromResults(results []ReconcileResult, cache *ReconcileCache, spec *Spec, opts ReconcileOptions) (PlanSummary, []Action) {
	summary := PlanSummary{
		TotalItems: len(results),
		Missing:    make(map[store.Name]int, len(spec.Sources)),
	}
	var actions []Action
	ref := spec.reference()

	for _, result := range results {
		missing := result.Missing()
		for _, name := range missing {
			summary.Missing[name]++
		}
		if len(result.Mismatch) > 0 {
			summary.Mismatches++
		}
		if !opts.DoSync {
			continue
		}

		// The reference copy wins when there is one
		from, source, ok := ref, Index(nil), false
		if result.IsPresent(ref) {
			source, ok = cache.Indices[ref], true
		} else {
			for _, a := range orderedSources(spec) {
				if result.IsPresent(a.Name()) {
					from, source, ok = a.Name(), cache.Indices[a.Name()], true
					break
				}
			}
		}
		if !ok {
			continue
		}
		src := source[result.ID]

		for _, target := range missing {
			actions = append(actions, Action{
				Type:   ActionSyncStore,
				Key:    result.ID,
				Target: target,
				From:   from,
				Reason: fmt.Sprintf("missing in %s", target),
				Source: src,
			})
			summary.SyncActions++
		}

		for _, a := range spec.Sources {
			target := a.Name()
			if target == ref || !result.IsPresent(target) || !result.IsPresent(ref) {
				continue
			}
			diffs := CompareFields(ref, src, target, cache.Indices[target][result.ID], spec.fields())
			if len(diffs) == 0 {
				continue
			}
			actions = append(actions, Action{
				Type:   ActionSyncStore,
				Key:    result.ID,
				Target: target,
				From:   ref,
				Reason: fmt.Sprintf("mismatch: %v", diffs),
				Source: src,
			})
			summary.SyncActions++
		}
	}

	return summary, actions
}

// orderedSources returns the sources in store preference order.
func orderedSources(spec *Spec) []store.Adapter {
	out := append([]store.Adapter(nil), spec.Sources...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name().Rank() < out[j].Name().Rank() })
	return out
}
