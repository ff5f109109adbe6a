package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"profile-store/core/profile"
	"profile-store/core/store"
)

// ReconcileOne performs a targeted reconciliation for a single profile.
// It uses cached indices if caching is enabled, or reads each store directly.
func ReconcileOne(ctx context.Context, spec *Spec, userID string) (*ReconcileResult, error) {
	if spec.CacheTTL > 0 {
		cache, err := GetOrBuildCache(ctx, spec)
		if err != nil {
			return nil, err
		}
		result := buildResult(userID, cache.Indices, spec)
		return &result, nil
	}

	// Fast path without cache: targeted reads, one per store
	copies := make([]*profile.Profile, len(spec.Sources))
	errs := make([]error, len(spec.Sources))
	var wg sync.WaitGroup
	wg.Add(len(spec.Sources))
	for i, a := range spec.Sources {
		go func(i int, a store.Adapter) {
			defer wg.Done()
			copies[i], errs[i] = a.GetProfile(ctx, userID)
		}(i, a)
	}
	wg.Wait()

	indices := make(map[store.Name]Index, len(spec.Sources))
	for i, a := range spec.Sources {
		if errs[i] != nil {
			return nil, fmt.Errorf("read %s: %w", a.Name(), errs[i])
		}
		idx := Index{}
		if copies[i] != nil {
			idx[userID] = *copies[i]
		}
		indices[a.Name()] = idx
	}

	result := buildResult(userID, indices, spec)
	return &result, nil
}

// reconcileFromCache builds results for every id in the union of indices,
// sorted by id for deterministic output.
func reconcileFromCache(cache *ReconcileCache, spec *Spec) []ReconcileResult {
	unionKeys := buildUnion(cache.Indices)

	results := make([]ReconcileResult, 0, len(unionKeys))
	for key := range unionKeys {
		results = append(results, buildResult(key, cache.Indices, spec))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	return results
}

// buildUnion creates a union of the ids of every index.
func buildUnion(indices map[store.Name]Index) map[string]struct{} {
	union := make(map[string]struct{})
	for _, idx := range indices {
		for key := range idx {
			union[key] = struct{}{}
		}
	}
	return union
}

// buildResult creates a ReconcileResult for a single id.
func buildResult(key string, indices map[store.Name]Index, spec *Spec) ReconcileResult {
	result := ReconcileResult{
		ID:       key,
		Present:  make(map[store.Name]bool, len(spec.Sources)),
		Mismatch: []string{},
	}

	ref := spec.reference()
	refCopy, refPresent := indices[ref][key]

	for _, a := range spec.Sources {
		name := a.Name()
		p, ok := indices[name][key]
		result.Present[name] = ok
		if ok && result.Name == "" {
			result.Name = p.Name
		}
		if ok && refPresent && name != ref {
			result.Mismatch = append(result.Mismatch, CompareFields(ref, refCopy, name, p, spec.fields())...)
		}
	}
	return result
}

// CompareFields compares the given canonical fields of two copies and returns
// a description of every difference.
func CompareFields(refName store.Name, ref profile.Profile, name store.Name, other profile.Profile, fields []string) []string {
	refRec, otherRec := ref.Record(), other.Record()
	var out []string
	for _, field := range fields {
		a, b := fieldValue(refRec[field]), fieldValue(otherRec[field])
		if a != b {
			out = append(out, fmt.Sprintf("%s.%s: %s=%s %s=%s", name, field, refName, a, name, b))
		}
	}
	return out
}

// fieldValue renders a field value so that copies decoded from different
// stores compare equal. Timestamps are compared at second precision.
func fieldValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Truncate(time.Second).Format(time.RFC3339)
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(t)
	}
}
