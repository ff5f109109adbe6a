package reconcile

import (
	"sort"
	"strings"
	"time"

	"profile-store/core/profile"
	"profile-store/core/store"
)

// ReconcileResult represents the reconciliation output for a single profile.
type ReconcileResult struct {
	// ID is the user id.
	ID string `json:"id"`

	// Name is the display name taken from the first copy found.
	Name string `json:"name"`

	// Present maps every indexed store to whether it holds the profile.
	Present map[store.Name]bool `json:"present"`

	// Mismatch describes fields that differ from the reference copy, e.g.
	// "document.city: relational=Paris document=Lyon".
	Mismatch []string `json:"mismatch"`
}

// IsPresent reports whether the profile exists in name.
func (r ReconcileResult) IsPresent(name store.Name) bool {
	return r.Present[name]
}

// Missing returns the stores that do not hold the profile, in preference order.
func (r ReconcileResult) Missing() []store.Name {
	var out []store.Name
	for name, ok := range r.Present {
		if !ok {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank() < out[j].Rank() })
	return out
}

// Spec defines the configuration for a reconciliation operation.
type Spec struct {
	// Sources are the stores to index.
	Sources []store.Adapter

	// Reference is the store other copies are compared against.
	// Defaults to store.Relational.
	Reference store.Name

	// Fields are the canonical keys compared between copies. Defaults to
	// every key of the field table except the write timestamps.
	Fields []string

	// CacheTTL is the time-to-live for cached indices.
	// If zero, caching is disabled.
	CacheTTL time.Duration

	// PageSize is used for stores that page. Defaults to 500.
	PageSize int
}

// ignoredFields differ per store by construction.
var ignoredFields = map[string]struct{}{
	"created_at": {},
	"updated_at": {},
}

func (s *Spec) reference() store.Name {
	if s.Reference == "" {
		return store.Relational
	}
	return s.Reference
}

func (s *Spec) fields() []string {
	if len(s.Fields) > 0 {
		return s.Fields
	}
	var out []string
	for _, k := range profile.Keys() {
		if _, skip := ignoredFields[k]; !skip && k != profile.KeyUserID {
			out = append(out, k)
		}
	}
	return out
}

func (s *Spec) pageSize() int {
	if s.PageSize <= 0 {
		return 500
	}
	return s.PageSize
}

// CacheKey returns a unique key for caching based on spec parameters.
func (s *Spec) CacheKey() string {
	names := make([]string, 0, len(s.Sources))
	for _, a := range s.Sources {
		names = append(names, string(a.Name()))
	}
	return string(s.reference()) + "|" + strings.Join(names, ",")
}

// ActionType represents the type of mutation action.
type ActionType string

const (
	// ActionSyncStore rewrites a profile in the target store from Source.
	ActionSyncStore ActionType = "sync_store"
)

// Action represents a planned mutation operation.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Key is the user id.
	Key string `json:"key"`

	// Target is the store that gets rewritten.
	Target store.Name `json:"target"`

	// From is the store the copy was taken from.
	From store.Name `json:"from"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`

	// Source is the profile to write.
	Source profile.Profile `json:"-"`
}

// ReconcilePlan contains reconciliation results and planned actions.
type ReconcilePlan struct {
	// Results contains per-profile reconciliation data.
	Results []ReconcileResult `json:"results"`

	// Actions contains planned mutation operations.
	Actions []Action `json:"actions"`

	// Summary provides aggregate counts.
	Summary PlanSummary `json:"summary"`
}

// PlanSummary provides aggregate statistics for a reconcile plan.
type PlanSummary struct {
	// TotalItems is the total number of unique user ids.
	TotalItems int `json:"total_items"`

	// Missing counts profiles missing per store.
	Missing map[store.Name]int `json:"missing"`

	// Mismatches counts profiles with field discrepancies.
	Mismatches int `json:"mismatches"`

	// SyncActions counts planned sync actions.
	SyncActions int `json:"sync_actions"`
}

// ReconcileOptions controls reconcile behavior.
type ReconcileOptions struct {
	// DryRun prevents execution of any mutations if true.
	DryRun bool

	// DoSync enables planning of sync_store actions.
	DoSync bool

	// Confirmed indicates the operator has confirmed the mutations.
	// If false, mutations will not execute regardless of DryRun.
	Confirmed bool
}
