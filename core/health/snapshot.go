package health

import (
	"sort"
	"time"

	"profile-store/core/store"
)

// Status is the health of one store as of its last probe.
type Status struct {
	Store               store.Name `json:"store"`
	Available           bool       `json:"available"`
	LastCheckedAt       time.Time  `json:"last_checked_at"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
}

// Snapshot is an immutable, ranked view of every store's health.
type Snapshot struct {
	statuses []Status
	takenAt  time.Time
}

func newSnapshot(statuses []Status, takenAt time.Time) *Snapshot {
	ranked := append([]Status(nil), statuses...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Available != b.Available {
			return a.Available
		}
		if a.ConsecutiveFailures != b.ConsecutiveFailures {
			return a.ConsecutiveFailures < b.ConsecutiveFailures
		}
		return a.Store.Rank() < b.Store.Rank()
	})
	return &Snapshot{statuses: ranked, takenAt: takenAt}
}

// TakenAt returns when the snapshot was built.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Statuses returns a copy of the ranked statuses.
func (s *Snapshot) Statuses() []Status {
	return append([]Status(nil), s.statuses...)
}

// Ranked returns every store in ranking order.
func (s *Snapshot) Ranked() []store.Name {
	out := make([]store.Name, len(s.statuses))
	for i, st := range s.statuses {
		out[i] = st.Store
	}
	return out
}

// Available returns the available stores in ranking order.
func (s *Snapshot) Available() []store.Name {
	var out []store.Name
	for _, st := range s.statuses {
		if st.Available {
			out = append(out, st.Store)
		}
	}
	return out
}

// Primary returns the first ranked store, and whether it is available.
func (s *Snapshot) Primary() (store.Name, bool) {
	if len(s.statuses) == 0 {
		return "", false
	}
	return s.statuses[0].Store, s.statuses[0].Available
}

// IsAvailable reports the availability of one store.
func (s *Snapshot) IsAvailable(name store.Name) bool {
	st, ok := s.Status(name)
	return ok && st.Available
}

// Status returns the status of one store.
func (s *Snapshot) Status(name store.Name) (Status, bool) {
	for _, st := range s.statuses {
		if st.Store == name {
			return st, true
		}
	}
	return Status{}, false
}
