package store

import (
	"context"

	"profile-store/core/profile"
)

// Name identifies one backing store.
type Name string

const (
	Relational   Name = "relational"
	Document     Name = "document"
	Hierarchical Name = "hierarchical"
)

// Preference is the tie-break order used when ranking stores.
var Preference = []Name{Relational, Document, Hierarchical}

// Rank returns the tie-break position of n; unknown names sort last.
func (n Name) Rank() int {
	for i, p := range Preference {
		if p == n {
			return i
		}
	}
	return len(Preference)
}

// IsCritical reports whether a failed write to n earns a synchronous retry.
func (n Name) IsCritical() bool {
	return n == Relational || n == Document
}

// ParseName maps a user supplied store name onto a Name.
func ParseName(s string) (Name, bool) {
	switch Name(s) {
	case Relational, Document, Hierarchical:
		return Name(s), true
	}
	return "", false
}

// Adapter translates canonical profiles to and from one physical store.
type Adapter interface {
	// Name returns the store this adapter serves.
	Name() Name

	// GetProfile returns the stored profile, or (nil, nil) when it is absent.
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)

	// PutProfile upserts the full profile and returns what was stored.
	PutProfile(ctx context.Context, userID string, p profile.Profile) (*profile.Profile, error)

	// ListFeedCandidates returns up to limit active, non-suspended profiles
	// other than excludeUserID.
	ListFeedCandidates(ctx context.Context, excludeUserID string, limit int) ([]profile.Profile, error)
}

// Pinger is implemented by adapters that have a cheaper liveness check than
// a profile read.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IDLister enumerates every user id held by a store.
type IDLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// BatchUpserter writes many profiles in one call.
type BatchUpserter interface {
	PutProfiles(ctx context.Context, profiles []profile.Profile) error
}

// Pager reads profiles in stable user_id order.
type Pager interface {
	ListProfiles(ctx context.Context, offset, limit int) ([]profile.Profile, error)
}

// Closer releases adapter resources.
type Closer interface {
	Close(ctx context.Context) error
}
