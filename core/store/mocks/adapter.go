package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"

	"profile-store/core/profile"
	"profile-store/core/store"
)

// ErrInjected is the cause carried by scripted failures.
var ErrInjected = errors.New("injected failure")

// Write is one successful PutProfile observed by an Adapter.
type Write struct {
	UserID  string
	Profile profile.Profile
}

// Adapter is an in-memory store.Adapter with scripted failures.
// It is safe for concurrent use.
type Adapter struct {
	name store.Name

	mu        sync.Mutex
	data      map[string]profile.Profile
	down      bool
	failPuts  int
	failGets  int
	putErr    error
	writes    []Write
	gets      int
	putCalls  int
	pingCalls int
}

// NewAdapter creates an empty adapter for the given store.
func NewAdapter(name store.Name) *Adapter {
	return &Adapter{name: name, data: make(map[string]profile.Profile)}
}

// Name returns the store name.
func (a *Adapter) Name() store.Name { return a.name }

// SetDown makes every operation fail with an unavailable error.
func (a *Adapter) SetDown(down bool) {
	a.mu.Lock()
	a.down = down
	a.mu.Unlock()
}

// FailPuts makes the next n PutProfile calls fail.
func (a *Adapter) FailPuts(n int) {
	a.mu.Lock()
	a.failPuts = n
	a.mu.Unlock()
}

// FailGets makes the next n GetProfile calls fail.
func (a *Adapter) FailGets(n int) {
	a.mu.Lock()
	a.failGets = n
	a.mu.Unlock()
}

// SetPutResult makes successful puts return err alongside the stored profile.
func (a *Adapter) SetPutResult(err error) {
	a.mu.Lock()
	a.putErr = err
	a.mu.Unlock()
}

// Seed stores p without recording a write.
func (a *Adapter) Seed(p profile.Profile) {
	a.mu.Lock()
	a.data[p.UserID] = p.Clone()
	a.mu.Unlock()
}

// Stored returns the profile currently held for userID.
func (a *Adapter) Stored(userID string) (profile.Profile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.data[userID]
	return p.Clone(), ok
}

// Writes returns the successful writes in order.
func (a *Adapter) Writes() []Write {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Write(nil), a.writes...)
}

// PutCalls returns how many times PutProfile was invoked.
func (a *Adapter) PutCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.putCalls
}

// GetCalls returns how many times GetProfile was invoked.
func (a *Adapter) GetCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gets
}

// PingCalls returns how many times Ping was invoked.
func (a *Adapter) PingCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pingCalls
}

func (a *Adapter) unavailable(op string) error {
	return store.Unavailable(a.name, op, ErrInjected)
}

// Ping fails while the adapter is down.
func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pingCalls++
	if a.down {
		return a.unavailable("ping")
	}
	return ctx.Err()
}

// GetProfile returns the stored profile or (nil, nil).
func (a *Adapter) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gets++
	if a.down {
		return nil, a.unavailable("get")
	}
	if a.failGets > 0 {
		a.failGets--
		return nil, a.unavailable("get")
	}
	p, ok := a.data[userID]
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

// PutProfile upserts p.
func (a *Adapter) PutProfile(ctx context.Context, userID string, p profile.Profile) (*profile.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.putCalls++
	if a.down {
		return nil, a.unavailable("put")
	}
	if a.failPuts > 0 {
		a.failPuts--
		return nil, a.unavailable("put")
	}
	p.UserID = userID
	if prev, ok := a.data[userID]; ok && !prev.CreatedAt.IsZero() {
		p.CreatedAt = prev.CreatedAt
	}
	a.data[userID] = p.Clone()
	a.writes = append(a.writes, Write{UserID: userID, Profile: p.Clone()})
	out := p.Clone()
	return &out, a.putErr
}

// ListFeedCandidates returns active, non-suspended profiles in id order.
func (a *Adapter) ListFeedCandidates(ctx context.Context, excludeUserID string, limit int) ([]profile.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.down {
		return nil, a.unavailable("feed")
	}
	var out []profile.Profile
	for _, id := range a.sortedIDs() {
		p := a.data[id]
		if id == excludeUserID || !p.IsActive || p.IsSuspended {
			continue
		}
		out = append(out, p.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListUserIDs returns every stored id in order.
func (a *Adapter) ListUserIDs(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.down {
		return nil, a.unavailable("list")
	}
	return a.sortedIDs(), nil
}

// ListProfiles pages through profiles in id order.
func (a *Adapter) ListProfiles(ctx context.Context, offset, limit int) ([]profile.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.down {
		return nil, a.unavailable("list")
	}
	ids := a.sortedIDs()
	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]profile.Profile, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, a.data[id].Clone())
	}
	return out, nil
}

// PutProfiles upserts every profile, failing as a whole while down.
func (a *Adapter) PutProfiles(ctx context.Context, profiles []profile.Profile) error {
	a.mu.Lock()
	down := a.down
	a.mu.Unlock()
	if down {
		return a.unavailable("batch")
	}
	for _, p := range profiles {
		if _, err := a.PutProfile(ctx, p.UserID, p); err != nil && !store.IsDegraded(err) {
			return err
		}
	}
	return nil
}

func (a *Adapter) sortedIDs() []string {
	ids := make([]string, 0, len(a.data))
	for id := range a.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
