package replication

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"profile-store/core/profile"
	"profile-store/core/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerDelaysCountFromStart(t *testing.T) {
	var calls atomic.Int32
	done := make(chan time.Time, 1)
	s := NewScheduler([]time.Duration{200 * time.Millisecond}, func(ctx context.Context, name store.Name, p profile.Profile) error {
		calls.Add(1)
		done <- time.Now()
		return nil
	}, nil, nil)
	defer s.Close()

	start := time.Now().Add(-150 * time.Millisecond)
	s.Schedule(store.Document, profile.Profile{UserID: "u1"}, start)

	select {
	case at := <-done:
		assert.WithinDuration(t, start.Add(200*time.Millisecond), at, 100*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("repair never ran")
	}
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSchedulerStopsAfterSuccess(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler([]time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 15 * time.Millisecond},
		func(ctx context.Context, name store.Name, p profile.Profile) error {
			if calls.Add(1) == 1 {
				return errors.New("still down")
			}
			return nil
		}, nil, nil)
	defer s.Close()

	s.Schedule(store.Hierarchical, profile.Profile{UserID: "u1"}, time.Now())

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSchedulerCloseCancelsPending(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler([]time.Duration{time.Hour}, func(ctx context.Context, name store.Name, p profile.Profile) error {
		calls.Add(1)
		return nil
	}, nil, nil)

	s.Schedule(store.Relational, profile.Profile{UserID: "u1"}, time.Now())
	s.Schedule(store.Document, profile.Profile{UserID: "u2"}, time.Now())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, map[string][]store.Name{"u1": {store.Relational}, "u2": {store.Document}}, s.Pending())

	s.Close()
	assert.Zero(t, s.Len())

	// Scheduling after Close is a no-op.
	s.Schedule(store.Relational, profile.Profile{UserID: "u3"}, time.Now())
	assert.Zero(t, s.Len())
	assert.Zero(t, calls.Load())
}
