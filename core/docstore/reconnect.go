package docstore

import (
	"context"
	"sync"
)

// DialFunc opens a ready Client.
type DialFunc func(ctx context.Context, cfg Config) (Client, error)

// Reconnecting is a Client that dials on first use and dials again after a
// failed ping. The document store can therefore be registered while
// SurrealDB is down and join once it answers.
type Reconnecting struct {
	cfg  Config
	dial DialFunc

	mu     sync.Mutex
	client Client
}

// NewReconnecting returns a Reconnecting client. A nil dial uses Connect.
func NewReconnecting(cfg Config, dial DialFunc) *Reconnecting {
	if dial == nil {
		dial = Connect
	}
	return &Reconnecting{cfg: cfg, dial: dial}
}

func (r *Reconnecting) conn(ctx context.Context) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	c, err := r.dial(ctx, r.cfg)
	if err != nil {
		return nil, err
	}
	r.client = c
	return c, nil
}

// drop forgets c so the next call dials again.
func (r *Reconnecting) drop(c Client) {
	r.mu.Lock()
	if r.client != c {
		r.mu.Unlock()
		return
	}
	r.client = nil
	r.mu.Unlock()
	_ = c.Close(context.Background())
}

func (r *Reconnecting) Query(ctx context.Context, sql string, vars map[string]any) ([]map[string]any, error) {
	c, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return c.Query(ctx, sql, vars)
}

func (r *Reconnecting) Ping(ctx context.Context) error {
	c, err := r.conn(ctx)
	if err != nil {
		return err
	}
	if err := c.Ping(ctx); err != nil {
		r.drop(c)
		return err
	}
	return nil
}

func (r *Reconnecting) Close(ctx context.Context) error {
	r.mu.Lock()
	c := r.client
	r.client = nil
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close(ctx)
}
