package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
)

// Client is the slice of SurrealDB the document store uses.
type Client interface {
	// Query runs SurrealQL and returns the rows of the last statement.
	Query(ctx context.Context, sql string, vars map[string]any) ([]map[string]any, error)
	// Ping issues a trivial statement.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Connect dials SurrealDB, signs in and selects the namespace and database.
func Connect(ctx context.Context, cfg Config) (Client, error) {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to surrealdb: %w", err)
	}

	if cfg.Username != "" {
		if _, err := db.SignIn(ctx, surrealdb.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
		}); err != nil {
			_ = db.Close(context.Background())
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &surrealClient{db: db}, nil
}

type surrealClient struct {
	db *surrealdb.DB
}

func (c *surrealClient) Query(ctx context.Context, sql string, vars map[string]any) ([]map[string]any, error) {
	res, err := surrealdb.Query[[]map[string]any](ctx, c.db, sql, vars)
	if err != nil {
		return nil, err
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	for _, stmt := range *res {
		if !strings.EqualFold(stmt.Status, "OK") {
			return nil, fmt.Errorf("surrealdb statement failed: %s", stmt.Status)
		}
	}
	return (*res)[len(*res)-1].Result, nil
}

func (c *surrealClient) Ping(ctx context.Context) error {
	_, err := surrealdb.Query[any](ctx, c.db, "RETURN true", nil)
	return err
}

func (c *surrealClient) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}
