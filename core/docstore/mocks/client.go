package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Client is a mock implementation of docstore.Client.
type Client struct {
	mock.Mock
}

func (m *Client) Query(ctx context.Context, sql string, vars map[string]any) ([]map[string]any, error) {
	args := m.Called(ctx, sql, vars)
	if rows, ok := args.Get(0).([]map[string]any); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Client) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Client) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
