package backends

import (
	"context"
	"errors"

	"github.com/botirk38/semanticrouter/backends/inmemory"
	"github.com/botirk38/semanticrouter/backends/postgres"
	"github.com/botirk38/semanticrouter/backends/remote"
	"github.com/botirk38/semanticrouter/types"
)

var ErrUnsupportedBackend = errors.New("unsupported backend type")

// BackendFactory creates index backends based on type and configuration
type BackendFactory struct{}

// NewBackend creates a new index backend of the specified type
func (f *BackendFactory) NewBackend(ctx context.Context, backendType types.BackendType, config types.BackendConfig) (types.IndexBackend, error) {
	switch backendType {
	case types.BackendMemory, "":
		return NewMemoryBackend(config)
	case types.BackendRedis:
		return NewRedisBackend(ctx, config)
	case types.BackendPostgres:
		return NewPostgresBackend(ctx, config)
	default:
		return nil, ErrUnsupportedBackend
	}
}

// NewMemoryBackend creates a new in-process index
func NewMemoryBackend(config types.BackendConfig) (types.IndexBackend, error) {
	return inmemory.NewIndexFromConfig(config)
}

// NewRedisBackend creates a new Redis backed index
func NewRedisBackend(ctx context.Context, config types.BackendConfig) (types.IndexBackend, error) {
	return remote.NewRedisBackend(ctx, config)
}

// NewPostgresBackend creates a new pgvector backed index
func NewPostgresBackend(ctx context.Context, config types.BackendConfig) (types.IndexBackend, error) {
	return postgres.NewBackend(ctx, config)
}
