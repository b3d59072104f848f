// Package storage provides the repositories boards write records to and the state
// stores that persist board and registry state, with in-memory and Redis backends.
package storage

import (
	"context"
	"fmt"

	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// DefaultRepository is used when a template does not name a repository.
const DefaultRepository = "default"

// Repository stores the records of one board.
type Repository interface {
	// Name returns the repository name the records are stored under.
	Name() string
	// PushRecord inserts or replaces a record.
	PushRecord(ctx context.Context, record *blackboard.DataRecord) error
	// DeleteRecord removes a record, reporting whether it existed.
	DeleteRecord(ctx context.Context, uid uuid.UUID) (bool, error)
	// GetRecord returns one record or an error satisfying blackboard.IsNotFound.
	GetRecord(ctx context.Context, uid uuid.UUID) (*blackboard.DataRecord, error)
	// GetRecords returns the requested records that exist, in request order.
	GetRecords(ctx context.Context, uids ...uuid.UUID) ([]*blackboard.DataRecord, error)
}

// RepositoryFactory resolves the repository a board uses for a storage configuration.
type RepositoryFactory interface {
	GetRepository(ctx context.Context, boardUID uuid.UUID, cfg blackboard.StorageConfig) (Repository, error)
}

// Backend names a storage implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Validate checks if the Backend is a valid enum value.
func (b Backend) Validate() error {
	switch b {
	case BackendMemory, BackendRedis:
		return nil
	default:
		return fmt.Errorf("unknown storage backend: %q", b)
	}
}

func repositoryName(cfg blackboard.StorageConfig) string {
	if cfg.Repository == "" {
		return DefaultRepository
	}
	return cfg.Repository
}
