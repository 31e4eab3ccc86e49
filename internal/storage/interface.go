package storage

import (
	"context"
	"time"
)

// Storage is the abstract interface for the persistence layer
type Storage interface {
	// Key-value operations, scoped by namespace
	Get(ctx context.Context, namespace, key string) (value string, found bool, err error)
	Set(ctx context.Context, namespace, key, value string) error
	Delete(ctx context.Context, namespace, key string) error

	// Lease operations. AcquireLease returns false when another holder owns an unexpired lease.
	AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, holder string) error

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
