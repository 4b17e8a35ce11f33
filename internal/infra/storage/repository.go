package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
)

var (
	// ErrMountNotFound is returned when no record exists for a session and remote.
	ErrMountNotFound = errors.New("mount record not found")
)

// MountRepository mirrors mount status so any replica can report it.
type MountRepository interface {
	// Save upserts a record. Records expire after ttl when ttl > 0.
	Save(ctx context.Context, rec *domain.MountRecord, ttl time.Duration) error

	// Get retrieves the record of one mount.
	Get(ctx context.Context, sessionID, remote string) (*domain.MountRecord, error)

	// Delete removes the record of one mount.
	Delete(ctx context.Context, sessionID, remote string) error

	// List returns all live records.
	List(ctx context.Context) ([]*domain.MountRecord, error)
}
