// Package runlock serializes concurrent runs that write the same sport's documents.
package runlock

import (
	"context"
	"errors"
	"time"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("run lock held by another process")

// Locker hands out exclusive leases by key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is a held lock. Release is safe to call after the lease expired.
type Lease interface {
	Release(ctx context.Context) error
}

// Key returns the lock key guarding a sport's documents. Every run that writes them,
// whatever period it covers, takes the same key.
func Key(sport models.Sport) string {
	return "sport:" + string(sport)
}

// Backend names accepted by the lock configuration.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// DefaultTTL bounds how long a crashed run can block the next one.
const DefaultTTL = 30 * time.Minute
