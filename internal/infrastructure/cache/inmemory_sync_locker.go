package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	closeoutapp "github.com/closeout/backend/internal/application/closeout"
	"github.com/closeout/backend/internal/domain/shared"
)

// lease represents a held lock with expiration
type lease struct {
	token     string
	expiresAt time.Time
}

// InMemorySyncLocker implements SyncLocker using an in-memory map
// This is suitable for single-instance deployments and testing
type InMemorySyncLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// InMemorySyncLockerOption configures an InMemorySyncLocker
type InMemorySyncLockerOption func(*InMemorySyncLocker)

// WithLockClock sets the clock used for expiry
func WithLockClock(now func() time.Time) InMemorySyncLockerOption {
	return func(l *InMemorySyncLocker) {
		if now != nil {
			l.now = now
		}
	}
}

// NewInMemorySyncLocker creates a new in-memory lock
func NewInMemorySyncLocker(opts ...InMemorySyncLockerOption) *InMemorySyncLocker {
	l := &InMemorySyncLocker{
		leases: make(map[string]lease),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire takes the named lock for ttl, or fails with ErrSyncInProgress
// while an unexpired lease exists
func (l *InMemorySyncLocker) Acquire(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[name]; ok && now.Before(held.expiresAt) {
		return nil, shared.ErrSyncInProgress
	}

	token := uuid.NewString()
	l.leases[name] = lease{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// A lease that expired and was taken over belongs to the new holder
		if held, ok := l.leases[name]; ok && held.token == token {
			delete(l.leases, name)
		}
		return nil
	}, nil
}

// Size returns the number of held leases (for testing/monitoring)
func (l *InMemorySyncLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.leases)
}

// Ensure InMemorySyncLocker implements SyncLocker
var _ closeoutapp.SyncLocker = (*InMemorySyncLocker)(nil)
