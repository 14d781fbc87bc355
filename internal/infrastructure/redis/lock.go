package redis

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/commissions/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "lock:"

var (
	// Only the holder's token may delete the key
	unlockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)

	refreshScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// Lock is a single-holder Redis lease. The worker takes one per commission so
// two consumers never evaluate the same commission at once.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
	held   bool
}

// NewLock prepares a lock on name; nothing is sent to Redis until TryAcquire.
func NewLock(client *redis.Client, name string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    lockKeyPrefix + name,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// CommissionLockName is the lock name used for one commission.
func CommissionLockName(commissionID int64) string {
	return fmt.Sprintf("commission:%d", commissionID)
}

// TryAcquire makes one SET NX attempt. It returns false, not an error, when
// another holder owns the key.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	l.held = ok
	return ok, nil
}

// Refresh pushes the expiry out to a full TTL again.
func (l *Lock) Refresh(ctx context.Context) error {
	if !l.held {
		return domainErrors.ErrLockNotHeld
	}
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("refresh lock %s: %w", l.key, err)
	}
	if n == 0 {
		l.held = false
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// Release drops the lock if this holder still owns it. Releasing a lock that
// was never acquired is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	l.held = false
	if n == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// Held reports whether the last acquire succeeded and the lock was not released since.
func (l *Lock) Held() bool {
	return l.held
}
