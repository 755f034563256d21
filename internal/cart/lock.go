package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/identity"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
)

// KeyedLocker grants at most one holder per cart owner at a time.
type KeyedLocker interface {
	Lock(ctx context.Context, owner identity.Owner) (unlock func(), err error)
	Backend() string
}

func lockUnavailable(owner identity.Owner, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, fmt.Sprintf("acquire cart lock for %s", owner))
}

// MemoryLocker is an in-process registry of per-key locks. Entries are
// dropped once no goroutine holds or waits on them.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: map[string]*keyedLock{}}
}

func (m *MemoryLocker) Backend() string { return config.LockBackendMemory }

func (m *MemoryLocker) Lock(ctx context.Context, owner identity.Owner) (func(), error) {
	key := owner.Key()

	m.mu.Lock()
	entry, ok := m.locks[key]
	if !ok {
		entry = &keyedLock{sem: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, entry)
		return nil, lockUnavailable(owner, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			m.release(key, entry)
		})
	}, nil
}

func (m *MemoryLocker) release(key string, entry *keyedLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.locks, key)
	}
}

func (m *MemoryLocker) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// redisStore defines the operations used by RedisLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CartLockKey(ownerKind, ownerID string) string
}

// RedisLocker implements KeyedLocker with SETNX + TTL so several API
// instances share one writer per cart. The TTL bounds how long a crashed
// holder can block the key.
type RedisLocker struct {
	client     redisStore
	ttl        time.Duration
	retryEvery time.Duration
	timeout    time.Duration
	logg       *logger.Logger
}

func NewRedisLocker(client redisStore, cfg config.CartConfig, logg *logger.Logger) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for cart lock")
	}
	l := &RedisLocker{
		client:     client,
		ttl:        cfg.LockTTL,
		retryEvery: cfg.LockRetryEvery,
		timeout:    cfg.LockTimeout,
		logg:       logg,
	}
	if l.ttl <= 0 {
		l.ttl = 10 * time.Second
	}
	if l.retryEvery <= 0 {
		l.retryEvery = 25 * time.Millisecond
	}
	if l.timeout <= 0 {
		l.timeout = 3 * time.Second
	}
	return l, nil
}

func (l *RedisLocker) Backend() string { return config.LockBackendRedis }

func (l *RedisLocker) Lock(ctx context.Context, owner identity.Owner) (func(), error) {
	key := l.client.CartLockKey(string(owner.Kind), owner.ID)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl)
		if err != nil {
			return nil, lockUnavailable(owner, fmt.Errorf("setnx: %w", err))
		}
		if ok {
			break
		}
		select {
		case <-waitCtx.Done():
			return nil, lockUnavailable(owner, waitCtx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled; release regardless.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			if err := l.release(releaseCtx, key, token); err != nil && l.logg != nil {
				logCtx := l.logg.WithFields(releaseCtx, map[string]any{"lock_key": key})
				l.logg.Warn(logCtx, "cart lock release failed: "+err.Error())
			}
		})
	}, nil
}

// release deletes the key only if this holder still owns it.
func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	value, err := l.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != token {
		return nil
	}
	if err := l.client.Del(ctx, key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}

// NewLocker picks the backend named in cfg.
func NewLocker(cfg config.CartConfig, client *redis.Client, logg *logger.Logger) (KeyedLocker, error) {
	switch cfg.LockBackend {
	case "", config.LockBackendMemory:
		return NewMemoryLocker(), nil
	case config.LockBackendRedis:
		if client == nil {
			return nil, errors.New("cart lock backend redis requires redis configuration")
		}
		return NewRedisLocker(client, cfg, logg)
	default:
		return nil, fmt.Errorf("unknown cart lock backend %q", cfg.LockBackend)
	}
}
