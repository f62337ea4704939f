// Package lock serializes dialog processing on two levels: a per-key FIFO
// queue inside the process, and an optional TTL-based distributed lock shared
// by all instances. The distributed level degrades rather than blocks: when
// the backend is down or the wait budget runs out, the callback still runs,
// protected only by the local level, and the degradation is tagged and logged.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/config"
	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/platform/logger"
)

// Lock outcome tags recorded in Meta and in decision traces.
const (
	// LockAcquired means the distributed lock was held for the whole callback.
	LockAcquired = "acquired"
	// LockDisabled means no distributed backend is configured.
	LockDisabled = "disabled"
	// LockBackendUnavailable means the backend errored or is in cooldown.
	LockBackendUnavailable = "backend_unavailable"
	// LockWaitTimeout means another holder kept the lock past our wait budget.
	LockWaitTimeout = "wait_timeout"
)

// Meta describes how the critical section was protected.
type Meta struct {
	// Lock is one of the outcome tags above.
	Lock string
	// Token is the ownership token, set only when Lock is LockAcquired.
	Token string
}

// Acquired reports whether the distributed lock was actually held.
func (m Meta) Acquired() bool { return m.Lock == LockAcquired }

// Degraded reports whether the callback ran without distributed exclusivity
// while a backend was configured.
func (m Meta) Degraded() bool {
	return m.Lock == LockBackendUnavailable || m.Lock == LockWaitTimeout
}

// Coordinator owns both lock levels. A nil backend disables the distributed
// level entirely.
type Coordinator struct {
	backend Backend
	cfg     config.LockConfig
	log     *logger.Logger

	mu           sync.Mutex
	chains       map[string]chan struct{}
	cooldownTill time.Time

	now func() time.Time
}

// NewCoordinator creates a lock coordinator. Pass a nil backend to run with
// local serialization only.
func NewCoordinator(backend Backend, cfg config.LockConfig, log *logger.Logger) *Coordinator {
	return &Coordinator{
		backend: backend,
		cfg:     cfg,
		log:     log,
		chains:  make(map[string]chan struct{}),
		now:     time.Now,
	}
}

// WithLock runs fn under both lock levels. fn always runs exactly once; the
// Meta tells it how exclusive the section actually was. The error returned is
// fn's own error, never a locking error.
func (c *Coordinator) WithLock(ctx context.Context, scope, key string, fn func(ctx context.Context, meta Meta) error) error {
	releaseLocal := c.lockLocal(scope + "::" + key)
	defer releaseLocal()

	meta, releaseDist := c.acquireDistributed(ctx, scope, key)
	defer releaseDist()

	return fn(ctx, meta)
}

// lockLocal joins the FIFO chain for a key and blocks until every earlier
// caller for the same key has released. Different keys never contend.
func (c *Coordinator) lockLocal(chainKey string) func() {
	done := make(chan struct{})

	c.mu.Lock()
	prev := c.chains[chainKey]
	c.chains[chainKey] = done
	c.mu.Unlock()

	if prev != nil {
		<-prev
	}

	return func() {
		c.mu.Lock()
		if c.chains[chainKey] == done {
			delete(c.chains, chainKey)
		}
		c.mu.Unlock()
		close(done)
	}
}

func (c *Coordinator) inCooldown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.cooldownTill)
}

func (c *Coordinator) noteBackendFailure(operation string, err error) {
	c.mu.Lock()
	c.cooldownTill = c.now().Add(c.cfg.GetReconnectCooldown())
	c.mu.Unlock()
	c.log.BackendError(operation, err)
}

// acquireDistributed tries to take the shared lock within the wait budget.
// It never fails the caller: every path returns a usable Meta and a release
// function.
func (c *Coordinator) acquireDistributed(ctx context.Context, scope, key string) (Meta, func()) {
	noop := func() {}

	if c.backend == nil || !c.cfg.IsRedisEnabled() {
		return Meta{Lock: LockDisabled}, noop
	}
	if c.inCooldown() {
		c.log.LockDegraded(scope, key, LockBackendUnavailable)
		return Meta{Lock: LockBackendUnavailable}, noop
	}

	token := uuid.NewString()
	ttl := c.cfg.GetLockTTL()
	deadline := c.now().Add(c.cfg.GetLockWaitTimeout())

	for {
		ok, err := c.backend.SetIfAbsent(ctx, scope, key, token, ttl)
		if err != nil {
			c.noteBackendFailure("lock_acquire", err)
			c.log.LockDegraded(scope, key, LockBackendUnavailable)
			return Meta{Lock: LockBackendUnavailable}, noop
		}
		if ok {
			stop := c.startRenewal(scope, key, token, ttl)
			return Meta{Lock: LockAcquired, Token: token}, func() {
				stop()
				c.release(scope, key, token)
			}
		}

		if !c.now().Add(c.cfg.GetLockPollInterval()).Before(deadline) {
			c.log.LockDegraded(scope, key, LockWaitTimeout)
			return Meta{Lock: LockWaitTimeout}, noop
		}
		select {
		case <-ctx.Done():
			c.log.LockDegraded(scope, key, LockWaitTimeout)
			return Meta{Lock: LockWaitTimeout}, noop
		case <-time.After(c.cfg.GetLockPollInterval()):
		}
	}
}

// startRenewal keeps the held lock alive with a TTL/3 heartbeat until stopped.
// A renewal failure stops the heartbeat; the section then runs on whatever
// TTL remains, which is the accepted availability tradeoff.
func (c *Coordinator) startRenewal(scope, key, token string, ttl time.Duration) func() {
	interval := ttl / 3
	if interval <= 0 {
		interval = time.Second
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				ok, err := c.backend.Renew(context.Background(), scope, key, token, ttl)
				if err != nil {
					c.noteBackendFailure("lock_renew", err)
					return
				}
				if !ok {
					c.log.LockDegraded(scope, key, LockWaitTimeout)
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

func (c *Coordinator) release(scope, key, token string) {
	if _, err := c.backend.Release(context.Background(), scope, key, token); err != nil {
		c.noteBackendFailure("lock_release", err)
	}
}
