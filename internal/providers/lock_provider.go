package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pickd/internal/models"
	"pickd/internal/structures"
)

// LockProviderInterface hands out per-event exclusive tokens. Tokens for
// different keys are independent and a holder never acquires a second
// key, so the table cannot deadlock.
type LockProviderInterface interface {
	// Acquire blocks until the token for key is free, the context is
	// done, or the configured timeout elapses (models.ErrBusy). The
	// returned release func is safe to call exactly once.
	Acquire(ctx context.Context, key string) (func(), error)
	// Evict drops the table entry for a deleted event. Outstanding
	// holders keep their token; no future request will reference the key.
	Evict(key string)
}

type eventLock struct {
	sem  chan struct{}
	refs int
}

type LockProvider struct {
	mu      sync.Mutex
	locks   map[string]*eventLock
	timeout time.Duration
}

func NewLockProvider(conf *structures.Config) LockProviderInterface {
	return &LockProvider{
		locks:   make(map[string]*eventLock),
		timeout: conf.Picker.LockTimeout,
	}
}

// LockKey builds the token-table key for an event.
func LockKey(channel string, eventID int64) string {
	return fmt.Sprintf("%s/%d", channel, eventID)
}

func (lp *LockProvider) get(key string) *eventLock {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	l, ok := lp.locks[key]
	if !ok {
		l = &eventLock{sem: make(chan struct{}, 1)}
		lp.locks[key] = l
	}
	l.refs++
	return l
}

func (lp *LockProvider) put(key string, l *eventLock) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	l.refs--
	if l.refs == 0 && len(l.sem) == 0 {
		delete(lp.locks, key)
	}
}

func (lp *LockProvider) Acquire(ctx context.Context, key string) (func(), error) {
	l := lp.get(key)

	timer := time.NewTimer(lp.timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-l.sem
				lp.put(key, l)
			})
		}
		return release, nil
	case <-ctx.Done():
		lp.put(key, l)
		return nil, fmt.Errorf("%w: %s", models.ErrBusy, ctx.Err())
	case <-timer.C:
		lp.put(key, l)
		return nil, fmt.Errorf("%w: lock wait exceeded %s", models.ErrBusy, lp.timeout)
	}
}

func (lp *LockProvider) Evict(key string) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if l, ok := lp.locks[key]; ok && l.refs == 0 {
		delete(lp.locks, key)
	}
}
