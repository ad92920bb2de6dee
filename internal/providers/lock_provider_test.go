package providers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickd/internal/models"
	"pickd/internal/structures"
)

func newLocks(timeout time.Duration) LockProviderInterface {
	return NewLockProvider(&structures.Config{
		Picker: structures.PickerConfig{LockTimeout: timeout},
	})
}

func TestLockProvider_AcquireRelease(t *testing.T) {
	lp := newLocks(time.Second)

	release, err := lp.Acquire(context.Background(), "general/1")
	require.NoError(t, err)
	release()

	// the token is free again
	release, err = lp.Acquire(context.Background(), "general/1")
	require.NoError(t, err)
	release()
}

func TestLockProvider_TimeoutReturnsBusy(t *testing.T) {
	lp := newLocks(30 * time.Millisecond)

	release, err := lp.Acquire(context.Background(), "general/1")
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = lp.Acquire(context.Background(), "general/1")
	require.ErrorIs(t, err, models.ErrBusy)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestLockProvider_IndependentKeys(t *testing.T) {
	lp := newLocks(30 * time.Millisecond)

	r1, err := lp.Acquire(context.Background(), "general/1")
	require.NoError(t, err)
	defer r1()

	r2, err := lp.Acquire(context.Background(), "general/2")
	require.NoError(t, err)
	r2()
}

func TestLockProvider_ContextCancellation(t *testing.T) {
	lp := newLocks(time.Minute)

	release, err := lp.Acquire(context.Background(), "general/1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := lp.Acquire(ctx, "general/1")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, models.ErrBusy)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after context cancellation")
	}
}

func TestLockProvider_ReleaseIsIdempotent(t *testing.T) {
	lp := newLocks(30 * time.Millisecond)

	release, err := lp.Acquire(context.Background(), "general/1")
	require.NoError(t, err)
	release()
	release()

	// a double release must not free a token held by somebody else
	r1, err := lp.Acquire(context.Background(), "general/1")
	require.NoError(t, err)
	defer r1()

	_, err = lp.Acquire(context.Background(), "general/1")
	assert.ErrorIs(t, err, models.ErrBusy)
}

func TestLockProvider_Serializes(t *testing.T) {
	lp := newLocks(5 * time.Second)

	const n = 32
	counter := 0
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := lp.Acquire(context.Background(), "general/1")
			if err != nil {
				t.Error(err)
				return
			}
			counter++
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, n, counter)
}

func TestLockProvider_EvictDropsEntry(t *testing.T) {
	lp := newLocks(time.Second)

	release, err := lp.Acquire(context.Background(), "general/1")
	require.NoError(t, err)
	release()

	lp.Evict("general/1")
	assert.Empty(t, lp.(*LockProvider).locks)
}

func TestLockProvider_ReleasedEntryIsReaped(t *testing.T) {
	lp := newLocks(time.Second)

	release, err := lp.Acquire(context.Background(), "general/1")
	require.NoError(t, err)
	release()

	assert.Empty(t, lp.(*LockProvider).locks)
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "general/42", LockKey("general", 42))
}
