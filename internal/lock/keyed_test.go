package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	defer goleak.VerifyNone(t)
	k := NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(ctx, "campaign:1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, k.Len(), "entries are dropped once released")
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := k.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := k.TryLock(ctx, "b")
	require.NoError(t, err)
	unlockB()
	assert.Equal(t, 1, k.Len())
}

func TestKeyedMutex_TryLockHeld(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	unlock, err := k.TryLock(ctx, "driver:1")
	require.NoError(t, err)

	_, err = k.TryLock(ctx, "driver:1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	unlock()

	again, err := k.TryLock(ctx, "driver:1")
	require.NoError(t, err)
	again()
	assert.Zero(t, k.Len())
}

func TestKeyedMutex_LockHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	k := NewKeyedMutex()

	unlock, err := k.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, k.Len())
}
