package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "did:campus:alice")
			require.NoError(t, err)
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "holders of the same key must never overlap")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := m.Acquire(ctx, "did:campus:alice")
	require.NoError(t, err)
	defer releaseA()

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		releaseB, err := m.Acquire(ctx, "did:campus:bob")
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked behind an unrelated holder")
	}
}

func TestKeyedMutexContextCancellation(t *testing.T) {
	m := NewKeyedMutex()

	release, err := m.Acquire(context.Background(), "did:campus:alice")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = m.Acquire(ctx, "did:campus:alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The key must still be usable after the abandoned waiter.
	release()
	release2, err := m.Acquire(context.Background(), "did:campus:alice")
	require.NoError(t, err)
	release2()
}

func TestKeyedMutexReleaseIsIdempotent(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	release, err := m.Acquire(ctx, "did:campus:alice")
	require.NoError(t, err)
	release()
	release() // must not unlock someone else's acquisition

	release2, err := m.Acquire(ctx, "did:campus:alice")
	require.NoError(t, err)
	defer release2()
}
