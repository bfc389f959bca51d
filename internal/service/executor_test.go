package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/scribe/internal/logger"
)

func TestExecutorRunsTasks(t *testing.T) {
	e := NewExecutor(2, 8, nil)
	e.Start()

	var n int32
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Submit(context.Background(), "inc", func(ctx context.Context) {
			atomic.AddInt32(&n, 1)
		}))
	}

	require.NoError(t, e.Shutdown(context.Background()))
	assert.Equal(t, int32(5), atomic.LoadInt32(&n))
}

func TestExecutorSubmitNeverBlocks(t *testing.T) {
	e := NewExecutor(1, 1, nil)
	e.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, e.Submit(context.Background(), "block", func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, e.Submit(context.Background(), "queued", func(ctx context.Context) {}))
	assert.ErrorIs(t, e.Submit(context.Background(), "overflow", func(ctx context.Context) {}), ErrQueueFull)

	close(release)
	require.NoError(t, e.Shutdown(context.Background()))
	assert.ErrorIs(t, e.Submit(context.Background(), "late", func(ctx context.Context) {}), ErrExecutorClosed)
}

func TestExecutorDetachesContext(t *testing.T) {
	e := NewExecutor(1, 1, nil)
	e.Start()

	ctx, cancel := context.WithCancel(logger.SetRequestID(context.Background(), "req-1"))

	var wg sync.WaitGroup
	wg.Add(1)
	var taskErr error
	var requestID string
	require.NoError(t, e.Submit(ctx, "detached", func(ctx context.Context) {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		taskErr = ctx.Err()
		requestID = logger.GetRequestID(ctx)
	}))
	cancel()
	wg.Wait()

	assert.NoError(t, taskErr)
	assert.Equal(t, "req-1", requestID)
	require.NoError(t, e.Shutdown(context.Background()))
}

func TestExecutorRecoversPanics(t *testing.T) {
	e := NewExecutor(1, 4, nil)
	e.Start()

	var ran int32
	require.NoError(t, e.Submit(context.Background(), "panic", func(ctx context.Context) { panic("boom") }))
	require.NoError(t, e.Submit(context.Background(), "after", func(ctx context.Context) { atomic.StoreInt32(&ran, 1) }))

	require.NoError(t, e.Shutdown(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestExecutorShutdownTimeout(t *testing.T) {
	e := NewExecutor(1, 1, nil)
	e.Start()

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, e.Submit(context.Background(), "slow", func(ctx context.Context) { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Shutdown(ctx), context.DeadlineExceeded)
}
