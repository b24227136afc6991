package core

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsEnqueuedTasks(t *testing.T) {
	pool := NewWorkerPool(4, nil)
	defer pool.Shutdown()

	var ran atomic.Int64
	for i := 0; i < 50; i++ {
		require.True(t, pool.Enqueue(func() { ran.Add(1) }))
	}

	require.Eventually(t, func() bool { return ran.Load() == 50 }, time.Second, time.Millisecond)
}

func TestWorkerPoolRecoversPanickingTask(t *testing.T) {
	pool := NewWorkerPool(2, nil)
	defer pool.Shutdown()

	var ran atomic.Bool
	require.True(t, pool.Enqueue(func() { panic("boom") }))
	require.True(t, pool.Enqueue(func() { ran.Store(true) }))

	require.Eventually(t, ran.Load, time.Second, time.Millisecond)
}

func TestWorkerPoolRejectsWhenQueueFull(t *testing.T) {
	pool := NewWorkerPool(1, nil)
	defer pool.Shutdown()

	block := make(chan struct{})
	require.True(t, pool.Enqueue(func() { <-block }))

	ok := true
	for i := 0; i < MaxQueueSize+10; i++ {
		if !pool.Enqueue(func() {}) {
			ok = false
			break
		}
	}
	require.False(t, ok, "queue should saturate at MaxQueueSize")

	close(block)
}

func TestWorkerPoolShutdownRejectsFurtherWork(t *testing.T) {
	pool := NewWorkerPool(2, nil)
	pool.Shutdown()

	require.False(t, pool.Enqueue(func() {}))
}
