package worker

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBoundedPool_RunsSubmittedWork(t *testing.T) {
	pool := NewBoundedPool(2, zap.NewNop())

	future1 := pool.Submit(func() (any, error) { return 1, nil })
	future2 := pool.Submit(func() (any, error) { return 2, nil })

	r1 := <-future1
	r2 := <-future2

	require.NoError(t, r1.Err)
	require.NoError(t, r2.Err)
	assert.ElementsMatch(t, []int{1, 2}, []int{r1.Value.(int), r2.Value.(int)})
}

func TestBoundedPool_PropagatesTaskError(t *testing.T) {
	pool := NewBoundedPool(1, zap.NewNop())

	future := pool.Submit(func() (any, error) { return nil, fmt.Errorf("boom") })
	result := <-future

	assert.Error(t, result.Err)
	assert.Nil(t, result.Value)
}

func TestBoundedPool_RecoversPanickingTask(t *testing.T) {
	pool := NewBoundedPool(1, zap.NewNop())

	future := pool.Submit(func() (any, error) {
		panic("task exploded")
	})
	result := <-future

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "task exploded")

	// The pool itself must survive a panicking task: a follow-up
	// submission should still complete normally.
	next := pool.Submit(func() (any, error) { return "ok", nil })
	nextResult := <-next
	require.NoError(t, nextResult.Err)
	assert.Equal(t, "ok", nextResult.Value)
}

func TestBoundedPool_BoundsConcurrency(t *testing.T) {
	const size = 2
	pool := NewBoundedPool(size, zap.NewNop())

	var concurrent int32
	var maxConcurrent int32
	release := make(chan struct{})

	for i := 0; i < 5; i++ {
		pool.Submit(func() (any, error) {
			cur := atomic.AddInt32(&concurrent, 1)
			for {
				prev := atomic.LoadInt32(&maxConcurrent)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxConcurrent, prev, cur) {
					break
				}
			}
			<-release
			atomic.AddInt32(&concurrent, -1)
			return nil, nil
		})
	}

	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxConcurrent)), size)
}
