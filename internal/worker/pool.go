package worker

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/corelab/udd-packager/internal/application/port"
)

func errPanicked(r any) error {
	return fmt.Errorf("task panic: %v", r)
}

// BoundedPool is a fixed-size goroutine pool: N workers pull thunks off
// a shared channel and push their result onto a per-submission future
// channel. It generalizes the teacher's long-lived named-worker
// manager (start/stop a handful of background loops) into a pool of
// short-lived, one-shot tasks joined individually by the caller.
type BoundedPool struct {
	jobs   chan job
	logger *zap.Logger
}

type job struct {
	fn     func() (any, error)
	result chan<- port.PoolResult
}

// NewBoundedPool starts a pool with size concurrent workers. size <= 0
// is treated as 1.
func NewBoundedPool(size int, logger *zap.Logger) *BoundedPool {
	if size <= 0 {
		size = 1
	}

	p := &BoundedPool{
		jobs:   make(chan job),
		logger: logger,
	}

	for i := 0; i < size; i++ {
		go p.runWorker(i)
	}

	return p
}

func (p *BoundedPool) runWorker(id int) {
	for j := range p.jobs {
		value, err := p.safeRun(j.fn)
		j.result <- port.PoolResult{Value: value, Err: err}
	}
}

// safeRun recovers a panicking task so one bad task can't wedge the
// pool or leave a submitter's future channel unwritten.
func (p *BoundedPool) safeRun(fn func() (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked", zap.Any("recover", r))
			err = errPanicked(r)
		}
	}()
	return fn()
}

// Submit schedules fn and returns a future channel that receives
// exactly one result. It returns without waiting for a free worker.
func (p *BoundedPool) Submit(fn func() (any, error)) <-chan port.PoolResult {
	result := make(chan port.PoolResult, 1)
	go func() { p.jobs <- job{fn: fn, result: result} }()
	return result
}

var _ port.WorkerPool = (*BoundedPool)(nil)
