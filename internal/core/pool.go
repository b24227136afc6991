package core

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxQueueSize bounds the Worker Pool's pending-task queue (spec §4.1).
const MaxQueueSize = 5000

// WorkerPool is a fixed-size pool of goroutines that run arbitrary
// units of work. Tasks are long-lived per-connection sessions; the
// queue provides backpressure once every worker is busy.
type WorkerPool struct {
	log *zerolog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	running bool

	wg     sync.WaitGroup
	active atomic.Int64
}

// NewWorkerPool starts n workers. Panics if n <= 0 — mirroring the
// reference implementation's constructor precondition, this is a
// programmer error rather than a runtime condition to recover from.
func NewWorkerPool(n int, log *zerolog.Logger) *WorkerPool {
	if n <= 0 {
		panic("core: worker pool size must be greater than 0")
	}
	p := &WorkerPool{log: log, running: true}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.workerLoop()
	}
	return p
}

func (p *WorkerPool) workerLoop() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.running && len(p.tasks) == 0 {
			p.cond.Wait()
		}
		if !p.running && len(p.tasks) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.tasks[0]
		p.tasks = p.tasks[1:]
		p.mu.Unlock()

		p.runTask(task)
	}
}

// runTask executes task with a recover guard: a panicking task is
// logged and discarded, never taking the worker down with it.
func (p *WorkerPool) runTask(task func()) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil && p.log != nil {
			p.log.Error().
				Str("panic", "true").
				Interface("recover", r).
				Str("diag_id", uuid.NewString()).
				Msg("recovered panic in worker pool task")
		}
	}()
	task()
}

// Enqueue appends task to the queue and wakes one idle worker. It
// returns false if the pool is shutting down or the queue is already
// at MaxQueueSize.
func (p *WorkerPool) Enqueue(task func()) bool {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return false
	}
	if len(p.tasks) >= MaxQueueSize {
		p.mu.Unlock()
		return false
	}
	p.tasks = append(p.tasks, task)
	p.mu.Unlock()

	p.cond.Signal()
	return true
}

// QueueLen reports the number of tasks currently waiting.
func (p *WorkerPool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// ActiveCount reports the number of tasks currently executing.
func (p *WorkerPool) ActiveCount() int64 { return p.active.Load() }

// Shutdown flips running to false, wakes every worker so they can
// drain the remaining queue and exit, and blocks until they have all
// returned.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}
