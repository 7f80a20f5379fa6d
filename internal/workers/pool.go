// Package workers provides the bounded worker pool used for parallel
// simulation and evaluation loops.
package workers

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool manages a fixed set of goroutines that execute submitted tasks.
type Pool struct {
	workers    int
	taskQueue  chan func()
	wg         sync.WaitGroup
	mu         sync.RWMutex
	running    atomic.Bool
	tasksTotal atomic.Uint64
	tasksDone  atomic.Uint64
}

// NewPool creates a new pool with the specified number of workers.
// If workers is 0, it defaults to runtime.NumCPU().
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		workers:   workers,
		taskQueue: make(chan func(), workers*4),
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	if p.running.Swap(true) {
		return // Already running
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.taskQueue {
		task()
		p.tasksDone.Add(1)
	}
}

// Submit queues a task, blocking while the queue is full.
// Returns false if the pool is not running.
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running.Load() {
		return false
	}
	p.tasksTotal.Add(1)
	p.taskQueue <- task
	return true
}

// Stop drains the queue and waits for all workers to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running.Swap(false) {
		p.mu.Unlock()
		return // Not running
	}
	close(p.taskQueue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		Running:    p.running.Load(),
		TasksTotal: p.tasksTotal.Load(),
		TasksDone:  p.tasksDone.Load(),
		QueueLen:   len(p.taskQueue),
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Workers    int
	Running    bool
	TasksTotal uint64
	TasksDone  uint64
	QueueLen   int
}

// ForEach calls fn(i) for every i in [0, n) using up to workers goroutines
// and returns once all calls have completed. Each call should write only to
// its own output slot.
func ForEach(workers, n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	if workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	pool := NewPool(workers)
	pool.Start()
	for i := 0; i < n; i++ {
		i := i
		pool.Submit(func() { fn(i) })
	}
	pool.Stop()
}
