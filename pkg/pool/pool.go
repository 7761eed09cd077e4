// Package pool provides a bounded worker pool for bridging blocking calls
// into concurrent fetch pipelines. The pool is sized independently of the
// number of submitted tasks, so a burst of slow synchronous exchange clients
// cannot spawn unbounded OS threads.
package pool

import (
	"context"
	"fmt"
	"sync"
)

// WorkerPool executes submitted tasks on a fixed set of goroutines. It is
// safe for concurrent submission.
type WorkerPool struct {
	size      int
	tasks     chan func()
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts a pool with the given number of workers. A non-positive size
// falls back to 10 workers.
func New(size int) *WorkerPool {
	if size <= 0 {
		size = 10
	}
	p := &WorkerPool{
		size:  size,
		tasks: make(chan func()),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.runTask(task)
	}
}

// runTask shields the worker goroutine: a panicking task must not take the
// worker (and with it every sibling task and the process) down.
func (p *WorkerPool) runTask(task func()) {
	defer func() { _ = recover() }()
	task()
}

// Size returns the configured worker count.
func (p *WorkerPool) Size() int { return p.size }

// Submit hands a task to the pool, blocking until a worker accepts it or the
// context is done.
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the pool and waits for it to finish or for the context to
// expire, whichever comes first. When the context expires first the task
// keeps running on its worker, but the caller observes ctx.Err(); the per-call
// deadline terminates only this call from the caller's point of view.
// A panic inside fn is returned to the caller as an error.
func (p *WorkerPool) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("task panicked: %v", r)
			}
		}()
		done <- fn()
	}
	if err := p.Submit(ctx, task); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for in-flight tasks to finish.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() { close(p.tasks) })
	p.wg.Wait()
}
