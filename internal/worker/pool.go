// Package worker runs bounded concurrent fetches and throttles requests
// per host.
package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotRun is the result error for jobs skipped after cancellation
var ErrNotRun = errors.New("job not run")

// Job is a unit of work producing a T
type Job[T any] func(ctx context.Context) (T, error)

// Result is the outcome of the job submitted at Index
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

type indexedJob[T any] struct {
	index int
	run   Job[T]
}

// Pool executes jobs on a fixed number of goroutines
type Pool[T any] struct {
	workers    int
	jobQueue   chan indexedJob[T]
	results    chan Result[T]
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	next       int
	jobsOnce   sync.Once
	resultOnce sync.Once
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops the workers.
func NewPool[T any](ctx context.Context, workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[T]{
		workers:    workers,
		jobQueue:   make(chan indexedJob[T], workers*2),
		results:    make(chan Result[T], workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers
func (p *Pool[T]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			value, err := job.run(p.ctx)
			select {
			case p.results <- Result[T]{Index: job.index, Value: value, Err: err}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns false when the pool was cancelled.
// Submit must not be called after Wait.
func (p *Pool[T]) Submit(job Job[T]) bool {
	ij := indexedJob[T]{index: p.next, run: job}
	p.next++
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- ij:
		return true
	}
}

// Wait closes the queue and returns all results ordered by submission.
// Results must be drained concurrently with Submit when more than
// twice the worker count is queued; Map does that.
func (p *Pool[T]) Wait() []Result[T] {
	p.closeJobs()
	return p.collect()
}

// Shutdown cancels outstanding work and waits for the workers to exit
func (p *Pool[T]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[T]) collect() []Result[T] {
	go func() {
		p.wg.Wait()
		p.closeResults()
		p.cancelFunc()
	}()

	var results []Result[T]
	for r := range p.results {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

func (p *Pool[T]) closeJobs() {
	p.jobsOnce.Do(func() { close(p.jobQueue) })
}

func (p *Pool[T]) closeResults() {
	p.resultOnce.Do(func() { close(p.results) })
}

// Map runs every job with at most workers in flight and returns one result
// per job, in input order. Jobs that never ran carry ErrNotRun or the
// context error.
func Map[T any](ctx context.Context, workers int, jobs []Job[T]) []Result[T] {
	out := make([]Result[T], len(jobs))
	for i := range out {
		out[i] = Result[T]{Index: i, Err: ErrNotRun}
	}
	if len(jobs) == 0 {
		return out
	}

	p := NewPool[T](ctx, workers)
	p.Start()
	go func() {
		for _, job := range jobs {
			if !p.Submit(job) {
				break
			}
		}
		p.closeJobs()
	}()

	for _, r := range p.collect() {
		out[r.Index] = r
	}
	if err := ctx.Err(); err != nil {
		for i := range out {
			if errors.Is(out[i].Err, ErrNotRun) {
				out[i].Err = err
			}
		}
	}
	return out
}
