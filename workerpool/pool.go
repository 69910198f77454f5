package workerpool

import "sync"

// Job is a unit of work submitted to a Pool.
type Job func() error

// Pool runs submitted jobs on a fixed number of worker goroutines.
// Jobs submitted together are independent; the pool records the first
// error any job returns and keeps running the rest.
type Pool struct {
	jobs    chan Job
	stop    chan struct{}
	stopped sync.Once
	pending sync.WaitGroup

	mu  sync.Mutex
	err error
}

// New starts a pool with the given number of workers.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		jobs: make(chan Job),
		stop: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Add queues jobs for execution without blocking the caller.
func (p *Pool) Add(jobs []Job) {
	p.pending.Add(len(jobs))
	go p.feed(jobs)
}

// AddBlocking queues jobs for execution, blocking until every job has
// been handed to a worker (not until they complete; use Wait for that).
func (p *Pool) AddBlocking(jobs []Job) {
	p.pending.Add(len(jobs))
	p.feed(jobs)
}

// Wait blocks until every added job has completed or been discarded by
// Stop, and returns the first error recorded by any job.
func (p *Pool) Wait() error {
	p.pending.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stop discards jobs that have not yet started and shuts the workers
// down. Jobs already running are left to finish.
func (p *Pool) Stop() {
	p.stopped.Do(func() {
		close(p.stop)
	})
}

func (p *Pool) feed(jobs []Job) {
	for i, job := range jobs {
		select {
		case p.jobs <- job:
		case <-p.stop:
			p.pending.Add(i - len(jobs))
			return
		}
	}
}

func (p *Pool) worker() {
	for {
		select {
		case <-p.stop:
			return
		case job := <-p.jobs:
			if err := job(); err != nil {
				p.mu.Lock()
				if p.err == nil {
					p.err = err
				}
				p.mu.Unlock()
			}
			p.pending.Done()
		}
	}
}
