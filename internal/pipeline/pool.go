package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var ErrPoolNotRunning = errors.New("worker pool is not running")

// Step tells the pool what to do once a job returns: finish, or run the same
// job again after a delay.
type Step struct {
	Retry bool
	After time.Duration
}

type Job func(ctx context.Context) Step

// Pool runs jobs on a fixed number of workers. A job that asks to be retried
// is parked on a timer and re-enqueued when it fires, so waiting out a backoff
// never occupies a worker.
type Pool struct {
	workers int
	jobs    chan Job
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
	timers  map[uint64]*time.Timer
	nextID  uint64

	running  sync.WaitGroup
	inflight sync.WaitGroup
	// sending counts enqueue calls between their stopped check and their
	// channel send, so Stop drains only after the last of them settles.
	sending sync.WaitGroup
}

func NewPool(workers, queueSize int, logger *log.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		jobs:    make(chan Job, queueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[uint64]*time.Timer),
	}
}

func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.running.Add(1)
		go p.work()
	}
}

// Submit queues job. It blocks while the queue is full.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return ErrPoolNotRunning
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	p.enqueue(job)
	return nil
}

// Wait blocks until every submitted job has finished, retries included.
// Call it before Stop.
func (p *Pool) Wait() {
	p.inflight.Wait()
}

// Stop cancels pending retries and in-flight jobs' contexts, then waits for
// the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for id, t := range p.timers {
		if t.Stop() {
			p.inflight.Done()
		}
		delete(p.timers, id)
	}
	p.mu.Unlock()

	p.cancel()
	p.running.Wait()
	p.sending.Wait()

	for {
		select {
		case <-p.jobs:
			p.inflight.Done()
		default:
			return
		}
	}
}

func (p *Pool) enqueue(job Job) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.inflight.Done()
		return
	}
	p.sending.Add(1)
	p.mu.Unlock()
	defer p.sending.Done()

	select {
	case p.jobs <- job:
	case <-p.ctx.Done():
		p.inflight.Done()
	}
}

func (p *Pool) work() {
	defer p.running.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			p.run(job)
		}
	}
}

func (p *Pool) run(job Job) {
	step := p.call(job)
	if !step.Retry {
		p.inflight.Done()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		p.inflight.Done()
		return
	}

	id := p.nextID
	p.nextID++
	p.timers[id] = time.AfterFunc(step.After, func() {
		p.mu.Lock()
		_, pending := p.timers[id]
		delete(p.timers, id)
		p.mu.Unlock()

		if !pending {
			// Stop got here first but too late to cancel the timer
			p.inflight.Done()
			return
		}
		p.enqueue(job)
	})
}

func (p *Pool) call(job Job) (step Step) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("Worker recovered from panic: %v", r)
			step = Step{}
		}
	}()
	return job(p.ctx)
}
