// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wifi-voucher-portal/internal/infra/metrics"
)

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

type Task = func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines. Submit never
// blocks: a saturated queue rejects the task.
type Pool struct {
	wg          sync.WaitGroup
	mu          sync.RWMutex
	jobs        chan Task
	quit        chan struct{}
	stopped     bool
	n           int
	taskTimeout time.Duration
	log         *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{
		jobs:        make(chan Task, workers*16),
		quit:        make(chan struct{}),
		n:           workers,
		taskTimeout: 30 * time.Second,
		log:         &l,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					p.drain(ctx, id)
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

// drain runs whatever is still queued so compensations are not lost on shutdown.
func (p *Pool) drain(ctx context.Context, id int) {
	for {
		select {
		case task := <-p.jobs:
			p.run(ctx, id, task)
		default:
			return
		}
	}
}

func (p *Pool) run(parent context.Context, id int, task Task) {
	if task == nil {
		return
	}
	// tasks outlive the request that queued them
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), p.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.IncWorkerTask("failed")
			p.log.Error().Int("worker", id).Str("panic", fmt.Sprint(r)).Msg("task panicked")
		}
	}()

	if err := task(ctx); err != nil {
		metrics.IncWorkerTask("failed")
		p.log.Warn().Err(err).Int("worker", id).Msg("task error")
		return
	}
	metrics.IncWorkerTask("completed")
}

// Stop stops accepting tasks, runs the queued ones and waits for workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.quit)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		metrics.IncWorkerTask("rejected")
		return ErrStopped
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		metrics.IncWorkerTask("rejected")
		return ErrQueueFull
	}
}
