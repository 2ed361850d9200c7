package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pricelift/webhook-service/internal/engine"
)

// Pool runs a fixed number of worker goroutines over the delivery job
// channel. Fan-out across N endpoints executes concurrently: total
// wall-clock delivery time is bounded by the slowest single attempt,
// not the sum.
type Pool struct {
	numWorkers int
	jobs       chan engine.DeliveryJob
	deliverer  *Deliverer
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, deliverer *Deliverer, logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan engine.DeliveryJob, numWorkers*2),
		deliverer:  deliverer,
		logger:     logger,
	}
}

// Start launches the workers. They drain the jobs channel until it is
// closed or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit hands a job to the pool.
func (p *Pool) Submit(job engine.DeliveryJob) {
	p.jobs <- job
}

// Drain closes intake and waits for in-flight deliveries to finish.
// This is the shutdown hook: jobs already claimed from redis are
// completed before the process exits.
func (p *Pool) Drain() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool drained")
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		select {
		case <-ctx.Done():
			return
		default:
			p.deliverer.Deliver(ctx, job)
		}
	}
}
