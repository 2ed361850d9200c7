package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pricelift/webhook-service/internal/engine"
)

// Poller continuously pulls due jobs from the delivery queue and feeds
// them to the pool. Multiple instances may poll the same queue; the
// ZRem-based claim makes each job land on exactly one of them.
type Poller struct {
	queue        *engine.Queue
	pool         *Pool
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int64
	wg           sync.WaitGroup
}

func NewPoller(queue *engine.Queue, pool *Pool, logger *slog.Logger) *Poller {
	return &Poller{
		queue:        queue,
		pool:         pool,
		logger:       logger,
		pollInterval: 100 * time.Millisecond,
		batchSize:    10,
	}
}

// Start launches the polling loop. It runs until ctx is cancelled;
// call Stop to wait for it to exit.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop blocks until the polling loop has exited, any in-flight poll
// included. Shutdown order matters: cancel the Start context, Stop,
// and only then drain the pool. A poll still running after
// cancellation can submit jobs it already claimed from redis, so
// closing the pool's intake before Stop returns would panic and lose
// those claimed jobs.
func (p *Poller) Stop() {
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	p.logger.Info("delivery poller started")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("delivery poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	members, err := p.queue.Due(ctx, time.Now(), p.batchSize)
	if err != nil {
		p.logger.Error("failed to poll delivery queue", "error", err)
		return
	}

	for _, member := range members {
		claimed, err := p.queue.Claim(ctx, member)
		if err != nil {
			p.logger.Error("failed to claim job", "error", err)
			continue
		}
		if !claimed {
			// Another instance took it.
			continue
		}

		var job engine.DeliveryJob
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			p.logger.Error("failed to unmarshal job", "error", err)
			continue
		}

		p.pool.Submit(job)
	}
}
