package background

import (
	"context"
	"fmt"

	"github.com/mentora-ai/mentora-backend/internal/platform/logger"
)

// Job is a named unit of fire-and-forget work. Its error is logged and
// swallowed: background failures must never fail a foreground request.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs background jobs on a fixed set of lanes, decoupled from the
// request-handling goroutines. Submission is non-blocking up to the queue
// size; beyond that the job is dropped with a log line rather than
// stalling a request.
type Pool struct {
	log         *logger.Logger
	jobs        chan Job
	concurrency int
}

func NewPool(baseLog *logger.Logger, concurrency, queueSize int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < concurrency {
		queueSize = concurrency * 16
	}
	return &Pool{
		log:         baseLog.With("component", "BackgroundPool"),
		jobs:        make(chan Job, queueSize),
		concurrency: concurrency,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.log.Info("Starting background pool", "concurrency", p.concurrency, "queue_size", cap(p.jobs))
	for i := 0; i < p.concurrency; i++ {
		laneID := i + 1
		go p.runLoop(ctx, laneID)
	}
}

func (p *Pool) Submit(job Job) bool {
	if job.Run == nil {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.log.Warn("Background queue full; job dropped", "job", job.Name)
		return false
	}
}

func (p *Pool) runLoop(ctx context.Context, laneID int) {
	for {
		select {
		case <-ctx.Done():
			p.log.Info("Background lane stopped", "lane_id", laneID)
			return
		case job := <-p.jobs:
			p.runOne(ctx, laneID, job)
		}
	}
}

func (p *Pool) runOne(ctx context.Context, laneID int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Background job panic", "lane_id", laneID, "job", job.Name, "panic", fmt.Sprint(r))
		}
	}()
	if err := job.Run(ctx); err != nil {
		p.log.Error("Background job failed", "lane_id", laneID, "job", job.Name, "error", err)
		return
	}
	p.log.Debug("Background job done", "lane_id", laneID, "job", job.Name)
}
