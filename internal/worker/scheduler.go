package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs worker passes on a fixed interval.
type Scheduler struct {
	worker   *Worker
	interval time.Duration
	opts     Options
}

// NewScheduler creates a Scheduler. A non-positive interval defaults to one
// minute.
func NewScheduler(w *Worker, interval time.Duration, opts Options) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{worker: w, interval: interval, opts: opts}
}

// Run executes a pass immediately and then once per interval. It blocks
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "worker.scheduler"))
	log.Info("starting worker scheduler",
		zap.Duration("interval", s.interval),
		zap.Int("limit", s.opts.Limit),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("worker scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx, log)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	n, err := s.worker.Run(ctx, s.opts)
	if err != nil {
		log.Error("worker: scheduled pass failed", zap.Error(err))
		return
	}
	log.Debug("worker: scheduled pass", zap.Int("processed", n))
}
