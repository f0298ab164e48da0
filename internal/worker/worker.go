// Package worker drains the OCR job queue: each pass claims queued jobs,
// calls the vendor endpoint configured for the job and records the outcome,
// requeueing with exponential backoff when the endpoint is throttled or down.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payrecon-ocr/internal/config"
	"github.com/sells-group/payrecon-ocr/internal/model"
	"github.com/sells-group/payrecon-ocr/internal/resilience"
)

const (
	defaultLimit          = 5
	defaultBaseDelay      = time.Second
	defaultMaxDelay       = 30 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Queue is the part of the store the worker reads and writes.
type Queue interface {
	ClaimJobs(ctx context.Context, limit int) ([]model.Job, error)
	PeekJobs(ctx context.Context, limit int) ([]model.Job, error)
	UpdateJob(ctx context.Context, id int64, update model.JobUpdate) error
}

// Options controls a single pass.
type Options struct {
	Limit  int
	DryRun bool
}

// Worker processes queued jobs.
type Worker struct {
	queue      Queue
	endpoints  map[string]string
	client     *http.Client
	limit      int
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	timeout    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a Worker. endpoints maps vendor names to the URL that
// processes a file hash for that vendor.
func New(queue Queue, endpoints map[string]string, cfg config.WorkerConfig) *Worker {
	w := &Worker{
		queue:      queue,
		endpoints:  endpoints,
		client:     &http.Client{},
		limit:      cfg.Limit,
		maxRetries: cfg.MaxRetries,
		baseDelay:  time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		maxDelay:   time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		timeout:    time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		sleep:      resilience.Sleep,
	}
	if w.limit <= 0 {
		w.limit = defaultLimit
	}
	if w.baseDelay <= 0 {
		w.baseDelay = defaultBaseDelay
	}
	if w.maxDelay <= 0 {
		w.maxDelay = defaultMaxDelay
	}
	if w.timeout <= 0 {
		w.timeout = defaultRequestTimeout
	}
	return w
}

// Backoff returns the wait before a job with the given retry count is
// requeued.
func (w *Worker) Backoff(retries int) time.Duration {
	return resilience.ExponentialDelay(retries, w.baseDelay, w.maxDelay)
}

// Run performs one pass over up to opts.Limit queued jobs, oldest first, and
// returns how many it touched. A dry run only counts the jobs that would be
// processed.
func (w *Worker) Run(ctx context.Context, opts Options) (int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = w.limit
	}
	log := zap.L().With(zap.String("component", "worker"), zap.Bool("dry_run", opts.DryRun))

	if opts.DryRun {
		passes.WithLabelValues("dry_run").Inc()
		jobs, err := w.queue.PeekJobs(ctx, limit)
		if err != nil {
			return 0, eris.Wrap(err, "worker: peek jobs")
		}
		for _, j := range jobs {
			log.Info("worker: would process job",
				zap.Int64("job_id", j.ID),
				zap.String("vendor", j.Vendor),
				zap.Int("retries", j.Retries),
			)
		}
		return len(jobs), nil
	}

	passes.WithLabelValues("live").Inc()
	jobs, err := w.queue.ClaimJobs(ctx, limit)
	if err != nil {
		return 0, eris.Wrap(err, "worker: claim jobs")
	}

	processed := 0
	for _, j := range jobs {
		processed++
		w.process(ctx, log, j)
	}

	if processed > 0 {
		log.Info("worker: pass complete", zap.Int("processed", processed))
	}
	return processed, nil
}

func (w *Worker) process(ctx context.Context, log *zap.Logger, job model.Job) {
	log = log.With(zap.Int64("job_id", job.ID), zap.String("vendor", job.Vendor))

	endpoint := w.endpoints[job.Vendor]
	if endpoint == "" {
		w.finish(ctx, log, job, model.JobUpdate{
			Status:    model.JobError,
			Retries:   job.Retries,
			LastError: fmt.Sprintf("no endpoint configured for vendor %q", job.Vendor),
			ErrorType: resilience.ErrorPermanent,
		})
		return
	}

	status, err := w.invoke(ctx, endpoint, job.FileHash)
	switch {
	case err != nil:
		w.finish(ctx, log, job, model.JobUpdate{
			Status:    model.JobError,
			Retries:   job.Retries,
			LastError: err.Error(),
			ErrorType: resilience.ClassifyError(err),
		})

	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		w.retry(ctx, log, job, status)

	case status < 200 || status > 299:
		w.finish(ctx, log, job, model.JobUpdate{
			Status:    model.JobError,
			Retries:   job.Retries,
			LastError: fmt.Sprintf("endpoint returned %d", status),
			ErrorType: resilience.ErrorPermanent,
		})

	default:
		w.finish(ctx, log, job, model.JobUpdate{
			Status:  model.JobDone,
			Retries: job.Retries,
		})
	}
}

// retry requeues a throttled or failed job after its backoff, or marks it
// exhausted once the retry ceiling is reached.
func (w *Worker) retry(ctx context.Context, log *zap.Logger, job model.Job, status int) {
	lastErr := fmt.Sprintf("endpoint returned %d", status)
	next := job.Retries + 1

	if w.maxRetries > 0 && next > w.maxRetries {
		w.finish(ctx, log, job, model.JobUpdate{
			Status:    model.JobExhausted,
			Retries:   job.Retries,
			LastError: lastErr,
			ErrorType: resilience.ErrorTransient,
		})
		return
	}

	delay := w.Backoff(job.Retries)
	backoffSeconds.Observe(delay.Seconds())
	log.Info("worker: backing off", zap.Int("status", status), zap.Duration("delay", delay))
	if err := w.sleep(ctx, delay); err != nil {
		log.Warn("worker: backoff interrupted, requeueing now", zap.Error(err))
	}

	w.finish(ctx, log, job, model.JobUpdate{
		Status:    model.JobQueued,
		Retries:   next,
		LastError: lastErr,
		ErrorType: resilience.ErrorTransient,
	})
}

// finish writes the update even when ctx is cancelled so claimed jobs are
// never left running.
func (w *Worker) finish(ctx context.Context, log *zap.Logger, job model.Job, update model.JobUpdate) {
	jobOutcomes.WithLabelValues(string(update.Status)).Inc()
	if err := w.queue.UpdateJob(context.WithoutCancel(ctx), job.ID, update); err != nil {
		log.Error("worker: update job failed", zap.String("status", string(update.Status)), zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.String("status", string(update.Status)),
		zap.Int("retries", update.Retries),
	}
	if update.LastError != "" {
		fields = append(fields, zap.String("error", update.LastError), zap.String("error_type", update.ErrorType))
	}
	log.Info("worker: job updated", fields...)
}

func (w *Worker) invoke(ctx context.Context, endpoint, fileHash string) (int, error) {
	body, err := json.Marshal(map[string]string{"file_hash": fileHash})
	if err != nil {
		return 0, eris.Wrap(err, "worker: marshal request")
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, eris.Wrap(err, "worker: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, resilience.NewTransientError(eris.Wrap(err, "worker: call endpoint"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return resp.StatusCode, nil
}
