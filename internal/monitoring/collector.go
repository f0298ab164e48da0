package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/payrecon-ocr/internal/model"
)

// Snapshot holds a point-in-time view of queue and cache health.
type Snapshot struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Done      int `json:"done"`
	Error     int `json:"error"`
	Exhausted int `json:"exhausted"`
	TotalJobs int `json:"total_jobs"`

	CacheEntries  int `json:"cache_entries"`
	MemoryEntries int `json:"memory_entries"`

	CollectedAt time.Time `json:"collected_at"`
}

// StatsSource abstracts the store counts needed by the collector.
type StatsSource interface {
	CountJobs(ctx context.Context) (model.JobCounts, error)
	CountCachedResults(ctx context.Context) (int, error)
}

// Collector gathers queue and cache metrics and mirrors them into
// prometheus gauges.
type Collector struct {
	source   StatsSource
	memCount func() int
}

// NewCollector creates a new metrics collector. memCount reports the
// in-process cache size and may be nil.
func NewCollector(source StatsSource, memCount func() int) *Collector {
	return &Collector{source: source, memCount: memCount}
}

// Collect gathers a snapshot of current metrics.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	counts, err := c.source.CountJobs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count jobs")
	}

	cached, err := c.source.CountCachedResults(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count cached results")
	}

	snap := &Snapshot{
		Queued:       counts[model.JobQueued],
		Running:      counts[model.JobRunning],
		Done:         counts[model.JobDone],
		Error:        counts[model.JobError],
		Exhausted:    counts[model.JobExhausted],
		CacheEntries: cached,
		CollectedAt:  time.Now().UTC(),
	}
	for _, n := range counts {
		snap.TotalJobs += n
	}
	if c.memCount != nil {
		snap.MemoryEntries = c.memCount()
	}

	for _, s := range []model.JobStatus{model.JobQueued, model.JobRunning, model.JobDone, model.JobError, model.JobExhausted} {
		jobsGauge.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
	cacheGauge.WithLabelValues("store").Set(float64(snap.CacheEntries))
	cacheGauge.WithLabelValues("memory").Set(float64(snap.MemoryEntries))

	return snap, nil
}
