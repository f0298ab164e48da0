package store

import (
	"context"
	"errors"

	"github.com/sells-group/payrecon-ocr/internal/model"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the persistence interface for the OCR result cache and job
// queue.
type Store interface {
	// Result cache. Entries are immutable: the first write for a file hash
	// wins and later writes return the stored entry.
	GetCachedResult(ctx context.Context, fileHash string) (*model.CacheEntry, error)
	PutCachedResult(ctx context.Context, entry model.CacheEntry) (*model.CacheEntry, error)
	CountCachedResults(ctx context.Context) (int, error)

	// Jobs
	EnqueueJob(ctx context.Context, fileHash, vendor string) (*model.Job, error)
	ClaimJobs(ctx context.Context, limit int) ([]model.Job, error)
	PeekJobs(ctx context.Context, limit int) ([]model.Job, error)
	UpdateJob(ctx context.Context, id int64, update model.JobUpdate) error
	GetJob(ctx context.Context, id int64) (*model.Job, error)
	CountJobs(ctx context.Context) (model.JobCounts, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	var status string
	if err := row.Scan(&j.ID, &j.FileHash, &j.Vendor, &status, &j.Retries, &j.LastError, &j.ErrorType, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}
