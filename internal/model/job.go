package model

import "time"

// JobStatus represents the lifecycle state of an OCR job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobError     JobStatus = "error"
	JobExhausted JobStatus = "exhausted" // transient failures exceeded the retry ceiling
)

// Terminal reports whether no further transitions are possible from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobDone, JobError, JobExhausted:
		return true
	default:
		return false
	}
}

// Job is a queued request to run OCR for a stored file through a vendor endpoint.
type Job struct {
	ID        int64     `json:"id"`
	FileHash  string    `json:"file_hash"`
	Vendor    string    `json:"vendor"`
	Status    JobStatus `json:"status"`
	Retries   int       `json:"retries"`
	LastError string    `json:"last_error,omitempty"`
	ErrorType string    `json:"error_type,omitempty"` // "transient" or "permanent"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobUpdate describes a status transition written by the worker.
type JobUpdate struct {
	Status    JobStatus
	Retries   int
	LastError string
	ErrorType string
}

// JobCounts holds the number of jobs per status.
type JobCounts map[JobStatus]int
