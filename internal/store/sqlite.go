package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/payrecon-ocr/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; a single connection keeps them in force
	// and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ocr_cache (
	id         TEXT PRIMARY KEY,
	file_hash  TEXT NOT NULL UNIQUE,
	vendor     TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ocr_jobs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	file_hash  TEXT NOT NULL,
	vendor     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	retries    INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	error_type TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ocr_jobs_status_id ON ocr_jobs(status, id);
CREATE INDEX IF NOT EXISTS idx_ocr_jobs_file_hash ON ocr_jobs(file_hash);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCachedResult(ctx context.Context, fileHash string) (*model.CacheEntry, error) {
	var e model.CacheEntry
	var result string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, file_hash, vendor, result, created_at FROM ocr_cache WHERE file_hash = ?`,
		fileHash,
	).Scan(&e.ID, &e.FileHash, &e.Vendor, &result, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached result")
	}
	e.Result = []byte(result)
	return &e, nil
}

func (s *SQLiteStore) PutCachedResult(ctx context.Context, entry model.CacheEntry) (*model.CacheEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ocr_cache (id, file_hash, vendor, result, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (file_hash) DO NOTHING`,
		entry.ID, entry.FileHash, entry.Vendor, string(entry.Result), entry.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: put cached result %s", entry.FileHash)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return &entry, nil
	}

	stored, err := s.GetCachedResult(ctx, entry.FileHash)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, eris.Errorf("sqlite: cached result %s vanished after conflict", entry.FileHash)
	}
	return stored, nil
}

func (s *SQLiteStore) CountCachedResults(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM ocr_cache`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count cached results")
	}
	return n, nil
}

func (s *SQLiteStore) EnqueueJob(ctx context.Context, fileHash, vendor string) (*model.Job, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ocr_jobs (file_hash, vendor, status, retries, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
		fileHash, vendor, string(model.JobQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: enqueue job")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: enqueue job id")
	}
	return &model.Job{
		ID:        id,
		FileHash:  fileHash,
		Vendor:    vendor,
		Status:    model.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ClaimJobs marks up to limit queued jobs running. The claiming UPDATE is a
// single statement, which SQLite serializes against other writers.
func (s *SQLiteStore) ClaimJobs(ctx context.Context, limit int) ([]model.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin claim")
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx,
		`UPDATE ocr_jobs SET status = ?, updated_at = ?
		 WHERE id IN (SELECT id FROM ocr_jobs WHERE status = ? ORDER BY id LIMIT ?)
		 RETURNING id`,
		string(model.JobRunning), time.Now().UTC(), string(model.JobQueued), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim jobs")
	}
	var ids []any
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "sqlite: scan claimed id")
		}
		ids = append(ids, id)
	}
	rows.Close() //nolint:errcheck
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate claimed ids")
	}
	if len(ids) == 0 {
		return nil, eris.Wrap(tx.Commit(), "sqlite: commit claim")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	rows, err = tx.QueryContext(ctx,
		`SELECT `+sqliteJobColumns+` FROM ocr_jobs WHERE id IN (`+placeholders+`) ORDER BY id`,
		ids...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load claimed jobs")
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load claimed jobs")
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit claim")
	}
	return jobs, nil
}

func (s *SQLiteStore) PeekJobs(ctx context.Context, limit int) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteJobColumns+` FROM ocr_jobs WHERE status = ? ORDER BY id LIMIT ?`,
		string(model.JobQueued), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: peek jobs")
	}
	jobs, err := collectJobs(rows)
	return jobs, eris.Wrap(err, "sqlite: peek jobs")
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, id int64, u model.JobUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ocr_jobs SET status = ?, retries = ?, last_error = NULLIF(?, ''), error_type = NULLIF(?, ''), updated_at = ? WHERE id = ?`,
		string(u.Status), u.Retries, u.LastError, u.ErrorType, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "job %d", id)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+sqliteJobColumns+` FROM ocr_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "job %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %d", id)
	}
	return j, nil
}

func (s *SQLiteStore) CountJobs(ctx context.Context) (model.JobCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM ocr_jobs GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count jobs")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(model.JobCounts)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job count")
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count jobs iterate")
}

const sqliteJobColumns = `id, file_hash, vendor, status, retries, COALESCE(last_error, ''), COALESCE(error_type, ''), created_at, updated_at`

func collectJobs(rows *sql.Rows) ([]model.Job, error) {
	defer rows.Close() //nolint:errcheck
	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}
