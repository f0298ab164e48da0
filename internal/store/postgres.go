package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/payrecon-ocr/internal/db"
	"github.com/sells-group/payrecon-ocr/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

const jobColumns = `id, file_hash, vendor, status, retries, COALESCE(last_error, ''), COALESCE(error_type, ''), created_at, updated_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := poolConfig(connString, poolCfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// poolConfig parses connString and applies pool sizing. Statements are
// prepared lazily by pgx's per-connection statement cache.
func poolConfig(connString string, poolCfg *PoolConfig) (*pgxpool.Config, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	return pgxCfg, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ocr_cache (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	file_hash  TEXT NOT NULL UNIQUE,
	vendor     TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ocr_jobs (
	id         BIGSERIAL PRIMARY KEY,
	file_hash  TEXT NOT NULL,
	vendor     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	retries    INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	error_type TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ocr_jobs_status_id ON ocr_jobs(status, id);
CREATE INDEX IF NOT EXISTS idx_ocr_jobs_file_hash ON ocr_jobs(file_hash);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCachedResult(ctx context.Context, fileHash string) (*model.CacheEntry, error) {
	var e model.CacheEntry
	var result []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, file_hash, vendor, result, created_at FROM ocr_cache WHERE file_hash = $1`,
		fileHash,
	).Scan(&e.ID, &e.FileHash, &e.Vendor, &result, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached result")
	}
	e.Result = result
	return &e, nil
}

func (s *PostgresStore) PutCachedResult(ctx context.Context, entry model.CacheEntry) (*model.CacheEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO ocr_cache (id, file_hash, vendor, result, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (file_hash) DO NOTHING`,
		entry.ID, entry.FileHash, entry.Vendor, []byte(entry.Result), entry.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: put cached result %s", entry.FileHash)
	}
	if tag.RowsAffected() > 0 {
		return &entry, nil
	}

	stored, err := s.GetCachedResult(ctx, entry.FileHash)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, eris.Errorf("postgres: cached result %s vanished after conflict", entry.FileHash)
	}
	return stored, nil
}

func (s *PostgresStore) CountCachedResults(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM ocr_cache`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count cached results")
	}
	return n, nil
}

func (s *PostgresStore) EnqueueJob(ctx context.Context, fileHash, vendor string) (*model.Job, error) {
	now := time.Now().UTC()
	j := &model.Job{
		FileHash:  fileHash,
		Vendor:    vendor,
		Status:    model.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ocr_jobs (file_hash, vendor, status, retries, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $4) RETURNING id`,
		fileHash, vendor, string(model.JobQueued), now,
	).Scan(&j.ID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: enqueue job")
	}
	return j, nil
}

// ClaimJobs locks up to limit queued jobs, oldest id first, and marks them
// running. Concurrent workers skip each other's rows.
func (s *PostgresStore) ClaimJobs(ctx context.Context, limit int) ([]model.Job, error) {
	var claimed []model.Job
	err := db.Tx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+jobColumns+` FROM ocr_jobs
			 WHERE status = $1
			 ORDER BY id
			 LIMIT $2
			 FOR UPDATE SKIP LOCKED`,
			string(model.JobQueued), limit,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: claim jobs")
		}
		for rows.Next() {
			j, err := scanJob(rows)
			if err != nil {
				rows.Close()
				return eris.Wrap(err, "postgres: scan job")
			}
			claimed = append(claimed, *j)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return eris.Wrap(err, "postgres: iterate jobs")
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]int64, len(claimed))
		for i := range claimed {
			ids[i] = claimed[i].ID
		}
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx,
			`UPDATE ocr_jobs SET status = $1, updated_at = $2 WHERE id = ANY($3)`,
			string(model.JobRunning), now, ids,
		); err != nil {
			return eris.Wrap(err, "postgres: mark jobs running")
		}
		for i := range claimed {
			claimed[i].Status = model.JobRunning
			claimed[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *PostgresStore) PeekJobs(ctx context.Context, limit int) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM ocr_jobs WHERE status = $1 ORDER BY id LIMIT $2`,
		string(model.JobQueued), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: peek jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: peek jobs iterate")
}

func (s *PostgresStore) UpdateJob(ctx context.Context, id int64, u model.JobUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ocr_jobs SET status = $1, retries = $2, last_error = NULLIF($3, ''), error_type = NULLIF($4, ''), updated_at = $5 WHERE id = $6`,
		string(u.Status), u.Retries, u.LastError, u.ErrorType, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "job %d", id)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM ocr_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "job %d", id)
		}
		return nil, eris.Wrapf(err, "postgres: get job %d", id)
	}
	return j, nil
}

func (s *PostgresStore) CountJobs(ctx context.Context) (model.JobCounts, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM ocr_jobs GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count jobs")
	}
	defer rows.Close()

	counts := make(model.JobCounts)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job count")
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count jobs iterate")
}
