// Package cache serves OCR results keyed by the SHA-256 of the uploaded file.
// An in-process TTL cache sits in front of the store, which holds the
// durable, immutable entries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/payrecon-ocr/internal/config"
	"github.com/sells-group/payrecon-ocr/internal/model"
)

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Backend is the durable layer of the cache.
type Backend interface {
	GetCachedResult(ctx context.Context, fileHash string) (*model.CacheEntry, error)
	PutCachedResult(ctx context.Context, entry model.CacheEntry) (*model.CacheEntry, error)
}

// Hit is a cached recognition result.
type Hit struct {
	Vendor string
	Result model.OcrResult
}

// ComputeFunc produces a fresh result on a cache miss.
type ComputeFunc func(ctx context.Context) (vendor string, result model.OcrResult, err error)

// Service is the two-level result cache.
type Service struct {
	backend Backend
	mem     *ttlcache.Cache[string, Hit]
	sf      singleflight.Group
}

// New creates a Service. Call Start to run expiry in the background and
// Stop to end it.
func New(backend Backend, cfg config.CacheConfig) *Service {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	opts := []ttlcache.Option[string, Hit]{
		ttlcache.WithTTL[string, Hit](ttl),
	}
	if cfg.Capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, Hit](uint64(cfg.Capacity)))
	}
	return &Service{backend: backend, mem: ttlcache.New(opts...)}
}

// Start runs the expiry loop until Stop is called.
func (s *Service) Start() {
	go s.mem.Start()
}

// Stop ends the expiry loop.
func (s *Service) Stop() {
	s.mem.Stop()
}

// Len returns the number of entries held in memory.
func (s *Service) Len() int {
	return s.mem.Len()
}

// Get returns the cached result for fileHash, or nil on a miss.
func (s *Service) Get(ctx context.Context, fileHash string) (*Hit, error) {
	if item := s.mem.Get(fileHash); item != nil {
		lookups.WithLabelValues("memory", "hit").Inc()
		hit := item.Value()
		return &hit, nil
	}

	entry, err := s.backend.GetCachedResult(ctx, fileHash)
	if err != nil {
		return nil, eris.Wrap(err, "cache: get")
	}
	if entry == nil {
		lookups.WithLabelValues("store", "miss").Inc()
		return nil, nil
	}

	hit, err := decode(entry)
	if err != nil {
		return nil, err
	}
	lookups.WithLabelValues("store", "hit").Inc()
	s.mem.Set(fileHash, hit, ttlcache.DefaultTTL)
	return &hit, nil
}

// Put stores result under fileHash and returns what the store holds, which
// is an earlier writer's result when one exists.
func (s *Service) Put(ctx context.Context, fileHash, vendor string, result model.OcrResult) (Hit, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Hit{}, eris.Wrap(err, "cache: marshal result")
	}

	stored, err := s.backend.PutCachedResult(ctx, model.CacheEntry{
		FileHash: fileHash,
		Vendor:   vendor,
		Result:   raw,
	})
	if err != nil {
		return Hit{}, eris.Wrap(err, "cache: put")
	}

	hit, err := decode(stored)
	if err != nil {
		return Hit{}, err
	}
	if hit.Vendor != vendor {
		zap.L().Debug("cache: kept earlier result", zap.String("file_hash", fileHash), zap.String("vendor", hit.Vendor))
	}
	s.mem.Set(fileHash, hit, ttlcache.DefaultTTL)
	return hit, nil
}

// GetOrCompute returns the cached result for fileHash, or runs compute and
// caches its result. Concurrent misses for one hash in this process share a
// single compute call, which is not cancelled with ctx. The bool reports
// whether the result came from cache.
func (s *Service) GetOrCompute(ctx context.Context, fileHash string, compute ComputeFunc) (Hit, bool, error) {
	hit, err := s.Get(ctx, fileHash)
	if err != nil {
		return Hit{}, false, err
	}
	if hit != nil {
		return *hit, true, nil
	}

	// The compute is shared by every waiter on fileHash, so it must outlive
	// the caller that started it.
	sfCtx := context.WithoutCancel(ctx)
	v, err, shared := s.sf.Do(fileHash, func() (any, error) {
		vendor, result, err := compute(sfCtx)
		if err != nil {
			return nil, err
		}
		return s.Put(sfCtx, fileHash, vendor, result)
	})
	if shared {
		sharedComputes.Inc()
	}
	if err != nil {
		return Hit{}, false, err
	}
	return v.(Hit), false, nil
}

func decode(entry *model.CacheEntry) (Hit, error) {
	var result model.OcrResult
	if err := json.Unmarshal(entry.Result, &result); err != nil {
		return Hit{}, eris.Wrapf(err, "cache: decode entry %s", entry.FileHash)
	}
	return Hit{Vendor: entry.Vendor, Result: result}, nil
}
