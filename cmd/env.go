package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/payrecon-ocr/internal/cache"
	"github.com/sells-group/payrecon-ocr/internal/cost"
	"github.com/sells-group/payrecon-ocr/internal/monitoring"
	"github.com/sells-group/payrecon-ocr/internal/ocr"
	"github.com/sells-group/payrecon-ocr/internal/pipeline"
	"github.com/sells-group/payrecon-ocr/internal/selector"
	"github.com/sells-group/payrecon-ocr/internal/store"
	"github.com/sells-group/payrecon-ocr/internal/worker"
)

// serviceEnv holds the store and every component built on it, shared by the
// serve and worker commands.
type serviceEnv struct {
	Store     store.Store
	Cache     *cache.Service
	Selector  *selector.Selector
	Pipeline  *pipeline.Pipeline
	Worker    *worker.Worker
	Collector *monitoring.Collector
}

// Close releases resources held by the environment.
func (e *serviceEnv) Close() {
	if e.Cache != nil {
		e.Cache.Stop()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initService validates config, opens and migrates the store, and wires the
// OCR components. Callers should defer env.Close().
func initService(ctx context.Context) (*serviceEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	registry, err := ocr.NewRegistry(cfg.OCR)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "build ocr registry")
	}

	env := newServiceEnv(st, registry)
	env.Cache.Start()
	return env, nil
}

// newServiceEnv wires components around an open store and a recognizer.
func newServiceEnv(st store.Store, rec pipeline.Recognizer) *serviceEnv {
	c := cache.New(st, cfg.Cache)
	sel := selector.New(selector.NewMemoryCounter(), cfg.OCR.FailThreshold)
	return &serviceEnv{
		Store:     st,
		Cache:     c,
		Selector:  sel,
		Pipeline:  pipeline.New(ocr.PolicyFrom(cfg.OCR), sel, rec, c, cost.NewCalculator(cfg.Pricing)),
		Worker:    worker.New(st, cfg.OCR.Endpoints, cfg.Worker),
		Collector: monitoring.NewCollector(st, c.Len),
	}
}
