package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/payrecon-ocr/internal/bank"
	"github.com/sells-group/payrecon-ocr/internal/cache"
	"github.com/sells-group/payrecon-ocr/internal/extract"
	"github.com/sells-group/payrecon-ocr/internal/model"
	"github.com/sells-group/payrecon-ocr/internal/ocr"
	"github.com/sells-group/payrecon-ocr/internal/pipeline"
	"github.com/sells-group/payrecon-ocr/internal/resilience"
	"github.com/sells-group/payrecon-ocr/internal/store"
	"github.com/sells-group/payrecon-ocr/internal/worker"
)

const defaultMaxUploadMB = 10

// server exposes the OCR components over HTTP.
type server struct {
	env       *serviceEnv
	maxUpload int64
}

func newServer(env *serviceEnv, maxUploadMB int) *server {
	if maxUploadMB <= 0 {
		maxUploadMB = defaultMaxUploadMB
	}
	return &server{env: env, maxUpload: int64(maxUploadMB) << 20}
}

// routes builds the router. Every route answers ?health=1 before doing any
// work.
func (s *server) routes(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(healthProbe)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/stats", s.handleStats)

	r.Post("/ocr", s.handleSelect)
	r.Post("/ocr/failure", s.handleFailure)
	r.Post("/ocr/recognize", s.handleRecognize)
	r.Post("/ocr-cache", s.handleCache)
	r.Post("/enqueue", s.handleEnqueue)
	r.Post("/ocr-worker", s.handleWorker)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Post("/extract", s.handleExtract)
	r.Post("/reconcile", s.handleReconcile)

	return r
}

func healthProbe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("health") == "1" {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isDryRun(r *http.Request) bool {
	return r.URL.Query().Get("dryRun") == "1"
}

func queryFlag(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.env.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSelect picks a vendor for JSON input metadata. An empty body selects
// for an unknown single-page input. ?failedVendor= reports a failure instead.
func (s *server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("failedVendor"); name != "" {
		s.reportFailure(w, name)
		return
	}
	if isDryRun(r) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "dryRun": true})
		return
	}

	var meta model.InputMeta
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	writeJSON(w, http.StatusOK, s.env.Selector.Select(meta))
}

func (s *server) handleFailure(w http.ResponseWriter, r *http.Request) {
	s.reportFailure(w, r.URL.Query().Get("vendor"))
}

func (s *server) reportFailure(w http.ResponseWriter, name string) {
	if name == "" {
		writeError(w, http.StatusBadRequest, "vendor is required")
		return
	}
	vendor, err := ocr.ParseVendor(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.env.Selector.ReportFailure(vendor)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	if isDryRun(r) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "dryRun": true})
		return
	}

	data, declared, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	resp, err := s.env.Pipeline.Recognize(r.Context(), pipeline.Request{
		Data:     data,
		Declared: declared,
		Offline:  queryFlag(r, "offline"),
		Cheap:    queryFlag(r, "cheap"),
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Result)
}

// handleCache serves the cached result for an upload, recognizing it on a
// miss. A dry run on a miss only returns the file hash.
func (s *server) handleCache(w http.ResponseWriter, r *http.Request) {
	data, declared, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	fileHash := cache.HashBytes(data)
	hit, err := s.env.Cache.Get(r.Context(), fileHash)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if hit != nil {
		writeJSON(w, http.StatusOK, map[string]any{"cached": true, "file_hash": fileHash, "result": hit.Result})
		return
	}
	if isDryRun(r) {
		writeJSON(w, http.StatusOK, map[string]any{"file_hash": fileHash, "dryRun": true})
		return
	}

	resp, err := s.env.Pipeline.Recognize(r.Context(), pipeline.Request{
		Data:     data,
		Declared: declared,
		Offline:  queryFlag(r, "offline"),
		Cheap:    queryFlag(r, "cheap"),
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cached": resp.Cached, "file_hash": resp.FileHash, "result": resp.Result})
}

func (s *server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FileHash string `json:"file_hash"`
		Vendor   string `json:"vendor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.FileHash) == "" || strings.TrimSpace(body.Vendor) == "" {
		writeError(w, http.StatusBadRequest, "file_hash and vendor required")
		return
	}
	if isDryRun(r) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "dry-run"})
		return
	}

	job, err := s.env.Store.EnqueueJob(r.Context(), body.FileHash, body.Vendor)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	zap.L().Info("job enqueued", zap.Int64("job_id", job.ID), zap.String("vendor", job.Vendor))
	writeJSON(w, http.StatusOK, map[string]int64{"id": job.ID})
}

func (s *server) handleWorker(w http.ResponseWriter, r *http.Request) {
	opts := worker.Options{DryRun: isDryRun(r)}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = n
	}

	processed, err := s.env.Worker.Run(r.Context(), opts)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"processed": processed, "dryRun": opts.DryRun})
}

func (s *server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := s.env.Store.GetJob(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text *string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Text == nil {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, extract.Extract(*body.Text))
}

func (s *server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var tx bank.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	writeJSON(w, http.StatusOK, bank.Reconcile(tx))
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.env.Collector.Collect(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":    snap,
		"failures": s.env.Selector.Failures(),
	})
}

// readUpload reads the multipart "file" field. It writes the error response
// itself and reports false when the request is unusable.
func (s *server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, "", false
		}
		writeError(w, http.StatusBadRequest, "expected multipart form upload")
		return nil, "", false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return nil, "", false
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file")
		return nil, "", false
	}
	return data, header.Header.Get("Content-Type"), true
}

// statusFor maps an error to the HTTP status reported to callers.
func statusFor(err error) int {
	var se *resilience.StatusError
	switch {
	case errors.Is(err, ocr.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ocr.ErrTooManyPages):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ocr.ErrUnreadablePDF):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ocr.ErrMissingCredential), errors.Is(err, ocr.ErrEngineUnavailable):
		return http.StatusInternalServerError
	case resilience.IsTransient(err), errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
