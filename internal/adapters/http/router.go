// Package httpadapter exposes the classification pipeline over REST. The
// adapter stays thin: handlers decode multipart uploads, call one inbound
// port, and translate domain errors into statuses.
package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/doctriage/doctriage/internal/config"
	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
	"github.com/doctriage/doctriage/internal/observability/metrics"
)

const serviceName = "api"

var (
	errMissingID = errors.New("resource id is required")
	errNoFiles   = errors.New("multipart field 'files' is required")
)

type Router struct {
	classifier ports.SyncClassifier
	submitter  ports.JobSubmitter
	reader     ports.JobReader
	strategies ports.StrategySource
	cfg        config.Config
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger
}

func NewRouter(
	cfg config.Config,
	classifier ports.SyncClassifier,
	submitter ports.JobSubmitter,
	reader ports.JobReader,
	strategies ports.StrategySource,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if httpMetrics == nil {
		httpMetrics = metrics.NewHTTPServerMetrics(serviceName)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		classifier: classifier,
		submitter:  submitter,
		reader:     reader,
		strategies: strategies,
		cfg:        cfg,
		metrics:    httpMetrics,
		logger:     logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/classify", rt.classifySync)
	mux.HandleFunc("/v1/classify/async", rt.classifyAsync)
	mux.HandleFunc("/v1/jobs/", rt.jobStatus)
	mux.HandleFunc("/v1/batches", rt.submitBatch)
	mux.HandleFunc("/v1/batches/", rt.batchSubtree)
	mux.HandleFunc("/v1/industries", rt.listIndustries)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInflight, 100*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classifySync runs the full pipeline inside the request and returns the
// classification in the response body.
func (rt *Router) classifySync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rt.methodNotAllowed(w, http.MethodPost)
		return
	}

	filename, file, industry, ok := rt.singleUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	start := time.Now()
	cls, err := rt.classifier.ClassifySync(r.Context(), filename, file, industry)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.metrics.RecordSyncClassification(serviceName, cls.DocumentType, time.Since(start))
	writeJSON(w, http.StatusOK, cls)
}

func (rt *Router) classifyAsync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rt.methodNotAllowed(w, http.MethodPost)
		return
	}

	filename, file, industry, ok := rt.singleUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	job, err := rt.submitter.Submit(r.Context(), filename, file, industry)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"state":  job.State,
	})
}

func (rt *Router) jobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rt.methodNotAllowed(w, http.MethodGet)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if id == "" || strings.Contains(id, "/") {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "job status", errMissingID))
		return
	}

	job, err := rt.reader.Status(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// submitBatch accepts a repeated multipart "files" field. One optional
// "industry" form value scopes every member; per-file overrides are not part
// of the HTTP surface.
func (rt *Router) submitBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rt.methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(rt.cfg.MaxUploadBytes()); err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse batch upload", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	industry := r.FormValue("industry")
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse batch upload", errNoFiles))
		return
	}

	files := make([]ports.BatchFile, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "open batch member", err))
			return
		}
		opened = append(opened, f)
		files = append(files, ports.BatchFile{
			Filename: header.Filename,
			Industry: industry,
			Body:     f,
		})
	}

	batch, err := rt.submitter.SubmitBatch(r.Context(), files)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id": batch.ID,
		"job_ids":  batch.JobIDs,
	})
}

// batchSubtree dispatches /v1/batches/{id} and /v1/batches/{id}/cancel.
func (rt *Router) batchSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
	if id, found := strings.CutSuffix(rest, "/cancel"); found {
		rt.cancelBatch(w, r, id)
		return
	}
	rt.batchStatus(w, r, rest)
}

func (rt *Router) batchStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		rt.methodNotAllowed(w, http.MethodGet)
		return
	}
	if id == "" || strings.Contains(id, "/") {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "batch status", errMissingID))
		return
	}

	status, err := rt.reader.BatchStatus(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) cancelBatch(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		rt.methodNotAllowed(w, http.MethodPost)
		return
	}
	if id == "" || strings.Contains(id, "/") {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "cancel batch", errMissingID))
		return
	}

	canceled, err := rt.submitter.CancelBatch(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"canceled": canceled})
}

func (rt *Router) listIndustries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rt.methodNotAllowed(w, http.MethodGet)
		return
	}

	strategies := rt.strategies.All()
	industries := make([]map[string]any, 0, len(strategies))
	for _, s := range strategies {
		industries = append(industries, map[string]any{
			"industry":       s.Industry,
			"document_types": s.DocumentTypes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"industries": industries})
}

// singleUpload reads the multipart "file" field plus the optional "industry"
// form value for the single-document endpoints. The body is capped before
// parsing so oversized uploads fail early.
func (rt *Router) singleUpload(w http.ResponseWriter, r *http.Request) (string, multipart.File, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes())
	file, header, err := r.FormFile("file")
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse upload", err))
		return "", nil, "", false
	}
	return header.Filename, file, r.FormValue("industry"), true
}

func (rt *Router) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	kind := domain.KindOf(err)
	if status == http.StatusNotFound {
		kind = "not_found"
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
