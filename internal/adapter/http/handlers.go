package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/DomainLens/internal/adapter/csvinput"
	"github.com/Strob0t/DomainLens/internal/adapter/export"
	"github.com/Strob0t/DomainLens/internal/config"
	"github.com/Strob0t/DomainLens/internal/domain/analysis"
	"github.com/Strob0t/DomainLens/internal/domain/batch"
	"github.com/Strob0t/DomainLens/internal/port/messagequeue"
	"github.com/Strob0t/DomainLens/internal/service"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	multipartMemory    = 1 << 20
	defaultSyncTimeout = 5 * time.Minute
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Batches        *service.BatchService
	AnalyzeMode    string        // config.AnalyzeModeAsync or config.AnalyzeModeSync
	SyncTimeout    time.Duration // how long a sync request waits before falling back to 202
	MaxUploadBytes int64

	// Health reporting. StoreState and Bus are optional.
	StoreBackend string
	StoreState   func() string
	Bus          messagequeue.Publisher
}

type analyzeRequest struct {
	Domains []string `json:"domains"`
}

type submitResponse struct {
	TaskID string       `json:"task_id"`
	Status batch.Status `json:"status,omitempty"`
}

type syncResponse struct {
	TaskID  string            `json:"task_id"`
	Results []analysis.Result `json:"results"`
	Summary *analysis.Summary `json:"summary"`
}

type statusResponse struct {
	TaskID    string            `json:"task_id"`
	Status    batch.Status      `json:"status"`
	Progress  float64           `json:"progress"`
	Results   []analysis.Result `json:"results,omitempty"`
	Summary   *analysis.Summary `json:"summary,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Store   string `json:"store"`
	Breaker string `json:"breaker,omitempty"`
	NATS    string `json:"nats"`
}

// Analyze handles POST /analyze
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[analyzeRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	h.start(w, r, req.Domains)
}

// Upload handles POST /upload
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = 16 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer func() { _ = file.Close() }()

	if !csvinput.HasCSVExtension(header.Filename) {
		writeError(w, http.StatusBadRequest, "file must be a CSV")
		return
	}

	domains, err := csvinput.ReadDomains(file)
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}
	slog.InfoContext(r.Context(), "csv uploaded", "filename", header.Filename, "domains", len(domains))
	h.start(w, r, domains)
}

// start submits domains in the configured mode. Sync requests that outlive
// SyncTimeout, or whose client goes away, get the async 202 response while
// the batch keeps running.
func (h *Handlers) start(w http.ResponseWriter, r *http.Request, domains []string) {
	if !h.syncRequested(r) {
		t, err := h.Batches.Submit(r.Context(), domains)
		if err != nil {
			writeDomainError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusAccepted, submitResponse{TaskID: t.ID})
		return
	}

	timeout := h.SyncTimeout
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	t, err := h.Batches.Analyze(ctx, domains)
	switch {
	case err == nil:
	case t != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)):
		slog.InfoContext(r.Context(), "sync analysis still running, returning task id", "task_id", t.ID)
		writeJSON(w, http.StatusAccepted, submitResponse{TaskID: t.ID, Status: t.Status})
		return
	default:
		writeDomainError(w, r, err, "task not found")
		return
	}

	if t.Status != batch.StatusCompleted {
		writeError(w, http.StatusInternalServerError, t.Error)
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{TaskID: t.ID, Results: t.Results, Summary: t.Summary})
}

func (h *Handlers) syncRequested(r *http.Request) bool {
	switch r.URL.Query().Get("wait") {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return h.AnalyzeMode == config.AnalyzeModeSync
}

// Status handles GET /status/{task_id}
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	t, err := h.Batches.Get(r.Context(), urlParam(r, "task_id"))
	if err != nil {
		writeDomainError(w, r, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		TaskID:    t.ID,
		Status:    t.Status,
		Progress:  t.Progress,
		Results:   t.Results,
		Summary:   t.Summary,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
	})
}

// Download handles GET /download/{task_id}?format=csv|xlsx|json
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeDomainError(w, r, err, "")
		return
	}

	t, err := h.Batches.Get(r.Context(), urlParam(r, "task_id"))
	if err != nil {
		writeDomainError(w, r, err, "task not found")
		return
	}
	if t.Status != batch.StatusCompleted || t.Summary == nil {
		writeError(w, http.StatusBadRequest, "results not ready")
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, t.Results, *t.Summary); err != nil {
		writeInternalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Cancel handles POST /tasks/{task_id}/cancel
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "task_id")
	if err := h.Batches.Cancel(r.Context(), id); err != nil {
		writeDomainError(w, r, err, "task not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id, "status": "cancelling"})
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Store: h.StoreBackend, NATS: "disabled"}
	if h.StoreState != nil {
		resp.Breaker = h.StoreState()
		if resp.Breaker == "open" {
			resp.Status = "degraded"
		}
	}
	if h.Bus != nil {
		resp.NATS = "connected"
		if !h.Bus.IsConnected() {
			resp.NATS = "disconnected"
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
