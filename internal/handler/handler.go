package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/growthcompass/compass/internal/i18n"
	"github.com/growthcompass/compass/internal/model"
	"github.com/growthcompass/compass/internal/store"
)

// Store is the read side of feedback storage.
type Store interface {
	ListFeedback(ctx context.Context, filter model.FeedbackFilter) ([]model.FeedbackRecord, error)
	GetFeedback(ctx context.Context, uniqueID string) (model.FeedbackRecord, error)
	FeedbackCount(ctx context.Context) (int, error)
	ListStudents(ctx context.Context) ([]model.StudentSummary, error)
	StudentProgress(ctx context.Context, student string) (model.StudentProgress, error)
	GetMetadata(ctx context.Context, key string) (string, error)
}

// Importer runs imports on behalf of the API.
type Importer interface {
	Import(ctx context.Context, root string) (model.ImportSummary, error)
	ImportUpload(ctx context.Context, logicalPath string, data []byte) (model.ImportSummary, error)
}

// Config holds handler settings.
type Config struct {
	// Root is the feedback folder scanned when a request names none. Requested
	// roots must lie inside it.
	Root string
	// MaxUploadSize bounds an uploaded document (default 50 MB).
	MaxUploadSize int64
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    Store
	importer Importer
	config   Config
}

// New creates a new Handler.
func New(s Store, imp Importer, cfg Config) *Handler {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 50 << 20
	}
	return &Handler{store: s, importer: imp, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/feedback/upload", h.handleUpload)
		r.Post("/feedback/scan", h.handleScan)
		r.Get("/feedback", h.handleListFeedback)
		r.Get("/feedback/{uniqueID}", h.handleGetFeedback)
		r.Get("/students", h.handleListStudents)
		r.Get("/students/{name}/progress", h.handleStudentProgress)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.FeedbackCount(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	lastImport, err := h.store.GetMetadata(r.Context(), store.MetaLastImportAt)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"records":        count,
		"last_import_at": lastImport,
		"languages":      i18n.Languages(),
	})
}

func (h *Handler) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recs, err := h.store.ListFeedback(r.Context(), model.FeedbackFilter{
		Student: q.Get("student"),
		Class:   q.Get("class"),
		Unit:    q.Get("unit"),
		Lesson:  q.Get("lesson"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(recs), "records": recs})
}

func (h *Handler) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.GetFeedback(r.Context(), chi.URLParam(r, "uniqueID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(students), "students": students})
}

func (h *Handler) handleStudentProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.StudentProgress(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
