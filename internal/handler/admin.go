package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/growthcompass/compass/internal/docx"
	"github.com/growthcompass/compass/internal/i18n"
	"github.com/growthcompass/compass/internal/model"
)

type summaryResponse struct {
	Summary model.ImportSummary `json:"summary"`
	Message string              `json:"message"`
}

type scanRequest struct {
	Root string `json:"root"`
}

// handleUpload imports one uploaded document. The optional "path" form field
// gives the document's logical location (feedbackType/instructor/class/...),
// from which class, unit and lesson are derived; it defaults to the file name.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid upload: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("no file uploaded"))
		return
	}
	defer file.Close()

	logical := strings.TrimSpace(r.FormValue("path"))
	if logical == "" {
		logical = header.Filename
	}
	if !docx.IsDocx(logical) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("not a .docx document: %q", logical))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("read upload: %w", err))
		return
	}

	summary, err := h.importer.ImportUpload(r.Context(), logical, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	slog.Info("imported uploaded document", "path", logical, "records", summary.RecordsExtracted)

	status := http.StatusOK
	if summary.FilesFailed > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, summaryResponse{Summary: summary, Message: i18n.SummaryMessage(r.Context(), summary)})
}

// handleScan imports a folder on the server.
func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
			return
		}
	}

	root, err := h.scanRoot(req.Root)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	summary, err := h.importer.Import(r.Context(), root)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Summary: summary, Message: i18n.SummaryMessage(r.Context(), summary)})
}

// scanRoot resolves the folder a scan request may read. Without a configured
// root no folder can be scanned.
func (h *Handler) scanRoot(requested string) (string, error) {
	base := h.config.Root
	if requested == "" {
		if base == "" {
			return "", errors.New("no root given and none configured")
		}
		return base, nil
	}
	if base == "" {
		return "", errors.New("scanning a named folder requires a configured root")
	}
	if !filepath.IsAbs(requested) {
		requested = filepath.Join(base, requested)
	}
	rel, err := filepath.Rel(base, requested)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("root %q is outside %q", requested, base)
	}
	return filepath.Clean(requested), nil
}
