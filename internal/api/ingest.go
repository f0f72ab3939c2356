package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/swasthai/swasth/internal/docread"
	"github.com/swasthai/swasth/internal/ingest"
)

// maxUploadBytes caps the total size of an ingest upload request.
const maxUploadBytes = 32 << 20 // 32 MiB

// Ingester runs document ingestion for uploaded files.
type Ingester interface {
	File(ctx context.Context, path string) (ingest.FileReport, error)
}

// ingestHandler serves POST /api/ingest: multipart document upload into the
// knowledge base. Uploaded files are staged under the knowledge directory so
// a later folder sweep sees the same corpus.
type ingestHandler struct {
	pipeline     Ingester
	knowledgeDir string
	logger       *slog.Logger
}

// ingestResponse reports per-file outcomes for one upload request.
type ingestResponse struct {
	Files []ingest.FileReport `json:"files"`
}

func (h *ingestHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "no files provided")
		return
	}

	// Reject the whole request before staging anything.
	for _, header := range files {
		if !docread.Supported(filepath.Ext(header.Filename)) {
			writeError(w, http.StatusBadRequest, "unsupported_format",
				fmt.Sprintf("unsupported file type: %s", filepath.Ext(header.Filename)))
			return
		}
	}

	if err := os.MkdirAll(h.knowledgeDir, 0o750); err != nil {
		h.logger.Error("failed to create knowledge directory", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to stage upload")
		return
	}

	resp := ingestResponse{Files: make([]ingest.FileReport, 0, len(files))}
	for _, header := range files {
		path, err := h.stage(header.Filename, func(dst io.Writer) error {
			src, err := header.Open()
			if err != nil {
				return err
			}
			defer src.Close()
			_, err = io.Copy(dst, src)
			return err
		})
		if err != nil {
			h.logger.Error("failed to stage file", "file", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to stage upload")
			return
		}

		report, err := h.pipeline.File(r.Context(), path)
		if err != nil {
			h.logger.Warn("ingestion failed", "file", header.Filename, "error", err)
			if report.Path == "" {
				report.Path = path
			}
			report.Error = err.Error()
		}
		resp.Files = append(resp.Files, report)
	}

	writeJSON(w, http.StatusOK, resp)
}

// stage writes an upload into the knowledge directory and returns its path.
// Only the base name of the client-supplied filename is used.
func (h *ingestHandler) stage(filename string, write func(io.Writer) error) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}

	path := filepath.Join(h.knowledgeDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer dst.Close()

	if err := write(dst); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
