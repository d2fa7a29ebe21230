package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/naromat/internal/parser"
)

// requestFilename names a plain text request body for the reader registry.
const requestFilename = "request.txt"

// handleFormat formats a plain text body and answers with the result.
func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		readError(w, err, s.cfg.MaxUploadBytes)
		return
	}

	job, err := s.orchestrator.Format(requestFilename, data)
	if err != nil {
		jsonError(w, "format failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	snap := job.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Naromat-Lines", fmt.Sprint(snap.Progress.Lines))
	w.Header().Set("X-Naromat-Comment-Lines", fmt.Sprint(snap.Progress.CommentLines))
	io.WriteString(w, job.Result())
}

// handleFormatFile formats an uploaded document and stores the result.
func (s *Server) handleFormatFile(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if isTooLarge(err) {
			readError(w, err, s.cfg.MaxUploadBytes)
			return
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if _, err := parser.ForFile(filename, s.cfg.ParserOptions()); err != nil {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	job, err := s.orchestrator.Submit(filename, data)
	if err != nil {
		jsonError(w, "format failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"result_id":     snap.ID,
		"filename":      filename,
		"title":         snap.Title,
		"lines":         snap.Progress.Lines,
		"comment_lines": snap.Progress.CommentLines,
		"result_url":    fmt.Sprintf("/api/results/%s", snap.ID),
	})
}

func readError(w http.ResponseWriter, err error, limit int64) {
	if isTooLarge(err) {
		jsonError(w, fmt.Sprintf("body exceeds max size (%d bytes)", limit), http.StatusRequestEntityTooLarge)
		return
	}
	jsonError(w, "failed to read body", http.StatusBadRequest)
}

// isTooLarge reports whether err came from an http.MaxBytesReader. The
// multipart reader does not always wrap it, so the message is checked too.
func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed.txt"
	}
	return name
}
