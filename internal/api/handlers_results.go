package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/naromat/internal/pipeline"
)

// handleGetResult serves a stored formatted document.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	job := s.lookup(w, r)
	if job == nil {
		return
	}

	result := job.Result()
	etag := `"` + pipeline.ContentHashHex([]byte(result))[:16] + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("ETag", etag)
	io.WriteString(w, result)
}

// handleResultStatus reports the job behind a stored result.
func (s *Server) handleResultStatus(w http.ResponseWriter, r *http.Request) {
	job := s.lookup(w, r)
	if job == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	job := s.orchestrator.GetJob(chi.URLParam(r, "resultID"))
	if job == nil {
		jsonError(w, "result not found", http.StatusNotFound)
	}
	return job
}
