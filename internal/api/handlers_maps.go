package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/docmap/internal/outline"
	"github.com/dgallion1/docmap/internal/parser"
	"github.com/dgallion1/docmap/internal/pipeline"
	"github.com/dgallion1/docmap/internal/render"
	"github.com/dgallion1/docmap/internal/session"
)

func (s *Server) handleCreateMap(w http.ResponseWriter, r *http.Request) {
	// Leave 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	userID := r.FormValue("user_id")
	if userID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	in := parser.Input{
		Data:     data,
		Filename: sanitizeFilename(header.Filename),
		Kind:     parser.ParseKind(r.FormValue("kind")),
	}
	if in.Kind == parser.KindNone {
		in.Kind = sniffKind(data)
	}
	opts := pipeline.Options{
		Depth: outline.ParseDepth(r.FormValue("depth")),
		Model: r.FormValue("model"),
		Title: r.FormValue("title"),
	}
	if opts.Depth == "" {
		opts.Depth = outline.DepthBalanced
	}

	job := pipeline.NewJob(userID, in, opts)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/maps/jobs/%s", job.ID),
	})
}

// sniffKind treats any image content type as a photo.
func sniffKind(data []byte) parser.Kind {
	if strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
		return parser.KindImage
	}
	return parser.KindDocument
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, job.Snapshot())
}

type mapSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Depth     string `json:"depth"`
	Model     string `json:"model"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}

	records, err := s.maps.List(r.Context(), userID)
	if err != nil {
		jsonError(w, "failed to list maps: "+err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]mapSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, mapSummary{
			ID:        rec.ID.String(),
			Title:     rec.Title,
			Depth:     rec.Depth,
			Model:     rec.Model,
			URL:       rec.URL,
			CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, map[string]any{"maps": out})
}

func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupMap(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{
		"map":   rec,
		"lines": outline.Flatten(rec.Nodes, "• "),
	})
}

func (s *Server) handleMapPage(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupMap(w, r)
	if !ok {
		return
	}
	page, err := render.Page(rec.Title, rec.Markdown)
	if err != nil {
		s.log.Error("render page failed", "map_id", rec.ID, "error", err)
		jsonError(w, "failed to render map", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) lookupMap(w http.ResponseWriter, r *http.Request) (session.MapRecord, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return session.MapRecord{}, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "mapID"))
	if err != nil {
		jsonError(w, "invalid map id", http.StatusBadRequest)
		return session.MapRecord{}, false
	}
	rec, err := s.maps.Get(r.Context(), userID, id)
	if errors.Is(err, session.ErrNotFound) {
		jsonError(w, "map not found", http.StatusNotFound)
		return session.MapRecord{}, false
	}
	if err != nil {
		jsonError(w, "failed to load map: "+err.Error(), http.StatusInternalServerError)
		return session.MapRecord{}, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
