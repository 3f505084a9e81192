package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/pipeline"
)

const maxFilesPerRun = 20

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*maxFilesPerRun+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	rc, err := s.runConfigFromForm(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(files) > maxFilesPerRun {
		jsonError(w, fmt.Sprintf("at most %d files per run", maxFilesPerRun), http.StatusBadRequest)
		return
	}

	runID := uuid.NewString()
	var (
		inputs   []pipeline.Input
		names    []string
		warnings []string
	)
	seen := make(map[string]string)
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		data, err := readUpload(fh, s.cfg.MaxUploadBytes)
		if err != nil {
			code := http.StatusBadRequest
			if errors.Is(err, errTooLarge) {
				code = http.StatusRequestEntityTooLarge
			}
			jsonError(w, fmt.Sprintf("%s: %s", filename, err), code)
			return
		}

		hash := pipeline.ContentHashHex(data)
		if first, dup := seen[hash]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate upload skipped: %s (same content as %s)", filename, first))
			continue
		}
		seen[hash] = filename

		inputs = append(inputs, pipeline.BytesInput(filename, data))
		names = append(names, filename)
	}

	job := pipeline.NewJob(runID, rc, inputs)
	for _, msg := range warnings {
		job.AddWarning(msg)
	}
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.InfoContext(r.Context(), "run queued", "run_id", runID, "documents", len(inputs), "top_k", rc.TopK)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":    runID,
		"status":    pipeline.StatusQueued,
		"documents": names,
		"warnings":  append([]string{}, warnings...),
		"poll_url":  fmt.Sprintf("/api/analyze/%s", runID),
	})
}

func (s *Server) handleAnalyzeStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	job := s.orchestrator.GetJob(runID)
	if job == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// runConfigFromForm builds the run request from an optional "config"
// file part overlaid with the persona, job_to_be_done and top_k fields.
func (s *Server) runConfigFromForm(r *http.Request) (config.RunConfig, error) {
	var rc config.RunConfig
	if fhs := r.MultipartForm.File["config"]; len(fhs) > 0 {
		data, err := readUpload(fhs[0], 1<<20)
		if err != nil {
			return rc, fmt.Errorf("config: %w", err)
		}
		if rc, err = config.ParseRunConfig(data); err != nil {
			return rc, err
		}
	}

	fields := map[string]any{}
	if v := strings.TrimSpace(r.FormValue("persona")); v != "" {
		fields["persona"] = jsonOrString(v)
	}
	if v := strings.TrimSpace(r.FormValue("job_to_be_done")); v != "" {
		fields["job_to_be_done"] = jsonOrString(v)
	}
	if len(fields) > 0 {
		data, err := json.Marshal(fields)
		if err != nil {
			return rc, err
		}
		overlay, err := config.ParseRunConfig(data)
		if err != nil {
			return rc, err
		}
		if _, ok := fields["persona"]; ok {
			rc.Persona = overlay.Persona
		}
		if _, ok := fields["job_to_be_done"]; ok {
			rc.JobToBeDone = overlay.JobToBeDone
		}
	}

	if v := r.FormValue("top_k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			return rc, fmt.Errorf("%w: top_k must be an integer", config.ErrInvalidConfig)
		}
		rc.TopK = k
	} else {
		rc = rc.WithDefaults(s.cfg.DefaultTopK)
	}
	return rc, rc.Validate()
}

// jsonOrString decodes v when it holds a JSON object.
func jsonOrString(v string) any {
	if strings.HasPrefix(v, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err == nil {
			return obj
		}
	}
	return v
}

var errTooLarge = errors.New("file exceeds max size")

func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("failed to open file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.New("failed to read file")
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errTooLarge, limit)
	}
	return data, nil
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
