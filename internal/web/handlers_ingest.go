package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/hrimport/internal/core"
	"github.com/JonMunkholm/hrimport/internal/logging"
)

// Listing bounds.
const (
	defaultRunLimit     = 50
	maxRunLimit         = 500
	defaultFacultyLimit = 100
	maxFacultyLimit     = 1000
)

// handleIngest runs one uploaded roster and returns its report. The form
// field "file" carries the roster; "dry_run" set to true validates and
// resolves without writing.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Ingest.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.rejectUpload(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("file too large: limit is %d bytes", maxSize))
			return
		}
		s.rejectUpload(w, r, http.StatusBadRequest, fmt.Errorf("no file provided: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.rejectUpload(w, r, http.StatusBadRequest, fmt.Errorf("no file provided: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.rejectUpload(w, r, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	dryRun, err := parseBoolParam(r.FormValue("dry_run"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VAL000", "dry_run must be true or false")
		return
	}

	logger := logging.WithFields(r.Context(), "file", header.Filename, "bytes", len(data), "dry_run", dryRun)
	logger.Info("roster received")

	ctx := WithRequestMetadata(r.Context(), r)
	report, err := s.service.Ingest(ctx, core.IngestRequest{
		FileName: header.Filename,
		Data:     data,
		DryRun:   dryRun,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// rejectUpload answers a request the service never saw.
func (s *Server) rejectUpload(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := core.MapError(err)
	logging.FromContext(r.Context()).Warn("upload rejected", "status", status, "error", err, "code", msg.Code)
	writeJSON(w, status, ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code})
}

// handleColumns lists the canonical columns and accepted header spellings.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.AllColumns())
}

// handleTemplate serves an empty roster in xlsx (default) or csv form.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))

	var (
		data        []byte
		err         error
		contentType string
		ext         string
	)
	switch format {
	case "", "xlsx":
		data, err = core.WriteTemplateXLSX()
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		ext = "xlsx"
	case "csv":
		data, err = core.WriteTemplateCSV()
		contentType = "text/csv; charset=utf-8"
		ext = "csv"
	default:
		writeError(w, http.StatusBadRequest, "VAL000", "format must be xlsx or csv")
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="roster_template.%s"`, ext))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// handleListRuns lists recorded runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultRunLimit)
	if limit > maxRunLimit {
		limit = maxRunLimit
	}

	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleListFaculty pages through faculty records in ID order. The next
// page starts after the last ID returned.
func (s *Server) handleListFaculty(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultFacultyLimit)
	if limit > maxFacultyLimit {
		limit = maxFacultyLimit
	}
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "VAL000", "after must be a non-negative faculty id")
			return
		}
		after = n
	}

	faculty, err := s.history.ListFaculty(r.Context(), after, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, faculty)
}

// handleRunAudit lists the changes one run made.
func (s *Server) handleRunAudit(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := uuid.Parse(runID); err != nil {
		writeError(w, http.StatusBadRequest, "VAL000", "run id must be a UUID")
		return
	}

	entries, err := s.history.ListAudit(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status string                `json:"status"`
	Store  string                `json:"store"`
	Ingest core.RunLimiterStatus `json:"ingest"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Store: "ok", Ingest: s.service.Limiter().Status()}
	status := http.StatusOK

	if err := s.store.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("health check: store unreachable", "error", err)
		resp.Status = "degraded"
		resp.Store = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseBoolParam accepts strconv's spellings plus "on" from HTML checkboxes.
func parseBoolParam(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return false, nil
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(v)
}
