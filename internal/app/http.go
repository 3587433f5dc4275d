package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"testemunhas/api/internal/fields"
	"testemunhas/api/internal/ingest"
	"testemunhas/api/internal/search"
)

const maxUploadBytes = 32 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     logrus.FieldLogger
}

func NewHTTPServer(service *Service, corsOrigin string, logger logrus.FieldLogger) *HTTPServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	parts := splitPath(r.URL.Path)

	// /api/cnj/{value}
	if r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "api" && parts[1] == "cnj" {
		writeJSON(w, http.StatusOK, s.service.ValidateCNJ(parts[2]))
		return
	}

	if len(parts) < 4 || parts[0] != "api" || parts[1] != "orgs" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}
	orgID := parts[2]

	switch {
	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "imports":
		s.handleImport(w, r, orgID)
		return

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "analysis":
		var body AnalysisRequest
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.Analyze(r.Context(), orgID, body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return

	case r.Method == http.MethodGet && len(parts) == 5 && parts[3] == "analysis" && parts[4] == "history":
		limit, ok := queryInt(w, r, "limit", 20)
		if !ok {
			return
		}
		runs, err := s.service.AnalysisHistory(r.Context(), orgID, limit)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": runs})
		return

	case r.Method == http.MethodGet && len(parts) == 6 && parts[3] == "analysis" && parts[4] == "history":
		snap, commit, err := s.service.ArchivedAnalysis(orgID, parts[5])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commit": commit, "snapshot": snap})
		return

	case r.Method == http.MethodGet && len(parts) == 5 && parts[3] == "processos":
		detail, err := s.service.Processo(r.Context(), orgID, parts[4])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
		return

	case r.Method == http.MethodGet && len(parts) == 4 && parts[3] == "search":
		query := search.Query{
			Text:       strings.TrimSpace(r.URL.Query().Get("q")),
			FilterType: search.ResultType(strings.TrimSpace(r.URL.Query().Get("type"))),
		}
		if query.FilterType != "" && query.FilterType != search.ResultProcesso && query.FilterType != search.ResultPessoa {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be processo or pessoa", nil)
			return
		}
		var ok bool
		if query.Limit, ok = queryInt(w, r, "limit", 20); !ok {
			return
		}
		if query.Offset, ok = queryInt(w, r, "offset", 0); !ok {
			return
		}
		if query.Limit < 1 || query.Limit > 100 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be between 1 and 100", nil)
			return
		}
		if query.Offset < 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be >= 0", nil)
			return
		}
		payload, err := s.service.Search(r.Context(), orgID, query)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	// The cache is optional; a failing cache degrades but does not fail readiness.
	if configured, err := s.service.PingCache(ctx); configured {
		if err != nil {
			checks["cache"] = map[string]any{"status": "degraded", "error": err.Error()}
		} else {
			checks["cache"] = map[string]any{"status": "ok"}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

type importSheetBody struct {
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type importBody struct {
	Source string            `json:"source"`
	Sheets []importSheetBody `json:"sheets"`
}

// handleImport accepts either already-parsed rows as JSON or spreadsheet
// files (xlsx/csv) as multipart form parts named "files".
func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request, orgID string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	resolver := s.service.Resolver()

	var (
		sheets []ingest.Sheet
		source string
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		workbooks, err := readUploads(r, resolver)
		defer func() {
			for _, wb := range workbooks {
				_ = wb.Close()
			}
		}()
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		var names []string
		for _, wb := range workbooks {
			sheets = append(sheets, wb.Sheets...)
		}
		for _, fh := range r.MultipartForm.File["files"] {
			names = append(names, fh.Filename)
		}
		source = strings.Join(names, ",")
	} else {
		var body importBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		for i, sheet := range body.Sheets {
			built, err := sheetFromBody(i, sheet, resolver)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			sheets = append(sheets, built)
		}
		source = body.Source
	}

	payload, err := s.service.Import(r.Context(), orgID, source, sheets)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func readUploads(r *http.Request, resolver *fields.Resolver) ([]*ingest.Workbook, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "invalid multipart body", nil)
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return nil, validationError("at least one file is required in field \"files\"", nil)
	}
	var workbooks []*ingest.Workbook
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return workbooks, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		wb, err := ingest.Open(fh.Filename, f, resolver)
		_ = f.Close()
		if err != nil {
			return workbooks, err
		}
		workbooks = append(workbooks, wb)
	}
	return workbooks, nil
}

func sheetFromBody(i int, body importSheetBody, resolver *fields.Resolver) (ingest.Sheet, error) {
	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = fmt.Sprintf("sheet%d", i+1)
	}
	if len(body.Headers) == 0 {
		return ingest.Sheet{}, validationError(fmt.Sprintf("sheet %s has no headers", name), nil)
	}
	sheet := ingest.Sheet{Name: name, Headers: body.Headers, Rows: ingest.NewSliceRows(body.Rows)}
	switch fields.SheetType(strings.ToLower(strings.TrimSpace(body.Type))) {
	case "":
		sheet.Type = ingest.ClassifySheet(name, body.Headers, resolver)
	case fields.SheetProcesso:
		sheet.Type = fields.SheetProcesso
	case fields.SheetTestemunha:
		sheet.Type = fields.SheetTestemunha
	default:
		return ingest.Sheet{}, validationError(fmt.Sprintf("sheet %s: type must be processo or testemunha", name), nil)
	}
	return sheet, nil
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestIDFrom(r.Context()),
			"path":       r.URL.Path,
		}).Error("request failed")
	}
	writeError(w, status, code, message, details)
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", key+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.WithFields(logrus.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
