package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/tablescribe/internal/assistant"
	"github.com/leapstack-labs/tablescribe/internal/ingest"
	"github.com/leapstack-labs/tablescribe/internal/llm"
	"github.com/leapstack-labs/tablescribe/internal/service"
	"github.com/leapstack-labs/tablescribe/internal/tabular"
)

// DownloadName is the attachment name of CSV downloads.
const DownloadName = "converted_batch_data.csv"

type columnJSON struct {
	Name string             `json:"name"`
	Type tabular.ColumnType `json:"type"`
}

type extractResponse struct {
	CSV     string         `json:"csv"`
	Columns []columnJSON   `json:"columns"`
	Rows    int            `json:"rows"`
	Upload  *ingest.Result `json:"upload,omitempty"`
}

type askRequest struct {
	Question string `json:"question"`
	DryRun   bool   `json:"dry_run"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Partial bool   `json:"partial,omitempty"`
	SQL     string `json:"sql,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extract reads an image from a multipart "image" field or the raw body.
// With ?table= the rows are uploaded too. ?format=csv returns the CSV as a
// download instead of JSON.
func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	image, name, err := s.readUpload(w, r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ex, err := s.svc.ExtractImage(r.Context(), image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := extractResponse{CSV: ex.Text, Rows: ex.Extract.NumRows()}
	for _, c := range ex.Extract.Columns {
		resp.Columns = append(resp.Columns, columnJSON{Name: c.Name, Type: c.Type})
	}

	if table := r.URL.Query().Get("table"); table != "" {
		res, err := s.svc.Upload(r.Context(), ex.Extract, table, name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Upload = res
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": DownloadName}))
		w.WriteHeader(http.StatusOK)
		_ = tabular.WriteCSV(w, ex.Extract)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// uploadRows appends CSV from a multipart "file" field or the raw body.
func (s *Server) uploadRows(w http.ResponseWriter, r *http.Request) {
	body, name, err := s.readUpload(w, r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.UploadCSV(r.Context(), string(body), chi.URLParam(r, "table"), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rs, err := s.svc.Preview(r.Context(), chi.URLParam(r, "table"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, badRequest("invalid JSON body: %v", err))
		return
	}

	ans, err := s.svc.Ask(r.Context(), chi.URLParam(r, "table"), req.Question, req.DryRun)
	if err != nil {
		s.writeErrorSQL(w, r, err, ans)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.svc.Tables(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tables": tables})
}

func (s *Server) describeTable(w http.ResponseWriter, r *http.Request) {
	meta, err := s.svc.Describe(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch chi.URLParam(r, "kind") {
	case "uploads":
		entries, err := s.svc.UploadHistory(r.Context(), limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case "queries":
		entries, err := s.svc.QueryHistory(r.Context(), limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	default:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "history kind must be uploads or queries"})
	}
}

// readUpload returns the bytes of a multipart field or, for any other
// content type, the request body, together with a file name if one is known.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.maxBytes); err != nil {
			return nil, "", badRequest("invalid multipart body: %w", err)
		}
		f, hdr, err := r.FormFile(field)
		if err != nil {
			return nil, "", badRequest("missing form field %q", field)
		}
		defer func() { _ = f.Close() }()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", badRequest("failed to read upload: %w", err)
		}
		return data, hdr.Filename, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", badRequest("failed to read body: %w", err)
	}
	if len(data) == 0 {
		return nil, "", badRequest("request body is empty")
	}
	return data, r.URL.Query().Get("name"), nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("%s must be a non-negative integer", key)
	}
	return n, nil
}

// requestError is a client mistake in the request itself.
type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }

func (e *requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &requestError{err: fmt.Errorf(format, args...)}
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	var reqErr *requestError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrExtractionFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, ingest.ErrSchema):
		return http.StatusConflict
	case errors.Is(err, ingest.ErrWrite):
		return http.StatusInternalServerError
	case errors.Is(err, assistant.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, assistant.ErrNotReadOnly):
		return http.StatusUnprocessableEntity
	case errors.Is(err, llm.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrNoStore), errors.Is(err, service.ErrNoModel):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorSQL(w, r, err, nil)
}

func (s *Server) writeErrorSQL(w http.ResponseWriter, r *http.Request, err error, ans *assistant.Answer) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	if kind := ingest.KindOf(err); kind != 0 {
		resp.Kind = kind.String()
		resp.Partial = ingest.IsPartial(err)
	}
	if ans != nil {
		resp.SQL = ans.SQL
	}

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()))

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
