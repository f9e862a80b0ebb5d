package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/pipeline"
	"github.com/docqa/docqa-go/internal/rag"
)

// maxUploadBytes bounds the total size of a multipart run request.
const maxUploadBytes = 200 << 20

// handleRun handles POST /api/v1/run. The request is either JSON (document
// URLs plus questions) or multipart/form-data (uploaded files plus the same
// fields as form values). The response carries one answer per question,
// index-aligned.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	query, err := parseRunRequest(r)
	if err != nil {
		s.observeRun("bad_request", start)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RunTimeout)
	defer cancel()

	results, err := s.runner.Run(ctx, *query)
	if err != nil {
		status, outcome := runErrorStatus(ctx, err)
		s.observeRun(outcome, start)
		log.Error("run failed",
			slog.Int("status", status),
			slog.Any("error", err),
		)
		writeError(w, status, err.Error())
		return
	}

	s.observeRun("ok", start)
	writeJSON(w, http.StatusOK, runResponse{Answers: results})
}

// observeRun records the outcome and duration of one run request.
func (s *Server) observeRun(outcome string, start time.Time) {
	s.metrics.runRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.runDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// runErrorStatus maps a pipeline error onto an HTTP status and a metrics
// outcome label.
func runErrorStatus(ctx context.Context, err error) (int, string) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, rag.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, rag.ErrUnsupportedFormat),
		errors.Is(err, rag.ErrFetchFailure):
		return http.StatusUnprocessableEntity, "bad_document"
	default:
		return http.StatusBadGateway, "error"
	}
}

// parseRunRequest builds a pipeline.Query from either a JSON or a multipart
// request body.
func parseRunRequest(r *http.Request) (*pipeline.Query, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("invalid Content-Type: %v", err)
	}

	var query *pipeline.Query
	switch {
	case mediaType == "multipart/form-data":
		query, err = parseMultipartRun(r)
	case mediaType == "application/json":
		query, err = parseJSONRun(r.Body)
	default:
		return nil, fmt.Errorf("unsupported Content-Type %q", mediaType)
	}
	if err != nil {
		return nil, err
	}

	if len(query.Questions) == 0 {
		return nil, fmt.Errorf("at least one question is required")
	}
	for i, q := range query.Questions {
		if strings.TrimSpace(q) == "" {
			return nil, fmt.Errorf("question %d is empty", i)
		}
	}
	return query, nil
}

// parseJSONRun decodes a JSON run request body.
func parseJSONRun(body io.Reader) (*pipeline.Query, error) {
	var req runRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %v", err)
	}

	query := &pipeline.Query{
		Questions:   req.Questions,
		Model:       req.Model,
		Temperature: req.Temperature,
	}
	for _, u := range req.Documents {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		query.Sources = append(query.Sources, extract.Source{ID: u, Name: u, URL: u})
	}
	return query, nil
}

// parseMultipartRun decodes a multipart run request: uploaded files under the
// "files" field, with "questions", "documents", "model", and "temperature"
// as ordinary form values.
func parseMultipartRun(r *http.Request) (*pipeline.Query, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart body: %v", err)
	}

	query := &pipeline.Query{
		Questions: formValues(r.MultipartForm.Value, "questions"),
		Model:     r.FormValue("model"),
	}

	if raw := r.FormValue("temperature"); raw != "" {
		t, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid temperature %q", raw)
		}
		temp := float32(t)
		query.Temperature = &temp
	}

	for _, u := range formValues(r.MultipartForm.Value, "documents") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		query.Sources = append(query.Sources, extract.Source{ID: u, Name: u, URL: u})
	}

	for _, fh := range r.MultipartForm.File["files"] {
		src, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		query.Sources = append(query.Sources, src)
	}
	return query, nil
}

// formValues returns all values for key, splitting JSON-style array values so
// clients may send either repeated fields or a single JSON array.
func formValues(form map[string][]string, key string) []string {
	var out []string
	for _, v := range form[key] {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(v), &arr); err == nil {
				out = append(out, arr...)
				continue
			}
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// readUpload reads one uploaded file into an extract.Source.
func readUpload(fh *multipart.FileHeader) (extract.Source, error) {
	f, err := fh.Open()
	if err != nil {
		return extract.Source{}, fmt.Errorf("opening upload %q: %v", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return extract.Source{}, fmt.Errorf("reading upload %q: %v", fh.Filename, err)
	}
	return extract.Source{ID: fh.Filename, Name: fh.Filename, Data: data}, nil
}
