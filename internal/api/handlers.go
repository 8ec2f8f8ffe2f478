package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/nishad/srafetch/internal/export"
	"github.com/nishad/srafetch/internal/models"
	"github.com/nishad/srafetch/internal/pipeline"
	"github.com/nishad/srafetch/internal/service"
)

const (
	maxRequestBytes  = 4 << 20
	maxResolveLines  = 10000
	defaultListLimit = 20
	maxListLimit     = 1000
)

// Resolve handlers

// handleResolve accepts either {"accessions": [...]} or a text/plain body
// of lines. Without ?format the full batch is returned as JSON; with it,
// only the descriptors are written in that format.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	format, ok := s.formatParam(w, r)
	if !ok {
		return
	}

	lines, err := readLines(http.MaxBytesReader(w, r.Body, maxRequestBytes), r.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(lines) == 0 {
		s.writeError(w, http.StatusBadRequest, "no accessions given")
		return
	}
	if n := pipeline.CountInputs(lines); n > s.maxLines {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("too many accessions: %d (max %d at a %v launch interval)", n, s.maxLines, s.resolve.Interval()))
		return
	}

	resp, err := s.resolve.Resolve(ctx, &service.ResolveRequest{Lines: lines})
	if err != nil {
		s.writeErr(w, err)
		return
	}

	if resp.BatchID != "" {
		w.Header().Set("X-Batch-Id", resp.BatchID)
	}
	w.Header().Set("X-Batch-Failed", strconv.FormatBool(resp.Failed()))

	if format == "" {
		s.writeJSON(w, http.StatusOK, resp)
		return
	}
	s.writeDescriptors(w, format, resp.Descriptors)
}

func readLines(body io.Reader, contentType string) ([]string, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" || mediaType == "" {
		var req service.ResolveRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid request body: %v", err)
		}
		return req.Lines, nil
	}
	if mediaType != "text/plain" {
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}

	var lines []string
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading body: %v", err)
	}
	return lines, nil
}

func (s *Server) handleAccession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	format, ok := s.formatParam(w, r)
	if !ok {
		return
	}

	line := vars["accession"]
	if name := r.URL.Query().Get("name"); name != "" {
		line += " " + name
	}

	res, err := s.resolve.ResolveOne(ctx, line)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	if format == "" {
		s.writeJSON(w, http.StatusOK, res)
		return
	}
	s.writeDescriptors(w, format, res.Descriptors)
}

// History handlers

func (s *Server) handleAccessionHistory(w http.ResponseWriter, r *http.Request) {
	found, err := s.history.FindDescriptors(r.Context(), mux.Vars(r)["accession"])
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"accession":   mux.Vars(r)["accession"],
		"descriptors": found,
		"total":       len(found),
	})
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	batches, err := s.history.ListBatches(r.Context(), limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"batches": batches,
		"total":   len(batches),
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	detail, err := s.history.GetBatch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

// handleBatchDescriptors re-serializes a saved batch, aria2 by default.
func (s *Server) handleBatchDescriptors(w http.ResponseWriter, r *http.Request) {
	format, ok := s.formatParam(w, r)
	if !ok {
		return
	}
	if format == "" {
		format = export.FormatAria2
	}

	detail, err := s.history.GetBatch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeDescriptors(w, format, detail.Descriptors)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.Stats()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// formatParam validates ?format; "" means the default JSON envelope.
func (s *Server) formatParam(w http.ResponseWriter, r *http.Request) (export.Format, bool) {
	v := r.URL.Query().Get("format")
	if v == "" {
		return "", true
	}
	f, err := export.ParseFormat(v)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return f, true
}

func (s *Server) writeDescriptors(w http.ResponseWriter, format export.Format, ds []models.Descriptor) {
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, format, ds); err != nil {
		// headers are out; nothing left but to log
		logWriteError(err)
	}
}
