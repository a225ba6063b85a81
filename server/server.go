// Package server exposes the pitch pipeline and the melody library over
// HTTP with JSON responses.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/stdio2016/pitchtrack"
)

type Server struct {
	cfg pitchtrack.Config
	lib *pitchtrack.Library
	log *slog.Logger
}

func New(cfg pitchtrack.Config, lib *pitchtrack.Library, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, lib: lib, log: logger}
}

// ProcessRequest carries one frame-aligned stream. Params is decoded over
// the server configuration, so omitted fields keep their configured values.
type ProcessRequest struct {
	Frequency  []float64          `json:"frequency"`
	Confidence []float64          `json:"confidence"`
	Energy     []float64          `json:"energy"`
	Params     *pitchtrack.Params `json:"params,omitempty"`
}

type ProcessResponse struct {
	Pitch    []float64            `json:"pitch"`
	Segments []pitchtrack.Segment `json:"segments"`
}

type AnalyzeResponse struct {
	Contour pitchtrack.Contour `json:"contour"`
	Reason  string             `json:"reason"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /melodies", s.handleAddMelody)
	mux.HandleFunc("POST /score", s.handleScore)
	return mux
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	params := s.cfg.Params
	req := ProcessRequest{Params: &params}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	pitch, err := pitchtrack.Process(req.Frequency, req.Confidence, req.Energy, params)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, ProcessResponse{
		Pitch:    pitch,
		Segments: pitchtrack.VoicedSegments(pitch),
	})
	s.log.Debug("processed stream", "frames", len(pitch))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("file")
	if filename == "" {
		writeError(w, http.StatusBadRequest, errors.New("file must not be empty"))
		return
	}
	start := time.Now()
	contour, err := pitchtrack.AnalyzeFile(filename, s.cfg)
	if err != nil {
		s.log.Warn("analyze failed", "file", filename, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	elapsed := time.Since(start)
	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Contour: contour,
		Reason:  fmt.Sprintf("analyzed %d frames in %dms", len(contour.Frames), elapsed.Milliseconds()),
	})
	s.log.Info("analyzed local file", "file", filename, "frames", len(contour.Frames), "elapsed", elapsed)
}

func (s *Server) handleAddMelody(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := r.Form.Get("melodyId")
	name := r.Form.Get("name")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("melodyId must not be empty"))
		return
	}
	notes, err := pitchtrack.ParseFiniteSeries(r.Form.Get("notes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("notes: %w", err))
		return
	}
	s.lib.Add(pitchtrack.NewMelody(id, name, notes))
	writeJSON(w, http.StatusOK, map[string]string{"message": "added melody"})
	s.log.Info("added melody", "id", id, "name", name, "notes", len(notes))
}

// handleScore takes a processed contour in Hz; unvoiced zeros are dropped
// before matching.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	pitch, err := pitchtrack.ParseFiniteSeries(r.FormValue("pitch"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("pitch: %w", err))
		return
	}
	contour := pitchtrack.Contour{Frames: make([]pitchtrack.Frame, len(pitch))}
	for i, f := range pitch {
		contour.Frames[i].Pitch = f
	}
	notes := contour.Notes()
	if len(notes) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("pitch must contain voiced frames"))
		return
	}
	writeJSON(w, http.StatusOK, s.lib.Score(notes))
	s.log.Info("scored contour", "voiced", len(notes), "melodies", s.lib.Len())
}

func statusFor(err error) int {
	if errors.Is(err, pitchtrack.ErrShapeMismatch) || errors.Is(err, pitchtrack.ErrInvalidParameter) {
		return http.StatusBadRequest
	}
	if errors.Is(err, fs.ErrNotExist) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeJSON encodes before writing the header so an unencodable value
// turns into a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
