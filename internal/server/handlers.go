package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/0xlemi/tunecoach/internal/audio"
	"github.com/0xlemi/tunecoach/internal/practice"
	"github.com/0xlemi/tunecoach/internal/session"
)

type analyzeSessionRequest struct {
	Chunks      [][]byte `json:"chunks"` // base64 PCM
	TargetNotes []string `json:"target_notes"`
}

type tuningNotesResponse struct {
	InstrumentType string   `json:"instrument_type"`
	TuningNotes    []string `json:"tuning_notes"`
}

type startSessionRequest struct {
	InstrumentType string `json:"instrument_type"`
}

type recordResponse struct {
	session.Progress
	Summary session.Summary `json:"summary"`
}

func readAudio(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Server) handleDetectNote(w http.ResponseWriter, r *http.Request) {
	data, err := readAudio(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	det, err := s.engine.DetectNote(data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, det)
}

func (s *Server) handleTune(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("target"))
	if target == "" {
		writeJSONError(w, http.StatusBadRequest, "target query parameter is required")
		return
	}
	data, err := readAudio(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.engine.Tune(data, target)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDetectChord(w http.ResponseWriter, r *http.Request) {
	data, err := readAudio(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	guess, err := s.engine.DetectChord(data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guess)
}

func (s *Server) handleAnalyzeSession(w http.ResponseWriter, r *http.Request) {
	var req analyzeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	summary, err := s.engine.AnalyzeSession(r.Context(), req.Chunks, req.TargetNotes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTuningNotes(w http.ResponseWriter, r *http.Request) {
	instrument := r.PathValue("instrument")
	writeJSON(w, http.StatusOK, tuningNotesResponse{
		InstrumentType: instrument,
		TuningNotes:    s.engine.TuningNotes(instrument),
	})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	sess, err := s.practice.Start(r.Context(), req.InstrumentType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.practice.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionAudio(w http.ResponseWriter, r *http.Request) {
	data, err := readAudio(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(data)%audio.SampleWidth != 0 {
		s.fail(w, r, fmt.Errorf("%w: %d bytes", audio.ErrInvalidAudioEncoding, len(data)))
		return
	}

	sess, summary, err := s.practice.Record(r.Context(), r.PathValue("id"), [][]byte{data}, splitTargets(r.URL.Query().Get("targets")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Progress: sess.Progress(), Summary: summary})
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var (
		sess *practice.Session
		err  error
	)
	switch r.PathValue("action") {
	case "pause":
		sess, err = s.practice.Pause(r.Context(), id)
	case "resume":
		sess, err = s.practice.Resume(r.Context(), id)
	case "end":
		sess, err = s.practice.End(r.Context(), id)
	case "abandon":
		sess, err = s.practice.Abandon(r.Context(), id)
	default:
		writeJSONError(w, http.StatusNotFound, "unknown session action")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.practice.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := practice.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := s.practice.History(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// splitTargets parses a comma-separated note list
func splitTargets(raw string) []string {
	var targets []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}
