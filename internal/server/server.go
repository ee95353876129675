// Package server exposes the engine and practice sessions over HTTP and socket.io.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
	"golang.org/x/sync/semaphore"

	"github.com/0xlemi/tunecoach/internal/audio"
	"github.com/0xlemi/tunecoach/internal/engine"
	"github.com/0xlemi/tunecoach/internal/logging"
	"github.com/0xlemi/tunecoach/internal/practice"
)

// maxBodyBytes caps request bodies; about 3 minutes of float32 audio
const maxBodyBytes = 32 << 20

const timeoutMessage = `{"message":"analysis timed out, retry later"}`

// Options tunes admission control
type Options struct {
	Timeout     time.Duration
	MaxInFlight int64
	Logger      logging.Logger
}

// Server routes requests to the engine and the practice manager
type Server struct {
	engine   *engine.Engine
	practice *practice.Manager
	sem      *semaphore.Weighted
	timeout  time.Duration
	logger   logging.Logger
	socket   *socketio.Server
}

func New(eng *engine.Engine, mgr *practice.Manager, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 16
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}

	s := &Server{
		engine:   eng,
		practice: mgr,
		sem:      semaphore.NewWeighted(opts.MaxInFlight),
		timeout:  opts.Timeout,
		logger:   opts.Logger.WithFields(logging.Fields{"component": "server"}),
	}
	s.socket = newSocketServer(s)
	return s
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /ml/detect-note", s.analysis(s.handleDetectNote))
	mux.Handle("POST /ml/tune", s.analysis(s.handleTune))
	mux.Handle("POST /ml/detect-chord", s.analysis(s.handleDetectChord))
	mux.Handle("POST /ml/analyze-session", s.analysis(s.handleAnalyzeSession))
	mux.HandleFunc("GET /ml/tuning-notes/{instrument}", s.handleTuningNotes)

	mux.HandleFunc("POST /practice/sessions", s.handleStartSession)
	mux.HandleFunc("GET /practice/sessions/{id}", s.handleGetSession)
	mux.Handle("POST /practice/sessions/{id}/audio", s.analysis(s.handleSessionAudio))
	mux.HandleFunc("POST /practice/sessions/{id}/{action}", s.handleSessionAction)
	mux.HandleFunc("GET /practice/statistics", s.handleStats)
	mux.HandleFunc("GET /practice/history", s.handleHistory)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/socket.io/", s.socket)

	return mux
}

// Serve starts the socket.io event loop; it returns when the socket server closes
func (s *Server) Serve() error {
	return s.socket.Serve()
}

func (s *Server) Close() error {
	return s.socket.Close()
}

// analysis wraps CPU-bound handlers with the in-flight bound and the time budget
func (s *Server) analysis(h http.HandlerFunc) http.Handler {
	admitted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.sem.Acquire(r.Context(), 1); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, "server busy, retry later")
			return
		}
		defer s.sem.Release(1)

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		h(w, r)
	})
	return http.TimeoutHandler(admitted, s.timeout, timeoutMessage)
}

func (s *Server) requestLogger(r *http.Request) logging.Logger {
	ctx := logging.ContextWithFields(r.Context(), logging.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	})
	return s.logger.WithContext(ctx)
}

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Warn("failed to encode JSON response", logging.Fields{"error": err.Error()})
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, audio.ErrInvalidAudioEncoding):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, practice.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, practice.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status; unexpected errors are logged with a stack
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.requestLogger(r).Error(xerrors.New(err), "request failed")
		writeJSONError(w, status, "internal server error")
		return
	}
	s.requestLogger(r).Debug("request rejected", logging.Fields{"status": status, "error": err.Error()})
	writeJSONError(w, status, err.Error())
}
