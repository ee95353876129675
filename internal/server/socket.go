package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"

	"github.com/0xlemi/tunecoach/internal/logging"
)

// Socket events
const (
	eventDetectNote    = "detectNote"
	eventTune          = "tune"
	eventStartSession  = "startSession"
	eventSessionChunk  = "sessionChunk"
	eventEndSession    = "endSession"
	replyNoteDetected  = "noteDetected"
	replyTuned         = "tuned"
	replySessionStart  = "sessionStarted"
	replySessionUpdate = "sessionProgress"
	replySessionEnd    = "sessionEnded"
	replyError         = "analysisError"
)

var errNoSession = errors.New("no practice session started on this connection")

// socketPayload is the JSON body of every client event; audio is base64 PCM
type socketPayload struct {
	Audio          []byte   `json:"audio"`
	Target         string   `json:"target"`
	TargetNotes    []string `json:"target_notes"`
	InstrumentType string   `json:"instrument_type"`
}

func newSocketServer(s *Server) *socketio.Server {
	allowOrigin := func(r *http.Request) bool {
		return true
	}

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{CheckOrigin: allowOrigin},
			&polling.Transport{CheckOrigin: allowOrigin},
		},
	})

	server.OnConnect("/", func(conn socketio.Conn) error {
		conn.SetContext("")
		s.logger.Debug("socket connected", logging.Fields{"socket": conn.ID()})
		return nil
	})

	s.onEvent(server, eventDetectNote, s.socketDetectNote)
	s.onEvent(server, eventTune, s.socketTune)
	s.onEvent(server, eventStartSession, s.socketStartSession)
	s.onEvent(server, eventSessionChunk, s.socketSessionChunk)
	s.onEvent(server, eventEndSession, s.socketEndSession)

	server.OnError("/", func(conn socketio.Conn, err error) {
		s.logger.Warn("socket error", logging.Fields{"error": err.Error()})
	})

	server.OnDisconnect("/", func(conn socketio.Conn, reason string) {
		s.logger.Debug("socket disconnected", logging.Fields{"socket": conn.ID(), "reason": reason})
	})

	return server
}

type socketHandler func(ctx context.Context, conn socketio.Conn, p socketPayload) (string, any, error)

// onEvent decodes the payload, runs h off the event loop under the same
// admission bound as HTTP, and emits either the reply or analysisError.
func (s *Server) onEvent(server *socketio.Server, event string, h socketHandler) {
	server.OnEvent("/", event, func(conn socketio.Conn, msg string) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error(xerrors.New(fmt.Errorf("panic: %v", r)), "socket handler panicked", logging.Fields{"event": event})
					conn.Emit(replyError, apiError{Message: "internal server error during processing"})
				}
			}()

			var p socketPayload
			if msg != "" {
				if err := json.Unmarshal([]byte(msg), &p); err != nil {
					conn.Emit(replyError, apiError{Message: "invalid payload"})
					return
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			if err := s.sem.Acquire(ctx, 1); err != nil {
				conn.Emit(replyError, apiError{Message: "server busy, retry later"})
				return
			}
			defer s.sem.Release(1)

			reply, payload, err := h(ctx, conn, p)
			if err != nil {
				if !errors.Is(err, errNoSession) && statusFor(err) == http.StatusInternalServerError {
					s.logger.Error(xerrors.New(err), "socket event failed", logging.Fields{"event": event})
				}
				conn.Emit(replyError, apiError{Message: err.Error()})
				return
			}
			conn.Emit(reply, payload)
		}()
	})
}

func (s *Server) socketDetectNote(_ context.Context, _ socketio.Conn, p socketPayload) (string, any, error) {
	det, err := s.engine.DetectNote(p.Audio)
	return replyNoteDetected, det, err
}

func (s *Server) socketTune(_ context.Context, _ socketio.Conn, p socketPayload) (string, any, error) {
	res, err := s.engine.Tune(p.Audio, p.Target)
	return replyTuned, res, err
}

func (s *Server) socketStartSession(ctx context.Context, conn socketio.Conn, p socketPayload) (string, any, error) {
	sess, err := s.practice.Start(ctx, p.InstrumentType)
	if err != nil {
		return "", nil, err
	}
	conn.SetContext(sess.ID)
	return replySessionStart, sess, nil
}

func (s *Server) socketSessionChunk(ctx context.Context, conn socketio.Conn, p socketPayload) (string, any, error) {
	id, _ := conn.Context().(string)
	if id == "" {
		return "", nil, errNoSession
	}
	sess, summary, err := s.practice.Record(ctx, id, [][]byte{p.Audio}, p.TargetNotes)
	if err != nil {
		return "", nil, err
	}
	return replySessionUpdate, recordResponse{Progress: sess.Progress(), Summary: summary}, nil
}

func (s *Server) socketEndSession(ctx context.Context, conn socketio.Conn, _ socketPayload) (string, any, error) {
	id, _ := conn.Context().(string)
	if id == "" {
		return "", nil, errNoSession
	}
	sess, err := s.practice.End(ctx, id)
	if err != nil {
		return "", nil, err
	}
	conn.SetContext("")
	return replySessionEnd, sess, nil
}
