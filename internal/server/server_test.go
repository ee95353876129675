package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	socketio "github.com/googollee/go-socket.io"

	"github.com/0xlemi/tunecoach/internal/audio"
	"github.com/0xlemi/tunecoach/internal/chord"
	"github.com/0xlemi/tunecoach/internal/engine"
	"github.com/0xlemi/tunecoach/internal/logging"
	"github.com/0xlemi/tunecoach/internal/pitch"
	"github.com/0xlemi/tunecoach/internal/practice"
	"github.com/0xlemi/tunecoach/internal/session"
	"github.com/0xlemi/tunecoach/internal/testutil"
	"github.com/0xlemi/tunecoach/internal/tuning"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()

	logger := &logging.NoOpLogger{}
	eng := engine.New(engine.WithLogger(logger), engine.WithWorkers(2))
	mgr := practice.NewManager(practice.NewMemoryStore(), eng, logger)
	opts.Logger = logger
	s := New(eng, mgr, opts)
	t.Cleanup(func() { s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestDetectNote(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, Options{}).Handler()
	rec := do(t, h, http.MethodPost, "/ml/detect-note", testutil.SinePCM(440, audio.SampleRate))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	det := decode[pitch.Detection](t, rec)
	if det.Note != "A4" || det.Accuracy != pitch.Perfect {
		t.Errorf("detection = %+v", det)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestInvalidEncodingIsBadRequest(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, Options{}).Handler()
	for _, target := range []string{"/ml/detect-note", "/ml/tune?target=A4", "/ml/detect-chord"} {
		rec := do(t, h, http.MethodPost, target, []byte{1, 2, 3})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", target, rec.Code)
		}
		if msg := decode[apiError](t, rec).Message; msg == "" {
			t.Errorf("%s: empty error message", target)
		}
	}
}

func TestTune(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/ml/tune?target=A4", testutil.SinePCM(440, audio.SampleRate))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	res := decode[tuning.Result](t, rec)
	if !res.IsInTune || res.TargetNote != "A4" {
		t.Errorf("result = %+v", res)
	}

	rec = do(t, h, http.MethodPost, "/ml/tune", testutil.SinePCM(440, audio.SampleRate))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing target status = %d", rec.Code)
	}
}

func TestDetectChord(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, Options{}).Handler()
	rec := do(t, h, http.MethodPost, "/ml/detect-chord", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if g := decode[chord.Guess](t, rec); g.Chord != chord.Unknown || g.Confidence != 0 {
		t.Errorf("guess = %+v", g)
	}
}

func TestAnalyzeSession(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, Options{}).Handler()

	chunks := make([][]byte, 10)
	for i := range chunks {
		chunks[i] = testutil.SinePCM(440, 4096)
	}
	body, _ := json.Marshal(analyzeSessionRequest{Chunks: chunks, TargetNotes: []string{"A4"}})

	rec := do(t, h, http.MethodPost, "/ml/analyze-session", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	sum := decode[session.Summary](t, rec)
	if sum.TotalNotes != 10 || sum.AccuracyPercentage != 100 {
		t.Errorf("summary = %+v", sum)
	}

	rec = do(t, h, http.MethodPost, "/ml/analyze-session", []byte("{"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d", rec.Code)
	}

	body, _ = json.Marshal(analyzeSessionRequest{Chunks: [][]byte{{1, 2, 3}}})
	rec = do(t, h, http.MethodPost, "/ml/analyze-session", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad chunk status = %d", rec.Code)
	}
}

func TestTuningNotes(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, Options{}).Handler()
	rec := do(t, h, http.MethodGet, "/ml/tuning-notes/cello", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[tuningNotesResponse](t, rec)
	want := tuningNotesResponse{InstrumentType: "cello", TuningNotes: []string{"C2", "G2", "D3", "A3"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestPracticeSessionFlow(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/practice/sessions", []byte(`{"instrument_type":"violin"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	sess := decode[practice.Session](t, rec)
	base := "/practice/sessions/" + sess.ID

	rec = do(t, h, http.MethodPost, base+"/audio?targets=A4,E5", testutil.SinePCM(440, 8192))
	if rec.Code != http.StatusOK {
		t.Fatalf("audio status = %d, body %s", rec.Code, rec.Body)
	}
	progress := decode[recordResponse](t, rec)
	if progress.NotesPlayed != 1 || progress.CorrectNotes != 1 || progress.AccuracyPercentage != 100 {
		t.Errorf("progress = %+v", progress)
	}

	rec = do(t, h, http.MethodPost, base+"/audio", []byte{1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad audio status = %d", rec.Code)
	}

	if rec = do(t, h, http.MethodPost, base+"/pause", nil); rec.Code != http.StatusOK {
		t.Fatalf("pause status = %d", rec.Code)
	}
	if rec = do(t, h, http.MethodPost, base+"/audio", testutil.SinePCM(440, 8192)); rec.Code != http.StatusConflict {
		t.Errorf("audio while paused status = %d, want 409", rec.Code)
	}
	if rec = do(t, h, http.MethodPost, base+"/pause", nil); rec.Code != http.StatusConflict {
		t.Errorf("double pause status = %d, want 409", rec.Code)
	}
	if rec = do(t, h, http.MethodPost, base+"/resume", nil); rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, base+"/end", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("end status = %d", rec.Code)
	}
	if got := decode[practice.Session](t, rec); got.Status != practice.StatusCompleted || got.EndTime == nil {
		t.Errorf("ended session = %+v", got)
	}

	rec = do(t, h, http.MethodGet, base, nil)
	if got := decode[practice.Session](t, rec); got.NotesPlayed != 1 || got.Status != practice.StatusCompleted {
		t.Errorf("stored session = %+v", got)
	}

	if rec = do(t, h, http.MethodPost, base+"/dance", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown action status = %d", rec.Code)
	}
	if rec = do(t, h, http.MethodGet, "/practice/sessions/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d", rec.Code)
	}
}

func TestPracticeStatsAndHistory(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/practice/statistics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statistics status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[practice.Stats](t, rec); got.TotalSessions != 0 || got.LastPractice != nil {
		t.Errorf("empty statistics = %+v", got)
	}
	if rec = do(t, h, http.MethodGet, "/practice/history", nil); rec.Body.String() != "[]\n" {
		t.Errorf("empty history body = %q", rec.Body)
	}

	var ids []string
	for _, instrument := range []string{"violin", "cello"} {
		rec = do(t, h, http.MethodPost, "/practice/sessions", []byte(`{"instrument_type":"`+instrument+`"}`))
		ids = append(ids, decode[practice.Session](t, rec).ID)
	}
	base := "/practice/sessions/" + ids[0]
	if rec = do(t, h, http.MethodPost, base+"/audio?targets=A4", testutil.SinePCM(440, 8192)); rec.Code != http.StatusOK {
		t.Fatalf("audio status = %d, body %s", rec.Code, rec.Body)
	}
	if rec = do(t, h, http.MethodPost, base+"/end", nil); rec.Code != http.StatusOK {
		t.Fatalf("end status = %d", rec.Code)
	}

	stats := decode[practice.Stats](t, do(t, h, http.MethodGet, "/practice/statistics", nil))
	if stats.TotalSessions != 2 || stats.CompletedSessions != 1 || stats.NotesPlayed != 1 || stats.AverageAccuracy != 50 {
		t.Errorf("statistics = %+v", stats)
	}
	if stats.LastPractice == nil {
		t.Errorf("statistics missing last practice")
	}

	rec = do(t, h, http.MethodGet, "/practice/history?limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	if got := decode[[]practice.Session](t, rec); len(got) != 1 {
		t.Errorf("history = %+v", got)
	}
	if got := decode[[]practice.Session](t, do(t, h, http.MethodGet, "/practice/history", nil)); len(got) != 2 {
		t.Errorf("full history has %d sessions", len(got))
	}

	for _, bad := range []string{"0", "-3", "many"} {
		if rec = do(t, h, http.MethodGet, "/practice/history?limit="+bad, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("limit %q status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestOverloadTimesOut(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{MaxInFlight: 1, Timeout: 50 * time.Millisecond})
	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer s.sem.Release(1)

	rec := do(t, s.Handler(), http.MethodPost, "/ml/detect-note", testutil.SinePCM(440, 4096))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(t, Options{}).Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || decode[map[string]string](t, rec)["status"] != "ok" {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
}

type fakeConn struct {
	socketio.Conn
	ctx any
}

func (c *fakeConn) Context() any { return c.ctx }
func (c *fakeConn) SetContext(v any) { c.ctx = v }
func (c *fakeConn) ID() string { return "test" }

func TestSocketSessionHandlers(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{})
	ctx := context.Background()
	conn := &fakeConn{ctx: ""}

	if _, _, err := s.socketSessionChunk(ctx, conn, socketPayload{}); err != errNoSession {
		t.Errorf("chunk before start error = %v", err)
	}

	reply, payload, err := s.socketStartSession(ctx, conn, socketPayload{InstrumentType: "flute"})
	if err != nil || reply != replySessionStart {
		t.Fatalf("start = %s, %v", reply, err)
	}
	id := payload.(*practice.Session).ID
	if conn.ctx != id {
		t.Errorf("connection context = %v, want %s", conn.ctx, id)
	}

	reply, payload, err = s.socketSessionChunk(ctx, conn, socketPayload{
		Audio:       testutil.SinePCM(261.63, 8192),
		TargetNotes: []string{"C4"},
	})
	if err != nil || reply != replySessionUpdate {
		t.Fatalf("chunk = %s, %v", reply, err)
	}
	if p := payload.(recordResponse); p.CorrectNotes != 1 {
		t.Errorf("progress = %+v", p)
	}

	reply, payload, err = s.socketEndSession(ctx, conn, socketPayload{})
	if err != nil || reply != replySessionEnd {
		t.Fatalf("end = %s, %v", reply, err)
	}
	if payload.(*practice.Session).Status != practice.StatusCompleted || conn.ctx != "" {
		t.Errorf("after end: %+v, ctx %v", payload, conn.ctx)
	}
}

func TestSocketDetectNote(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Options{})
	reply, payload, err := s.socketDetectNote(context.Background(), &fakeConn{}, socketPayload{Audio: testutil.SinePCM(329.63, audio.SampleRate)})
	if err != nil || reply != replyNoteDetected {
		t.Fatalf("detectNote = %s, %v", reply, err)
	}
	if det := payload.(pitch.Detection); det.Note != "E4" {
		t.Errorf("detection = %+v", det)
	}
}
