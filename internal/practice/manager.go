package practice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/0xlemi/tunecoach/internal/logging"
	"github.com/0xlemi/tunecoach/internal/session"
)

// Analyzer turns audio chunks into a session summary
type Analyzer interface {
	AnalyzeSession(ctx context.Context, chunks [][]byte, targets []string) (session.Summary, error)
}

// Manager drives sessions through their lifecycle and persists every change
type Manager struct {
	store    Store
	analyzer Analyzer
	logger   logging.Logger
	now      func() time.Time

	mu sync.Mutex // serializes read-modify-write on the store
}

func NewManager(store Store, analyzer Analyzer, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Manager{
		store:    store,
		analyzer: analyzer,
		logger:   logger.WithFields(logging.Fields{"component": "practice"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a new active session
func (m *Manager) Start(ctx context.Context, instrument string) (*Session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("error generating session id: %w", err)
	}

	instrument = strings.ToLower(strings.TrimSpace(instrument))
	if instrument == "" {
		instrument = "unknown"
	}

	sess := &Session{
		ID:             id.String(),
		InstrumentType: instrument,
		Status:         StatusActive,
		StartTime:      m.now(),
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	m.logger.Info("practice session started", logging.Fields{"session": sess.ID, "instrument": instrument})
	return sess, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

// Record analyzes audio chunks against targets and adds them to the session
func (m *Manager) Record(ctx context.Context, id string, chunks [][]byte, targets []string) (*Session, session.Summary, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, session.Summary{}, err
	}
	if sess.Status != StatusActive {
		return nil, session.Summary{}, fmt.Errorf("%w: cannot record audio while %s", ErrInvalidTransition, sess.Status)
	}

	summary, err := m.analyzer.AnalyzeSession(ctx, chunks, targets)
	if err != nil {
		return nil, session.Summary{}, err
	}

	sess, err = m.update(ctx, id, func(s *Session) error {
		return s.Record(summary)
	})
	if err != nil {
		return nil, session.Summary{}, err
	}

	m.logger.Debug("practice audio recorded", logging.Fields{
		"session":  id,
		"notes":    summary.TotalNotes,
		"accuracy": sess.AccuracyPercentage,
	})
	return sess, summary, nil
}

func (m *Manager) Pause(ctx context.Context, id string) (*Session, error) {
	return m.update(ctx, id, (*Session).Pause)
}

func (m *Manager) Resume(ctx context.Context, id string) (*Session, error) {
	return m.update(ctx, id, (*Session).Resume)
}

// End completes the session
func (m *Manager) End(ctx context.Context, id string) (*Session, error) {
	sess, err := m.update(ctx, id, func(s *Session) error {
		return s.Complete(m.now())
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("practice session completed", logging.Fields{
		"session":  id,
		"minutes":  sess.DurationMinutes,
		"accuracy": sess.AccuracyPercentage,
	})
	return sess, nil
}

func (m *Manager) Abandon(ctx context.Context, id string) (*Session, error) {
	return m.update(ctx, id, func(s *Session) error {
		return s.Abandon(m.now())
	})
}

func (m *Manager) update(ctx context.Context, id string, apply func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(sess); err != nil {
		return nil, err
	}
	if err := m.store.Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *Manager) Close() error {
	return m.store.Close()
}
