// Package engine exposes the analysis operations over raw PCM payloads.
package engine

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/0xlemi/tunecoach/internal/audio"
	"github.com/0xlemi/tunecoach/internal/chord"
	"github.com/0xlemi/tunecoach/internal/logging"
	"github.com/0xlemi/tunecoach/internal/pitch"
	"github.com/0xlemi/tunecoach/internal/session"
	"github.com/0xlemi/tunecoach/internal/tuning"
)

// Engine is stateless between calls and safe for concurrent use
type Engine struct {
	detector  *pitch.Detector
	evaluator *tuning.Evaluator
	chords    *chord.Detector
	workers   int
	logger    logging.Logger
}

type options struct {
	scorer  pitch.Scorer
	workers int
	logger  logging.Logger
	mapper  *pitch.NoteMapper
}

// Option configures an Engine
type Option func(*options)

// WithScorer plugs a learned confidence scorer into pitch estimation
func WithScorer(s pitch.Scorer) Option {
	return func(o *options) { o.scorer = s }
}

// WithWorkers bounds the number of chunks analyzed in parallel
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMapper replaces the A4 = 440 Hz reference table
func WithMapper(m *pitch.NoteMapper) Option {
	return func(o *options) { o.mapper = m }
}

// New builds an engine
func New(opts ...Option) *Engine {
	o := options{
		workers: runtime.GOMAXPROCS(0),
		logger:  logging.GetGlobalLogger(),
		mapper:  pitch.DefaultMapper,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.WithFields(logging.Fields{"component": "engine"})
	estOpts := []pitch.Option{pitch.WithLogger(logger)}
	if o.scorer != nil {
		estOpts = append(estOpts, pitch.WithScorer(o.scorer))
	}
	estimator := pitch.NewEstimator(estOpts...)

	return &Engine{
		detector:  pitch.NewDetector(estimator, o.mapper),
		evaluator: tuning.NewEvaluator(estimator, o.mapper),
		chords:    chord.NewDetector(),
		workers:   o.workers,
		logger:    logger,
	}
}

// DetectNote detects the note played in one PCM chunk
func (e *Engine) DetectNote(data []byte) (pitch.Detection, error) {
	buffer, err := audio.DecodePCM(data)
	if err != nil {
		return pitch.Detection{}, err
	}
	return e.detector.Detect(buffer), nil
}

// Tune compares one PCM chunk against a target note
func (e *Engine) Tune(data []byte, target string) (tuning.Result, error) {
	buffer, err := audio.DecodePCM(data)
	if err != nil {
		return tuning.Result{}, err
	}
	return e.evaluator.Evaluate(buffer, target), nil
}

// DetectChord guesses the chord in one PCM chunk
func (e *Engine) DetectChord(data []byte) (chord.Guess, error) {
	buffer, err := audio.DecodePCM(data)
	if err != nil {
		return chord.Guess{}, err
	}
	return e.chords.Detect(buffer), nil
}

// AnalyzeSession detects a note per chunk and summarizes them against targets.
// Chunks are analyzed in parallel; the summary is folded in chunk order.
// A malformed chunk fails the whole call.
func (e *Engine) AnalyzeSession(ctx context.Context, chunks [][]byte, targets []string) (session.Summary, error) {
	detections := make([]pitch.Detection, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			buffer, err := audio.DecodePCM(chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			detections[i] = e.detector.Detect(buffer)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return session.Summary{}, err
	}

	summary := session.Analyze(detections, targets)
	e.logger.Debug("session analyzed", logging.Fields{
		"chunks":   len(chunks),
		"kept":     summary.TotalNotes,
		"correct":  summary.CorrectNotes,
		"accuracy": summary.AccuracyPercentage,
	})
	return summary, nil
}

// TuningNotes returns the standard tuning notes for an instrument
func (e *Engine) TuningNotes(instrument string) []string {
	return tuning.NotesFor(instrument)
}

// Detector exposes the note detector for hosts that already hold a buffer
func (e *Engine) Detector() *pitch.Detector {
	return e.detector
}

// Evaluator exposes the tuning evaluator for hosts that already hold a buffer
func (e *Engine) Evaluator() *tuning.Evaluator {
	return e.evaluator
}
