package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/0xlemi/tunecoach/internal/audio"
	"github.com/0xlemi/tunecoach/internal/audio/mic"
	"github.com/0xlemi/tunecoach/internal/logging"
	"github.com/0xlemi/tunecoach/internal/pitch"
	"github.com/0xlemi/tunecoach/internal/ui"
)

const (
	// Audio settings
	windowSize    = 8192 // samples handed to the detector, about 186 ms
	framesPerCall = 1024
	channels      = 1

	// How often to update the level meter
	levelInterval = 200 * time.Millisecond

	// Delay after a volume jump before registering a note
	stabilizationDelay = 300 * time.Millisecond

	// Minimum spacing of note updates, to prevent flicker
	noteInterval = 80 * time.Millisecond

	// Levels below this are treated as silence
	silenceDB = -30.0
)

func newLiveCmd() *cobra.Command {
	var (
		instrument    string
		file          string
		amplification float32
	)

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Live tuner on the microphone (or a looped file)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var capturer audio.Capturer
			if file != "" {
				buffer, err := audio.LoadFile(file)
				if err != nil {
					return err
				}
				capturer = audio.NewReplayCapturer(buffer, windowSize)
			} else {
				input, err := mic.NewPortAudioCapturer(windowSize, framesPerCall, channels)
				if err != nil {
					return err
				}
				input.SetAmplification(amplification)
				capturer = input
			}

			// the terminal belongs to the UI from here on
			prev := logging.GetGlobalLogger()
			logging.SetGlobalLogger(&logging.NoOpLogger{})
			defer logging.SetGlobalLogger(prev)

			eng, err := newEngine()
			if err != nil {
				return err
			}

			if err := capturer.Start(); err != nil {
				return err
			}
			defer capturer.Stop()

			p := tea.NewProgram(ui.NewModel(instrument), tea.WithAltScreen())

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go listen(ctx, capturer, eng.Detector(), p)

			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVarP(&instrument, "instrument", "i", "", "tune against an instrument's strings (violin, cello, ...)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "loop a .wav or .pcm file instead of the microphone")
	cmd.Flags().Float32Var(&amplification, "gain", 8.0, "microphone input gain")
	return cmd
}

// listen polls the capturer and forwards levels and notes to the UI
func listen(ctx context.Context, capturer audio.Capturer, detector *pitch.Detector, p *tea.Program) {
	var (
		lastLevel      time.Time
		lastNote       time.Time
		isVolumeRising bool
		volumeRiseTime time.Time
		lastDB         = -100.0
	)

	pause := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	for {
		buffer, err := capturer.GetBuffer()
		if err != nil || buffer.Len() == 0 {
			if !pause(10 * time.Millisecond) {
				return
			}
			continue
		}

		rms, db := buffer.Level()
		if time.Since(lastLevel) > levelInterval {
			p.Send(ui.UpdateAudioLevelMsg{RMS: rms, DB: db})
			lastLevel = time.Now()
		}

		// a sharp rise in volume marks a note onset; let it settle first
		if db > lastDB+3 && db > -40 && !isVolumeRising {
			isVolumeRising = true
			volumeRiseTime = time.Now()
		}
		lastDB = db

		if db < silenceDB {
			p.Send(ui.ClearNoteMsg{})
			isVolumeRising = false
			if !pause(50 * time.Millisecond) {
				return
			}
			continue
		}

		if isVolumeRising && time.Since(volumeRiseTime) < stabilizationDelay {
			if !pause(10 * time.Millisecond) {
				return
			}
			continue
		}
		isVolumeRising = false

		det := detector.Detect(buffer)
		if det.Note == pitch.Unknown {
			p.Send(ui.ClearNoteMsg{})
		} else if time.Since(lastNote) > noteInterval {
			p.Send(ui.UpdateNoteMsg(det))
			lastNote = time.Now()
		}

		if !pause(50 * time.Millisecond) {
			return
		}
	}
}
