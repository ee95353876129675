package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/0xlemi/tunecoach/internal/audio"
	"github.com/0xlemi/tunecoach/internal/logging"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadPCM reads a .wav or .pcm file and returns it as engine PCM bytes
func loadPCM(path string) ([]byte, error) {
	buffer, err := audio.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return audio.EncodePCM(buffer.Samples), nil
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>",
		Short: "Detect the note played in a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			pcm, err := loadPCM(args[0])
			if err != nil {
				return err
			}
			det, err := eng.DetectNote(pcm)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), det)
		},
	}
}

func newTuneCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "tune <file>",
		Short: "Compare a recording against a target note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			pcm, err := loadPCM(args[0])
			if err != nil {
				return err
			}
			res, err := eng.Tune(pcm, target)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "A4", "target note, e.g. A4 or F#3")
	return cmd
}

func newChordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chord <file>",
		Short: "Guess the chord in a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			pcm, err := loadPCM(args[0])
			if err != nil {
				return err
			}
			guess, err := eng.DetectChord(pcm)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), guess)
		},
	}
}

func newSessionCmd() *cobra.Command {
	var (
		targets   []string
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "session <file>...",
		Short: "Score recordings against target notes",
		Long: "Splits each recording into chunks, detects a note per chunk " +
			"and reports how many matched the targets.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chunkSize <= 0 {
				return fmt.Errorf("chunk size must be positive, got %d", chunkSize)
			}
			eng, err := newEngine()
			if err != nil {
				return err
			}

			var chunks [][]byte
			for _, path := range args {
				buffer, err := audio.LoadFile(path)
				if err != nil {
					return err
				}
				for start := 0; start < buffer.Len(); start += chunkSize {
					end := min(start+chunkSize, buffer.Len())
					chunks = append(chunks, audio.EncodePCM(buffer.Samples[start:end]))
				}
			}
			logging.Debug("session chunks prepared", logging.Fields{"files": len(args), "chunks": len(chunks)})

			summary, err := eng.AnalyzeSession(cmd.Context(), chunks, targets)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "target notes (repeat or comma-separate)")
	cmd.Flags().IntVar(&chunkSize, "chunk", 8192, "samples per analyzed chunk")
	return cmd
}

func newNotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notes <instrument>",
		Short: "List an instrument's tuning notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"instrument_type": args[0],
				"tuning_notes":    eng.TuningNotes(args[0]),
			})
		},
	}
}
