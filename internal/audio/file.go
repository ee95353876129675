package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV reports a file that does not decode as PCM WAV
var ErrInvalidWAV = errors.New("invalid wav file")

// LoadFile reads a .wav file (down-mixed to mono) or raw float32 LE PCM
func LoadFile(path string) (*AudioBuffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return loadWAV(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodePCM(data)
}

func loadWAV(path string) (*AudioBuffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	return &AudioBuffer{
		Samples:    downmix(buf),
		SampleRate: int(decoder.SampleRate),
	}, nil
}

// downmix averages interleaved channels and scales integer PCM to [-1, 1]
func downmix(buf *goaudio.IntBuffer) []float32 {
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil
	}

	channels := max(buf.Format.NumChannels, 1)
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	mono := make([]float32, len(buf.Data)/channels)
	for i := range mono {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += buf.Data[i*channels+ch]
		}
		mono[i] = float32(float64(sum) / float64(channels) * scale)
	}
	return mono
}
