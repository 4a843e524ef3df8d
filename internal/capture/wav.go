package capture

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// MaxSampleRate caps the rate chosen by DefaultDecimation; audio
	// editors rarely open anything faster.
	MaxSampleRate = 192_000

	// Amplitude is the sample value of a high pin; a low pin is -Amplitude.
	Amplitude = 24_000

	bitDepth  = 16
	formatPCM = 1
)

// DefaultDecimation returns the smallest cycles-per-sample step that keeps
// the sample rate at or below MaxSampleRate.
func (r *Recording) DefaultDecimation() uint64 {
	return uint64(math.Ceil(r.Config.Frequency / MaxSampleRate))
}

// SampleRate returns the WAV sample rate for a decimation step.
func (r *Recording) SampleRate(decimation uint64) int {
	if decimation == 0 {
		decimation = 1
	}
	return int(r.Config.Frequency / float64(decimation))
}

// WriteWAV renders the recording as 16-bit PCM with one channel per output
// pin, in ascending pin order. Each sample holds the pin levels of one
// cycle, every decimation cycles; zero selects DefaultDecimation.
func (r *Recording) WriteWAV(w io.WriteSeeker, decimation uint64) error {
	if decimation == 0 {
		decimation = r.DefaultDecimation()
	}
	if len(r.Pins) == 0 {
		return fmt.Errorf("capture: program %s drives no pins", r.Program)
	}

	rate := r.SampleRate(decimation)
	rows := r.Levels(decimation)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: len(r.Pins), SampleRate: rate},
		Data:           make([]int, 0, len(rows)*len(r.Pins)),
		SourceBitDepth: bitDepth,
	}
	for _, row := range rows {
		for _, high := range row {
			if high {
				buf.Data = append(buf.Data, Amplitude)
			} else {
				buf.Data = append(buf.Data, -Amplitude)
			}
		}
	}

	enc := wav.NewEncoder(w, rate, bitDepth, len(r.Pins), formatPCM)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("capture: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("capture: close wav: %w", err)
	}
	return nil
}
