// Package sink provides the audio output lines the playback controller writes PCM to.
//
// A Sink opens Lines for a fixed Format. A Line accepts interleaved 16-bit
// little-endian stereo bytes through a blocking Write; the blocking is the
// device's backpressure and is what paces the render loop.
package sink

import (
	"context"
	"errors"
	"fmt"
)

// SampleRate is the only output rate the engine renders at.
const SampleRate = 44100

var (
	// ErrDeviceUnavailable is returned when a line cannot be opened or started,
	// or when the device fails while playing.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrLineClosed is returned by Write after the line has been closed.
	ErrLineClosed = errors.New("audio line closed")
)

// Format describes the PCM layout of a line.
type Format struct {
	SampleRate    int
	BitsPerSample int
	Channels      int
	Signed        bool
	LittleEndian  bool
}

// DefaultFormat is 44.1kHz, 16-bit signed little-endian stereo.
var DefaultFormat = Format{
	SampleRate:    SampleRate,
	BitsPerSample: 16,
	Channels:      2,
	Signed:        true,
	LittleEndian:  true,
}

// BytesPerFrame returns the size of one sample per channel.
func (f Format) BytesPerFrame() int {
	return f.BitsPerSample / 8 * f.Channels
}

func (f Format) String() string {
	sign := "unsigned"
	if f.Signed {
		sign = "signed"
	}
	order := "BE"
	if f.LittleEndian {
		order = "LE"
	}
	return fmt.Sprintf("%dHz/%dbit/%dch/%s/%s", f.SampleRate, f.BitsPerSample, f.Channels, sign, order)
}

// checkFormat rejects anything but DefaultFormat; none of the backends convert.
func checkFormat(f Format) error {
	if f != DefaultFormat {
		return fmt.Errorf("%w: unsupported format %s", ErrDeviceUnavailable, f)
	}
	return nil
}

// Sink opens output lines.
type Sink interface {
	Open(f Format) (Line, error)
}

// Line is one open output stream. A Line is used by a single writer goroutine;
// SetGain may be called from that goroutine at any point between writes.
type Line interface {
	// Start begins playback of written data.
	Start() error
	// Write queues p for playback, blocking while the device buffer is full.
	// It returns ctx.Err() if ctx is cancelled while blocked.
	Write(ctx context.Context, p []byte) (int, error)
	// Flush drops data that was written but has not been played yet.
	Flush() error
	// Close stops playback and releases the device. Pending writes fail with ErrLineClosed.
	Close() error
	// SetGain sets the device volume in [0, 1].
	SetGain(gain float64)
}
