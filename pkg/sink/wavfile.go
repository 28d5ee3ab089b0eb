package sink

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
)

const wavHeaderSize = 44

// ErrWAVTooLarge is returned when a write would overflow the RIFF size fields.
var ErrWAVTooLarge = errors.New("WAV data exceeds 4 GiB")

// maxWAVDataBytes is the largest data chunk whose RIFF size still fits in 32 bits.
var maxWAVDataBytes uint64 = math.MaxUint32 - 36

// WAVFileSink renders lines into RIFF/WAVE files instead of a device.
// Each Open truncates and rewrites Path.
type WAVFileSink struct {
	Path string
}

// NewWAVFileSink creates a sink writing to path.
func NewWAVFileSink(path string) *WAVFileSink {
	return &WAVFileSink{Path: path}
}

func (s *WAVFileSink) Open(f Format) (Line, error) {
	if err := checkFormat(f); err != nil {
		return nil, err
	}

	file, err := os.Create(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	l := &wavLine{file: file, w: bufio.NewWriter(file), format: f}
	l.gain.Store(math.Float64bits(1))

	// sizes are patched on Close
	if err := l.writeHeader(0); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return l, nil
}

type wavLine struct {
	file   *os.File
	w      *bufio.Writer
	format Format
	gain   atomic.Uint64

	mu        sync.Mutex
	dataBytes uint64
	scratch   []byte
	closed    bool
}

func (l *wavLine) writeHeader(dataBytes uint32) error {
	f := l.format
	blockAlign := uint16(f.BytesPerFrame())
	hdr := make([]byte, wavHeaderSize)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataBytes)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(f.SampleRate)*uint32(blockAlign))
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(f.BitsPerSample))
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataBytes)

	_, err := l.file.WriteAt(hdr, 0)
	if err != nil {
		return err
	}
	if dataBytes == 0 {
		_, err = l.file.Seek(wavHeaderSize, 0)
	}
	return err
}

func (l *wavLine) Start() error {
	return nil
}

func (l *wavLine) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrLineClosed
	}
	if l.dataBytes+uint64(len(p)) > maxWAVDataBytes {
		return 0, fmt.Errorf("%w: %w", ErrDeviceUnavailable, ErrWAVTooLarge)
	}

	// a file has no device volume, so gain is applied to the samples
	gain := math.Float64frombits(l.gain.Load())
	out := p
	if gain != 1 {
		if cap(l.scratch) < len(p) {
			l.scratch = make([]byte, len(p))
		}
		out = l.scratch[:len(p)]
		for i := 0; i+1 < len(p); i += 2 {
			s := int16(binary.LittleEndian.Uint16(p[i:]))
			binary.LittleEndian.PutUint16(out[i:], uint16(int16(float64(s)*gain)))
		}
	}

	n, err := l.w.Write(out)
	l.dataBytes += uint64(n)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return n, nil
}

func (l *wavLine) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.w.Flush()
}

func (l *wavLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if err := l.w.Flush(); err != nil {
		l.file.Close()
		return err
	}
	if err := l.writeHeader(uint32(l.dataBytes)); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}

func (l *wavLine) SetGain(gain float64) {
	l.gain.Store(math.Float64bits(gain))
}
