package decoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// WAVOpener decodes PCM WAV files, resampled to SampleRate 16-bit stereo.
type WAVOpener struct{}

// NewWAVOpener creates a WAVOpener.
func NewWAVOpener() *WAVOpener {
	return &WAVOpener{}
}

func (WAVOpener) Open(name string, data []byte) (Module, error) {
	stream, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	return &wavModule{stream: stream, length: int(stream.Length() / 4)}, nil
}

type wavModule struct {
	stream *wav.Stream
	length int
	buf    []byte
}

func (m *wavModule) SongLengthFrames() int {
	return m.length
}

func (m *wavModule) RenderBlock(left, right []int32) {
	n := len(left)
	if cap(m.buf) < n*4 {
		m.buf = make([]byte, n*4)
	}
	buf := m.buf[:n*4]

	filled := 0
	for filled < len(buf) {
		read, err := io.ReadFull(m.stream, buf[filled:])
		filled += read
		if err == nil {
			break
		}
		if m.length == 0 || !(errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			clear(buf[filled:])
			break
		}
		// past the end: continue from the top
		if _, err := m.stream.Seek(0, io.SeekStart); err != nil {
			clear(buf[filled:])
			break
		}
	}

	for i := range n {
		left[i] = int32(int16(binary.LittleEndian.Uint16(buf[i*4:])))
		right[i] = int32(int16(binary.LittleEndian.Uint16(buf[i*4+2:])))
	}
}

func (m *wavModule) Title() string {
	return ""
}

func (m *wavModule) Close() error {
	m.stream = nil
	return nil
}
