package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

var ebitenContextMu sync.Mutex

// ebitenContext returns the process-wide audio context. Ebitengine allows only one.
func ebitenContext(sampleRate int) (*audio.Context, error) {
	ebitenContextMu.Lock()
	defer ebitenContextMu.Unlock()

	if ctx := audio.CurrentContext(); ctx != nil {
		if ctx.SampleRate() != sampleRate {
			return nil, fmt.Errorf("%w: audio context already running at %dHz", ErrDeviceUnavailable, ctx.SampleRate())
		}
		return ctx, nil
	}
	return audio.NewContext(sampleRate), nil
}

// EbitenSink plays lines through Ebitengine's audio package.
type EbitenSink struct {
	// QueueSize is the byte capacity between the writer and the player.
	QueueSize int
	// BufferSize is the player's own buffer; smaller means faster Flush.
	BufferSize time.Duration
}

// NewEbitenSink creates an EbitenSink with default buffering.
func NewEbitenSink() *EbitenSink {
	return &EbitenSink{
		QueueSize:  DefaultQueueSize,
		BufferSize: 50 * time.Millisecond,
	}
}

func (s *EbitenSink) Open(f Format) (Line, error) {
	if err := checkFormat(f); err != nil {
		return nil, err
	}

	ctx, err := ebitenContext(f.SampleRate)
	if err != nil {
		return nil, err
	}

	queue := NewQueue(s.QueueSize)
	player, err := ctx.NewPlayer(queue)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create audio player: %v", ErrDeviceUnavailable, err)
	}
	if s.BufferSize > 0 {
		player.SetBufferSize(s.BufferSize)
	}

	return newPullLine("ebiten", queue, player), nil
}
