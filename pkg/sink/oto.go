package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

// otoContext creates the single oto context a process may have.
// It cannot coexist with EbitenSink, which owns its own oto context.
func otoContext(f Format) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
	})
	if otoErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, otoErr)
	}
	return otoCtx, nil
}

// OtoSink plays lines directly through oto, without Ebitengine.
type OtoSink struct {
	QueueSize int
	// PlayerBufferBytes bounds oto's per-player buffer; 0 keeps oto's default.
	PlayerBufferBytes int
}

// NewOtoSink creates an OtoSink with default buffering.
func NewOtoSink() *OtoSink {
	return &OtoSink{
		QueueSize:         DefaultQueueSize,
		PlayerBufferBytes: 8192,
	}
}

func (s *OtoSink) Open(f Format) (Line, error) {
	if err := checkFormat(f); err != nil {
		return nil, err
	}

	ctx, err := otoContext(f)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	queue := NewQueue(s.QueueSize)
	player := ctx.NewPlayer(queue)
	if s.PlayerBufferBytes > 0 {
		player.SetBufferSize(s.PlayerBufferBytes)
	}

	return newPullLine("oto", queue, player), nil
}
