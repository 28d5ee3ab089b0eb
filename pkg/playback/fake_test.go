package playback

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/zurustar/trackplay/pkg/decoder"
	"github.com/zurustar/trackplay/pkg/fileutil"
	"github.com/zurustar/trackplay/pkg/sink"
)

// fakeModule renders each frame as its position within the song (left) and
// the negated position (right), so the written stream shows exactly where
// each block came from.
type fakeModule struct {
	length int

	mu      sync.Mutex
	cursor  int
	renders []int
	closed  bool
}

func (m *fakeModule) SongLengthFrames() int { return m.length }

func (m *fakeModule) RenderBlock(left, right []int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range left {
		pos := 0
		if m.length > 0 {
			pos = m.cursor % m.length
		}
		left[i] = int32(pos)
		right[i] = -int32(pos)
		m.cursor++
	}
	m.renders = append(m.renders, len(left))
}

func (m *fakeModule) Title() string { return "fake" }

func (m *fakeModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeModule) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// fakeOpener hands out modules by path; the module bytes are ignored.
type fakeOpener struct {
	mu      sync.Mutex
	modules map[string]*fakeModule
	opens   int
}

func (o *fakeOpener) Open(name string, data []byte) (decoder.Module, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	m, ok := o.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", decoder.ErrDecode, name)
	}
	return m, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// fakeLoader resolves every path in files.
type fakeLoader struct {
	files map[string]bool
}

func (l fakeLoader) ReadFile(name string) ([]byte, error) {
	if !l.files[name] {
		return nil, fmt.Errorf("%w: %s", fileutil.ErrResourceNotFound, name)
	}
	return []byte(name), nil
}

type harness struct {
	ctrl    *Controller
	opener  *fakeOpener
	rec     *sink.Recorder
	modules map[string]*fakeModule
}

// newHarness builds a controller over fake modules. Paths listed in
// undecodable resolve but fail to decode.
func newHarness(t *testing.T, blockSize int, modules map[string]*fakeModule, undecodable ...string) *harness {
	t.Helper()

	files := make(map[string]bool)
	for path := range modules {
		files[path] = true
	}
	for _, path := range undecodable {
		files[path] = true
	}

	h := &harness{
		opener:  &fakeOpener{modules: modules},
		rec:     sink.NewRecorder(),
		modules: modules,
	}
	h.ctrl = New(Config{
		Opener:      h.opener,
		Loader:      fakeLoader{files: files},
		Sink:        h.rec,
		BlockSize:   blockSize,
		IdleTimeout: 20 * time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { h.ctrl.Close() })
	return h
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// leftChannel decodes the left samples of every write, in order.
func leftChannel(writes [][]byte) []int16 {
	var out []int16
	for _, w := range writes {
		for i := 0; i+4 <= len(w); i += 4 {
			out = append(out, int16(binary.LittleEndian.Uint16(w[i:])))
		}
	}
	return out
}

func eventTypes(q *EventQueue) []EventType {
	var types []EventType
	for {
		e, ok := q.Pop()
		if !ok {
			return types
		}
		types = append(types, e.Type)
	}
}

func hasEvent(types []EventType, want EventType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// sendGate releases one gated write, giving up if the writer is not waiting.
func sendGate(gate chan struct{}) bool {
	select {
	case gate <- struct{}{}:
		return true
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

var errTest = errors.New("test")
