package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zurustar/trackplay/pkg/playback"
	"golang.org/x/term"
)

// gainStep is how much one +/- key press changes the gain.
const gainStep = 0.1

// ErrNotTerminal is returned when interactive mode is requested without a terminal on stdin.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// player is the part of the controller the keyboard drives.
type player interface {
	Play()
	Stop()
	SetLoop(enabled bool)
	SetGain(gain float64)
	Status() playback.Status
}

// handleKey applies one key press and reports whether to keep reading.
func handleKey(p player, key byte) bool {
	st := p.Status()
	switch key {
	case ' ', 'p':
		if st.Playing {
			p.Stop()
		} else {
			p.Play()
		}
	case 'l':
		p.SetLoop(!st.Loop)
	case '+', '=':
		p.SetGain(st.Gain + gainStep)
	case '-', '_':
		p.SetGain(st.Gain - gainStep)
	case 'q', 'Q', 0x03, 0x1b: // Ctrl-C and Esc arrive as bytes in raw mode
		return false
	}
	return true
}

// keyReader reads single bytes from r on its own goroutine and delivers them
// on keys, which is closed when r fails. A blocked terminal read cannot be
// interrupted, so one reader is kept per input and shared by every session.
type keyReader struct {
	keys chan byte
}

func newKeyReader(r io.Reader) *keyReader {
	k := &keyReader{keys: make(chan byte)}
	go k.run(r)
	return k
}

func (k *keyReader) run(r io.Reader) {
	defer close(k.keys)

	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			k.keys <- buf[0]
		}
		if err != nil {
			return
		}
	}
}

// readKeys feeds key presses to p until quit is pressed, keys is closed or
// ctx is done, then calls done.
func readKeys(ctx context.Context, keys <-chan byte, p player, done func()) {
	defer done()

	for {
		select {
		case <-ctx.Done():
			return
		case key, ok := <-keys:
			if !ok || !handleKey(p, key) {
				return
			}
		}
	}
}

// enterRawMode puts f into raw mode and returns a function that restores it.
func enterRawMode(f *os.File) (func(), error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to set raw mode: %w", err)
	}
	return func() { _ = term.Restore(fd, oldState) }, nil
}

// formatStatus renders the one-line status shown in interactive mode.
func formatStatus(st playback.Status) string {
	state := "stopped"
	switch {
	case !st.Loaded:
		state = "unloaded"
	case st.Playing:
		state = "playing"
	case st.Thread == playback.Stopped:
		state = "ended"
	}
	loop := "off"
	if st.Loop {
		loop = "on"
	}

	rate := float64(playback.SampleRate)
	pos := time.Duration(float64(st.SongLengthFrames-st.RemainingFrames) / rate * float64(time.Second))
	length := time.Duration(float64(st.SongLengthFrames) / rate * float64(time.Second))

	line := fmt.Sprintf("[%s] %s / %s  loop:%s  gain:%.1f",
		state, pos.Truncate(100*time.Millisecond), length.Truncate(100*time.Millisecond), loop, st.Gain)
	if st.Title != "" {
		line += "  " + st.Title
	}
	return line
}

// printStatus overwrites the current terminal line with the status.
func printStatus(w io.Writer, st playback.Status) {
	fmt.Fprintf(w, "\r%s\x1b[K", formatStatus(st))
}
