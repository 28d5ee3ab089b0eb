// Package decoder turns module bytes into blocks of stereo samples.
//
// A Module is a stateful cursor over a decoded song. The playback controller
// asks it for fixed-size blocks and keeps track of how many frames remain on
// its own; rendering past the end of the song continues from the start, so a
// controller that resets its counter at the boundary loops seamlessly.
package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// SampleRate is the rate every Module renders at.
const SampleRate = 44100

var (
	// ErrDecode is returned when module bytes are malformed.
	ErrDecode = errors.New("module decode failed")

	// ErrUnsupportedFormat is returned when no decoder handles the module.
	ErrUnsupportedFormat = errors.New("unsupported module format")
)

// Module is an opened song.
type Module interface {
	// SongLengthFrames returns the song length in frames. It never changes.
	// Rendering that many frames brings the cursor back to the start.
	SongLengthFrames() int
	// RenderBlock fills left and right (equal length) and advances the cursor.
	// Values are within the signed 16-bit range.
	RenderBlock(left, right []int32)
	// Title returns the embedded song title, or "".
	Title() string
	// Close releases the decoded song.
	Close() error
}

// Opener decodes module bytes. name is used only for format selection and messages.
type Opener interface {
	Open(name string, data []byte) (Module, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(name string, data []byte) (Module, error)

func (f OpenerFunc) Open(name string, data []byte) (Module, error) {
	return f(name, data)
}

// Registry picks an Opener by file extension, falling back to content sniffing.
type Registry struct {
	openers map[string]Opener
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]Opener)}
}

// Register binds opener to the given extensions (with or without the dot).
func (r *Registry) Register(opener Opener, exts ...string) {
	for _, ext := range exts {
		r.openers[normalizeExt(ext)] = opener
	}
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.openers))
	for ext := range r.openers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open decodes data with the opener registered for name's extension.
func (r *Registry) Open(name string, data []byte) (Module, error) {
	ext := normalizeExt(filepath.Ext(name))
	opener, ok := r.openers[ext]
	if !ok {
		if sniffed := Sniff(data); sniffed != "" {
			opener, ok = r.openers[sniffed]
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	return opener.Open(name, data)
}

// Sniff guesses an extension from magic bytes, or returns "".
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("MThd")):
		return ".mid"
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return ".wav"
	}
	return ""
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
