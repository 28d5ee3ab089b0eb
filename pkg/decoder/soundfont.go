package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/trackplay/pkg/fileutil"
)

// ErrSoundFontNotFound is returned when the SoundFont file cannot be found.
var ErrSoundFontNotFound = errors.New("SoundFont file not found")

// ReadSoundFontFS reads a SoundFont through fsys, or from disk when fsys is nil.
func ReadSoundFontFS(fsys fileutil.FileSystem, path string) ([]byte, error) {
	if path == "" {
		return nil, ErrNoSoundFont
	}
	if fsys == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrSoundFontNotFound, path)
			}
			return nil, fmt.Errorf("failed to read SoundFont file: %w", err)
		}
		return data, nil
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSoundFontNotFound, path)
	}
	return data, nil
}

// LoadSoundFontFS reads and parses a SoundFont.
func LoadSoundFontFS(fsys fileutil.FileSystem, path string) (*meltysynth.SoundFont, error) {
	data, err := ReadSoundFontFS(fsys, path)
	if err != nil {
		return nil, err
	}

	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}
	return soundFont, nil
}

// MIDIExtensions are the file extensions routed to the MIDI decoder.
var MIDIExtensions = []string{".mid", ".midi", ".smf", ".kar"}

// NewDefaultRegistry registers the built-in decoders. midi handles
// MIDIExtensions; when nil, a MIDIOpener without a SoundFont is used and MIDI
// modules fail to open with ErrNoSoundFont.
func NewDefaultRegistry(midi Opener) *Registry {
	if midi == nil {
		midi = NewMIDIOpener(nil)
	}
	r := NewRegistry()
	r.Register(midi, MIDIExtensions...)
	r.Register(NewWAVOpener(), ".wav")
	return r
}
