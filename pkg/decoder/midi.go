package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// ErrNoSoundFont is returned when a MIDI module is opened without a SoundFont.
var ErrNoSoundFont = errors.New("SoundFont file is required for MIDI playback")

// MIDIOpener decodes Standard MIDI Files with go-meltysynth.
type MIDIOpener struct {
	soundFont *meltysynth.SoundFont
}

// NewMIDIOpener creates a MIDIOpener. A nil soundFont is allowed; every Open
// then fails with ErrNoSoundFont.
func NewMIDIOpener(soundFont *meltysynth.SoundFont) *MIDIOpener {
	return &MIDIOpener{soundFont: soundFont}
}

func (o *MIDIOpener) Open(name string, data []byte) (Module, error) {
	if o.soundFont == nil {
		return nil, ErrNoSoundFont
	}

	midi, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}

	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(o.soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	seq := meltysynth.NewMidiFileSequencer(synth)
	// the sequencer restarts itself at the end; the controller decides whether that is heard
	seq.Play(midi, true)

	info := ParseMIDIInfo(data)

	return &midiModule{
		sequencer: seq,
		length:    sequencerLoopFrames(midi.GetLength(), int(synth.BlockSize)),
		title:     info.Title,
	}, nil
}

// sequencerLoopFrames returns the number of frames the sequencer renders
// before it restarts a song of the given length. Events are dispatched once
// per synth block, each advancing the song clock by a truncated block
// duration, and the restart happens in the block that dispatches the last
// event.
func sequencerLoopFrames(length time.Duration, blockSize int) int {
	if length <= 0 {
		return 0
	}
	step := time.Duration(float64(time.Second) * float64(blockSize) / float64(SampleRate))
	blocks := (length + step - 1) / step
	return int(blocks) * blockSize
}

type midiModule struct {
	sequencer *meltysynth.MidiFileSequencer
	length    int
	title     string

	left, right []float32
}

func (m *midiModule) SongLengthFrames() int {
	return m.length
}

func (m *midiModule) RenderBlock(left, right []int32) {
	n := len(left)
	if cap(m.left) < n {
		m.left = make([]float32, n)
		m.right = make([]float32, n)
	}
	l, r := m.left[:n], m.right[:n]
	m.sequencer.Render(l, r)

	for i := range n {
		left[i] = toSample(l[i])
		right[i] = toSample(r[i])
	}
}

// toSample scales a synth sample to the 16-bit range.
func toSample(v float32) int32 {
	return int32(clamp(v, -1, 1) * 32767)
}

// clamp restricts a value to the range [min, max].
func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (m *midiModule) Title() string {
	return m.title
}

func (m *midiModule) Close() error {
	m.sequencer = nil
	m.left, m.right = nil, nil
	return nil
}
