package decoder

import (
	"errors"
	"reflect"
	"testing"
)

type stubModule struct {
	name string
}

func (m *stubModule) SongLengthFrames() int          { return 1 }
func (m *stubModule) RenderBlock(left, right []int32) {}
func (m *stubModule) Title() string                   { return m.name }
func (m *stubModule) Close() error                    { return nil }

func stubOpener(tag string) Opener {
	return OpenerFunc(func(name string, data []byte) (Module, error) {
		return &stubModule{name: tag}, nil
	})
}

func TestRegistryOpenByExtension(t *testing.T) {
	r := NewRegistry()
	r.Register(stubOpener("midi"), ".mid", "MIDI")
	r.Register(stubOpener("wav"), ".wav")

	tests := []struct {
		name string
		file string
		data []byte
		want string
	}{
		{"lowercase extension", "song.mid", nil, "midi"},
		{"uppercase extension", "SONG.MID", nil, "midi"},
		{"registered without dot", "song.midi", nil, "midi"},
		{"wav", "fx.wav", nil, "wav"},
		{"sniffed MIDI", "song.bin", []byte("MThd\x00\x00\x00\x06"), "midi"},
		{"sniffed WAV", "noext", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), "wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := r.Open(tt.file, tt.data)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if m.Title() != tt.want {
				t.Errorf("opened with %q, want %q", m.Title(), tt.want)
			}
		})
	}
}

func TestRegistryUnsupported(t *testing.T) {
	r := NewRegistry()
	r.Register(stubOpener("midi"), ".mid")

	_, err := r.Open("song.xm", []byte("Extended Module: "))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestRegistryExtensions(t *testing.T) {
	r := NewDefaultRegistry(nil)
	want := []string{".kar", ".mid", ".midi", ".smf", ".wav"}
	if got := r.Extensions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Extensions = %v, want %v", got, want)
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte("MThd"), ".mid"},
		{[]byte("RIFF1234WAVE"), ".wav"},
		{[]byte("RIFF1234AVI "), ""},
		{[]byte("RIFF"), ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Sniff(tt.data); got != tt.want {
			t.Errorf("Sniff(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}
