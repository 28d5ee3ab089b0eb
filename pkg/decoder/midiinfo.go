package decoder

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// TempoEvent is a tempo change in a MIDI file.
type TempoEvent struct {
	Tick          int // MIDI tick position
	MicrosPerBeat int // microseconds per quarter note
}

// MIDIInfo is the metadata ParseMIDIInfo pulls out of a Standard MIDI File.
type MIDIInfo struct {
	PPQ    int
	Tempos []TempoEvent
	Title  string
	Tracks int
}

const defaultMicrosPerBeat = 500000 // 120 BPM

// ParseMIDIInfo scans all tracks for tempo changes and the sequence name.
// It never fails: malformed data yields 480 PPQ at 120 BPM and no title.
func ParseMIDIInfo(data []byte) MIDIInfo {
	info := MIDIInfo{PPQ: 480}

	if len(data) < 14 || string(data[0:4]) != "MThd" {
		info.Tempos = []TempoEvent{{Tick: 0, MicrosPerBeat: defaultMicrosPerBeat}}
		return info
	}

	timeDivision := int(data[12])<<8 | int(data[13])
	if timeDivision&0x8000 == 0 && timeDivision != 0 {
		info.PPQ = timeDivision
	}

	offset := 14
	for offset < len(data) {
		if offset+8 > len(data) || string(data[offset:offset+4]) != "MTrk" {
			break
		}

		trackLen := int(data[offset+4])<<24 | int(data[offset+5])<<16 | int(data[offset+6])<<8 | int(data[offset+7])
		trackEnd := min(offset+8+trackLen, len(data))
		pos := offset + 8
		currentTick := 0
		lastStatus := byte(0)

		for pos < trackEnd {
			delta, n := readVarLen(data[pos:trackEnd])
			pos += n
			currentTick += delta

			if pos >= trackEnd {
				break
			}

			eventByte := data[pos]

			// running status
			if eventByte < 0x80 {
				eventByte = lastStatus
			} else {
				pos++
				if eventByte < 0xF0 {
					lastStatus = eventByte
				}
			}

			switch {
			case eventByte == 0xFF:
				if pos >= trackEnd {
					break
				}
				metaType := data[pos]
				pos++
				length, n := readVarLen(data[pos:trackEnd])
				pos += n
				if pos+length > trackEnd {
					pos = trackEnd
					break
				}

				switch metaType {
				case 0x51:
					if length == 3 {
						microsPerBeat := int(data[pos])<<16 | int(data[pos+1])<<8 | int(data[pos+2])
						info.Tempos = append(info.Tempos, TempoEvent{Tick: currentTick, MicrosPerBeat: microsPerBeat})
					}
				case 0x03:
					// the first track's name is the sequence name
					if info.Tracks == 0 && info.Title == "" {
						info.Title = decodeMIDIText(data[pos : pos+length])
					}
				}
				pos += length
			case eventByte == 0xF0 || eventByte == 0xF7:
				length, n := readVarLen(data[pos:trackEnd])
				pos += n + length
			case eventByte >= 0xC0 && eventByte < 0xE0:
				pos++
			case eventByte >= 0x80:
				pos += 2
			default:
				// data byte with no running status
				pos++
			}
		}
		info.Tracks++
		offset = trackEnd
	}

	if len(info.Tempos) == 0 {
		info.Tempos = []TempoEvent{{Tick: 0, MicrosPerBeat: defaultMicrosPerBeat}}
	} else if info.Tempos[0].Tick > 0 {
		info.Tempos = append([]TempoEvent{{Tick: 0, MicrosPerBeat: defaultMicrosPerBeat}}, info.Tempos...)
	}

	return info
}

// decodeMIDIText returns text meta data as UTF-8. Files authored on Japanese
// systems store names in Shift-JIS, so anything that is not valid UTF-8 goes
// through that decoder.
func decodeMIDIText(raw []byte) string {
	raw = bytes.TrimRight(raw, "\x00")
	if utf8.Valid(raw) {
		return strings.TrimSpace(string(raw))
	}
	reader := transform.NewReader(bytes.NewReader(raw), japanese.ShiftJIS.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return strings.TrimSpace(string(raw))
	}
	return strings.TrimSpace(string(decoded))
}

// readVarLen reads a MIDI variable-length quantity and returns it with its size.
func readVarLen(data []byte) (int, int) {
	value := 0
	n := 0
	for i := 0; i < len(data) && i < 4; i++ {
		n++
		value = (value << 7) | int(data[i]&0x7F)
		if data[i]&0x80 == 0 {
			break
		}
	}
	return value, n
}
