package playback

import (
	"encoding/binary"
	"slices"
)

// bytesPerFrame is the packed size of one stereo 16-bit frame.
const bytesPerFrame = 4

// PackSamples appends left and right as interleaved 16-bit little-endian
// stereo to dst and returns the extended slice. Each value keeps only its low
// 16 bits, so out-of-range samples wrap instead of clipping. Both slices must
// have the same length.
func PackSamples(dst []byte, left, right []int32) []byte {
	if len(left) != len(right) {
		panic("playback: PackSamples channel length mismatch")
	}
	dst = slices.Grow(dst, len(left)*bytesPerFrame)
	for i := range left {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(left[i]))
		dst = binary.LittleEndian.AppendUint16(dst, uint16(right[i]))
	}
	return dst
}
