package playback

import "math"

// DefaultGain is the gain reported before SetGain is called.
const DefaultGain = 1.0

// NormalizedGainToDeviceGain clamps gain to [0, 1]. NaN maps to 0.
// Conversion to a device scale (decibels or otherwise) belongs to the sink.
func NormalizedGainToDeviceGain(gain float64) float64 {
	if math.IsNaN(gain) || gain < 0 {
		return 0
	}
	if gain > 1 {
		return 1
	}
	return gain
}
