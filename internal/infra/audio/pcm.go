package audio

import (
	"encoding/binary"
	"math"
)

const (
	sampleRate = 48000
	channels   = 2
	// 20ms of s16le stereo
	frameBytes = sampleRate / 50 * channels * 2
)

// scalePCM multiplies s16le samples in place, clamping at the int16 range.
func scalePCM(buf []byte, volume float64) {
	if volume == 1 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(buf[i:]))) * volume
		switch {
		case s > math.MaxInt16:
			s = math.MaxInt16
		case s < math.MinInt16:
			s = math.MinInt16
		}
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(s)))
	}
}
