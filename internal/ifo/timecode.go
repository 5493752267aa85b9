package ifo

import "fmt"

// Frame rate flags carried in the top two bits of a timecode's frame byte.
const (
	FrameRateIllegal uint8 = 0
	FrameRate25      uint8 = 1
	FrameRate30      uint8 = 3
)

// Timecode is a BCD-packed playback time: each nibble is one decimal digit.
type Timecode struct {
	Hours     uint8
	Minutes   uint8
	Seconds   uint8
	Frames    uint8
	FrameRate uint8
}

func bcd(b byte) uint8 {
	return (b>>4)*10 + b&0x0F
}

// ParseTimecode decodes the 4-byte dvd_time layout {hour, minute, second, frame_u}.
// The frame rate flag bits are split off before the frame digits are decoded.
func ParseTimecode(b []byte) Timecode {
	if len(b) < 4 {
		return Timecode{}
	}
	return Timecode{
		Hours:     bcd(b[0]),
		Minutes:   bcd(b[1]),
		Seconds:   bcd(b[2]),
		Frames:    bcd(b[3] & 0x3F),
		FrameRate: b[3] >> 6,
	}
}

// Milliseconds converts the timecode using a fixed 33ms frame duration.
func (t Timecode) Milliseconds() int64 {
	return int64(t.Hours)*3_600_000 +
		int64(t.Minutes)*60_000 +
		int64(t.Seconds)*1_000 +
		int64(t.Frames)*33
}

func (t Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%02d", t.Hours, t.Minutes, t.Seconds, t.Frames)
}
