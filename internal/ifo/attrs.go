package ifo

import (
	"github.com/s0up4200/go-dvdinfo/internal/buffer"
)

// Codec names for the 3-bit audio_format field.
const (
	CodecAC3     = "AC3"
	CodecMPEG1   = "MPEG1"
	CodecMPEG2   = "MPEG2"
	CodecLPCM    = "LPCM"
	CodecDTS     = "DTS"
	CodecSDDS    = "SDDS"
	CodecUnknown = "Unknown"
)

// Subpicture kinds derived from the low two bits of code_mode.
const (
	SubpictureRLE      = "rle"
	SubpictureExtended = "extended"
	SubpictureOther    = "subpicture"
)

var sampleRates = [4]int{48000, 96000, 44100, 32000}

// AudioAttr is one 8-byte audio stream attribute record of a VTSI_MAT.
type AudioAttr struct {
	Format          uint8
	MultiChannelExt bool
	LangType        uint8
	AppMode         uint8
	Quantization    uint8
	SampleFrequency uint8
	ChannelsRaw     uint8
	Lang            [2]byte
	LangExtension   uint8
	CodeExtension   uint8
	AppInfo         uint8
}

func parseAudioAttr(b []byte) (AudioAttr, bool) {
	br := buffer.NewBitReader(b)
	var a AudioAttr
	var mc uint8
	fields := []struct {
		dst  *uint8
		bits int
	}{
		{&a.Format, 3}, {&mc, 1}, {&a.LangType, 2}, {&a.AppMode, 2},
		{&a.Quantization, 2}, {&a.SampleFrequency, 2}, {nil, 1}, {&a.ChannelsRaw, 3},
	}
	for _, f := range fields {
		v, ok := br.ReadUint8(f.bits)
		if !ok {
			return AudioAttr{}, false
		}
		if f.dst != nil {
			*f.dst = v
		}
	}
	a.MultiChannelExt = mc == 1

	lang, ok := br.ReadBytes(2)
	if !ok {
		return AudioAttr{}, false
	}
	copy(a.Lang[:], lang)
	var reserved uint8
	for _, dst := range []*uint8{&a.LangExtension, &a.CodeExtension, &reserved, &a.AppInfo} {
		if *dst, ok = br.ReadByte(); !ok {
			return AudioAttr{}, false
		}
	}
	return a, true
}

// Codec maps the audio_format field to a codec name.
func (a AudioAttr) Codec() string {
	switch a.Format {
	case 0:
		return CodecAC3
	case 2:
		return CodecMPEG1
	case 3:
		return CodecMPEG2
	case 4:
		return CodecLPCM
	case 5:
		return CodecDTS
	case 6:
		return CodecSDDS
	default:
		return CodecUnknown
	}
}

// Channels returns the channel count (the stored field is count-1).
func (a AudioAttr) Channels() int {
	return int(a.ChannelsRaw) + 1
}

// SampleRate returns the sampling frequency in Hz.
func (a AudioAttr) SampleRate() int {
	return sampleRates[a.SampleFrequency&0x3]
}

// Language returns the lower-cased two-letter code, or "" if not present.
func (a AudioAttr) Language() string {
	return DecodeLanguage(a.Lang)
}

// SubpictureAttr is one 6-byte subpicture stream attribute record.
type SubpictureAttr struct {
	CodeMode      uint8
	Type          uint8
	Lang          [2]byte
	LangExtension uint8
	CodeExtension uint8
}

func parseSubpictureAttr(b []byte) (SubpictureAttr, bool) {
	br := buffer.NewBitReader(b)
	var s SubpictureAttr
	var ok bool
	if s.CodeMode, ok = br.ReadUint8(3); !ok {
		return SubpictureAttr{}, false
	}
	if !br.SkipBits(3) {
		return SubpictureAttr{}, false
	}
	if s.Type, ok = br.ReadUint8(2); !ok {
		return SubpictureAttr{}, false
	}
	if _, ok = br.ReadByte(); !ok {
		return SubpictureAttr{}, false
	}
	lang, ok := br.ReadBytes(2)
	if !ok {
		return SubpictureAttr{}, false
	}
	copy(s.Lang[:], lang)
	if s.LangExtension, ok = br.ReadByte(); !ok {
		return SubpictureAttr{}, false
	}
	if s.CodeExtension, ok = br.ReadByte(); !ok {
		return SubpictureAttr{}, false
	}
	return s, true
}

// Kind classifies the stream by the low two bits of code_mode.
func (s SubpictureAttr) Kind() string {
	switch s.CodeMode & 0x3 {
	case 0:
		return SubpictureRLE
	case 1:
		return SubpictureExtended
	default:
		return SubpictureOther
	}
}

// Language returns the lower-cased two-letter code, or "" if not present.
func (s SubpictureAttr) Language() string {
	return DecodeLanguage(s.Lang)
}

// DecodeLanguage accepts a language code only if both bytes are ASCII letters.
func DecodeLanguage(code [2]byte) string {
	out := make([]byte, 2)
	for i, c := range code {
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = c
		case c >= 'A' && c <= 'Z':
			out[i] = c + ('a' - 'A')
		default:
			return ""
		}
	}
	return string(out)
}
