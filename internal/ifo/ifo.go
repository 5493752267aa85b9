// Package ifo decodes the DVD-Video information files: the video manager (VIDEO_TS.IFO) and the
// per title-set files (VTS_nn_0.IFO). Every parser works on the complete file contents and checks
// bounds before each access, so a truncated or corrupt file yields an error rather than a panic.
package ifo

import (
	"errors"
	"fmt"

	"github.com/s0up4200/go-dvdinfo/internal/util"
)

const (
	// SectorSize is the DVD logical block size; table locations are stored in sectors.
	SectorSize = 2048

	vmgIdentifier = "DVDVIDEO-VMG"
	vtsIdentifier = "DVDVIDEO-VTS"

	// MaxAudioStreams and MaxSubpictureStreams bound the attribute tables of a VTSI_MAT.
	MaxAudioStreams      = 8
	MaxSubpictureStreams = 32
)

var (
	// ErrTableAbsent is returned when an optional table pointer is zero or out of range.
	ErrTableAbsent = errors.New("ifo: table absent")

	// ErrInvalidIdentifier is returned when the file does not start with the expected identifier.
	ErrInvalidIdentifier = errors.New("ifo: invalid identifier")

	// ErrTruncated is returned when a table extends past the end of the file.
	ErrTruncated = errors.New("ifo: truncated table")
)

// table returns the bytes of the table starting at sector, or ErrTableAbsent.
func table(data []byte, sector uint32, name string) ([]byte, error) {
	if sector == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrTableAbsent)
	}
	off := int64(sector) * SectorSize
	if off+8 > int64(len(data)) {
		return nil, fmt.Errorf("%s at sector %d: %w", name, sector, ErrTableAbsent)
	}
	return data[off:], nil
}

// searchTableHeader decodes the common {u16 count, u16 zero, u32 last byte} header shared by the
// search pointer tables and clips t to the declared length.
func searchTableHeader(t []byte) (count int, body []byte) {
	count = int(util.Uint16At(t, 0))
	last := int64(util.Uint32At(t, 4))
	if last+1 < int64(len(t)) && last >= 7 {
		t = t[:last+1]
	}
	return count, t
}

func checkIdentifier(data []byte, want string) error {
	pos := 0
	if got := util.ReadString(data, len(want), &pos); got != want {
		return fmt.Errorf("%w: got %q, want %q", ErrInvalidIdentifier, got, want)
	}
	return nil
}
