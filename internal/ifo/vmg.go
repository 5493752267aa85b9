package ifo

import (
	"bytes"
	"fmt"

	"github.com/s0up4200/go-dvdinfo/internal/util"
)

const (
	vmgTitleSetsOffset   = 0x3E
	vmgProviderIDOffset  = 0x40
	vmgTTSRPTOffset      = 0xC4
	vmgTXTDTOffset       = 0xD4
	vmgMinSize           = 0x100
	providerIDLength     = 32
	txtdtDiscNameLength  = 12
	titleSearchEntrySize = 12
)

// VMG is the video manager information (VIDEO_TS.IFO).
type VMG struct {
	TitleSets     uint16
	ProviderID    [providerIDLength]byte
	TitleTable    uint32 // TT_SRPT sector
	TextDataTable uint32 // TXTDT_MGI sector

	data []byte
}

// TitleEntry is one row of the title search pointer table.
type TitleEntry struct {
	Number       int // 1-based position in TT_SRPT
	PlaybackType uint8
	Angles       int
	Chapters     int
	ParentalMask uint16
	TitleSet     int
	TitleInSet   int
	StartSector  uint32
}

// ParseVMG decodes the VMGI_MAT of a video manager file.
func ParseVMG(data []byte) (*VMG, error) {
	if err := checkIdentifier(data, vmgIdentifier); err != nil {
		return nil, err
	}
	if len(data) < vmgMinSize {
		return nil, fmt.Errorf("VMGI_MAT: %w", ErrTruncated)
	}
	v := &VMG{
		TitleSets:     util.Uint16At(data, vmgTitleSetsOffset),
		TitleTable:    util.Uint32At(data, vmgTTSRPTOffset),
		TextDataTable: util.Uint32At(data, vmgTXTDTOffset),
		data:          data,
	}
	pos := vmgProviderIDOffset
	copy(v.ProviderID[:], util.ReadBytes(data, providerIDLength, &pos))
	return v, nil
}

// Titles decodes the title search pointer table. Entries past the end of the table are dropped.
func (v *VMG) Titles() ([]TitleEntry, error) {
	t, err := table(v.data, v.TitleTable, "TT_SRPT")
	if err != nil {
		return nil, err
	}
	count, t := searchTableHeader(t)

	titles := make([]TitleEntry, 0, count)
	for i := 0; i < count; i++ {
		off := 8 + i*titleSearchEntrySize
		if off+titleSearchEntrySize > len(t) {
			return titles, fmt.Errorf("TT_SRPT entry %d: %w", i+1, ErrTruncated)
		}
		e := TitleEntry{Number: i + 1}
		e.PlaybackType = util.ReadByte(t, &off)
		e.Angles = int(util.ReadByte(t, &off))
		e.Chapters = int(util.ReadUint16(t, &off))
		e.ParentalMask = util.ReadUint16(t, &off)
		e.TitleSet = int(util.ReadByte(t, &off))
		e.TitleInSet = int(util.ReadByte(t, &off))
		e.StartSector = util.ReadUint32(t, &off)
		titles = append(titles, e)
	}
	return titles, nil
}

// TitleCount returns the number of titles declared by TT_SRPT.
func (v *VMG) TitleCount() (int, error) {
	t, err := table(v.data, v.TitleTable, "TT_SRPT")
	if err != nil {
		return 0, err
	}
	count, _ := searchTableHeader(t)
	return count, nil
}

// ProviderName returns the provider identifier with all spaces removed, up to the first NUL.
func (v *VMG) ProviderName() string {
	id := v.ProviderID[:]
	if i := bytes.IndexByte(id, 0); i >= 0 {
		id = id[:i]
	}
	return string(bytes.ReplaceAll(id, []byte(" "), nil))
}

// TextDiscName returns the disc_name field of TXTDT_MGI with all spaces removed, up to the first
// NUL. The table is only located when asked for.
func (v *VMG) TextDiscName() (string, error) {
	t, err := table(v.data, v.TextDataTable, "TXTDT_MGI")
	if err != nil {
		return "", err
	}
	if len(t) < txtdtDiscNameLength {
		return "", fmt.Errorf("TXTDT_MGI: %w", ErrTruncated)
	}
	name := t[:txtdtDiscNameLength]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(bytes.ReplaceAll(name, []byte(" "), nil)), nil
}
