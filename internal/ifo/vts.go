package ifo

import (
	"fmt"

	"github.com/s0up4200/go-dvdinfo/internal/util"
)

const (
	vtsTitleVOBsOffset   = 0xC4
	vtsPTTSRPTOffset     = 0xC8
	vtsPGCITOffset       = 0xCC
	vtsAudioCountOffset  = 0x202
	vtsAudioAttrOffset   = 0x204
	vtsSubpCountOffset   = 0x254
	vtsSubpAttrOffset    = 0x256
	vtsMinSize           = vtsSubpAttrOffset + MaxSubpictureStreams*subpAttrSize
	audioAttrSize        = 8
	subpAttrSize         = 6
	pttEntrySize         = 4
	pgcSearchPointerSize = 8
)

// VTS is a video title set information file (VTS_nn_0.IFO).
type VTS struct {
	TitleVOBs        uint32 // VTSTT_VOBS sector
	PartOfTitleTable uint32 // VTS_PTT_SRPT sector
	ProgramChains    uint32 // VTS_PGCIT sector
	Audio            []AudioAttr
	Subpictures      []SubpictureAttr

	data []byte
}

// PartOfTitle is one chapter entry of VTS_PTT_SRPT: a program chain and program number.
type PartOfTitle struct {
	PGCN int
	PGN  int
}

// ParseVTS decodes the VTSI_MAT of a title-set information file. Stream counts above the table
// capacity are clamped.
func ParseVTS(data []byte) (*VTS, error) {
	if err := checkIdentifier(data, vtsIdentifier); err != nil {
		return nil, err
	}
	if len(data) < vtsMinSize {
		return nil, fmt.Errorf("VTSI_MAT: %w", ErrTruncated)
	}
	v := &VTS{
		TitleVOBs:        util.Uint32At(data, vtsTitleVOBsOffset),
		PartOfTitleTable: util.Uint32At(data, vtsPTTSRPTOffset),
		ProgramChains:    util.Uint32At(data, vtsPGCITOffset),
		data:             data,
	}

	nAudio := min(int(util.Uint16At(data, vtsAudioCountOffset)), MaxAudioStreams)
	for i := 0; i < nAudio; i++ {
		off := vtsAudioAttrOffset + i*audioAttrSize
		if a, ok := parseAudioAttr(data[off : off+audioAttrSize]); ok {
			v.Audio = append(v.Audio, a)
		}
	}
	nSubp := min(int(util.Uint16At(data, vtsSubpCountOffset)), MaxSubpictureStreams)
	for i := 0; i < nSubp; i++ {
		off := vtsSubpAttrOffset + i*subpAttrSize
		if s, ok := parseSubpictureAttr(data[off : off+subpAttrSize]); ok {
			v.Subpictures = append(v.Subpictures, s)
		}
	}
	return v, nil
}

// PartsOfTitle returns the chapter entries of the ttn-th (1-based) title in this set.
func (v *VTS) PartsOfTitle(ttn int) ([]PartOfTitle, error) {
	t, err := table(v.data, v.PartOfTitleTable, "VTS_PTT_SRPT")
	if err != nil {
		return nil, err
	}
	count, t := searchTableHeader(t)
	if ttn < 1 || ttn > count {
		return nil, fmt.Errorf("VTS_PTT_SRPT title %d of %d: %w", ttn, count, ErrTableAbsent)
	}

	offsetAt := func(i int) (int, error) {
		pos := 8 + i*4
		if pos+4 > len(t) {
			return 0, fmt.Errorf("VTS_PTT_SRPT offset %d: %w", i, ErrTruncated)
		}
		return int(util.Uint32At(t, pos)), nil
	}
	start, err := offsetAt(ttn - 1)
	if err != nil {
		return nil, err
	}
	end := len(t)
	if ttn < count {
		if end, err = offsetAt(ttn); err != nil {
			return nil, err
		}
	}
	if start >= len(t) || end > len(t) || end < start {
		return nil, fmt.Errorf("VTS_PTT_SRPT title %d range %d-%d: %w", ttn, start, end, ErrTruncated)
	}

	var parts []PartOfTitle
	for off := start; off+pttEntrySize <= end; off += pttEntrySize {
		parts = append(parts, PartOfTitle{
			PGCN: int(util.Uint16At(t, off)),
			PGN:  int(util.Uint16At(t, off+2)),
		})
	}
	return parts, nil
}

// ProgramChainCount returns the number of search pointers in VTS_PGCIT.
func (v *VTS) ProgramChainCount() (int, error) {
	t, err := table(v.data, v.ProgramChains, "VTS_PGCIT")
	if err != nil {
		return 0, err
	}
	count, _ := searchTableHeader(t)
	return count, nil
}

// ProgramChain decodes the pgcn-th (1-based) program chain of VTS_PGCIT.
func (v *VTS) ProgramChain(pgcn int) (*ProgramChain, error) {
	t, err := table(v.data, v.ProgramChains, "VTS_PGCIT")
	if err != nil {
		return nil, err
	}
	count, t := searchTableHeader(t)
	if pgcn < 1 || pgcn > count {
		return nil, fmt.Errorf("VTS_PGCIT chain %d of %d: %w", pgcn, count, ErrTableAbsent)
	}
	srp := 8 + (pgcn-1)*pgcSearchPointerSize
	if srp+pgcSearchPointerSize > len(t) {
		return nil, fmt.Errorf("VTS_PGCIT search pointer %d: %w", pgcn, ErrTruncated)
	}
	start := int(util.Uint32At(t, srp+4))
	if start >= len(t) {
		return nil, fmt.Errorf("VTS_PGCIT chain %d at byte %d: %w", pgcn, start, ErrTruncated)
	}
	pgc, err := parseProgramChain(t[start:])
	if err != nil {
		return nil, fmt.Errorf("VTS_PGCIT chain %d: %w", pgcn, err)
	}
	pgc.Number = pgcn
	return pgc, nil
}
