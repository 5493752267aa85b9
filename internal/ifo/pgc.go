package ifo

import (
	"fmt"

	"github.com/s0up4200/go-dvdinfo/internal/util"
)

const (
	pgcHeaderSize          = 0xEC
	pgcProgramMapOffset    = 0xE6
	pgcCellPlaybackOffset  = 0xE8
	cellPlaybackRecordSize = 24
)

// ProgramChain is a decoded PGC: its cells in playback order and the program (chapter) map.
type ProgramChain struct {
	Number       int
	Programs     int
	PlaybackTime Timecode
	// ProgramMap[i] is the 1-based entry cell of program i+1.
	ProgramMap []int
	Cells      []Cell
}

// Cell is one cell playback record. Sectors are relative to the title-set VOBs.
type Cell struct {
	BlockMode    uint8
	BlockType    uint8
	PlaybackTime Timecode
	FirstSector  uint32
	LastSector   uint32
}

// Valid reports whether the cell describes a non-empty sector range.
func (c Cell) Valid() bool {
	return c.LastSector >= c.FirstSector
}

// Sectors returns the inclusive sector count, or 0 for an invalid cell.
func (c Cell) Sectors() uint64 {
	if !c.Valid() {
		return 0
	}
	return uint64(c.LastSector-c.FirstSector) + 1
}

func parseProgramChain(b []byte) (*ProgramChain, error) {
	if len(b) < pgcHeaderSize {
		return nil, fmt.Errorf("PGC header: %w", ErrTruncated)
	}
	pgc := &ProgramChain{
		Programs:     int(b[2]),
		PlaybackTime: ParseTimecode(b[4:8]),
	}
	nCells := int(b[3])

	if pgc.Programs > 0 {
		off := int(util.Uint16At(b, pgcProgramMapOffset))
		if off == 0 || off+pgc.Programs > len(b) {
			return nil, fmt.Errorf("PGC program map: %w", ErrTruncated)
		}
		pgc.ProgramMap = make([]int, pgc.Programs)
		for i := range pgc.ProgramMap {
			pgc.ProgramMap[i] = int(b[off+i])
		}
	}

	if nCells > 0 {
		off := int(util.Uint16At(b, pgcCellPlaybackOffset))
		if off == 0 || off+nCells*cellPlaybackRecordSize > len(b) {
			return nil, fmt.Errorf("PGC cell playback table: %w", ErrTruncated)
		}
		pgc.Cells = make([]Cell, nCells)
		for i := range pgc.Cells {
			r := b[off+i*cellPlaybackRecordSize:]
			pgc.Cells[i] = Cell{
				BlockMode:    r[0] >> 6,
				BlockType:    (r[0] >> 4) & 0x3,
				PlaybackTime: ParseTimecode(r[4:8]),
				FirstSector:  util.Uint32At(r, 8),
				LastSector:   util.Uint32At(r, 20),
			}
		}
	}
	return pgc, nil
}

// ChapterCells returns the half-open cell index range [first, last) of chapter c (1-based).
// A chapter runs from its entry cell up to the next chapter's entry cell, or the last cell.
func (p *ProgramChain) ChapterCells(c int) (first, last int, ok bool) {
	if c < 1 || c > len(p.ProgramMap) {
		return 0, 0, false
	}
	first = p.ProgramMap[c-1] - 1
	last = len(p.Cells)
	if c < len(p.ProgramMap) {
		last = p.ProgramMap[c] - 1
	}
	first = max(first, 0)
	last = min(last, len(p.Cells))
	if first > last {
		return 0, 0, false
	}
	return first, last, true
}

// CellsDuration sums the playback times of cells [first, last).
func (p *ProgramChain) CellsDuration(first, last int) int64 {
	var ms int64
	for i := max(first, 0); i < last && i < len(p.Cells); i++ {
		ms += p.Cells[i].PlaybackTime.Milliseconds()
	}
	return ms
}
