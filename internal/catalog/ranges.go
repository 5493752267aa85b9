package catalog

import (
	"fmt"

	"github.com/s0up4200/go-dvdinfo/internal/ifo"
	"github.com/s0up4200/go-dvdinfo/internal/logging"
)

// SectorRange is an inclusive range of title-set relative sectors.
type SectorRange struct {
	First uint32
	Last  uint32
}

// Sectors returns the number of sectors in the range.
func (s SectorRange) Sectors() int64 {
	return int64(s.Last) - int64(s.First) + 1
}

// Ranges is the ordered list of cell ranges a title or chapter plays from one title set.
type Ranges struct {
	TitleSet int
	Ranges   []SectorRange
	Fallback bool
}

// TotalSectors returns the sum of all range lengths.
func (r Ranges) TotalSectors() int64 {
	var total int64
	for _, s := range r.Ranges {
		total += s.Sectors()
	}
	return total
}

// SectorRanges returns the valid cell ranges of title n in playback order. Cells whose last
// sector precedes their first are skipped with a warning.
func (r *Reader) SectorRanges(n int) (Ranges, error) {
	res, err := r.Resolve(n)
	if err != nil {
		return Ranges{}, err
	}
	return r.cellRanges(res, n, 0, len(res.Chain.Cells)), nil
}

// ChapterRanges returns the valid cell ranges of chapter c of title n.
func (r *Reader) ChapterRanges(n, c int) (Ranges, error) {
	res, err := r.Resolve(n)
	if err != nil {
		return Ranges{}, err
	}
	if c < 1 || c > res.Chain.Programs {
		return Ranges{}, fmt.Errorf("%w: title %d chapter %d of %d", ErrNotFound, n, c, res.Chain.Programs)
	}
	first, last, ok := res.Chain.ChapterCells(c)
	if !ok {
		return Ranges{}, fmt.Errorf("%w: title %d chapter %d has no cells", ErrNotFound, n, c)
	}
	return r.cellRanges(res, n, first, last), nil
}

func (r *Reader) cellRanges(res *Resolution, n, first, last int) Ranges {
	out := Ranges{TitleSet: res.TitleSet, Fallback: res.Fallback}
	for i := first; i < last; i++ {
		cell := res.Chain.Cells[i]
		if !cell.Valid() {
			r.warnInvalidCell(n, i, cell)
			continue
		}
		out.Ranges = append(out.Ranges, SectorRange{First: cell.FirstSector, Last: cell.LastSector})
	}
	return out
}

func (r *Reader) warnInvalidCell(n, index int, cell ifo.Cell) {
	logging.WarnEvent(r.logger, "skipping cell with last sector before first", "invalid_cell",
		logging.Int(logging.FieldTitle, n),
		logging.Int("cell", index+1),
		logging.Uint64("first_sector", uint64(cell.FirstSector)),
		logging.Uint64("last_sector", uint64(cell.LastSector)),
	)
}
