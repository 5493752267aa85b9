package disc

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
	"github.com/s0up4200/go-dvdinfo/internal/fs"
)

// maxTitleVOBs is the number of VTS_nn_k.VOB parts (k = 1..9) a title set may be split into.
const maxTitleVOBs = 9

// TitleSetData reads the title VOBs of one title set as a single sector space.
// Sector 0 is the first sector of VTS_nn_1.VOB; cell sector numbers address this space.
type TitleSetData struct {
	titleSet int
	parts    []fs.BlockFile
	starts   []int64 // first sector of each part
	blocks   int64
}

// OpenTitleSetData opens VTS_nn_1.VOB through VTS_nn_9.VOB, stopping at the first missing part.
func (s *Session) OpenTitleSetData(titleSet int) (*TitleSetData, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return openTitleSetData(s.fsys, titleSet)
}

func openTitleSetData(fsys fs.FileSystem, titleSet int) (*TitleSetData, error) {
	if titleSet < 1 || titleSet > maxTitleSet {
		return nil, fmt.Errorf("disc: title set %d out of range", titleSet)
	}
	d := &TitleSetData{titleSet: titleSet}
	for k := 1; k <= maxTitleVOBs; k++ {
		name := fmt.Sprintf("%s/VTS_%02d_%d.VOB", videoTSDir, titleSet, k)
		part, err := fsys.OpenBlocks(name)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				break
			}
			d.Close()
			return nil, fmt.Errorf("disc: open %s: %w", name, err)
		}
		d.parts = append(d.parts, part)
		d.starts = append(d.starts, d.blocks)
		d.blocks += part.Blocks()
	}
	if len(d.parts) == 0 {
		return nil, fmt.Errorf("disc: title set %d has no title VOBs: %w", titleSet, iofs.ErrNotExist)
	}
	return d, nil
}

// TitleSet returns the title-set number.
func (d *TitleSetData) TitleSet() int { return d.titleSet }

// Blocks returns the total number of sectors across all parts.
func (d *TitleSetData) Blocks() int64 { return d.blocks }

// ReadBlocks reads sectors starting at block, continuing across part boundaries. It returns a
// short count at the end of the data and 0, io.EOF past it.
func (d *TitleSetData) ReadBlocks(block int64, p []byte) (int, error) {
	if len(p)%blockio.SectorSize != 0 {
		return 0, fmt.Errorf("disc: buffer length %d is not a multiple of %d", len(p), blockio.SectorSize)
	}
	if block < 0 {
		return 0, fmt.Errorf("disc: negative block %d", block)
	}
	if block >= d.blocks {
		return 0, io.EOF
	}

	total := 0
	for total < len(p) && block < d.blocks {
		i := d.partFor(block)
		rel := block - d.starts[i]
		want := min(int64(len(p)-total), (d.parts[i].Blocks()-rel)*blockio.SectorSize)
		n, err := d.parts[i].ReadBlocks(rel, p[total:total+int(want)])
		total += n
		block += int64(n / blockio.SectorSize)
		if err != nil && !errors.Is(err, io.EOF) {
			return total, fmt.Errorf("disc: VTS_%02d_%d.VOB block %d: %w", d.titleSet, i+1, rel, err)
		}
		if int64(n) < want {
			break
		}
	}
	return total, nil
}

func (d *TitleSetData) partFor(block int64) int {
	i := len(d.starts) - 1
	for i > 0 && d.starts[i] > block {
		i--
	}
	return i
}

// Close closes every part.
func (d *TitleSetData) Close() error {
	var errs []error
	for _, p := range d.parts {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.parts = nil
	return errors.Join(errs...)
}
