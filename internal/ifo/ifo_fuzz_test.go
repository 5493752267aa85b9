package ifo

import (
	"testing"

	"github.com/s0up4200/go-dvdinfo/internal/ifo/ifotest"
)

func FuzzParseVMG(f *testing.F) {
	f.Add(ifotest.VMG(ifotest.Disc{
		ProviderID:   "FUZZ",
		TextDiscName: "NAME",
		Titles:       []ifotest.Title{{TitleSet: 1, TitleInSet: 1, Chapters: 3}},
	}))
	f.Add([]byte("DVDVIDEO-VMG"))

	f.Fuzz(func(t *testing.T, data []byte) {
		vmg, err := ParseVMG(data)
		if err != nil {
			return
		}
		_, _ = vmg.Titles()
		_, _ = vmg.TitleCount()
		_, _ = vmg.TextDiscName()
		_ = vmg.ProviderName()
	})
}

func FuzzParseVTS(f *testing.F) {
	f.Add(ifotest.VTS(testTitleSet()))
	f.Add(ifotest.VTS(ifotest.TitleSet{PTT: [][]ifotest.PTT{{{PGCN: 1, PGN: 1}}}}))

	f.Fuzz(func(t *testing.T, data []byte) {
		vts, err := ParseVTS(data)
		if err != nil {
			return
		}
		for ttn := 0; ttn < 4; ttn++ {
			_, _ = vts.PartsOfTitle(ttn)
		}
		n, _ := vts.ProgramChainCount()
		for pgcn := 1; pgcn <= min(n, 8); pgcn++ {
			pgc, err := vts.ProgramChain(pgcn)
			if err != nil {
				continue
			}
			for c := 1; c <= pgc.Programs; c++ {
				if first, last, ok := pgc.ChapterCells(c); ok {
					_ = pgc.CellsDuration(first, last)
				}
			}
		}
	})
}
