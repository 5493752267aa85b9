// Package ifotest builds synthetic DVD-Video information files and VIDEO_TS trees for tests.
package ifotest

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

const sectorSize = 2048

// Disc describes a video manager and its title sets.
type Disc struct {
	ProviderID   string
	TextDiscName string // written to TXTDT_MGI when non-empty
	Titles       []Title
	TitleSets    []TitleSet
}

// Title is one TT_SRPT row.
type Title struct {
	TitleSet   int
	TitleInSet int
	Angles     int
	Chapters   int
}

// TitleSet describes one VTS_nn_0.IFO.
type TitleSet struct {
	Audio       [][8]byte
	Subpictures [][6]byte
	// PTT holds, per title in the set, the (pgcn, pgn) chapter entries. Nil omits VTS_PTT_SRPT.
	PTT    [][]PTT
	Chains []Chain
}

// PTT is one part-of-title entry.
type PTT struct {
	PGCN int
	PGN  int
}

// Chain is one program chain. ProgramMap holds 1-based entry cells.
type Chain struct {
	ProgramMap []int
	Cells      []Cell
}

// Cell is a cell playback record. Frames should stay below 30 so chain totals need no carry.
type Cell struct {
	First   uint32
	Last    uint32
	Seconds int
	Frames  int
}

func bcd(v int) byte {
	return byte((v/10)<<4 | v%10)
}

// Time encodes a dvd_time with the 30fps flag set on the frame byte.
func Time(h, m, s, f int) [4]byte {
	return [4]byte{bcd(h), bcd(m), bcd(s), 0xC0 | bcd(f)}
}

func secondsTime(sec, frames int) [4]byte {
	return Time(sec/3600, sec/60%60, sec%60, frames)
}

// Audio builds an audio attribute record.
func Audio(format, sampleFreq, channelsRaw uint8, lang string) [8]byte {
	var a [8]byte
	a[0] = format << 5
	if lang != "" {
		a[0] |= 1 << 2 // lang_type: language code present
	}
	a[1] = (sampleFreq&0x3)<<4 | channelsRaw&0x7
	copy(a[2:4], lang)
	return a
}

// Subpicture builds a subpicture attribute record.
func Subpicture(codeMode uint8, lang string) [6]byte {
	var s [6]byte
	s[0] = codeMode<<5 | 1 // type 1: language
	copy(s[2:4], lang)
	return s
}

func put16(b []byte, off int, v int) { binary.BigEndian.PutUint16(b[off:], uint16(v)) }
func put32(b []byte, off int, v int) { binary.BigEndian.PutUint32(b[off:], uint32(v)) }

// VMG encodes VIDEO_TS.IFO.
func VMG(d Disc) []byte {
	sectors := 2
	if d.TextDiscName != "" {
		sectors = 3
	}
	b := make([]byte, sectors*sectorSize)
	copy(b, "DVDVIDEO-VMG")
	put16(b, 0x3E, len(d.TitleSets))
	copy(b[0x40:0x60], d.ProviderID)
	put32(b, 0xC4, 1)

	t := b[sectorSize:]
	put16(t, 0, len(d.Titles))
	put32(t, 4, 8+len(d.Titles)*12-1)
	for i, title := range d.Titles {
		e := t[8+i*12:]
		e[1] = byte(max(title.Angles, 1))
		put16(e, 2, title.Chapters)
		e[6] = byte(title.TitleSet)
		e[7] = byte(title.TitleInSet)
	}

	if d.TextDiscName != "" {
		put32(b, 0xD4, 2)
		copy(b[2*sectorSize:2*sectorSize+12], d.TextDiscName)
	}
	return b
}

// VTS encodes VTS_nn_0.IFO.
func VTS(ts TitleSet) []byte {
	mat := make([]byte, sectorSize)
	copy(mat, "DVDVIDEO-VTS")
	put16(mat, 0x202, len(ts.Audio))
	for i, a := range ts.Audio {
		copy(mat[0x204+i*8:], a[:])
	}
	put16(mat, 0x254, len(ts.Subpictures))
	for i, s := range ts.Subpictures {
		copy(mat[0x256+i*6:], s[:])
	}

	out := mat
	if ts.PTT != nil {
		put32(mat, 0xC8, len(out)/sectorSize)
		out = append(out, padSector(pttTable(ts.PTT))...)
	}
	put32(out, 0xCC, len(out)/sectorSize)
	out = append(out, padSector(pgcTable(ts.Chains))...)
	return out
}

func pttTable(titles [][]PTT) []byte {
	header := 8 + 4*len(titles)
	t := make([]byte, header)
	put16(t, 0, len(titles))
	for i, parts := range titles {
		put32(t, 8+i*4, len(t))
		for _, p := range parts {
			e := make([]byte, 4)
			put16(e, 0, p.PGCN)
			put16(e, 2, p.PGN)
			t = append(t, e...)
		}
	}
	put32(t, 4, len(t)-1)
	return t
}

func pgcTable(chains []Chain) []byte {
	t := make([]byte, 8+8*len(chains))
	put16(t, 0, len(chains))
	for i, c := range chains {
		t[8+i*8] = 0x80 | byte(i+1) // entry PGC flag + title number
		put32(t, 8+i*8+4, len(t))
		t = append(t, encodeChain(c)...)
	}
	put32(t, 4, len(t)-1)
	return t
}

func encodeChain(c Chain) []byte {
	mapOff := 0xEC
	cellOff := mapOff + (len(c.ProgramMap)+1)&^1
	b := make([]byte, cellOff+24*len(c.Cells))
	b[2] = byte(len(c.ProgramMap))
	b[3] = byte(len(c.Cells))

	var sec, frames int
	for _, cell := range c.Cells {
		sec += cell.Seconds
		frames += cell.Frames
	}
	tc := secondsTime(sec, frames)
	copy(b[4:8], tc[:])

	if len(c.ProgramMap) > 0 {
		put16(b, 0xE6, mapOff)
		for i, p := range c.ProgramMap {
			b[mapOff+i] = byte(p)
		}
	}
	if len(c.Cells) > 0 {
		put16(b, 0xE8, cellOff)
		for i, cell := range c.Cells {
			r := b[cellOff+i*24:]
			ct := secondsTime(cell.Seconds, cell.Frames)
			copy(r[4:8], ct[:])
			put32(r, 8, int(cell.First))
			put32(r, 20, int(cell.Last))
		}
	}
	return b
}

func padSector(b []byte) []byte {
	if rem := len(b) % sectorSize; rem != 0 {
		b = append(b, make([]byte, sectorSize-rem)...)
	}
	return b
}

// WriteVideoTS writes the disc under root/VIDEO_TS. vobs maps a title-set number to its title
// VOB payload, split into VTS_nn_k.VOB files of at most splitSectors sectors (0: one file).
func WriteVideoTS(root string, d Disc, vobs map[int][]byte, splitSectors int) error {
	dir := filepath.Join(root, "VIDEO_TS")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "VIDEO_TS.IFO"), VMG(d), 0o644); err != nil {
		return err
	}
	for i, ts := range d.TitleSets {
		name := fmt.Sprintf("VTS_%02d_0.IFO", i+1)
		if err := os.WriteFile(filepath.Join(dir, name), VTS(ts), 0o644); err != nil {
			return err
		}
	}
	for n, data := range vobs {
		chunk := len(data)
		if splitSectors > 0 {
			chunk = splitSectors * sectorSize
		}
		for part := 1; len(data) > 0 || part == 1; part++ {
			size := min(chunk, len(data))
			name := fmt.Sprintf("VTS_%02d_%d.VOB", n, part)
			if err := os.WriteFile(filepath.Join(dir, name), data[:size], 0o644); err != nil {
				return err
			}
			data = data[size:]
		}
	}
	return nil
}

// Payload returns n sectors where every byte of sector i equals byte(i).
func Payload(n int) []byte {
	b := make([]byte, n*sectorSize)
	for i := range n {
		for j := 0; j < sectorSize; j++ {
			b[i*sectorSize+j] = byte(i)
		}
	}
	return b
}
