package ifo

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/s0up4200/go-dvdinfo/internal/ifo/ifotest"
)

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		name      string
		raw       []byte
		wantMs    int64
		wantRate  uint8
		wantFrame uint8
	}{
		{"hms", []byte{0x01, 0x02, 0x03, 0x00}, 3723000, 0, 0},
		{"frames with 30fps flag", []byte{0x00, 0x00, 0x00, 0xC5}, 165, FrameRate30, 5},
		{"frames with 25fps flag", []byte{0x00, 0x59, 0x59, 0x64}, 59*60000 + 59*1000 + 24*33, FrameRate25, 24},
		{"short input", []byte{0x01}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := ParseTimecode(tt.raw)
			if got := tc.Milliseconds(); got != tt.wantMs {
				t.Fatalf("Milliseconds()=%d want %d", got, tt.wantMs)
			}
			if tc.FrameRate != tt.wantRate || tc.Frames != tt.wantFrame {
				t.Fatalf("FrameRate=%d Frames=%d want %d/%d", tc.FrameRate, tc.Frames, tt.wantRate, tt.wantFrame)
			}
		})
	}
}

func TestAudioAttr(t *testing.T) {
	rec := ifotest.Audio(5, 2, 1, "EN")
	a, ok := parseAudioAttr(rec[:])
	if !ok {
		t.Fatal("parseAudioAttr failed")
	}
	if a.Channels() != 2 || a.SampleRate() != 44100 || a.Codec() != CodecDTS || a.Language() != "en" {
		t.Fatalf("got channels=%d rate=%d codec=%s lang=%q", a.Channels(), a.SampleRate(), a.Codec(), a.Language())
	}
	if a.LangType != 1 {
		t.Fatalf("LangType=%d want 1", a.LangType)
	}

	codecs := []string{CodecAC3, CodecUnknown, CodecMPEG1, CodecMPEG2, CodecLPCM, CodecDTS, CodecSDDS, CodecUnknown}
	for format, want := range codecs {
		if got := (AudioAttr{Format: uint8(format)}).Codec(); got != want {
			t.Errorf("Codec(format=%d)=%s want %s", format, got, want)
		}
	}
	rates := []int{48000, 96000, 44100, 32000}
	for freq, want := range rates {
		if got := (AudioAttr{SampleFrequency: uint8(freq)}).SampleRate(); got != want {
			t.Errorf("SampleRate(%d)=%d want %d", freq, got, want)
		}
	}
	if _, ok := parseAudioAttr(rec[:5]); ok {
		t.Fatal("parseAudioAttr accepted a short record")
	}
}

func TestDecodeLanguage(t *testing.T) {
	tests := []struct {
		in   [2]byte
		want string
	}{
		{[2]byte{'E', 'N'}, "en"},
		{[2]byte{'d', 'e'}, "de"},
		{[2]byte{'e', '1'}, ""},
		{[2]byte{0, 0}, ""},
		{[2]byte{0xFF, 'a'}, ""},
	}
	for _, tt := range tests {
		if got := DecodeLanguage(tt.in); got != tt.want {
			t.Errorf("DecodeLanguage(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestSubpictureKind(t *testing.T) {
	want := map[uint8]string{0: SubpictureRLE, 1: SubpictureExtended, 2: SubpictureOther, 3: SubpictureOther, 4: SubpictureRLE}
	for mode, kind := range want {
		rec := ifotest.Subpicture(mode, "fr")
		s, ok := parseSubpictureAttr(rec[:])
		if !ok {
			t.Fatalf("parseSubpictureAttr(mode=%d) failed", mode)
		}
		if s.Kind() != kind || s.Language() != "fr" || s.Type != 1 {
			t.Errorf("mode=%d: kind=%s lang=%q type=%d", mode, s.Kind(), s.Language(), s.Type)
		}
	}
}

func TestParseVMG(t *testing.T) {
	data := ifotest.VMG(ifotest.Disc{
		ProviderID:   "ACME  STUDIO ",
		TextDiscName: " MOVIE DISC",
		Titles: []ifotest.Title{
			{TitleSet: 1, TitleInSet: 1, Angles: 1, Chapters: 12},
			{TitleSet: 2, TitleInSet: 1, Angles: 3, Chapters: 1},
		},
		TitleSets: make([]ifotest.TitleSet, 2),
	})

	vmg, err := ParseVMG(data)
	if err != nil {
		t.Fatalf("ParseVMG: %v", err)
	}
	if vmg.TitleSets != 2 {
		t.Fatalf("TitleSets=%d want 2", vmg.TitleSets)
	}
	if got := vmg.ProviderName(); got != "ACMESTUDIO" {
		t.Fatalf("ProviderName()=%q want ACMESTUDIO", got)
	}
	name, err := vmg.TextDiscName()
	if err != nil || name != "MOVIEDISC" {
		t.Fatalf("TextDiscName()=%q, %v", name, err)
	}

	titles, err := vmg.Titles()
	if err != nil {
		t.Fatalf("Titles: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("len(titles)=%d want 2", len(titles))
	}
	if got := titles[1]; got.Number != 2 || got.TitleSet != 2 || got.TitleInSet != 1 || got.Angles != 3 || got.Chapters != 1 {
		t.Fatalf("titles[1]=%+v", got)
	}
	if n, err := vmg.TitleCount(); err != nil || n != 2 {
		t.Fatalf("TitleCount()=%d, %v", n, err)
	}
}

func TestParseVMG_OptionalTablesAbsent(t *testing.T) {
	data := ifotest.VMG(ifotest.Disc{})
	binary.BigEndian.PutUint32(data[vmgTTSRPTOffset:], 0)

	vmg, err := ParseVMG(data)
	if err != nil {
		t.Fatalf("ParseVMG: %v", err)
	}
	if _, err := vmg.TitleCount(); !errors.Is(err, ErrTableAbsent) {
		t.Fatalf("TitleCount err=%v want ErrTableAbsent", err)
	}
	if _, err := vmg.TextDiscName(); !errors.Is(err, ErrTableAbsent) {
		t.Fatalf("TextDiscName err=%v want ErrTableAbsent", err)
	}
	if vmg.ProviderName() != "" {
		t.Fatalf("ProviderName()=%q want empty", vmg.ProviderName())
	}
}

func TestParseRejectsWrongIdentifier(t *testing.T) {
	vts := ifotest.VTS(ifotest.TitleSet{})
	if _, err := ParseVMG(vts); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("ParseVMG(vts) err=%v", err)
	}
	if _, err := ParseVTS([]byte("DVDVIDEO-VTS")); !errors.Is(err, ErrTruncated) {
		t.Fatalf("ParseVTS(short) err=%v", err)
	}
	if _, err := ParseVTS(nil); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("ParseVTS(nil) err=%v", err)
	}
}

func testTitleSet() ifotest.TitleSet {
	return ifotest.TitleSet{
		Audio: [][8]byte{
			ifotest.Audio(0, 0, 5, "en"),
			ifotest.Audio(5, 0, 5, "de"),
		},
		Subpictures: [][6]byte{ifotest.Subpicture(0, "en")},
		PTT: [][]ifotest.PTT{
			{{PGCN: 2, PGN: 1}, {PGCN: 2, PGN: 2}},
			{{PGCN: 1, PGN: 1}},
		},
		Chains: []ifotest.Chain{
			{ProgramMap: []int{1}, Cells: []ifotest.Cell{{First: 0, Last: 9, Seconds: 10}}},
			{
				ProgramMap: []int{1, 3},
				Cells: []ifotest.Cell{
					{First: 10, Last: 19, Seconds: 60},
					{First: 20, Last: 29, Seconds: 30, Frames: 15},
					{First: 30, Last: 25, Seconds: 5},
				},
			},
		},
	}
}

func TestParseVTS_Tables(t *testing.T) {
	vts, err := ParseVTS(ifotest.VTS(testTitleSet()))
	if err != nil {
		t.Fatalf("ParseVTS: %v", err)
	}
	if len(vts.Audio) != 2 || vts.Audio[1].Codec() != CodecDTS || vts.Audio[1].Channels() != 6 {
		t.Fatalf("Audio=%+v", vts.Audio)
	}
	if len(vts.Subpictures) != 1 || vts.Subpictures[0].Language() != "en" {
		t.Fatalf("Subpictures=%+v", vts.Subpictures)
	}

	parts, err := vts.PartsOfTitle(1)
	if err != nil {
		t.Fatalf("PartsOfTitle(1): %v", err)
	}
	if len(parts) != 2 || parts[0] != (PartOfTitle{PGCN: 2, PGN: 1}) {
		t.Fatalf("PartsOfTitle(1)=%+v", parts)
	}
	parts, err = vts.PartsOfTitle(2)
	if err != nil || len(parts) != 1 || parts[0].PGCN != 1 {
		t.Fatalf("PartsOfTitle(2)=%+v, %v", parts, err)
	}
	if _, err := vts.PartsOfTitle(3); !errors.Is(err, ErrTableAbsent) {
		t.Fatalf("PartsOfTitle(3) err=%v", err)
	}

	if n, err := vts.ProgramChainCount(); err != nil || n != 2 {
		t.Fatalf("ProgramChainCount()=%d, %v", n, err)
	}
	pgc, err := vts.ProgramChain(2)
	if err != nil {
		t.Fatalf("ProgramChain(2): %v", err)
	}
	if pgc.Number != 2 || pgc.Programs != 2 || len(pgc.Cells) != 3 {
		t.Fatalf("pgc=%+v", pgc)
	}
	if got := pgc.PlaybackTime.Milliseconds(); got != 95*1000+15*33 {
		t.Fatalf("PlaybackTime=%d", got)
	}
	if c := pgc.Cells[1]; c.FirstSector != 20 || c.LastSector != 29 || c.Sectors() != 10 || !c.Valid() {
		t.Fatalf("cell[1]=%+v", c)
	}
	if c := pgc.Cells[2]; c.Valid() || c.Sectors() != 0 {
		t.Fatalf("cell[2] should be invalid: %+v", c)
	}
	if _, err := vts.ProgramChain(0); !errors.Is(err, ErrTableAbsent) {
		t.Fatalf("ProgramChain(0) err=%v", err)
	}
}

func TestProgramChain_ChapterCells(t *testing.T) {
	pgc := &ProgramChain{
		ProgramMap: []int{1, 3, 4},
		Cells: []Cell{
			{PlaybackTime: Timecode{Seconds: 10}},
			{PlaybackTime: Timecode{Seconds: 20}},
			{PlaybackTime: Timecode{Seconds: 30}},
			{PlaybackTime: Timecode{Minutes: 1}},
		},
	}
	tests := []struct {
		chapter     int
		first, last int
		ok          bool
		durationMs  int64
	}{
		{1, 0, 2, true, 30000},
		{2, 2, 3, true, 30000},
		{3, 3, 4, true, 60000},
		{0, 0, 0, false, 0},
		{4, 0, 0, false, 0},
	}
	for _, tt := range tests {
		first, last, ok := pgc.ChapterCells(tt.chapter)
		if ok != tt.ok || first != tt.first || last != tt.last {
			t.Errorf("ChapterCells(%d)=%d,%d,%v want %d,%d,%v", tt.chapter, first, last, ok, tt.first, tt.last, tt.ok)
			continue
		}
		if ok && pgc.CellsDuration(first, last) != tt.durationMs {
			t.Errorf("chapter %d duration=%d want %d", tt.chapter, pgc.CellsDuration(first, last), tt.durationMs)
		}
	}
}

func TestParseVTS_ClampsStreamCounts(t *testing.T) {
	data := ifotest.VTS(ifotest.TitleSet{})
	binary.BigEndian.PutUint16(data[vtsAudioCountOffset:], 12)
	binary.BigEndian.PutUint16(data[vtsSubpCountOffset:], 40)

	vts, err := ParseVTS(data)
	if err != nil {
		t.Fatalf("ParseVTS: %v", err)
	}
	if len(vts.Audio) != MaxAudioStreams || len(vts.Subpictures) != MaxSubpictureStreams {
		t.Fatalf("audio=%d subpictures=%d", len(vts.Audio), len(vts.Subpictures))
	}
	if _, err := vts.PartsOfTitle(1); !errors.Is(err, ErrTableAbsent) {
		t.Fatalf("PartsOfTitle without table err=%v", err)
	}
}

func TestProgramChain_TruncatedCellTable(t *testing.T) {
	data := ifotest.VTS(testTitleSet())
	vts, err := ParseVTS(data)
	if err != nil {
		t.Fatal(err)
	}
	// Cut the file inside the second chain's cell playback table.
	pgcit := int(vts.ProgramChains) * SectorSize
	second := pgcit + int(binary.BigEndian.Uint32(data[pgcit+8+8+4:]))
	vts.data = data[:second+pgcHeaderSize+4]
	if _, err := vts.ProgramChain(2); !errors.Is(err, ErrTruncated) {
		t.Fatalf("ProgramChain(2) err=%v want ErrTruncated", err)
	}
}
