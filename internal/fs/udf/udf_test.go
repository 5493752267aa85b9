package udf

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

type memSource struct {
	data []byte
}

func (m *memSource) ReadSectors(lba int64, p []byte) (int, error) {
	off := lba * SectorSize
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	return copy(p, m.data[off:]), nil
}

const (
	testPartitionStart = 100
	testImageSectors   = 300
)

func putStruct(t *testing.T, img []byte, sector int, v any, tail ...[]byte) {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		t.Fatalf("binary.Write: %v", err)
	}
	for _, b := range tail {
		buf.Write(b)
	}
	copy(img[sector*SectorSize:], buf.Bytes())
}

func testFID(chars byte, name string, lbn uint32) []byte {
	var ident []byte
	if name != "" {
		ident = append([]byte{8}, name...)
	}
	b := make([]byte, (fidBaseSize+len(ident)+3)&^3)
	binary.LittleEndian.PutUint16(b[0:2], TagFileIdentifier)
	b[18] = chars
	b[19] = byte(len(ident))
	binary.LittleEndian.PutUint32(b[20:24], SectorSize)
	binary.LittleEndian.PutUint32(b[24:28], lbn)
	copy(b[fidBaseSize:], ident)
	return b
}

func shortADs(ads ...ShortAD) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, ads)
	return buf.Bytes()
}

func fileEntry(flags uint16, infoLen uint64, adLen int) FileEntry {
	fe := FileEntry{
		InformationLength:             infoLen,
		LengthOfAllocationDescriptors: uint32(adLen),
		ModificationTime:              Timestamp{TypeAndTimezone: 1 << 12, Year: 2001, Month: 2, Day: 3, Hour: 4},
	}
	fe.DescriptorTag.TagIdentifier = TagFile
	fe.ICBTag.Flags = flags
	return fe
}

// buildTestVolume lays out a minimal UDF 1.02 volume with a VIDEO_TS directory.
func buildTestVolume(t *testing.T) []byte {
	t.Helper()
	img := make([]byte, testImageSectors*SectorSize)

	copy(img[16*SectorSize+1:], StandardIDBEA01)
	copy(img[17*SectorSize+1:], StandardIDNSR02)
	copy(img[18*SectorSize+1:], StandardIDTEA01)

	var avdp AnchorVolumeDescriptorPointer
	avdp.DescriptorTag.TagIdentifier = TagAnchorVolume
	avdp.MainVolumeDescriptorSequenceExtent = ExtentAD{Length: 4 * SectorSize, Location: 32}
	putStruct(t, img, AnchorSector, avdp)

	var pvd PrimaryVolumeDescriptor
	pvd.DescriptorTag.TagIdentifier = TagPrimaryVolume
	copy(pvd.VolumeIdentifier[:], append([]byte{8}, "DVDTEST"...))
	putStruct(t, img, 32, pvd)

	var pd PartitionDescriptor
	pd.DescriptorTag.TagIdentifier = TagPartition
	pd.PartitionStartingLocation = testPartitionStart
	putStruct(t, img, 33, pd)

	var lvd LogicalVolumeDescriptor
	lvd.DescriptorTag.TagIdentifier = TagLogicalVolume
	lvd.LogicalBlockSize = SectorSize
	binary.LittleEndian.PutUint32(lvd.LogicalVolumeContentsUse[0:4], SectorSize)
	lvd.MapTableLength = 6
	lvd.NumberOfPartitionMaps = 1
	putStruct(t, img, 34, lvd, []byte{1, 6, 1, 0, 0, 0})

	binary.LittleEndian.PutUint16(img[35*SectorSize:], TagTerminating)

	var fsd FileSetDescriptor
	fsd.DescriptorTag.TagIdentifier = TagFileSet
	fsd.RootDirectoryICB = LongAD{ExtentLength: SectorSize, ExtentLocation: LBAddr{LogicalBlockNumber: 1}}
	putStruct(t, img, testPartitionStart, fsd)

	// Root directory: FIDs in a separate extent at partition block 2.
	rootFIDs := bytes.Join([][]byte{
		testFID(FileCharDirectory|FileCharParent, "", 1),
		testFID(FileCharDeleted, "GONE", 9),
		testFID(FileCharDirectory, "VIDEO_TS", 3),
	}, nil)
	putStruct(t, img, testPartitionStart+1, fileEntry(0, uint64(len(rootFIDs)), 8),
		shortADs(ShortAD{ExtentLength: uint32(len(rootFIDs)), ExtentPosition: 2}))
	copy(img[(testPartitionStart+2)*SectorSize:], rootFIDs)

	// VIDEO_TS: FIDs embedded in the ICB.
	videoFIDs := bytes.Join([][]byte{
		testFID(FileCharDirectory|FileCharParent, "", 1),
		testFID(0, "VIDEO_TS.IFO", 5),
		testFID(0, "VTS_01_1.VOB", 4),
	}, nil)
	putStruct(t, img, testPartitionStart+3, fileEntry(3, uint64(len(videoFIDs)), len(videoFIDs)), videoFIDs)

	// VTS_01_1.VOB: two extents, the second ending mid-sector.
	putStruct(t, img, testPartitionStart+4, fileEntry(0, 5048, 16),
		shortADs(ShortAD{ExtentLength: 2048, ExtentPosition: 10}, ShortAD{ExtentLength: 3000, ExtentPosition: 20}))
	copy(img[(testPartitionStart+10)*SectorSize:], bytes.Repeat([]byte("A"), 2048))
	copy(img[(testPartitionStart+20)*SectorSize:], bytes.Repeat([]byte("B"), 3000))

	putStruct(t, img, testPartitionStart+5, fileEntry(0, 12, 8),
		shortADs(ShortAD{ExtentLength: 12, ExtentPosition: 30}))
	copy(img[(testPartitionStart+30)*SectorSize:], "DVDVIDEO-VMG")

	return img
}

func openTestVolume(t *testing.T) *Reader {
	t.Helper()
	r, err := NewReader(&memSource{data: buildTestVolume(t)}, testImageSectors)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return r
}

func TestNewReader_VolumeLabel(t *testing.T) {
	r := openTestVolume(t)
	if got, want := r.GetVolumeLabel(), "DVDTEST"; got != want {
		t.Fatalf("GetVolumeLabel()=%q want %q", got, want)
	}
}

func TestNewReader_RejectsNonUDF(t *testing.T) {
	if _, err := NewReader(&memSource{data: make([]byte, testImageSectors*SectorSize)}, testImageSectors); err == nil {
		t.Fatalf("NewReader on blank image succeeded")
	}
}

func TestReadDirectory_ListsEntries(t *testing.T) {
	r := openTestVolume(t)

	root, err := r.ReadDirectory("/")
	if err != nil {
		t.Fatalf("ReadDirectory(/): %v", err)
	}
	dirs, err := root.GetDirectories()
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 1 || dirs[0].Name != "VIDEO_TS" {
		t.Fatalf("root dirs=%v want [VIDEO_TS]", dirs)
	}
	files, err := root.GetFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Fatalf("root files=%d want 0 (deleted entry skipped)", len(files))
	}

	vts, err := r.ReadDirectory("video_ts")
	if err != nil {
		t.Fatalf("ReadDirectory(video_ts): %v", err)
	}
	if vts.Path() != "/VIDEO_TS" {
		t.Fatalf("Path()=%q", vts.Path())
	}
	files, err = vts.GetFiles()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	if len(names) != 2 || names[0] != "VIDEO_TS.IFO" || names[1] != "VTS_01_1.VOB" {
		t.Fatalf("VIDEO_TS files=%v", names)
	}

	if _, err := r.ReadDirectory("AUDIO_TS"); err == nil {
		t.Fatalf("ReadDirectory(AUDIO_TS) succeeded on missing directory")
	}
}

func TestFindFile_OpenReadsContents(t *testing.T) {
	r := openTestVolume(t)
	f, err := r.FindFile("/VIDEO_TS/VIDEO_TS.IFO")
	if err != nil {
		t.Fatalf("FindFile: %v", err)
	}
	rc, err := f.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "DVDVIDEO-VMG" {
		t.Fatalf("contents=%q", got)
	}
	if f.ModTime().Year() != 2001 {
		t.Fatalf("ModTime()=%v", f.ModTime())
	}

	if _, err := r.FindFile("VIDEO_TS/VTS_09_0.IFO"); err == nil {
		t.Fatalf("FindFile on missing file succeeded")
	}
}

func TestFile_ReadBlocksAcrossExtents(t *testing.T) {
	r := openTestVolume(t)
	f, err := r.FindFile("VIDEO_TS/VTS_01_1.VOB")
	if err != nil {
		t.Fatalf("FindFile: %v", err)
	}
	if f.Size() != 5048 || f.Blocks() != 3 {
		t.Fatalf("Size()=%d Blocks()=%d", f.Size(), f.Blocks())
	}

	buf := make([]byte, 3*SectorSize)
	n, err := f.ReadBlocks(0, buf)
	if err != nil || n != len(buf) {
		t.Fatalf("ReadBlocks(0)=%d, %v", n, err)
	}
	want := append(bytes.Repeat([]byte("A"), 2048), bytes.Repeat([]byte("B"), 3000)...)
	want = append(want, make([]byte, 3*SectorSize-len(want))...)
	if !bytes.Equal(buf, want) {
		t.Fatalf("ReadBlocks(0) data mismatch")
	}

	n, err = f.ReadBlocks(1, buf[:SectorSize])
	if err != nil || n != SectorSize || buf[0] != 'B' {
		t.Fatalf("ReadBlocks(1)=%d, %v first=%q", n, err, buf[0])
	}

	n, err = f.ReadBlocks(2, buf[:2*SectorSize])
	if err != nil || n != SectorSize {
		t.Fatalf("ReadBlocks(2) short=%d, %v", n, err)
	}

	if n, err = f.ReadBlocks(3, buf[:SectorSize]); err != io.EOF || n != 0 {
		t.Fatalf("ReadBlocks past end=%d, %v want 0, EOF", n, err)
	}
}

func TestDecodeString_UCS2BE(t *testing.T) {
	r := &Reader{}

	// compID=16 + UCS-2BE bytes for "DVD_VOLUME" + terminator
	data := []byte{
		16,
		0x00, 'D',
		0x00, 'V',
		0x00, 'D',
		0x00, '_',
		0x00, 'V',
		0x00, 'O',
		0x00, 'L',
		0x00, 'U',
		0x00, 'M',
		0x00, 'E',
		0x00, 0x00,
	}

	if got, want := r.decodeString(data), "DVD_VOLUME"; got != want {
		t.Fatalf("decodeString(UCS2)=%q want %q", got, want)
	}
}

func TestDecodeString_8BitStopsAtNUL(t *testing.T) {
	r := &Reader{}
	if got, want := r.decodeString([]byte{8, 'A', 'B', 0, 'C'}), "AB"; got != want {
		t.Fatalf("decodeString(8bit)=%q want %q", got, want)
	}
	if got := r.decodeString([]byte{254, 'A'}); got != "" {
		t.Fatalf("decodeString(unknown comp)=%q want empty", got)
	}
}

func TestParsePartitionMaps(t *testing.T) {
	r := &Reader{partitions: map[uint16]uint32{3: 1000}}
	if err := r.parsePartitionMaps([]byte{0x01, 0x06, 0x01, 0x00, 0x03, 0x00}, 1); err != nil {
		t.Fatalf("parsePartitionMaps err: %v", err)
	}
	got, err := r.resolvePartitionBlock(0, 7)
	if err != nil || got != 1007 {
		t.Fatalf("resolvePartitionBlock(0,7)=%d, %v want 1007", got, err)
	}
	if _, err := r.resolvePartitionBlock(1, 7); err == nil {
		t.Fatalf("resolvePartitionBlock with unknown reference succeeded")
	}

	// Type 2 (virtual/sparable/metadata) maps do not appear on DVD-Video.
	if err := r.parsePartitionMaps([]byte{0x02, 0x04, 0x00, 0x00}, 1); err == nil {
		t.Fatalf("parsePartitionMaps accepted a type 2 map")
	}
}

func TestFile_Extents(t *testing.T) {
	r := openTestVolume(t)
	f, err := r.FindFile("VIDEO_TS/VTS_01_1.VOB")
	if err != nil {
		t.Fatalf("FindFile: %v", err)
	}
	exts, err := f.Extents()
	if err != nil {
		t.Fatalf("Extents: %v", err)
	}
	if len(exts) != 2 {
		t.Fatalf("len(Extents())=%d want 2", len(exts))
	}
	if exts[0].FileOffset != 0 || exts[0].Length != 2048 || exts[1].FileOffset != 2048 || exts[1].Length != 3000 {
		t.Fatalf("Extents()=%+v", exts)
	}
	if exts[0].StartSector < int64(r.PartitionStarts()[0]) {
		t.Fatalf("extent starts before partition: %+v", exts[0])
	}
}
