package udf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"
)

const (
	fileEntryBaseSize         = 176
	extendedFileEntryBaseSize = 216
	fidBaseSize               = 38
)

// File represents a file in the UDF file system
type File struct {
	reader       *Reader
	Name         string // Exported for external access
	icb          LongAD
	size         int64
	modTime      time.Time
	sizeKnown    bool
	modTimeKnown bool

	extentsOnce sync.Once
	extents     []extent
	extentsErr  error
}

// Directory represents a directory in the UDF file system
type Directory struct {
	reader  *Reader
	Name    string // Exported for external access
	path    string
	icb     LongAD
	entries []*FileIdentifierDescriptor

	entriesOnce sync.Once
	entriesErr  error
}

func (d *Directory) ensureEntries() error {
	d.entriesOnce.Do(func() {
		d.entriesErr = d.readEntries()
	})
	return d.entriesErr
}

// Path returns the directory path from the volume root.
func (d *Directory) Path() string { return d.path }

// Size returns the file size in bytes.
func (f *File) Size() int64 {
	if f.sizeKnown {
		return f.size
	}
	entry, err := f.reader.readFileEntry(f.icb)
	if err != nil {
		return 0
	}
	info := entryInfo(entry)
	f.size = int64(info.infoLength)
	f.modTime = convertTimestamp(info.modTime)
	f.sizeKnown = true
	f.modTimeKnown = true
	return f.size
}

// ModTime returns the modification time.
func (f *File) ModTime() time.Time {
	if !f.modTimeKnown {
		_ = f.Size()
	}
	return f.modTime
}

// FileEntry represents a UDF file entry
type FileEntry struct {
	DescriptorTag                 Tag
	ICBTag                        ICBTag
	UID                           uint32
	GID                           uint32
	Permissions                   uint32
	FileLinkCount                 uint16
	RecordFormat                  uint8
	RecordDisplayAttributes       uint8
	RecordLength                  uint32
	InformationLength             uint64
	LogicalBlocksRecorded         uint64
	AccessTime                    Timestamp
	ModificationTime              Timestamp
	AttributeTime                 Timestamp
	Checkpoint                    uint32
	ExtendedAttributeICB          LongAD
	ImplementationIdentifier      EntityID
	UniqueID                      uint64
	LengthOfExtendedAttributes    uint32
	LengthOfAllocationDescriptors uint32
	// Extended attributes and allocation descriptors follow
}

// ExtendedFileEntry for large files
type ExtendedFileEntry struct {
	DescriptorTag                 Tag
	ICBTag                        ICBTag
	UID                           uint32
	GID                           uint32
	Permissions                   uint32
	FileLinkCount                 uint16
	RecordFormat                  uint8
	RecordDisplayAttributes       uint8
	RecordLength                  uint32
	InformationLength             uint64
	ObjectSize                    uint64
	LogicalBlocksRecorded         uint64
	AccessTime                    Timestamp
	ModificationTime              Timestamp
	CreateTime                    Timestamp
	AttributeTime                 Timestamp
	Checkpoint                    uint32
	Reserved                      [4]byte
	ExtendedAttributeICB          LongAD
	StreamDirectoryICB            LongAD
	ImplementationIdentifier      EntityID
	UniqueID                      uint64
	LengthOfExtendedAttributes    uint32
	LengthOfAllocationDescriptors uint32
}

// ICBTag represents Information Control Block tag
type ICBTag struct {
	PriorRecordedNumberOfDirectEntries uint32  // 0-3
	StrategyType                       uint16  // 4-5
	StrategyParameter                  [2]byte // 6-7
	MaximumNumberOfEntries             uint16  // 8-9
	Reserved                           byte    // 10
	FileType                           uint8   // 11
	ParentICBLocation                  LBAddr  // 12-17 (6 bytes)
	Flags                              uint16  // 18-19
}

// FileIdentifierDescriptor represents a file identifier
type FileIdentifierDescriptor struct {
	DescriptorTag             Tag
	FileVersionNumber         uint16
	FileCharacteristics       uint8
	LengthOfFileIdentifier    uint8
	ICB                       LongAD
	LengthOfImplementationUse uint16
	// Implementation use and file identifier follow
	fileName string // Parsed file name
}

// entryFields holds the parts of a (extended) file entry the reader needs.
type entryFields struct {
	icbFlags        uint16
	allocDescLength uint32
	extAttribLength uint32
	infoLength      uint64
	modTime         Timestamp
	baseSize        int64
}

func entryInfo(entry any) entryFields {
	switch e := entry.(type) {
	case *FileEntry:
		return entryFields{
			icbFlags:        e.ICBTag.Flags,
			allocDescLength: e.LengthOfAllocationDescriptors,
			extAttribLength: e.LengthOfExtendedAttributes,
			infoLength:      e.InformationLength,
			modTime:         e.ModificationTime,
			baseSize:        fileEntryBaseSize,
		}
	case *ExtendedFileEntry:
		return entryFields{
			icbFlags:        e.ICBTag.Flags,
			allocDescLength: e.LengthOfAllocationDescriptors,
			extAttribLength: e.LengthOfExtendedAttributes,
			infoLength:      e.InformationLength,
			modTime:         e.ModificationTime,
			baseSize:        extendedFileEntryBaseSize,
		}
	}
	return entryFields{}
}

// ReadDirectory reads a directory's contents
func (r *Reader) ReadDirectory(dirPath string) (*Directory, error) {
	if r.fileSetDesc == nil {
		return nil, fmt.Errorf("file set descriptor not loaded")
	}

	currentDir := &Directory{
		reader: r,
		path:   "/",
		icb:    r.rootICB,
	}
	if err := currentDir.ensureEntries(); err != nil {
		return nil, err
	}

	for _, part := range strings.Split(strings.Trim(dirPath, "/"), "/") {
		if part == "" {
			continue
		}
		next, err := currentDir.subdirectory(part)
		if err != nil {
			return nil, err
		}
		currentDir = next
	}
	return currentDir, nil
}

func (d *Directory) subdirectory(name string) (*Directory, error) {
	dirs, err := d.GetDirectories()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if strings.EqualFold(dir.Name, name) {
			if err := dir.ensureEntries(); err != nil {
				return nil, err
			}
			return dir, nil
		}
	}
	return nil, fmt.Errorf("directory not found: %s: %w", name, fs.ErrNotExist)
}

// readEntries reads all entries in a directory
func (d *Directory) readEntries() error {
	fileEntry, fileEntryData, err := d.reader.readFileEntryWithData(d.icb)
	if err != nil {
		return err
	}
	info := entryInfo(fileEntry)
	allocType := info.icbFlags & 0x7

	if allocType == 3 {
		// Directory data embedded in the ICB.
		start := info.baseSize + int64(info.extAttribLength)
		end := start + int64(info.allocDescLength)
		if end > int64(len(fileEntryData)) {
			return fmt.Errorf("embedded directory data out of range (offset=%d length=%d)", start, info.allocDescLength)
		}
		d.entries = append(d.entries, parseFileIdentifiers(d.reader, fileEntryData[start:end])...)
		return nil
	}

	allocDescs, err := d.reader.readAllocationDescriptors(fileEntry, fileEntryData, d.icb.ExtentLocation.PartitionReferenceNumber)
	if err != nil {
		return err
	}
	for _, ad := range allocDescs {
		if err := d.readDirectoryData(ad); err != nil {
			return err
		}
	}
	return nil
}

type allocationDescriptor struct {
	// length in bytes (top 2 bits cleared)
	length uint32
	lbn    uint32
	pref   uint16
}

func (r *Reader) readFileEntryWithData(icb LongAD) (any, []byte, error) {
	location, err := r.resolveLBAddr(icb.ExtentLocation)
	if err != nil {
		return nil, nil, err
	}

	block, err := r.readBlock(location)
	if err != nil {
		return nil, nil, err
	}

	switch tag := binary.LittleEndian.Uint16(block[0:2]); tag {
	case TagFile:
		var fe FileEntry
		if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, &fe); err != nil {
			return nil, nil, err
		}
		return &fe, block, nil

	case TagExtendedFileEntry:
		var efe ExtendedFileEntry
		if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, &efe); err != nil {
			return nil, nil, err
		}
		return &efe, block, nil

	default:
		return nil, nil, fmt.Errorf("unexpected tag type: %d at location %d", tag, location)
	}
}

// readFileEntry reads a file entry from an ICB.
func (r *Reader) readFileEntry(icb LongAD) (any, error) {
	entry, _, err := r.readFileEntryWithData(icb)
	return entry, err
}

// readAllocationDescriptors extracts allocation descriptors from a file entry.
// If the descriptor format doesn't contain a partition reference (short_ad), defaultPref is used.
func (r *Reader) readAllocationDescriptors(entry any, entryData []byte, defaultPref uint16) ([]allocationDescriptor, error) {
	info := entryInfo(entry)
	if info.allocDescLength == 0 {
		return nil, nil
	}

	allocType := info.icbFlags & 0x7
	var adSize uint32
	switch allocType {
	case 0:
		adSize = 8
	case 1:
		adSize = 16
	case 3:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported allocation descriptor type %d", allocType)
	}

	start := info.baseSize + int64(info.extAttribLength)
	end := start + int64(info.allocDescLength)
	if end > int64(len(entryData)) {
		return nil, fmt.Errorf("allocation descriptors out of range (offset=%d length=%d)", start, info.allocDescLength)
	}
	allocData := entryData[start:end]

	descs := make([]allocationDescriptor, 0, info.allocDescLength/adSize)
	for off := uint32(0); off+adSize <= info.allocDescLength; off += adSize {
		raw := allocData[off:]
		length := binary.LittleEndian.Uint32(raw[0:4])
		// Extents of type 3 continue the descriptor list elsewhere; DVD file
		// entries are small enough that this never occurs.
		if length>>30 == 3 {
			break
		}
		ad := allocationDescriptor{
			length: length & 0x3FFFFFFF,
			lbn:    binary.LittleEndian.Uint32(raw[4:8]),
			pref:   defaultPref,
		}
		if allocType == 1 {
			ad.pref = binary.LittleEndian.Uint16(raw[8:10])
		}
		if ad.length == 0 {
			break
		}
		descs = append(descs, ad)
	}
	return descs, nil
}

// readDirectoryData reads directory entries from an allocation descriptor
func (d *Directory) readDirectoryData(ad allocationDescriptor) error {
	location, err := d.reader.resolvePartitionBlock(ad.pref, ad.lbn)
	if err != nil {
		return err
	}
	data := make([]byte, ad.length)
	if err := d.reader.readFullAt(int64(location)*int64(d.reader.blockSize), data); err != nil {
		return err
	}
	d.entries = append(d.entries, parseFileIdentifiers(d.reader, data)...)
	return nil
}

// parseFileIdentifiers walks a run of file identifier descriptors.
func parseFileIdentifiers(r *Reader, data []byte) []*FileIdentifierDescriptor {
	var fids []*FileIdentifierDescriptor
	offset := 0
	for offset+fidBaseSize <= len(data) {
		b := data[offset:]
		fid := &FileIdentifierDescriptor{}
		fid.DescriptorTag.TagIdentifier = binary.LittleEndian.Uint16(b[0:2])
		if fid.DescriptorTag.TagIdentifier != TagFileIdentifier {
			break
		}
		fid.DescriptorTag.DescriptorVersion = binary.LittleEndian.Uint16(b[2:4])
		fid.DescriptorTag.TagChecksum = b[4]
		fid.DescriptorTag.TagSerialNumber = binary.LittleEndian.Uint16(b[6:8])
		fid.DescriptorTag.DescriptorCRC = binary.LittleEndian.Uint16(b[8:10])
		fid.DescriptorTag.DescriptorCRCLength = binary.LittleEndian.Uint16(b[10:12])
		fid.DescriptorTag.TagLocation = binary.LittleEndian.Uint32(b[12:16])
		fid.FileVersionNumber = binary.LittleEndian.Uint16(b[16:18])
		fid.FileCharacteristics = b[18]
		fid.LengthOfFileIdentifier = b[19]
		fid.ICB.ExtentLength = binary.LittleEndian.Uint32(b[20:24])
		fid.ICB.ExtentLocation.LogicalBlockNumber = binary.LittleEndian.Uint32(b[24:28])
		fid.ICB.ExtentLocation.PartitionReferenceNumber = binary.LittleEndian.Uint16(b[28:30])
		copy(fid.ICB.ImplementationUse[:], b[30:36])
		fid.LengthOfImplementationUse = binary.LittleEndian.Uint16(b[36:38])

		nameStart := fidBaseSize + int(fid.LengthOfImplementationUse)
		nameEnd := nameStart + int(fid.LengthOfFileIdentifier)
		if fid.LengthOfFileIdentifier > 0 && nameEnd <= len(b) {
			fid.fileName = r.decodeString(b[nameStart:nameEnd])
		}
		fids = append(fids, fid)

		// FIDs are padded to a 4-byte boundary.
		offset += (nameEnd + 3) &^ 3
	}
	return fids
}

// GetFiles returns all files in the directory
func (d *Directory) GetFiles() ([]*File, error) {
	if err := d.ensureEntries(); err != nil {
		return nil, err
	}

	var files []*File
	for _, entry := range d.entries {
		if entry.FileCharacteristics&(FileCharDirectory|FileCharDeleted) != 0 || entry.fileName == "" {
			continue
		}
		files = append(files, &File{
			reader: d.reader,
			Name:   entry.fileName,
			icb:    entry.ICB,
		})
	}
	return files, nil
}

// GetDirectories returns all subdirectories
func (d *Directory) GetDirectories() ([]*Directory, error) {
	if err := d.ensureEntries(); err != nil {
		return nil, err
	}

	var dirs []*Directory
	for _, entry := range d.entries {
		if entry.FileCharacteristics&FileCharDirectory == 0 ||
			entry.FileCharacteristics&(FileCharParent|FileCharDeleted) != 0 {
			continue
		}
		dirs = append(dirs, &Directory{
			reader: d.reader,
			Name:   entry.fileName,
			path:   path.Join(d.path, entry.fileName),
			icb:    entry.ICB,
		})
	}
	return dirs, nil
}

// loadExtents maps the file onto absolute sector extents.
func (f *File) loadExtents() ([]extent, error) {
	f.extentsOnce.Do(func() {
		entry, entryData, err := f.reader.readFileEntryWithData(f.icb)
		if err != nil {
			f.extentsErr = err
			return
		}
		info := entryInfo(entry)
		if info.icbFlags&0x7 == 3 {
			f.extentsErr = fmt.Errorf("udf: %s: embedded file data not supported", f.Name)
			return
		}
		allocDescs, err := f.reader.readAllocationDescriptors(entry, entryData, f.icb.ExtentLocation.PartitionReferenceNumber)
		if err != nil {
			f.extentsErr = err
			return
		}

		size := int64(info.infoLength)
		f.size, f.sizeKnown = size, true
		f.modTime, f.modTimeKnown = convertTimestamp(info.modTime), true

		var fileOff int64
		for _, ad := range allocDescs {
			if fileOff >= size {
				break
			}
			loc, err := f.reader.resolvePartitionBlock(ad.pref, ad.lbn)
			if err != nil {
				f.extentsErr = err
				return
			}
			segLen := min(int64(ad.length), size-fileOff)
			f.extents = append(f.extents, extent{
				fileStart: fileOff,
				fileEnd:   fileOff + segLen,
				physOff:   int64(loc) * int64(f.reader.blockSize),
			})
			fileOff += segLen
		}
	})
	return f.extents, f.extentsErr
}

// Blocks returns the number of whole or partial sectors the file occupies.
func (f *File) Blocks() int64 {
	bs := int64(f.reader.blockSize)
	return (f.Size() + bs - 1) / bs
}

// ReadBlocks reads whole sectors addressed relative to the start of the file.
// Reads stop at the end of the file; the number of bytes read is returned.
func (f *File) ReadBlocks(block int64, p []byte) (int, error) {
	exts, err := f.loadExtents()
	if err != nil {
		return 0, err
	}
	bs := int64(f.reader.blockSize)
	er := &extentReader{reader: f.reader, extents: exts, size: f.Blocks() * bs, pos: block * bs}
	n, err := io.ReadFull(er, p)
	if err == io.ErrUnexpectedEOF || (err == io.EOF && n == 0 && len(p) > 0) {
		if n == 0 {
			return 0, io.EOF
		}
		err = nil
	}
	return n, err
}

// Open opens the file for reading
func (f *File) Open() (io.ReadCloser, error) {
	exts, err := f.loadExtents()
	if err != nil {
		return nil, err
	}
	return &extentReader{reader: f.reader, extents: exts, size: f.size}, nil
}

type extent struct {
	fileStart int64
	fileEnd   int64
	physOff   int64
}

type extentReader struct {
	reader  *Reader
	extents []extent
	size    int64

	pos int64
	idx int
}

func (er *extentReader) Read(p []byte) (n int, err error) {
	if er.pos >= er.size {
		return 0, io.EOF
	}

	toRead := len(p)
	if remaining := er.size - er.pos; int64(toRead) > remaining {
		toRead = int(remaining)
	}

	for n < toRead {
		if er.idx >= len(er.extents) {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		ex := er.extents[er.idx]
		// The last extent is rounded up to a whole sector for block reads.
		end := ex.fileEnd
		if er.idx == len(er.extents)-1 && er.size > end {
			end = er.size
		}
		if er.pos >= end {
			er.idx++
			continue
		}
		if er.pos < ex.fileStart {
			er.idx = 0
			for er.idx < len(er.extents)-1 && er.extents[er.idx].fileEnd <= er.pos {
				er.idx++
			}
			ex = er.extents[er.idx]
		}

		want := toRead - n
		if inExtent := end - er.pos; int64(want) > inExtent {
			want = int(inExtent)
		}

		off := ex.physOff + (er.pos - ex.fileStart)
		if rerr := er.reader.readFullAt(off, p[n:n+want]); rerr != nil {
			return n, rerr
		}
		n += want
		er.pos += int64(want)
	}
	return n, nil
}

func (er *extentReader) Close() error { return nil }

// convertTimestamp converts UDF timestamp to Go time.Time
func convertTimestamp(ts Timestamp) time.Time {
	if ts.Year == 0 {
		return time.Time{}
	}
	loc := time.UTC
	// Type 1 timestamps carry a signed 12-bit minute offset from UTC.
	if ts.TypeAndTimezone>>12 == 1 {
		tz := int16(ts.TypeAndTimezone<<4) >> 4
		if tz != -2047 {
			loc = time.FixedZone("", int(tz)*60)
		}
	}
	return time.Date(
		int(ts.Year),
		time.Month(ts.Month),
		int(ts.Day),
		int(ts.Hour),
		int(ts.Minute),
		int(ts.Second),
		int(ts.Centiseconds)*10_000_000+int(ts.HundredsOfMicroseconds)*100_000+int(ts.Microseconds)*1000,
		loc,
	)
}

// FindFile searches for a file by path
func (r *Reader) FindFile(filePath string) (*File, error) {
	filePath = strings.Trim(filePath, "/")
	dirPath, name := path.Split(filePath)

	dir, err := r.ReadDirectory(dirPath)
	if err != nil {
		return nil, err
	}
	files, err := dir.GetFiles()
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if strings.EqualFold(file.Name, name) {
			return file, nil
		}
	}
	return nil, fmt.Errorf("file not found: %s: %w", filePath, fs.ErrNotExist)
}

// Extent is one contiguous run of a file on the medium.
type Extent struct {
	FileOffset  int64
	Length      int64
	StartSector int64
}

// Extents returns the file's runs in file order.
func (f *File) Extents() ([]Extent, error) {
	exts, err := f.loadExtents()
	if err != nil {
		return nil, err
	}
	out := make([]Extent, 0, len(exts))
	for _, e := range exts {
		out = append(out, Extent{
			FileOffset:  e.fileStart,
			Length:      e.fileEnd - e.fileStart,
			StartSector: e.physOff / int64(f.reader.blockSize),
		})
	}
	return out, nil
}
