package udf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"
)

// SectorSource reads whole 2048-byte sectors by absolute logical block number.
type SectorSource interface {
	ReadSectors(lba int64, p []byte) (int, error)
}

// Reader provides UDF file system reading capabilities
type Reader struct {
	src             SectorSource
	totalSectors    int64
	volumeLabel     string
	blockSize       uint32
	partitions      map[uint16]uint32 // partition number -> starting sector
	partitionMaps   []partitionMap
	rootICB         LongAD
	fileSetDesc     *FileSetDescriptor
	fileSetLocation LongAD
}

type partitionMap struct {
	mapType         uint8
	partitionNumber uint16
}

// NewReader parses the volume structures of the UDF filesystem on src.
// totalSectors may be 0 when the medium length is unknown; the end-of-volume
// anchor locations are then not probed.
func NewReader(src SectorSource, totalSectors int64) (*Reader, error) {
	if src == nil {
		return nil, errors.New("udf: nil sector source")
	}
	reader := &Reader{
		src:          src,
		totalSectors: totalSectors,
		blockSize:    SectorSize,
		partitions:   make(map[uint16]uint32),
	}
	if err := reader.initialize(); err != nil {
		return nil, err
	}
	return reader, nil
}

// GetVolumeLabel returns the volume label
func (r *Reader) GetVolumeLabel() string {
	return r.volumeLabel
}

// initialize reads UDF structures and prepares for file access
func (r *Reader) initialize() error {
	if err := r.verifyVolume(); err != nil {
		return fmt.Errorf("not a valid UDF volume: %w", err)
	}

	anchor, err := r.findAnchorVolumeDescriptor()
	if err != nil {
		return fmt.Errorf("failed to find anchor volume descriptor: %w", err)
	}

	if err := r.readVolumeDescriptorSequence(anchor.MainVolumeDescriptorSequenceExtent); err != nil {
		return fmt.Errorf("failed to read volume descriptor sequence: %w", err)
	}

	// The file set descriptor can only be located once the partitions are known.
	location, err := r.resolveLBAddr(r.fileSetLocation.ExtentLocation)
	if err != nil {
		return fmt.Errorf("file set location: %w", err)
	}
	block, err := r.readBlock(location)
	if err != nil {
		return fmt.Errorf("failed to read file set descriptor: %w", err)
	}
	var fsd FileSetDescriptor
	if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, &fsd); err != nil {
		return fmt.Errorf("failed to decode file set descriptor: %w", err)
	}
	if fsd.DescriptorTag.TagIdentifier != TagFileSet {
		return fmt.Errorf("invalid file set descriptor tag: %d (expected %d) at sector %d",
			fsd.DescriptorTag.TagIdentifier, TagFileSet, location)
	}

	r.fileSetDesc = &fsd
	r.rootICB = fsd.RootDirectoryICB
	return nil
}

// verifyVolume checks for UDF volume recognition sequence
func (r *Reader) verifyVolume() error {
	foundNSR := false
	var descriptors []string

	for i := int64(0); i < 16; i++ {
		block, err := r.readBlock(uint32(VRSStart + i))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return err
		}

		identifier := strings.TrimRight(string(block[1:6]), "\x00")
		descriptors = append(descriptors, identifier)

		switch identifier {
		case StandardIDBEA01, StandardIDCD001:
			continue
		case StandardIDNSR02, StandardIDNSR03:
			foundNSR = true
			continue
		case StandardIDTEA01, "":
		default:
			if !foundNSR {
				return fmt.Errorf("NSR descriptor not found in VRS, found descriptors: %v", descriptors)
			}
		}
		break
	}

	if !foundNSR {
		return fmt.Errorf("NSR descriptor not found, scanned descriptors: %v", descriptors)
	}
	return nil
}

// findAnchorVolumeDescriptor locates the anchor volume descriptor
func (r *Reader) findAnchorVolumeDescriptor() (*AnchorVolumeDescriptorPointer, error) {
	locations := []int64{AnchorSector, 512}
	if r.totalSectors > 0 {
		locations = append(locations, r.totalSectors-1-AnchorSector, r.totalSectors-1)
	}

	for _, sector := range locations {
		if sector < 0 {
			continue
		}
		block, err := r.readBlock(uint32(sector))
		if err != nil {
			continue
		}
		anchor := &AnchorVolumeDescriptorPointer{}
		if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, anchor); err != nil {
			continue
		}
		if anchor.DescriptorTag.TagIdentifier == TagAnchorVolume {
			return anchor, nil
		}
	}

	return nil, fmt.Errorf("anchor volume descriptor not found")
}

// readVolumeDescriptorSequence reads the main volume descriptor sequence
func (r *Reader) readVolumeDescriptorSequence(extent ExtentAD) error {
	foundLVD := false
	for offset := uint32(0); offset < extent.Length; offset += SectorSize {
		block, err := r.readBlock(extent.Location + offset/SectorSize)
		if err != nil {
			return err
		}
		tag := binary.LittleEndian.Uint16(block[0:2])
		rd := bytes.NewReader(block)

		switch tag {
		case TagPrimaryVolume:
			var pvd PrimaryVolumeDescriptor
			if err := binary.Read(rd, binary.LittleEndian, &pvd); err != nil {
				return err
			}
			r.volumeLabel = r.decodeString(pvd.VolumeIdentifier[:])

		case TagPartition:
			var pd PartitionDescriptor
			if err := binary.Read(rd, binary.LittleEndian, &pd); err != nil {
				return err
			}
			r.partitions[pd.PartitionNumber] = pd.PartitionStartingLocation

		case TagLogicalVolume:
			var lvd LogicalVolumeDescriptor
			if err := binary.Read(rd, binary.LittleEndian, &lvd); err != nil {
				return err
			}
			if lvd.LogicalBlockSize != 0 && lvd.LogicalBlockSize != SectorSize {
				return fmt.Errorf("unsupported logical block size %d", lvd.LogicalBlockSize)
			}
			// Logical volume contents use holds the file set descriptor long_ad.
			var fsLoc LongAD
			if err := binary.Read(bytes.NewReader(lvd.LogicalVolumeContentsUse[:]), binary.LittleEndian, &fsLoc); err != nil {
				return err
			}
			r.fileSetLocation = fsLoc

			mapStart := binary.Size(lvd)
			mapEnd := mapStart + int(lvd.MapTableLength)
			if mapEnd > len(block) {
				return fmt.Errorf("partition map table length %d out of range", lvd.MapTableLength)
			}
			if err := r.parsePartitionMaps(block[mapStart:mapEnd], int(lvd.NumberOfPartitionMaps)); err != nil {
				return err
			}
			foundLVD = true

		case TagTerminating:
			offset = extent.Length
		}
	}

	if !foundLVD {
		return fmt.Errorf("logical volume descriptor not found")
	}
	if len(r.partitions) == 0 {
		return fmt.Errorf("partition descriptor not found")
	}
	return nil
}

// parsePartitionMaps decodes the partition map table of the logical volume descriptor.
// DVD-Video volumes use UDF 1.02 with a single type 1 map; other map types are rejected.
func (r *Reader) parsePartitionMaps(table []byte, count int) error {
	r.partitionMaps = r.partitionMaps[:0]
	off := 0
	for i := 0; i < count; i++ {
		if off+2 > len(table) {
			return fmt.Errorf("partition map %d truncated", i)
		}
		mapType := table[off]
		mapLen := int(table[off+1])
		if mapLen < 2 || off+mapLen > len(table) {
			return fmt.Errorf("partition map %d has invalid length %d", i, mapLen)
		}
		switch mapType {
		case 1:
			if mapLen < 6 {
				return fmt.Errorf("type 1 partition map %d too short", i)
			}
			r.partitionMaps = append(r.partitionMaps, partitionMap{
				mapType:         mapType,
				partitionNumber: binary.LittleEndian.Uint16(table[off+4 : off+6]),
			})
		default:
			return fmt.Errorf("partition map %d: unsupported type %d", i, mapType)
		}
		off += mapLen
	}
	return nil
}

// resolvePartitionBlock converts a partition-relative block to an absolute sector.
func (r *Reader) resolvePartitionBlock(pref uint16, lbn uint32) (uint32, error) {
	number := pref
	if int(pref) < len(r.partitionMaps) {
		number = r.partitionMaps[pref].partitionNumber
	} else if len(r.partitionMaps) > 0 {
		return 0, fmt.Errorf("partition reference %d out of range", pref)
	}
	start, ok := r.partitions[number]
	if !ok {
		return 0, fmt.Errorf("partition %d not described", number)
	}
	return start + lbn, nil
}

func (r *Reader) resolveLBAddr(addr LBAddr) (uint32, error) {
	return r.resolvePartitionBlock(addr.PartitionReferenceNumber, addr.LogicalBlockNumber)
}

func (r *Reader) readBlock(block uint32) ([]byte, error) {
	b := make([]byte, r.blockSize)
	n, err := r.src.ReadSectors(int64(block), b)
	if err != nil {
		return nil, err
	}
	if n < len(b) {
		return nil, io.ErrUnexpectedEOF
	}
	return b, nil
}

// readFullAt reads len(p) bytes starting at an absolute byte offset.
func (r *Reader) readFullAt(off int64, p []byte) error {
	bs := int64(r.blockSize)
	first := off / bs
	last := (off + int64(len(p)) + bs - 1) / bs
	buf := make([]byte, (last-first)*bs)
	n, err := r.src.ReadSectors(first, buf)
	if err != nil {
		return err
	}
	skip := int(off - first*bs)
	if n < skip+len(p) {
		return io.ErrUnexpectedEOF
	}
	copy(p, buf[skip:skip+len(p)])
	return nil
}

// decodeString decodes a dstring/d-characters field (OSTA compressed unicode).
func (r *Reader) decodeString(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	switch data[0] {
	case 8:
		body := data[1:]
		if idx := bytes.IndexByte(body, 0); idx >= 0 {
			body = body[:idx]
		}
		s = string(body)
	case 16:
		body := data[1:]
		units := make([]uint16, 0, len(body)/2)
		for i := 0; i+1 < len(body); i += 2 {
			u := uint16(body[i])<<8 | uint16(body[i+1])
			if u == 0 {
				break
			}
			units = append(units, u)
		}
		s = string(utf16.Decode(units))
	default:
		return ""
	}
	return strings.TrimRight(s, " ")
}

// Anchor Volume Descriptor Pointer
type AnchorVolumeDescriptorPointer struct {
	DescriptorTag                         Tag
	MainVolumeDescriptorSequenceExtent    ExtentAD
	ReserveVolumeDescriptorSequenceExtent ExtentAD
	Reserved                              [480]byte
}

// Primary Volume Descriptor
type PrimaryVolumeDescriptor struct {
	DescriptorTag                               Tag
	VolumeDescriptorSequenceNumber              uint32
	PrimaryVolumeDescriptorNumber               uint32
	VolumeIdentifier                            [32]byte
	VolumeSequenceNumber                        uint16
	MaximumVolumeSequenceNumber                 uint16
	InterchangeLevel                            uint16
	MaximumInterchangeLevel                     uint16
	CharacterSetList                            uint32
	MaximumCharacterSetList                     uint32
	VolumeSetIdentifier                         [128]byte
	DescriptorCharacterSet                      CharSpec
	ExplanatoryCharacterSet                     CharSpec
	VolumeAbstract                              ExtentAD
	VolumeCopyrightNotice                       ExtentAD
	ApplicationIdentifier                       EntityID
	RecordingDateAndTime                        Timestamp
	ImplementationIdentifier                    EntityID
	ImplementationUse                           [64]byte
	PredecessorVolumeDescriptorSequenceLocation uint32
	Flags                                       uint16
	Reserved                                    [22]byte
}

// Partition Descriptor
type PartitionDescriptor struct {
	DescriptorTag                  Tag
	VolumeDescriptorSequenceNumber uint32
	PartitionFlags                 uint16
	PartitionNumber                uint16
	PartitionContents              EntityID
	PartitionContentsUse           [128]byte
	AccessType                     uint32
	PartitionStartingLocation      uint32
	PartitionLength                uint32
	ImplementationIdentifier       EntityID
	ImplementationUse              [128]byte
	Reserved                       [156]byte
}

// Logical Volume Descriptor
type LogicalVolumeDescriptor struct {
	DescriptorTag                  Tag
	VolumeDescriptorSequenceNumber uint32
	DescriptorCharacterSet         CharSpec
	LogicalVolumeIdentifier        [128]byte
	LogicalBlockSize               uint32
	DomainIdentifier               EntityID
	LogicalVolumeContentsUse       [16]byte
	MapTableLength                 uint32
	NumberOfPartitionMaps          uint32
	ImplementationIdentifier       EntityID
	ImplementationUse              [128]byte
	IntegritySequenceExtent        ExtentAD
	// Partition maps follow (variable length)
}

// File Set Descriptor
type FileSetDescriptor struct {
	DescriptorTag                       Tag
	RecordingDateAndTime                Timestamp
	InterchangeLevel                    uint16
	MaximumInterchangeLevel             uint16
	CharacterSetList                    uint32
	MaximumCharacterSetList             uint32
	FileSetNumber                       uint32
	FileSetDescriptorNumber             uint32
	LogicalVolumeIdentifierCharacterSet CharSpec
	LogicalVolumeIdentifier             [128]byte
	FileSetCharacterSet                 CharSpec
	FileSetIdentifier                   [32]byte
	CopyrightFileIdentifier             [32]byte
	AbstractFileIdentifier              [32]byte
	RootDirectoryICB                    LongAD
	DomainIdentifier                    EntityID
	NextExtent                          LongAD
	SystemStreamDirectoryICB            LongAD
	Reserved                            [32]byte
}

// BlockSize returns the logical block size.
func (r *Reader) BlockSize() uint32 { return r.blockSize }

// RootICB returns the root directory ICB from the file set descriptor.
func (r *Reader) RootICB() LongAD { return r.rootICB }

// FileSetLocation returns the location of the file set descriptor.
func (r *Reader) FileSetLocation() LongAD { return r.fileSetLocation }

// PartitionStarts returns partition number -> first absolute sector.
func (r *Reader) PartitionStarts() map[uint16]uint32 {
	out := make(map[uint16]uint32, len(r.partitions))
	for k, v := range r.partitions {
		out[k] = v
	}
	return out
}
