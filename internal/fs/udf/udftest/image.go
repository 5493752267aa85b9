// Package udftest builds minimal UDF 1.02 images holding a VIDEO_TS directory for tests.
package udftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/s0up4200/go-dvdinfo/internal/fs/udf"
	"github.com/s0up4200/go-dvdinfo/internal/ifo/ifotest"
)

const (
	sectorSize     = udf.SectorSize
	partitionStart = udf.AnchorSector + 4
	fidBaseSize    = 38

	// partition-relative blocks of the fixed metadata
	fileSetBlock  = 0
	rootICBBlock  = 1
	rootFIDBlock  = 2
	videoICBBlock = 3
	videoFIDBlock = 4
)

// File is one regular file placed under VIDEO_TS. Files are laid out in slice order, each
// with its data in one contiguous extent right after its file entry.
type File struct {
	Name string
	Data []byte
}

// Image returns a UDF volume labelled label with files under /VIDEO_TS.
func Image(label string, files []File) ([]byte, error) {
	videoFIDs := [][]byte{fid(udf.FileCharDirectory|udf.FileCharParent, "", rootICBBlock)}
	next := uint32(videoFIDBlock + 1)
	type placed struct {
		icb, data uint32
		file      File
	}
	layout := make([]placed, 0, len(files))
	for _, f := range files {
		if f.Name == "" || len(f.Name) > 250 {
			return nil, fmt.Errorf("udftest: bad file name %q", f.Name)
		}
		p := placed{icb: next, data: next + 1, file: f}
		videoFIDs = append(videoFIDs, fid(0, f.Name, p.icb))
		next += 1 + blocks(len(f.Data))
		layout = append(layout, p)
	}
	videoDir := bytes.Join(videoFIDs, nil)
	if len(videoDir) > sectorSize {
		return nil, fmt.Errorf("udftest: %d files do not fit one directory block", len(files))
	}

	img := make([]byte, (partitionStart+int(next)+1)*sectorSize)

	copy(img[16*sectorSize+1:], udf.StandardIDBEA01)
	copy(img[17*sectorSize+1:], udf.StandardIDNSR02)
	copy(img[18*sectorSize+1:], udf.StandardIDTEA01)

	var avdp udf.AnchorVolumeDescriptorPointer
	avdp.DescriptorTag.TagIdentifier = udf.TagAnchorVolume
	avdp.MainVolumeDescriptorSequenceExtent = udf.ExtentAD{Length: 4 * sectorSize, Location: 32}
	if err := put(img, udf.AnchorSector, avdp); err != nil {
		return nil, err
	}

	var pvd udf.PrimaryVolumeDescriptor
	pvd.DescriptorTag.TagIdentifier = udf.TagPrimaryVolume
	copy(pvd.VolumeIdentifier[:], append([]byte{8}, label...))
	if err := put(img, 32, pvd); err != nil {
		return nil, err
	}

	var pd udf.PartitionDescriptor
	pd.DescriptorTag.TagIdentifier = udf.TagPartition
	pd.PartitionStartingLocation = partitionStart
	pd.PartitionLength = next + 1
	if err := put(img, 33, pd); err != nil {
		return nil, err
	}

	var lvd udf.LogicalVolumeDescriptor
	lvd.DescriptorTag.TagIdentifier = udf.TagLogicalVolume
	lvd.LogicalBlockSize = sectorSize
	binary.LittleEndian.PutUint32(lvd.LogicalVolumeContentsUse[0:4], sectorSize)
	lvd.MapTableLength = 6
	lvd.NumberOfPartitionMaps = 1
	if err := put(img, 34, lvd, []byte{1, 6, 1, 0, 0, 0}); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint16(img[35*sectorSize:], udf.TagTerminating)

	var fsd udf.FileSetDescriptor
	fsd.DescriptorTag.TagIdentifier = udf.TagFileSet
	fsd.RootDirectoryICB = udf.LongAD{ExtentLength: sectorSize, ExtentLocation: udf.LBAddr{LogicalBlockNumber: rootICBBlock}}
	if err := put(img, partitionStart+fileSetBlock, fsd); err != nil {
		return nil, err
	}

	rootDir := bytes.Join([][]byte{
		fid(udf.FileCharDirectory|udf.FileCharParent, "", rootICBBlock),
		fid(udf.FileCharDirectory, "VIDEO_TS", videoICBBlock),
	}, nil)
	if err := putDir(img, rootICBBlock, rootFIDBlock, rootDir); err != nil {
		return nil, err
	}
	if err := putDir(img, videoICBBlock, videoFIDBlock, videoDir); err != nil {
		return nil, err
	}

	for _, p := range layout {
		var ads []byte
		if n := len(p.file.Data); n > 0 {
			ads = shortAD(uint32(n), p.data)
		}
		fe := fileEntry(udf.ICBFileTypeFile, uint64(len(p.file.Data)), len(ads))
		if err := put(img, partitionStart+int(p.icb), fe, ads); err != nil {
			return nil, err
		}
		copy(img[(partitionStart+int(p.data))*sectorSize:], p.file.Data)
	}
	return img, nil
}

// VideoTS returns a UDF image of the information files and title VOBs of d, split the way
// ifotest.WriteVideoTS splits them.
func VideoTS(label string, d ifotest.Disc, vobs map[int][]byte, splitSectors int) ([]byte, error) {
	files := []File{{Name: "VIDEO_TS.IFO", Data: ifotest.VMG(d)}}
	for i, ts := range d.TitleSets {
		files = append(files, File{Name: fmt.Sprintf("VTS_%02d_0.IFO", i+1), Data: ifotest.VTS(ts)})
	}

	sets := make([]int, 0, len(vobs))
	for n := range vobs {
		sets = append(sets, n)
	}
	sort.Ints(sets)
	for _, n := range sets {
		data := vobs[n]
		chunk := len(data)
		if splitSectors > 0 {
			chunk = splitSectors * sectorSize
		}
		for part := 1; len(data) > 0; part++ {
			size := min(chunk, len(data))
			files = append(files, File{Name: fmt.Sprintf("VTS_%02d_%d.VOB", n, part), Data: data[:size]})
			data = data[size:]
		}
	}
	return Image(label, files)
}

func blocks(n int) uint32 {
	return uint32((n + sectorSize - 1) / sectorSize)
}

func put(img []byte, sector int, v any, tail ...[]byte) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("udftest: encode %T: %w", v, err)
	}
	for _, b := range tail {
		buf.Write(b)
	}
	if buf.Len() > sectorSize {
		return fmt.Errorf("udftest: %T does not fit one sector", v)
	}
	copy(img[sector*sectorSize:], buf.Bytes())
	return nil
}

// putDir writes a directory file entry at icb whose identifiers live in block fids.
func putDir(img []byte, icb, fids uint32, data []byte) error {
	fe := fileEntry(udf.ICBFileTypeDirectory, uint64(len(data)), 8)
	if err := put(img, partitionStart+int(icb), fe, shortAD(uint32(len(data)), fids)); err != nil {
		return err
	}
	copy(img[(partitionStart+int(fids))*sectorSize:], data)
	return nil
}

func fileEntry(fileType uint8, infoLen uint64, adLen int) udf.FileEntry {
	fe := udf.FileEntry{
		InformationLength:             infoLen,
		LogicalBlocksRecorded:         uint64(blocks(int(infoLen))),
		LengthOfAllocationDescriptors: uint32(adLen),
		ModificationTime:              udf.Timestamp{TypeAndTimezone: 1 << 12, Year: 2004, Month: 6, Day: 1},
	}
	fe.DescriptorTag.TagIdentifier = udf.TagFile
	fe.ICBTag.FileType = fileType
	return fe
}

func shortAD(length, position uint32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], length)
	binary.LittleEndian.PutUint32(b[4:8], position)
	return b
}

func fid(chars byte, name string, icb uint32) []byte {
	var ident []byte
	if name != "" {
		ident = append([]byte{8}, name...)
	}
	b := make([]byte, (fidBaseSize+len(ident)+3)&^3)
	binary.LittleEndian.PutUint16(b[0:2], udf.TagFileIdentifier)
	b[18] = chars
	b[19] = byte(len(ident))
	binary.LittleEndian.PutUint32(b[20:24], sectorSize)
	binary.LittleEndian.PutUint32(b[24:28], icb)
	copy(b[fidBaseSize:], ident)
	return b
}
