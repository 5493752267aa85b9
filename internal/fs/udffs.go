package fs

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/s0up4200/go-dvdinfo/internal/fs/udf"
)

// UDFFileSystem implements FileSystem over a UDF volume read through a sector source.
type UDFFileSystem struct {
	udfReader   *udf.Reader
	volumeLabel string
	closer      io.Closer
	// Cache for directory lookups
	dirCache map[string]*udf.Directory
}

// NewUDFFileSystem parses the UDF volume on src. closer, if non-nil, is closed by Close.
func NewUDFFileSystem(src udf.SectorSource, totalSectors int64, closer io.Closer) (*UDFFileSystem, error) {
	reader, err := udf.NewReader(src, totalSectors)
	if err != nil {
		return nil, fmt.Errorf("failed to open UDF volume: %w", err)
	}
	return &UDFFileSystem{
		udfReader:   reader,
		volumeLabel: reader.GetVolumeLabel(),
		closer:      closer,
		dirCache:    make(map[string]*udf.Directory),
	}, nil
}

// Close releases the underlying source.
func (fs *UDFFileSystem) Close() error {
	fs.dirCache = make(map[string]*udf.Directory)
	if fs.closer == nil {
		return nil
	}
	err := fs.closer.Close()
	fs.closer = nil
	return err
}

// VolumeLabel returns the volume label of the UDF volume.
func (fs *UDFFileSystem) VolumeLabel() string {
	return fs.volumeLabel
}

// IsUDF returns true for UDF file system.
func (fs *UDFFileSystem) IsUDF() bool {
	return true
}

// GetDirectoryInfo returns information about a directory in the volume.
func (fs *UDFFileSystem) GetDirectoryInfo(p string) (DirectoryInfo, error) {
	p = normalizePath(p)

	dir, exists := fs.dirCache[strings.ToUpper(p)]
	if !exists {
		var err error
		dir, err = fs.udfReader.ReadDirectory(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory: %w", err)
		}
		fs.dirCache[strings.ToUpper(p)] = dir
	}

	return &udfDirectoryInfo{
		name:     path.Base(dir.Path()),
		fullPath: dir.Path(),
		fs:       fs,
		dir:      dir,
	}, nil
}

// GetFileInfo returns information about a file in the volume.
func (fs *UDFFileSystem) GetFileInfo(p string) (FileInfo, error) {
	file, err := fs.findFile(p)
	if err != nil {
		return nil, err
	}
	return &udfFileInfo{
		fullPath: path.Join(path.Dir(normalizePath(p)), file.Name),
		file:     file,
	}, nil
}

// OpenBlocks opens a file for sector-addressed reads.
func (fs *UDFFileSystem) OpenBlocks(p string) (BlockFile, error) {
	file, err := fs.findFile(p)
	if err != nil {
		return nil, err
	}
	return udfBlockFile{file}, nil
}

func (fs *UDFFileSystem) findFile(p string) (*udf.File, error) {
	p = normalizePath(p)
	dirInfo, err := fs.GetDirectoryInfo(path.Dir(p))
	if err != nil {
		return nil, err
	}
	dir := dirInfo.(*udfDirectoryInfo)
	files, err := dir.dir.GetFiles()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if strings.EqualFold(f.Name, path.Base(p)) {
			return f, nil
		}
	}
	// Let the reader produce the not-found error so it wraps io/fs.ErrNotExist.
	return fs.udfReader.FindFile(p)
}

// normalizePath normalizes a path for UDF access
func normalizePath(p string) string {
	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" || p == "." {
		return "/"
	}
	return "/" + p
}

type udfBlockFile struct {
	*udf.File
}

func (udfBlockFile) Close() error { return nil }

// udfFileInfo implements FileInfo for files within a UDF volume.
type udfFileInfo struct {
	fullPath string
	file     *udf.File
}

func (f *udfFileInfo) Name() string {
	return f.file.Name
}

func (f *udfFileInfo) FullName() string {
	return f.fullPath
}

func (f *udfFileInfo) Length() int64 {
	return f.file.Size()
}

func (f *udfFileInfo) Extension() string {
	if idx := strings.LastIndex(f.file.Name, "."); idx >= 0 {
		return strings.ToUpper(f.file.Name[idx:])
	}
	return ""
}

func (f *udfFileInfo) ModTime() time.Time {
	return f.file.ModTime()
}

func (f *udfFileInfo) OpenRead() (io.ReadCloser, error) {
	return f.file.Open()
}

// udfDirectoryInfo implements DirectoryInfo for directories within a UDF volume.
type udfDirectoryInfo struct {
	name     string
	fullPath string
	fs       *UDFFileSystem
	dir      *udf.Directory
}

func (d *udfDirectoryInfo) Name() string {
	return d.name
}

func (d *udfDirectoryInfo) FullName() string {
	return d.fullPath
}

func (d *udfDirectoryInfo) GetFiles() ([]FileInfo, error) {
	udfFiles, err := d.dir.GetFiles()
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	for _, udfFile := range udfFiles {
		files = append(files, &udfFileInfo{
			fullPath: path.Join(d.fullPath, udfFile.Name),
			file:     udfFile,
		})
	}
	return files, nil
}

func (d *udfDirectoryInfo) GetDirectories() ([]DirectoryInfo, error) {
	udfDirs, err := d.dir.GetDirectories()
	if err != nil {
		return nil, err
	}

	var dirs []DirectoryInfo
	for _, udfDir := range udfDirs {
		d.fs.dirCache[strings.ToUpper(udfDir.Path())] = udfDir
		dirs = append(dirs, &udfDirectoryInfo{
			name:     udfDir.Name,
			fullPath: udfDir.Path(),
			fs:       d.fs,
			dir:      udfDir,
		})
	}
	return dirs, nil
}

func (d *udfDirectoryInfo) GetFilesPattern(pattern string) ([]FileInfo, error) {
	return filterPattern(d.GetFiles, pattern)
}

func (d *udfDirectoryInfo) GetFile(name string) (FileInfo, error) {
	return findFile(d.GetFiles, name)
}
