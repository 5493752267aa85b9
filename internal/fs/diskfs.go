package fs

import (
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const sectorSize = 2048

// DiskFileSystem implements FileSystem over a directory holding VIDEO_TS (or VIDEO_TS itself).
// Lookups ignore case, since extracted discs are often lower-cased.
type DiskFileSystem struct {
	root string
}

// NewDiskFileSystem creates a file system rooted at dir.
func NewDiskFileSystem(dir string) (*DiskFileSystem, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &DiskFileSystem{root: dir}, nil
}

// resolve maps a slash-separated volume path onto the disk, matching each element
// case-insensitively when the exact name does not exist.
func (fs *DiskFileSystem) resolve(p string) (string, error) {
	current := fs.root
	for _, part := range strings.Split(strings.Trim(filepath.ToSlash(p), "/"), "/") {
		if part == "" || part == "." {
			continue
		}
		candidate := filepath.Join(current, part)
		if _, err := os.Lstat(candidate); err == nil {
			current = candidate
			continue
		}
		entries, err := os.ReadDir(current)
		if err != nil {
			return "", err
		}
		found := false
		for _, entry := range entries {
			if strings.EqualFold(entry.Name(), part) {
				current = filepath.Join(current, entry.Name())
				found = true
				break
			}
		}
		if !found {
			return "", fmt.Errorf("%s: %w", p, iofs.ErrNotExist)
		}
	}
	return current, nil
}

// GetDirectoryInfo returns information about a directory on disk.
func (fs *DiskFileSystem) GetDirectoryInfo(path string) (DirectoryInfo, error) {
	full, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	return &diskDirectoryInfo{path: full}, nil
}

// GetFileInfo returns information about a file on disk.
func (fs *DiskFileSystem) GetFileInfo(path string) (FileInfo, error) {
	full, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}
	return &diskFileInfo{path: full, info: info}, nil
}

// OpenBlocks opens a file for sector-addressed reads.
func (fs *DiskFileSystem) OpenBlocks(path string) (BlockFile, error) {
	full, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &diskBlockFile{file: f, size: info.Size()}, nil
}

// VolumeLabel returns "" for disk file systems.
func (fs *DiskFileSystem) VolumeLabel() string {
	return ""
}

// IsUDF returns false for disk file system.
func (fs *DiskFileSystem) IsUDF() bool {
	return false
}

// Close is a no-op; files are opened per request.
func (fs *DiskFileSystem) Close() error {
	return nil
}

// diskBlockFile adapts an os.File to sector reads. The final partial sector is zero padded.
type diskBlockFile struct {
	file *os.File
	size int64
}

func (b *diskBlockFile) Blocks() int64 {
	return (b.size + sectorSize - 1) / sectorSize
}

func (b *diskBlockFile) ReadBlocks(block int64, p []byte) (int, error) {
	if block >= b.Blocks() {
		return 0, io.EOF
	}
	n, err := b.file.ReadAt(p, block*sectorSize)
	if err != nil && err != io.EOF {
		return n, err
	}
	if rem := n % sectorSize; rem != 0 {
		pad := min(sectorSize-rem, len(p)-n)
		clear(p[n : n+pad])
		n += pad
	}
	return n, nil
}

func (b *diskBlockFile) Close() error {
	return b.file.Close()
}

// diskFileInfo implements FileInfo for regular files.
type diskFileInfo struct {
	path string
	info os.FileInfo
}

func (f *diskFileInfo) Name() string {
	return f.info.Name()
}

func (f *diskFileInfo) FullName() string {
	return f.path
}

func (f *diskFileInfo) Length() int64 {
	return f.info.Size()
}

func (f *diskFileInfo) Extension() string {
	return strings.ToUpper(filepath.Ext(f.path))
}

func (f *diskFileInfo) ModTime() time.Time {
	return f.info.ModTime()
}

func (f *diskFileInfo) OpenRead() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// diskDirectoryInfo implements DirectoryInfo for regular directories.
type diskDirectoryInfo struct {
	path string
}

func (d *diskDirectoryInfo) Name() string {
	return filepath.Base(d.path)
}

func (d *diskDirectoryInfo) FullName() string {
	return d.path
}

func (d *diskDirectoryInfo) entries() ([]os.FileInfo, error) {
	dir, err := os.Open(d.path)
	if err != nil {
		return nil, err
	}
	defer dir.Close()
	return dir.Readdir(-1)
}

func (d *diskDirectoryInfo) GetFiles() ([]FileInfo, error) {
	entries, err := d.entries()
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, &diskFileInfo{
			path: filepath.Join(d.path, entry.Name()),
			info: entry,
		})
	}
	return files, nil
}

func (d *diskDirectoryInfo) GetDirectories() ([]DirectoryInfo, error) {
	entries, err := d.entries()
	if err != nil {
		return nil, err
	}

	var dirs []DirectoryInfo
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, &diskDirectoryInfo{
				path: filepath.Join(d.path, entry.Name()),
			})
		}
	}
	return dirs, nil
}

func (d *diskDirectoryInfo) GetFilesPattern(pattern string) ([]FileInfo, error) {
	return filterPattern(d.GetFiles, pattern)
}

func (d *diskDirectoryInfo) GetFile(name string) (FileInfo, error) {
	return findFile(d.GetFiles, name)
}

// filterPattern matches names case-insensitively against an upper-cased pattern.
func filterPattern(list func() ([]FileInfo, error), pattern string) ([]FileInfo, error) {
	files, err := list()
	if err != nil {
		return nil, err
	}
	pattern = strings.ToUpper(pattern)

	var matches []FileInfo
	for _, file := range files {
		matched, err := filepath.Match(pattern, strings.ToUpper(file.Name()))
		if err != nil {
			return nil, err
		}
		if matched {
			matches = append(matches, file)
		}
	}
	return matches, nil
}

func findFile(list func() ([]FileInfo, error), name string) (FileInfo, error) {
	files, err := list()
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if strings.EqualFold(file.Name(), name) {
			return file, nil
		}
	}
	return nil, fmt.Errorf("file not found: %s: %w", name, iofs.ErrNotExist)
}
