package fs

import (
	"io"
	"time"
)

// FileInfo represents information about a file.
// This interface abstracts file operations for both VIDEO_TS directories and UDF volumes.
type FileInfo interface {
	// Name returns the base name of the file.
	Name() string

	// FullName returns the full path of the file.
	FullName() string

	// Length returns the size of the file in bytes.
	Length() int64

	// Extension returns the upper-cased file extension (including the dot).
	Extension() string

	// ModTime returns the modification time.
	ModTime() time.Time

	// OpenRead opens the file for reading.
	OpenRead() (io.ReadCloser, error)
}

// DirectoryInfo represents information about a directory.
type DirectoryInfo interface {
	// Name returns the base name of the directory.
	Name() string

	// FullName returns the full path of the directory.
	FullName() string

	// GetFiles returns all files in the directory.
	GetFiles() ([]FileInfo, error)

	// GetDirectories returns all subdirectories.
	GetDirectories() ([]DirectoryInfo, error)

	// GetFilesPattern returns files matching the given pattern (e.g., "VTS_*_0.IFO").
	GetFilesPattern(pattern string) ([]FileInfo, error)

	// GetFile returns a file by name, ignoring case.
	GetFile(name string) (FileInfo, error)
}

// BlockFile reads a file in whole 2048-byte sectors relative to its start.
type BlockFile interface {
	// ReadBlocks fills p (a multiple of the sector size) starting at block.
	// A short count means the end of the file was reached; (0, io.EOF) past it.
	ReadBlocks(block int64, p []byte) (int, error)

	// Blocks returns the file length in sectors, rounded up.
	Blocks() int64

	Close() error
}

// FileSystem provides an abstraction over the two disc layouts: a UDF volume read through a
// block provider, and an extracted VIDEO_TS directory on disk.
type FileSystem interface {
	// GetDirectoryInfo returns information about a directory.
	GetDirectoryInfo(path string) (DirectoryInfo, error)

	// GetFileInfo returns information about a file. Missing files wrap io/fs.ErrNotExist.
	GetFileInfo(path string) (FileInfo, error)

	// OpenBlocks opens a file for sector-addressed reads.
	OpenBlocks(path string) (BlockFile, error)

	// VolumeLabel returns the volume identifier, or "" when the layout has none.
	VolumeLabel() string

	// IsUDF returns true if files are resolved through a UDF volume.
	IsUDF() bool

	Close() error
}
