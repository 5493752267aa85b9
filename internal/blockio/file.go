package blockio

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// FileProvider serves a disc image or an optical block device from the local filesystem.
type FileProvider struct {
	file *os.File
	size int64
}

// OpenFile opens path read-only as a provider.
func OpenFile(path string) (*FileProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("size %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("rewind %s: %w", path, err)
	}
	return &FileProvider{file: f, size: size}, nil
}

func (p *FileProvider) Seek(pos int64) error {
	if _, err := p.file.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("blockio: seek %d: %w", pos, err)
	}
	return nil
}

func (p *FileProvider) Read(buf []byte) (int, error) {
	n, err := io.ReadFull(p.file, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return n, nil
	}
	if errors.Is(err, io.EOF) {
		return 0, io.EOF
	}
	return n, err
}

func (p *FileProvider) ReadVector(bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		n, err := p.Read(b)
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) && total > 0 {
				return total, nil
			}
			return total, err
		}
		if n < len(b) {
			break
		}
	}
	return total, nil
}

// DeviceCommand is not available on plain files.
func (p *FileProvider) DeviceCommand(Opcode, []byte, *int32, uint32) error {
	return ErrUnsupported
}

func (p *FileProvider) BlockSize() int { return SectorSize }

// Size returns the image or device length in bytes.
func (p *FileProvider) Size() int64 { return p.size }

func (p *FileProvider) Close() error {
	return p.file.Close()
}
