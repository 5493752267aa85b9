package blockio

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// SectorReader issues DVD-sector addressed reads against a Provider.
// Seek and read are performed as one step under a lock so several readers
// (a session and its content sets) can share the provider cursor.
type SectorReader struct {
	mu sync.Mutex
	p  Provider
}

// NewSectorReader wraps p.
func NewSectorReader(p Provider) *SectorReader {
	return &SectorReader{p: p}
}

// Provider returns the wrapped provider.
func (r *SectorReader) Provider() Provider { return r.p }

// ReadSectors reads len(buf)/SectorSize sectors starting at lba. len(buf) must be a
// multiple of SectorSize. A short count is returned at the end of the medium and
// 0, io.EOF when lba is past it.
func (r *SectorReader) ReadSectors(lba int64, buf []byte) (int, error) {
	if len(buf)%SectorSize != 0 {
		return 0, fmt.Errorf("blockio: buffer length %d is not a multiple of %d", len(buf), SectorSize)
	}
	if lba < 0 {
		return 0, fmt.Errorf("blockio: negative lba %d", lba)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.p.Seek(lba * SectorSize); err != nil {
		return 0, err
	}
	total := 0
	for total < len(buf) {
		n, err := r.p.Read(buf[total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// Sectors returns the medium length in sectors, or 0 when the provider cannot tell.
func (r *SectorReader) Sectors() int64 {
	if s, ok := r.p.(Sizer); ok {
		return s.Size() / SectorSize
	}
	return 0
}
