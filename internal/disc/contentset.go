package disc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
	"github.com/s0up4200/go-dvdinfo/internal/logging"
)

// ErrInvalidCount is returned by ContentSet.ReadBlocks for a non-positive block count.
var ErrInvalidCount = errors.New("disc: block count must be positive")

// ContentSet is a random-access handle into one title set's VOB data. It holds a reference on
// its session's backend, so it stays usable after the session itself is closed.
type ContentSet struct {
	session *Session
	data    *TitleSetData
	logger  *slog.Logger
	closed  bool
}

// OpenContentSet opens the title VOBs of titleSet for random block reads.
func (s *Session) OpenContentSet(titleSet int) (*ContentSet, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	data, err := openTitleSetData(s.fsys, titleSet)
	if err != nil {
		_ = s.release()
		return nil, err
	}
	return &ContentSet{
		session: s,
		data:    data,
		logger:  s.logger.With(logging.Int(logging.FieldTitleSet, titleSet)),
	}, nil
}

// TitleSet returns the title-set number.
func (c *ContentSet) TitleSet() int { return c.data.titleSet }

// Blocks returns the title-set data length in sectors.
func (c *ContentSet) Blocks() int64 { return c.data.Blocks() }

// ReadBlocks reads count sectors starting at start with a single underlying read and copies
// them into dst, truncated to len(dst). It returns 0, nil at the end of the data.
func (c *ContentSet) ReadBlocks(start int64, count int, dst []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if count <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}

	buf := make([]byte, count*blockio.SectorSize)
	n, err := c.data.ReadBlocks(start, buf)
	if n == 0 {
		if err == nil || isEOF(err) {
			return 0, nil
		}
		return 0, err
	}
	if err != nil && !isEOF(err) {
		return 0, err
	}

	copied := copy(dst, buf[:n])
	if copied < n {
		logging.WarnEvent(c.logger, "destination buffer smaller than requested blocks; output truncated", "content_set_truncated",
			logging.Int("requested_bytes", n),
			logging.Int("buffer_bytes", len(dst)),
		)
	}
	return copied, nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// Close releases the title-set data and the session reference. It is idempotent.
func (c *ContentSet) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.data.Close()
	return errors.Join(err, c.session.release())
}
