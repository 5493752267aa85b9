// Package disc owns the backend of one opened DVD-Video disc: a UDF volume read through a block
// provider, or an extracted VIDEO_TS directory. It exposes raw sector reads, the information
// files and the title-set VOB data to the catalog and streaming layers.
package disc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
	"github.com/s0up4200/go-dvdinfo/internal/fs"
	"github.com/s0up4200/go-dvdinfo/internal/logging"
)

const (
	videoTSDir  = "VIDEO_TS"
	infoMagic   = "DVDVIDEO-"
	maxTitleSet = 99
)

var (
	// ErrInvalidDisc is returned when the backend does not hold a DVD-Video file system.
	ErrInvalidDisc = errors.New("disc: not a DVD-Video disc")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("disc: session closed")

	// ErrLocked is returned when WithLock is used and another process holds the lock.
	ErrLocked = errors.New("disc: locked by another process")
)

// Option configures a Session.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	lockPath string
}

// WithLogger sets the base logger. Sessions log through a "disc" component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithLock takes an exclusive advisory lock on lockPath for the lifetime of the session.
func WithLock(lockPath string) Option {
	return func(o *options) { o.lockPath = lockPath }
}

// Session is one opened disc. It is not safe for concurrent use; content sets opened from it
// share the backend and keep it alive until they are closed.
type Session struct {
	id      string
	source  string
	logger  *slog.Logger
	fsys    fs.FileSystem
	sectors *blockio.SectorReader // nil for directory backends
	lock    *flock.Flock

	mu     sync.Mutex
	refs   int
	closed bool
}

// Open opens a disc image, an optical device, or a directory containing VIDEO_TS.
func Open(path string, opts ...Option) (*Session, error) {
	o := applyOptions(opts)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("disc: %w", err)
	}
	if info.IsDir() {
		root := path
		if strings.EqualFold(filepath.Base(filepath.Clean(path)), videoTSDir) {
			root = filepath.Dir(filepath.Clean(path))
		}
		fsys, err := fs.NewDiskFileSystem(root)
		if err != nil {
			return nil, fmt.Errorf("disc: %w", err)
		}
		return newSession(path, fsys, nil, o)
	}

	fp, err := blockio.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("disc: %w", err)
	}
	s, err := openUDF(path, fp, fp, o)
	if err != nil {
		fp.Close()
		return nil, err
	}
	return s, nil
}

// OpenProvider opens a disc through an external block provider. If p implements io.Closer it
// is closed when the session is released.
func OpenProvider(p blockio.Provider, opts ...Option) (*Session, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrInvalidDisc)
	}
	closer, _ := p.(io.Closer)
	return openUDF("provider", p, closer, applyOptions(opts))
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func openUDF(source string, p blockio.Provider, closer io.Closer, o options) (*Session, error) {
	sr := blockio.NewSectorReader(p)
	fsys, err := fs.NewUDFFileSystem(sr, sr.Sectors(), closer)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDisc, source, err)
	}
	return newSession(source, fsys, sr, o)
}

func newSession(source string, fsys fs.FileSystem, sr *blockio.SectorReader, o options) (*Session, error) {
	s := &Session{
		id:      uuid.NewString(),
		source:  source,
		fsys:    fsys,
		sectors: sr,
		refs:    1,
	}
	s.logger = logging.NewComponentLogger(o.logger, "disc").With(
		logging.String(logging.FieldSession, s.id),
	)

	if _, err := fsys.GetFileInfo(infoFilePath(0, ".IFO")); err != nil {
		if _, bupErr := fsys.GetFileInfo(infoFilePath(0, ".BUP")); bupErr != nil {
			fsys.Close()
			return nil, fmt.Errorf("%w: %s: VIDEO_TS.IFO: %w", ErrInvalidDisc, source, err)
		}
	}

	if o.lockPath != "" {
		lock := flock.New(o.lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			fsys.Close()
			return nil, fmt.Errorf("disc: acquire lock %s: %w", o.lockPath, err)
		}
		if !ok {
			fsys.Close()
			return nil, fmt.Errorf("%w: %s", ErrLocked, o.lockPath)
		}
		s.lock = lock
	}

	s.logger.Debug("disc opened",
		logging.String("source", source),
		logging.Bool("udf", fsys.IsUDF()),
		logging.String("volume", fsys.VolumeLabel()),
	)
	return s, nil
}

// ID returns the session identifier used in log records.
func (s *Session) ID() string { return s.id }

// Logger returns the session's component logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Source returns the path or backend description the session was opened from.
func (s *Session) Source() string { return s.source }

// FileSystem returns the session's file system.
func (s *Session) FileSystem() fs.FileSystem { return s.fsys }

// VolumeLabel returns the UDF volume identifier, or "" for directory backends.
func (s *Session) VolumeLabel() string { return s.fsys.VolumeLabel() }

// Provider returns the block provider, or nil for directory backends.
func (s *Session) Provider() blockio.Provider {
	if s.sectors == nil {
		return nil
	}
	return s.sectors.Provider()
}

// ReadSectors reads whole sectors from the medium by absolute logical block number.
func (s *Session) ReadSectors(lba int64, p []byte) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if s.sectors == nil {
		return 0, fmt.Errorf("disc: raw sector reads on %s: %w", s.source, blockio.ErrUnsupported)
	}
	return s.sectors.ReadSectors(lba, p)
}

// ReadInfoFile returns the contents of VIDEO_TS.IFO (titleSet 0) or VTS_nn_0.IFO. When the
// IFO is missing, unreadable, or lacks the DVDVIDEO identifier the .BUP copy is used.
func (s *Session) ReadInfoFile(titleSet int) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if titleSet < 0 || titleSet > maxTitleSet {
		return nil, fmt.Errorf("disc: title set %d out of range", titleSet)
	}

	data, err := s.readFile(infoFilePath(titleSet, ".IFO"))
	if err == nil && bytes.HasPrefix(data, []byte(infoMagic)) {
		return data, nil
	}
	if err == nil {
		err = fmt.Errorf("missing %s identifier", infoMagic)
	}

	backup, bupErr := s.readFile(infoFilePath(titleSet, ".BUP"))
	if bupErr != nil || !bytes.HasPrefix(backup, []byte(infoMagic)) {
		return nil, fmt.Errorf("disc: read %s: %w", infoFilePath(titleSet, ".IFO"), err)
	}
	logging.WarnEvent(s.logger, "information file unusable; using backup copy", "ifo_backup_used",
		logging.Int(logging.FieldTitleSet, titleSet),
		logging.Error(err),
	)
	return backup, nil
}

func (s *Session) readFile(path string) ([]byte, error) {
	info, err := s.fsys.GetFileInfo(path)
	if err != nil {
		return nil, err
	}
	rc, err := info.OpenRead()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func infoFilePath(titleSet int, ext string) string {
	if titleSet == 0 {
		return videoTSDir + "/VIDEO_TS" + ext
	}
	return fmt.Sprintf("%s/VTS_%02d_0%s", videoTSDir, titleSet, ext)
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// acquire adds a reference that keeps the backend open.
func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.refs++
	return nil
}

// release drops a reference and closes the backend when none remain.
func (s *Session) release() error {
	s.mu.Lock()
	s.refs--
	last := s.refs == 0
	s.mu.Unlock()
	if !last {
		return nil
	}

	var errs []error
	if err := s.fsys.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Debug("disc backend released")
	return errors.Join(errs...)
}

// Close closes the session. It is idempotent; the backend stays open while content sets opened
// from this session are still open.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.release()
}
