// Package dvdinfo is the handle-based entry point for hosts that drive the engine through
// integer handles: open a disc, query its catalog, stream titles, read title-set blocks and
// eject the medium.
package dvdinfo

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
	"github.com/s0up4200/go-dvdinfo/internal/catalog"
	"github.com/s0up4200/go-dvdinfo/internal/disc"
	"github.com/s0up4200/go-dvdinfo/internal/ifo"
	"github.com/s0up4200/go-dvdinfo/internal/logging"
	"github.com/s0up4200/go-dvdinfo/internal/registry"
	"github.com/s0up4200/go-dvdinfo/internal/streaming"
)

// Handle identifies an open disc or content set. Valid handles are positive.
type Handle int64

// InvalidHandle is returned by failed opens.
const InvalidHandle Handle = -1

var (
	// ErrInvalidHandle is returned for unknown, stale or non-positive handles.
	ErrInvalidHandle = errors.New("dvdinfo: invalid handle")

	// ErrNotFound is returned when a title, chapter or table does not exist.
	ErrNotFound = errors.New("dvdinfo: not found")

	// ErrBackendIO is returned when the medium could not be read.
	ErrBackendIO = errors.New("dvdinfo: backend I/O error")

	// ErrInvalidDisc is returned when the medium is not a DVD-Video disc.
	ErrInvalidDisc = disc.ErrInvalidDisc

	// ErrUnsupported is returned when the backend lacks an optional capability.
	ErrUnsupported = blockio.ErrUnsupported
)

type (
	Provider      = blockio.Provider
	BlockDevice   = blockio.BlockDevice
	ExecContext   = blockio.ExecContext
	Commander     = blockio.Commander
	Opcode        = blockio.Opcode
	TitleInfo     = catalog.TitleInfo
	ChapterInfo   = catalog.ChapterInfo
	AudioTrack    = catalog.AudioTrack
	SubtitleTrack = catalog.SubtitleTrack
	SectorRange   = catalog.SectorRange
	StreamResult  = streaming.Result
)

// Ranges is the title-set number and ordered cell ranges of a title.
type Ranges struct {
	TitleSet int
	Ranges   []SectorRange
}

// Options configure a Library.
type Options struct {
	// Logger receives engine logs. Nil discards them.
	Logger *slog.Logger
	// Stream configures StreamTitle. Zero fields take the engine defaults.
	Stream streaming.Settings
	// OnProgress, if set, receives streaming progress.
	OnProgress func(streaming.Progress)
}

// Library owns the disc and content-set handle tables. Handle operations are safe for
// concurrent use; a single handle must not be used from several goroutines at once.
type Library struct {
	logger *slog.Logger
	engine *streaming.Engine
	discs  *registry.Registry[*disc.Session]
	sets   *registry.Registry[*disc.ContentSet]
}

// New returns an empty Library.
func New(opts Options) *Library {
	engine := streaming.New(opts.Stream, opts.Logger)
	engine.OnProgress = opts.OnProgress
	return &Library{
		logger: logging.NewComponentLogger(opts.Logger, "dvdinfo"),
		engine: engine,
		discs:  registry.New[*disc.Session](),
		sets:   registry.New[*disc.ContentSet](),
	}
}

// Open opens a disc image, optical device or VIDEO_TS directory.
func (l *Library) Open(path string) (Handle, error) {
	s, err := disc.Open(path, disc.WithLogger(l.logger))
	if err != nil {
		l.logger.Error("open failed", logging.String("path", path), logging.Error(err))
		return InvalidHandle, mapError(err)
	}
	return Handle(l.discs.Insert(s)), nil
}

// OpenProvider opens a disc read through p.
func (l *Library) OpenProvider(p Provider) (Handle, error) {
	s, err := disc.OpenProvider(p, disc.WithLogger(l.logger))
	if err != nil {
		l.logger.Error("open provider failed", logging.Error(err))
		return InvalidHandle, mapError(err)
	}
	return Handle(l.discs.Insert(s)), nil
}

// OpenDevice binds dev and opens the disc on it. ec, if non-nil, is entered around every call
// into dev.
func (l *Library) OpenDevice(dev BlockDevice, ec ExecContext) (Handle, error) {
	b, err := blockio.Bind(dev, blockio.WithExecContext(ec), blockio.WithLogger(l.logger))
	if err != nil {
		return InvalidHandle, mapError(err)
	}
	return l.OpenProvider(b)
}

// Close closes a disc handle. Unknown handles are ignored with a warning.
func (l *Library) Close(h Handle) {
	if err := l.discs.Remove(registry.Handle(h)); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			logging.WarnEvent(l.logger, "close of unknown disc handle ignored", "invalid_handle",
				logging.Int64("handle", int64(h)))
			return
		}
		l.logger.Warn("disc close failed", logging.Int64("handle", int64(h)), logging.Error(err))
	}
}

// Shutdown closes every open content set and disc.
func (l *Library) Shutdown() error {
	return errors.Join(l.sets.CloseAll(), l.discs.CloseAll())
}

func (l *Library) session(h Handle) (*disc.Session, error) {
	s, err := l.discs.Get(registry.Handle(h))
	if err != nil {
		return nil, l.invalidHandle("disc", h)
	}
	return s, nil
}

func (l *Library) invalidHandle(kind string, h Handle) error {
	l.logger.Error("invalid handle",
		logging.String("kind", kind),
		logging.Int64("handle", int64(h)),
		logging.String(logging.FieldEventType, "invalid_handle"),
	)
	return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
}

func (l *Library) catalog(h Handle) (*catalog.Reader, error) {
	s, err := l.session(h)
	if err != nil {
		return nil, err
	}
	return catalog.NewReader(s, s.Logger()), nil
}

// TitleCount returns the number of titles, 0 when the title table is absent.
func (l *Library) TitleCount(h Handle) (int, error) {
	r, err := l.catalog(h)
	if err != nil {
		return -1, err
	}
	return r.TitleCount(), nil
}

// TitleInfo returns chapter count and duration of title n.
func (l *Library) TitleInfo(h Handle, n int) (TitleInfo, error) {
	r, err := l.catalog(h)
	if err != nil {
		return TitleInfo{}, err
	}
	info, err := r.TitleInfo(n)
	return info, mapError(err)
}

// ChapterInfo returns start and duration of chapter c of title n.
func (l *Library) ChapterInfo(h Handle, n, c int) (ChapterInfo, error) {
	r, err := l.catalog(h)
	if err != nil {
		return ChapterInfo{}, err
	}
	info, err := r.ChapterInfo(n, c)
	return info, mapError(err)
}

// AudioTracks returns the audio streams of title n.
func (l *Library) AudioTracks(h Handle, n int) ([]AudioTrack, error) {
	r, err := l.catalog(h)
	if err != nil {
		return nil, err
	}
	tracks, err := r.AudioTracks(n)
	return tracks, mapError(err)
}

// SubtitleTracks returns the subpicture streams of title n.
func (l *Library) SubtitleTracks(h Handle, n int) ([]SubtitleTrack, error) {
	r, err := l.catalog(h)
	if err != nil {
		return nil, err
	}
	tracks, err := r.SubtitleTracks(n)
	return tracks, mapError(err)
}

// DiscName returns the disc name.
func (l *Library) DiscName(h Handle) (string, error) {
	r, err := l.catalog(h)
	if err != nil {
		return "", err
	}
	name, err := r.DiscName()
	return name, mapError(err)
}

// VOBSectorRanges returns the title-set number and valid cell ranges of title n, in the order
// StreamTitle delivers them.
func (l *Library) VOBSectorRanges(h Handle, n int) (Ranges, error) {
	r, err := l.catalog(h)
	if err != nil {
		return Ranges{}, err
	}
	rs, err := r.SectorRanges(n)
	if err != nil {
		return Ranges{}, mapError(err)
	}
	return Ranges{TitleSet: rs.TitleSet, Ranges: rs.Ranges}, nil
}

// StreamTitle writes title n to sink and returns the bytes written. A sink that closes early
// ends the stream without error. On failure the bytes written so far are still returned.
func (l *Library) StreamTitle(ctx context.Context, h Handle, n int, sink io.Writer) (int64, error) {
	s, err := l.session(h)
	if err != nil {
		return -1, err
	}
	res, err := l.engine.StreamTitle(ctx, s, n, sink)
	if err != nil {
		return res.BytesWritten, mapError(err)
	}
	return res.BytesWritten, nil
}

// AuthenticationAvailable reports whether the disc backend exposes the authentication command
// channel. Backends without it report false and streaming still works for unprotected content.
func (l *Library) AuthenticationAvailable(h Handle) (bool, error) {
	s, err := l.session(h)
	if err != nil {
		return false, err
	}
	ok, err := s.AuthenticationAvailable()
	return ok, mapError(err)
}

// OpenContentSet opens the title VOBs of titleSet for random block reads. The content set
// stays usable after its disc handle is closed.
func (l *Library) OpenContentSet(h Handle, titleSet int) (Handle, error) {
	s, err := l.session(h)
	if err != nil {
		return InvalidHandle, err
	}
	cs, err := s.OpenContentSet(titleSet)
	if err != nil {
		return InvalidHandle, mapError(err)
	}
	return Handle(l.sets.Insert(cs)), nil
}

// ReadBlocks reads count blocks starting at start into dst. It returns 0, nil at the end of
// the title-set data.
func (l *Library) ReadBlocks(fh Handle, start int64, count int, dst []byte) (int, error) {
	cs, err := l.sets.Get(registry.Handle(fh))
	if err != nil {
		return -1, l.invalidHandle("content_set", fh)
	}
	n, err := cs.ReadBlocks(start, count, dst)
	if err != nil {
		return -1, mapError(err)
	}
	return n, nil
}

// CloseContentSet closes a content-set handle. Unknown handles are ignored with a warning.
func (l *Library) CloseContentSet(fh Handle) {
	if err := l.sets.Remove(registry.Handle(fh)); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			logging.WarnEvent(l.logger, "close of unknown content set handle ignored", "invalid_handle",
				logging.Int64("handle", int64(fh)))
			return
		}
		l.logger.Warn("content set close failed", logging.Int64("handle", int64(fh)), logging.Error(err))
	}
}

// EjectMedium ejects the medium in the drive at devicePath. It needs no open handle.
func EjectMedium(devicePath string) bool {
	return disc.Eject(devicePath) == nil
}

// mapError folds internal errors into the package sentinels, keeping the cause in the chain.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnsupported),
		errors.Is(err, ErrInvalidDisc),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, ifo.ErrTableAbsent),
		errors.Is(err, iofs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, disc.ErrInvalidCount):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrBackendIO, err)
	}
}
