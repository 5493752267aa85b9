// Package catalog answers title, chapter, track and disc-name queries from the DVD-Video
// information files. Every query re-reads the tables it needs; nothing is cached between calls.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/s0up4200/go-dvdinfo/internal/ifo"
	"github.com/s0up4200/go-dvdinfo/internal/logging"
)

// ErrNotFound is returned when a title, chapter or table does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Source supplies information files. *disc.Session implements it.
type Source interface {
	ReadInfoFile(titleSet int) ([]byte, error)
	VolumeLabel() string
}

// Reader runs catalog queries against one disc.
type Reader struct {
	src    Source
	logger *slog.Logger
}

// NewReader returns a Reader over src. A nil logger discards output.
func NewReader(src Source, logger *slog.Logger) *Reader {
	return &Reader{
		src:    src,
		logger: logging.NewComponentLogger(logger, "catalog"),
	}
}

// TitleInfo is the chapter count and playback time of a title's program chain.
type TitleInfo struct {
	Number     int
	TitleSet   int
	Chapters   int
	DurationMs int64
	Angles     int
}

// ChapterInfo is the position of one chapter within its title.
type ChapterInfo struct {
	Number     int
	StartMs    int64
	DurationMs int64
}

// AudioTrack describes one audio stream of a title set.
type AudioTrack struct {
	Index      int
	Language   string
	Codec      string
	Channels   int
	SampleRate int
}

// SubtitleTrack describes one subpicture stream of a title set.
type SubtitleTrack struct {
	Index    int
	Language string
	Kind     string
}

// VolumeInfo summarizes the disc.
type VolumeInfo struct {
	Label     string
	DiscName  string
	TitleSets int
	Titles    int
}

func (r *Reader) vmg() (*ifo.VMG, error) {
	data, err := r.src.ReadInfoFile(0)
	if err != nil {
		return nil, fmt.Errorf("catalog: video manager: %w", err)
	}
	vmg, err := ifo.ParseVMG(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: video manager: %w", err)
	}
	return vmg, nil
}

// TitleCount returns the number of titles, or 0 when the title table is absent or unreadable.
func (r *Reader) TitleCount() int {
	vmg, err := r.vmg()
	if err != nil {
		r.logger.Debug("title count unavailable", logging.Error(err))
		return 0
	}
	n, err := vmg.TitleCount()
	if err != nil {
		r.logger.Debug("title count unavailable", logging.Error(err))
		return 0
	}
	return n
}

// Titles returns every decodable title search entry.
func (r *Reader) Titles() ([]ifo.TitleEntry, error) {
	vmg, err := r.vmg()
	if err != nil {
		return nil, err
	}
	titles, err := vmg.Titles()
	if err != nil {
		if len(titles) == 0 {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		logging.WarnEvent(r.logger, "title table truncated", "title_table_truncated",
			logging.Int("decoded", len(titles)),
			logging.Error(err),
		)
	}
	return titles, nil
}

func (r *Reader) title(n int) (ifo.TitleEntry, error) {
	titles, err := r.Titles()
	if err != nil {
		return ifo.TitleEntry{}, err
	}
	if n < 1 || n > len(titles) {
		return ifo.TitleEntry{}, fmt.Errorf("%w: title %d of %d", ErrNotFound, n, len(titles))
	}
	return titles[n-1], nil
}

func (r *Reader) vts(titleSet int) (*ifo.VTS, error) {
	data, err := r.src.ReadInfoFile(titleSet)
	if err != nil {
		return nil, fmt.Errorf("catalog: title set %d: %w", titleSet, err)
	}
	vts, err := ifo.ParseVTS(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: title set %d: %w", titleSet, err)
	}
	return vts, nil
}

// TitleInfo returns the chapter count and duration of title n.
func (r *Reader) TitleInfo(n int) (TitleInfo, error) {
	res, err := r.Resolve(n)
	if err != nil {
		return TitleInfo{}, err
	}
	return TitleInfo{
		Number:     n,
		TitleSet:   res.TitleSet,
		Chapters:   res.Chain.Programs,
		DurationMs: res.Chain.PlaybackTime.Milliseconds(),
		Angles:     res.Title.Angles,
	}, nil
}

// ChapterInfo returns the start offset and duration of chapter c of title n. Both are sums of
// cell playback times taken from the program map.
func (r *Reader) ChapterInfo(n, c int) (ChapterInfo, error) {
	res, err := r.Resolve(n)
	if err != nil {
		return ChapterInfo{}, err
	}
	return chapterInfo(res.Chain, n, c)
}

// Chapters returns every chapter of title n.
func (r *Reader) Chapters(n int) ([]ChapterInfo, error) {
	res, err := r.Resolve(n)
	if err != nil {
		return nil, err
	}
	chapters := make([]ChapterInfo, 0, res.Chain.Programs)
	for c := 1; c <= res.Chain.Programs; c++ {
		info, err := chapterInfo(res.Chain, n, c)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, info)
	}
	return chapters, nil
}

func chapterInfo(pgc *ifo.ProgramChain, n, c int) (ChapterInfo, error) {
	if c < 1 || c > pgc.Programs {
		return ChapterInfo{}, fmt.Errorf("%w: title %d chapter %d of %d", ErrNotFound, n, c, pgc.Programs)
	}
	first, last, ok := pgc.ChapterCells(c)
	if !ok {
		return ChapterInfo{}, fmt.Errorf("%w: title %d chapter %d has no cells", ErrNotFound, n, c)
	}
	var start int64
	for prev := 1; prev < c; prev++ {
		if f, l, ok := pgc.ChapterCells(prev); ok {
			start += pgc.CellsDuration(f, l)
		}
	}
	return ChapterInfo{
		Number:     c,
		StartMs:    start,
		DurationMs: pgc.CellsDuration(first, last),
	}, nil
}

// AudioTracks returns the audio streams of the title set holding title n.
func (r *Reader) AudioTracks(n int) ([]AudioTrack, error) {
	vts, _, err := r.titleSet(n)
	if err != nil {
		return nil, err
	}
	tracks := make([]AudioTrack, 0, len(vts.Audio))
	for i, a := range vts.Audio {
		tracks = append(tracks, AudioTrack{
			Index:      i,
			Language:   a.Language(),
			Codec:      a.Codec(),
			Channels:   a.Channels(),
			SampleRate: a.SampleRate(),
		})
	}
	return tracks, nil
}

// SubtitleTracks returns the subpicture streams of the title set holding title n.
func (r *Reader) SubtitleTracks(n int) ([]SubtitleTrack, error) {
	vts, _, err := r.titleSet(n)
	if err != nil {
		return nil, err
	}
	tracks := make([]SubtitleTrack, 0, len(vts.Subpictures))
	for i, s := range vts.Subpictures {
		tracks = append(tracks, SubtitleTrack{
			Index:    i,
			Language: s.Language(),
			Kind:     s.Kind(),
		})
	}
	return tracks, nil
}

func (r *Reader) titleSet(n int) (*ifo.VTS, ifo.TitleEntry, error) {
	entry, err := r.title(n)
	if err != nil {
		return nil, entry, err
	}
	vts, err := r.vts(entry.TitleSet)
	if err != nil {
		return nil, entry, err
	}
	return vts, entry, nil
}

// DiscName returns the provider identifier, or the text-data disc name when the identifier is
// blank. ErrNotFound is returned when neither holds anything.
func (r *Reader) DiscName() (string, error) {
	vmg, err := r.vmg()
	if err != nil {
		return "", err
	}
	if name := vmg.ProviderName(); name != "" {
		return name, nil
	}
	name, err := vmg.TextDiscName()
	if err != nil {
		return "", fmt.Errorf("%w: disc name: %w", ErrNotFound, err)
	}
	if name == "" {
		return "", fmt.Errorf("%w: disc name", ErrNotFound)
	}
	return name, nil
}

// VolumeInfo returns the volume label, disc name and table counts.
func (r *Reader) VolumeInfo() (VolumeInfo, error) {
	vmg, err := r.vmg()
	if err != nil {
		return VolumeInfo{}, err
	}
	info := VolumeInfo{
		Label:     r.src.VolumeLabel(),
		TitleSets: int(vmg.TitleSets),
		Titles:    r.TitleCount(),
	}
	if name, err := r.DiscName(); err == nil {
		info.DiscName = name
	}
	return info, nil
}
