// Package streaming copies the cells of a title from the title-set data to a sink in fixed-size
// sector batches, without buffering the whole title.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
	"github.com/s0up4200/go-dvdinfo/internal/catalog"
	"github.com/s0up4200/go-dvdinfo/internal/disc"
	"github.com/s0up4200/go-dvdinfo/internal/logging"
)

const (
	// BatchSectors is the number of sectors read and written per batch (256 KiB).
	BatchSectors = 128

	// DefaultRetryDelay is the pause before retrying a write that would block.
	DefaultRetryDelay = time.Millisecond

	// DefaultProgressStep is the progress reporting granularity in percent.
	DefaultProgressStep = 5
)

// Policy selects how read failures are handled.
type Policy int

const (
	// PolicyBestEffort logs a failed read, skips one sector and continues.
	PolicyBestEffort Policy = iota
	// PolicyStrict aborts the stream on the first failed read.
	PolicyStrict
)

func (p Policy) String() string {
	switch p {
	case PolicyBestEffort:
		return "best-effort"
	case PolicyStrict:
		return "strict"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts "best-effort" and "strict".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "best-effort", "besteffort":
		return PolicyBestEffort, nil
	case "strict":
		return PolicyStrict, nil
	default:
		return PolicyBestEffort, fmt.Errorf("streaming: unknown read policy %q", s)
	}
}

// Settings configure an Engine.
type Settings struct {
	BatchSectors int
	RetryDelay   time.Duration
	Policy       Policy
	ProgressStep float64
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		BatchSectors: BatchSectors,
		RetryDelay:   DefaultRetryDelay,
		Policy:       PolicyBestEffort,
		ProgressStep: DefaultProgressStep,
	}
}

// Progress is reported each time the streamed share of sectors crosses a progress step.
type Progress struct {
	Title        int
	SectorsDone  int64
	SectorsTotal int64
	BytesWritten int64
	Percent      float64
}

// Result summarizes one stream.
type Result struct {
	TitleSet       int
	BytesWritten   int64
	SectorsRead    int64
	SkippedSectors int64
	// Closed is set when the consumer ended the stream early.
	Closed bool
}

// BlockReader reads title-set relative sectors. *disc.TitleSetData implements it.
type BlockReader interface {
	ReadBlocks(block int64, p []byte) (int, error)
}

// Engine streams titles. It holds no per-stream state and may be reused.
type Engine struct {
	settings Settings
	logger   *slog.Logger

	// OnProgress, if set, is called on the streaming goroutine at each progress step.
	OnProgress func(Progress)
}

// New returns an Engine. Zero fields in settings take their defaults.
func New(settings Settings, logger *slog.Logger) *Engine {
	def := DefaultSettings()
	if settings.BatchSectors <= 0 {
		settings.BatchSectors = def.BatchSectors
	}
	if settings.RetryDelay <= 0 {
		settings.RetryDelay = def.RetryDelay
	}
	if settings.ProgressStep <= 0 {
		settings.ProgressStep = def.ProgressStep
	}
	return &Engine{
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "streaming"),
	}
}

// StreamTitle writes every valid cell of title to sink in playback order.
func (e *Engine) StreamTitle(ctx context.Context, s *disc.Session, title int, sink io.Writer) (Result, error) {
	ranges, err := catalog.NewReader(s, s.Logger()).SectorRanges(title)
	if err != nil {
		return Result{}, err
	}
	return e.streamSession(ctx, s, title, ranges, sink)
}

// StreamChapter writes the valid cells of one chapter of title to sink.
func (e *Engine) StreamChapter(ctx context.Context, s *disc.Session, title, chapter int, sink io.Writer) (Result, error) {
	ranges, err := catalog.NewReader(s, s.Logger()).ChapterRanges(title, chapter)
	if err != nil {
		return Result{}, err
	}
	return e.streamSession(ctx, s, title, ranges, sink)
}

func (e *Engine) streamSession(ctx context.Context, s *disc.Session, title int, ranges catalog.Ranges, sink io.Writer) (Result, error) {
	data, err := s.OpenTitleSetData(ranges.TitleSet)
	if err != nil {
		return Result{TitleSet: ranges.TitleSet}, err
	}
	defer data.Close()

	logger := e.logger.With(logging.String(logging.FieldSession, s.ID()))
	return e.stream(ctx, logger, data, title, ranges, sink)
}

// StreamRanges writes ranges read from data to sink. title is only used for logging and progress.
func (e *Engine) StreamRanges(ctx context.Context, data BlockReader, title int, ranges catalog.Ranges, sink io.Writer) (Result, error) {
	return e.stream(ctx, e.logger, data, title, ranges, sink)
}

func (e *Engine) stream(ctx context.Context, logger *slog.Logger, data BlockReader, title int, ranges catalog.Ranges, sink io.Writer) (Result, error) {
	logger = logger.With(
		logging.Int(logging.FieldTitle, title),
		logging.Int(logging.FieldTitleSet, ranges.TitleSet),
	)
	res := Result{TitleSet: ranges.TitleSet}
	total := ranges.TotalSectors()
	if total == 0 {
		logging.WarnEvent(logger, "title has no playable cells", "empty_title")
		return res, nil
	}

	st := &streamState{
		engine:  e,
		logger:  logger,
		data:    data,
		sink:    sink,
		title:   title,
		total:   total,
		res:     &res,
		sampler: logging.NewProgressSampler(e.settings.ProgressStep),
		buf:     make([]byte, e.settings.BatchSectors*blockio.SectorSize),
	}

	logger.Info("stream started",
		logging.Int64("sectors", total),
		logging.Int("cells", len(ranges.Ranges)),
		logging.String("policy", e.settings.Policy.String()),
	)
	started := time.Now()

	for _, r := range ranges.Ranges {
		done, err := st.copyRange(ctx, r)
		if err != nil {
			logger.Error("stream aborted",
				logging.Error(err),
				logging.Int64("bytes_written", res.BytesWritten),
				logging.String(logging.FieldEventType, "stream_aborted"),
			)
			return res, err
		}
		if done {
			logger.Info("consumer closed stream",
				logging.Int64("bytes_written", res.BytesWritten),
				logging.String(logging.FieldEventType, "consumer_closed"),
			)
			return res, nil
		}
	}

	logger.Info("stream complete",
		logging.String("written", humanize.IBytes(uint64(res.BytesWritten))),
		logging.Int64("bytes_written", res.BytesWritten),
		logging.Int64("skipped_sectors", res.SkippedSectors),
		logging.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

type streamState struct {
	engine  *Engine
	logger  *slog.Logger
	data    BlockReader
	sink    io.Writer
	title   int
	total   int64
	done    int64
	res     *Result
	sampler *logging.ProgressSampler
	buf     []byte
}

// copyRange streams one cell. It reports true when the consumer closed the stream.
func (st *streamState) copyRange(ctx context.Context, r catalog.SectorRange) (bool, error) {
	batch := int64(st.engine.settings.BatchSectors)
	pos := int64(r.First)
	end := int64(r.Last) + 1

	for pos < end {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		count := min(batch, end-pos)
		n, err := st.data.ReadBlocks(pos, st.buf[:count*blockio.SectorSize])
		sectors := int64(n / blockio.SectorSize)

		if sectors > 0 {
			st.res.SectorsRead += sectors
			written, closed, werr := st.engine.write(ctx, st.sink, st.buf[:sectors*blockio.SectorSize])
			st.res.BytesWritten += int64(written)
			if werr != nil {
				return false, werr
			}
			if closed {
				return true, nil
			}
			pos += sectors
			st.advance(sectors)
			continue
		}

		if err == nil || errors.Is(err, io.EOF) {
			// The cell extends past the end of the title-set data.
			remaining := end - pos
			if st.engine.settings.Policy == PolicyStrict {
				return false, fmt.Errorf("streaming: sector %d: %w", pos, io.ErrUnexpectedEOF)
			}
			logging.WarnEvent(st.logger, "cell extends past title-set data; skipping remainder", "cell_truncated",
				logging.Int64("sector", pos),
				logging.Int64("skipped", remaining),
			)
			st.res.SkippedSectors += remaining
			st.advance(remaining)
			return false, nil
		}

		if st.engine.settings.Policy == PolicyStrict {
			return false, fmt.Errorf("streaming: read sector %d: %w", pos, err)
		}
		logging.WarnEvent(st.logger, "read failed; skipping one sector", "read_error_skipped",
			logging.Int64("sector", pos),
			logging.Error(err),
			logging.String(logging.FieldImpact, "one sector missing from output"),
		)
		pos++
		st.res.SkippedSectors++
		st.advance(1)
	}
	return false, nil
}

func (st *streamState) advance(sectors int64) {
	st.done += sectors
	pct := float64(st.done*100) / float64(st.total)
	if !st.sampler.ShouldLog(pct) {
		return
	}
	st.logger.Debug("stream progress",
		logging.Float64("percent", pct),
		logging.Int64("sectors_done", st.done),
		logging.Int64("sectors_total", st.total),
	)
	if st.engine.OnProgress != nil {
		st.engine.OnProgress(Progress{
			Title:        st.title,
			SectorsDone:  st.done,
			SectorsTotal: st.total,
			BytesWritten: st.res.BytesWritten,
			Percent:      pct,
		})
	}
}
