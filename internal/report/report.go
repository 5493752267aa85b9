// Package report renders disc summaries as plain text with tables.
package report

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/s0up4200/go-dvdinfo/internal/blockio"
	"github.com/s0up4200/go-dvdinfo/internal/catalog"
	"github.com/s0up4200/go-dvdinfo/internal/util"
)

// Disc is everything a report shows about one disc.
type Disc struct {
	Path      string
	Label     string
	Name      string
	TitleSets int
	Titles    []Title
	// Errors holds per-title query failures; the rest of the report is still produced.
	Errors map[int]string
}

// Title is one title with its chapters, tracks and sector ranges.
type Title struct {
	Info      catalog.TitleInfo
	Chapters  []catalog.ChapterInfo
	Audio     []catalog.AudioTrack
	Subtitles []catalog.SubtitleTrack
	Ranges    catalog.Ranges
}

// SizeBytes returns the byte length of the title's valid cells.
func (t Title) SizeBytes() int64 {
	return t.Ranges.TotalSectors() * blockio.SectorSize
}

// Options control rendering.
type Options struct {
	LanguageNames bool
	HumanSizes    bool
	SummaryOnly   bool
}

// Collect runs every catalog query for the disc. A title whose queries fail is recorded in
// Disc.Errors and left out of Disc.Titles.
func Collect(r *catalog.Reader, path string) (Disc, error) {
	vol, err := r.VolumeInfo()
	if err != nil {
		return Disc{}, err
	}
	d := Disc{
		Path:      path,
		Label:     vol.Label,
		Name:      vol.DiscName,
		TitleSets: vol.TitleSets,
		Errors:    map[int]string{},
	}
	for n := 1; n <= vol.Titles; n++ {
		t, err := CollectTitle(r, n)
		if err != nil {
			d.Errors[n] = err.Error()
			continue
		}
		d.Titles = append(d.Titles, t)
	}
	return d, nil
}

// CollectTitle runs the title-scoped catalog queries for title n.
func CollectTitle(r *catalog.Reader, n int) (Title, error) {
	var t Title
	var err error
	if t.Info, err = r.TitleInfo(n); err != nil {
		return t, err
	}
	if t.Chapters, err = r.Chapters(n); err != nil {
		return t, err
	}
	if t.Audio, err = r.AudioTracks(n); err != nil {
		return t, err
	}
	if t.Subtitles, err = r.SubtitleTracks(n); err != nil {
		return t, err
	}
	if t.Ranges, err = r.SectorRanges(n); err != nil {
		return t, err
	}
	return t, nil
}

// Render returns the full text report.
func Render(d Disc, opts Options) string {
	var b strings.Builder

	if d.Name != "" {
		fmt.Fprintf(&b, "%-16s%s\n", "Disc Name:", d.Name)
	}
	if d.Label != "" {
		fmt.Fprintf(&b, "%-16s%s\n", "Disc Label:", d.Label)
	}
	fmt.Fprintf(&b, "%-16s%s\n", "Source:", d.Path)
	fmt.Fprintf(&b, "%-16s%d\n", "Title Sets:", d.TitleSets)
	fmt.Fprintf(&b, "%-16s%d\n", "Titles:", len(d.Titles)+len(d.Errors))
	b.WriteString("\n")
	b.WriteString(TitlesTable(d.Titles, opts))
	b.WriteString("\n")

	if len(d.Errors) > 0 {
		b.WriteString("\nERRORS:\n\n")
		keys := make([]int, 0, len(d.Errors))
		for n := range d.Errors {
			keys = append(keys, n)
		}
		sort.Ints(keys)
		for _, n := range keys {
			fmt.Fprintf(&b, "Title %d: %s\n", n, d.Errors[n])
		}
	}

	if opts.SummaryOnly {
		return b.String()
	}

	for _, t := range d.Titles {
		fmt.Fprintf(&b, "\nTITLE %d:\n\n", t.Info.Number)
		fmt.Fprintf(&b, "%-16s%d\n", "Title Set:", t.Info.TitleSet)
		fmt.Fprintf(&b, "%-16s%s\n", "Length:", util.FormatMillis(t.Info.DurationMs, true))
		fmt.Fprintf(&b, "%-16s%s\n", "Size:", formatSize(t.SizeBytes(), opts.HumanSizes))
		fmt.Fprintf(&b, "%-16s%d\n", "Angles:", t.Info.Angles)
		if t.Ranges.Fallback {
			fmt.Fprintf(&b, "%-16s%s\n", "Note:", "program chain guessed (first chain of title set)")
		}
		if len(t.Chapters) > 0 {
			b.WriteString("\n")
			b.WriteString(ChaptersTable(t.Chapters))
			b.WriteString("\n")
		}
		if len(t.Audio) > 0 || len(t.Subtitles) > 0 {
			b.WriteString("\n")
			b.WriteString(TracksTable(t.Audio, t.Subtitles, opts))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// WriteReport writes the rendered report to path, or to stdout when path is "-". An existing
// file is moved aside with a timestamp suffix.
func WriteReport(path string, d Disc, opts Options) (string, error) {
	output := Render(d, opts)
	if path == "-" {
		_, err := os.Stdout.WriteString(output)
		return path, err
	}
	if _, err := os.Stat(path); err == nil {
		backup := fmt.Sprintf("%s.%d", path, time.Now().Unix())
		_ = os.Rename(path, backup)
	}
	return path, os.WriteFile(path, []byte(output), 0o644)
}

// TitlesTable renders one row per title.
func TitlesTable(titles []Title, opts Options) string {
	rows := make([][]string, 0, len(titles))
	for _, t := range titles {
		rows = append(rows, []string{
			strconv.Itoa(t.Info.Number),
			strconv.Itoa(t.Info.TitleSet),
			util.FormatMillis(t.Info.DurationMs, false),
			strconv.Itoa(t.Info.Chapters),
			strconv.Itoa(len(t.Audio)),
			strconv.Itoa(len(t.Subtitles)),
			formatSize(t.SizeBytes(), opts.HumanSizes),
		})
	}
	return renderTable(
		[]string{"Title", "Set", "Length", "Chapters", "Audio", "Subs", "Size"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

// ChaptersTable renders chapter start times and lengths.
func ChaptersTable(chapters []catalog.ChapterInfo) string {
	rows := make([][]string, 0, len(chapters))
	for _, c := range chapters {
		rows = append(rows, []string{
			strconv.Itoa(c.Number),
			util.FormatMillis(c.StartMs, true),
			util.FormatMillis(c.DurationMs, true),
		})
	}
	return renderTable([]string{"Chapter", "Start", "Length"}, rows,
		[]columnAlignment{alignRight, alignRight, alignRight})
}

// TracksTable renders audio and subpicture streams in one table.
func TracksTable(audio []catalog.AudioTrack, subs []catalog.SubtitleTrack, opts Options) string {
	rows := make([][]string, 0, len(audio)+len(subs))
	for _, a := range audio {
		rows = append(rows, []string{
			"Audio",
			strconv.Itoa(a.Index),
			languageLabel(a.Language, opts.LanguageNames),
			a.Codec,
			fmt.Sprintf("%d ch / %d Hz", a.Channels, a.SampleRate),
		})
	}
	for _, s := range subs {
		rows = append(rows, []string{
			"Subtitle",
			strconv.Itoa(s.Index),
			languageLabel(s.Language, opts.LanguageNames),
			s.Kind,
			"",
		})
	}
	return renderTable([]string{"Type", "#", "Language", "Format", "Description"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft})
}

// RangesTable renders the sector ranges of a title or chapter.
func RangesTable(r catalog.Ranges) string {
	rows := make([][]string, 0, len(r.Ranges))
	for i, s := range r.Ranges {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatUint(uint64(s.First), 10),
			strconv.FormatUint(uint64(s.Last), 10),
			strconv.FormatInt(s.Sectors(), 10),
		})
	}
	return renderTable([]string{"Range", "First", "Last", "Sectors"}, rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight})
}

// LanguageName returns the English name of a two-letter code, or "" if it is not recognized.
func LanguageName(code string) string {
	if code == "" {
		return ""
	}
	base, err := language.ParseBase(code)
	if err != nil {
		return ""
	}
	return display.English.Languages().Name(base)
}

func languageLabel(code string, names bool) string {
	if code == "" {
		return "-"
	}
	if !names {
		return code
	}
	if name := LanguageName(code); name != "" {
		return fmt.Sprintf("%s (%s)", name, code)
	}
	return code
}

func formatSize(bytes int64, human bool) string {
	if human {
		return humanize.IBytes(uint64(bytes))
	}
	return humanize.Comma(bytes) + " bytes"
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
