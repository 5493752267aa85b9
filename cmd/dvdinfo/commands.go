package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/go-dvdinfo/internal/catalog"
	"github.com/s0up4200/go-dvdinfo/internal/disc"
	"github.com/s0up4200/go-dvdinfo/internal/report"
)

// maxConcurrentScans bounds how many discs the titles command opens at once.
const maxConcurrentScans = 4

func (a *app) reportOptions() report.Options {
	return report.Options{
		LanguageNames: a.cfg.Report.LanguageNames,
		HumanSizes:    a.cfg.Report.HumanSizes,
	}
}

// withCatalog opens path and runs fn against its catalog.
func (a *app) withCatalog(path string, fn func(*disc.Session, *catalog.Reader) error) error {
	s, err := disc.Open(path, disc.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s, catalog.NewReader(s, a.logger))
}

func newInfoCmd(a *app) *cobra.Command {
	var (
		output      string
		summaryOnly bool
	)
	cmd := &cobra.Command{
		Use:   "info <path>",
		Short: "Print a full report for a disc, image or VIDEO_TS directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withCatalog(args[0], func(_ *disc.Session, r *catalog.Reader) error {
				d, err := report.Collect(r, args[0])
				if err != nil {
					return err
				}
				opts := a.reportOptions()
				opts.SummaryOnly = summaryOnly
				if output == "" {
					_, err := io.WriteString(cmd.OutOrStdout(), report.Render(d, opts))
					return err
				}
				written, err := report.WriteReport(output, d, opts)
				if err != nil {
					return err
				}
				if written != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", written)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file (\"-\" for stdout)")
	cmd.Flags().BoolVarP(&summaryOnly, "summary", "m", false, "Only print the disc summary and title table")
	return cmd
}

type scanResult struct {
	disc report.Disc
	err  error
}

func newTitlesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "titles <path>...",
		Short: "List the titles of one or more discs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]scanResult, len(args))

			var g errgroup.Group
			g.SetLimit(maxConcurrentScans)
			for i, path := range args {
				g.Go(func() error {
					results[i].err = a.withCatalog(path, func(_ *disc.Session, r *catalog.Reader) error {
						d, err := report.Collect(r, path)
						results[i].disc = d
						return err
					})
					return nil
				})
			}
			_ = g.Wait()

			out := cmd.OutOrStdout()
			var failed []string
			for i, res := range results {
				if i > 0 {
					fmt.Fprintln(out)
				}
				if res.err != nil {
					a.logger.Error("scan failed", "path", args[i], "error", res.err)
					failed = append(failed, args[i])
					continue
				}
				fmt.Fprintf(out, "%-16s%s\n", "Source:", args[i])
				if res.disc.Name != "" {
					fmt.Fprintf(out, "%-16s%s\n", "Disc Name:", res.disc.Name)
				}
				fmt.Fprintln(out, report.TitlesTable(res.disc.Titles, a.reportOptions()))
			}
			if len(failed) > 0 {
				return fmt.Errorf("failed to scan: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

func newChaptersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chapters <path> <title>",
		Short: "List the chapters of a title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := parsePositive("title", args[1])
			if err != nil {
				return err
			}
			return a.withCatalog(args[0], func(_ *disc.Session, r *catalog.Reader) error {
				chapters, err := r.Chapters(title)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.ChaptersTable(chapters))
				return nil
			})
		},
	}
}

func newTracksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tracks <path> <title>",
		Short: "List the audio and subpicture tracks of a title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := parsePositive("title", args[1])
			if err != nil {
				return err
			}
			return a.withCatalog(args[0], func(_ *disc.Session, r *catalog.Reader) error {
				audio, err := r.AudioTracks(title)
				if err != nil {
					return err
				}
				subs, err := r.SubtitleTracks(title)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.TracksTable(audio, subs, a.reportOptions()))
				return nil
			})
		},
	}
}

func newRangesCmd(a *app) *cobra.Command {
	var chapter int
	cmd := &cobra.Command{
		Use:   "ranges <path> <title>",
		Short: "Print the VOB sector ranges of a title or chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := parsePositive("title", args[1])
			if err != nil {
				return err
			}
			return a.withCatalog(args[0], func(_ *disc.Session, r *catalog.Reader) error {
				var ranges catalog.Ranges
				if chapter > 0 {
					ranges, err = r.ChapterRanges(title, chapter)
				} else {
					ranges, err = r.SectorRanges(title)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.RangesTable(ranges))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&chapter, "chapter", 0, "Only print the ranges of this chapter")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
