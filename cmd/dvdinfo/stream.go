package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/s0up4200/go-dvdinfo/internal/disc"
	"github.com/s0up4200/go-dvdinfo/internal/streaming"
)

type streamOptions struct {
	output  string
	chapter int
	strict  bool
	lock    bool
}

func newStreamCmd(a *app) *cobra.Command {
	var opts streamOptions
	cmd := &cobra.Command{
		Use:   "stream <path> <title>",
		Short: "Write the VOB data of a title or chapter to a file or stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, err := parsePositive("title", args[1])
			if err != nil {
				return err
			}
			return a.runStream(cmd, args[0], title, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "-", "Output file (\"-\" for stdout)")
	flags.IntVar(&opts.chapter, "chapter", 0, "Only stream this chapter")
	flags.BoolVar(&opts.strict, "strict", false, "Abort on the first unreadable sector")
	flags.BoolVar(&opts.lock, "lock", false, "Hold an exclusive lock on the source while streaming")
	return cmd
}

func (a *app) runStream(cmd *cobra.Command, path string, title int, opts streamOptions) (err error) {
	cfg, err := a.streamSettings()
	if err != nil {
		return err
	}
	if opts.strict {
		cfg.Policy = streaming.PolicyStrict
	}

	discOpts := []disc.Option{disc.WithLogger(a.logger)}
	if opts.lock {
		lockPath, err := lockFilePath(a.cfg.Device.LockDir, path)
		if err != nil {
			return err
		}
		discOpts = append(discOpts, disc.WithLock(lockPath))
	}

	s, err := disc.Open(path, discOpts...)
	if err != nil {
		return err
	}
	defer s.Close()

	sink, err := openSink(cmd, opts.output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", opts.output, cerr)
		}
	}()

	engine := streaming.New(cfg, a.logger)
	if isTerminal(cmd.ErrOrStderr()) {
		engine.OnProgress = func(p streaming.Progress) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\rTitle %d: %3.0f%% (%s)", p.Title, p.Percent, humanize.IBytes(uint64(p.BytesWritten)))
		}
	}

	var res streaming.Result
	if opts.chapter > 0 {
		res, err = engine.StreamChapter(cmd.Context(), s, title, opts.chapter, sink)
	} else {
		res, err = engine.StreamTitle(cmd.Context(), s, title, sink)
	}
	if engine.OnProgress != nil {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return fmt.Errorf("stream title %d: %w", title, err)
	}
	if res.SkippedSectors > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %d unreadable sectors\n", res.SkippedSectors)
	}
	return nil
}

// createOutput opens the -o destination.
var createOutput = func(name string) (io.WriteCloser, error) { return os.Create(name) }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// openSink returns the output writer. Writes to a closed stdout pipe surface as EPIPE so the
// engine can stop cleanly.
func openSink(cmd *cobra.Command, output string) (io.WriteCloser, error) {
	if output == "" || output == "-" {
		signal.Ignore(syscall.SIGPIPE)
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	return createOutput(output)
}

var lockNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// lockFilePath maps a source path to a lock file under dir.
func lockFilePath(dir, source string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create lock dir: %w", err)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	name := strings.Trim(lockNameRe.ReplaceAllString(abs, "_"), "_")
	if name == "" {
		name = "disc"
	}
	return filepath.Join(dir, name+".lock"), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
