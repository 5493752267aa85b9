// Package settings holds the CLI configuration: built-in defaults, optionally overridden by a
// TOML file and then by command-line flags.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Stream configures the streaming engine.
type Stream struct {
	BatchSectors int     `toml:"batch_sectors"`
	RetryDelayMS int     `toml:"retry_delay_ms"`
	ReadPolicy   string  `toml:"read_policy"`
	ProgressStep float64 `toml:"progress_step"`
}

// Device configures optical drive access.
type Device struct {
	Path                string `toml:"path"`
	LockDir             string `toml:"lock_dir"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
}

// Logging configures the log handler.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Report configures text reports.
type Report struct {
	LanguageNames bool `toml:"language_names"`
	HumanSizes    bool `toml:"human_sizes"`
}

// Settings is the complete configuration.
type Settings struct {
	Stream  Stream  `toml:"stream"`
	Device  Device  `toml:"device"`
	Logging Logging `toml:"logging"`
	Report  Report  `toml:"report"`
}

func Default() Settings {
	return Settings{
		Stream: Stream{
			BatchSectors: 128,
			RetryDelayMS: 1,
			ReadPolicy:   "best-effort",
			ProgressStep: 5,
		},
		Device: Device{
			Path:                "/dev/sr0",
			LockDir:             filepath.Join(os.TempDir(), "dvdinfo"),
			PollIntervalSeconds: 2,
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
		Report: Report{
			LanguageNames: true,
			HumanSizes:    true,
		},
	}
}

// DefaultPath returns ~/.config/dvdinfo/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dvdinfo", "config.toml"), nil
}

// Load reads path over the defaults. An empty path means DefaultPath. A missing file is not an
// error; exists reports whether one was read.
func Load(path string) (cfg Settings, exists bool, err error) {
	cfg = Default()
	if path == "" {
		if path, err = DefaultPath(); err != nil {
			return cfg, false, err
		}
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, false, nil
		}
		return cfg, false, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, true, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, true, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, true, nil
}

func (s *Settings) normalize() {
	s.Stream.ReadPolicy = strings.ToLower(strings.TrimSpace(s.Stream.ReadPolicy))
	s.Logging.Level = strings.ToLower(strings.TrimSpace(s.Logging.Level))
	s.Logging.Format = strings.ToLower(strings.TrimSpace(s.Logging.Format))
	s.Device.Path = strings.TrimSpace(s.Device.Path)
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if s.Stream.BatchSectors <= 0 || s.Stream.BatchSectors > 4096 {
		return fmt.Errorf("stream.batch_sectors must be between 1 and 4096, got %d", s.Stream.BatchSectors)
	}
	if s.Stream.RetryDelayMS <= 0 {
		return fmt.Errorf("stream.retry_delay_ms must be positive, got %d", s.Stream.RetryDelayMS)
	}
	switch s.Stream.ReadPolicy {
	case "best-effort", "strict":
	default:
		return fmt.Errorf("stream.read_policy must be best-effort or strict, got %q", s.Stream.ReadPolicy)
	}
	if s.Stream.ProgressStep <= 0 || s.Stream.ProgressStep > 100 {
		return fmt.Errorf("stream.progress_step must be in (0, 100], got %g", s.Stream.ProgressStep)
	}
	if s.Device.PollIntervalSeconds <= 0 {
		return fmt.Errorf("device.poll_interval_seconds must be positive, got %d", s.Device.PollIntervalSeconds)
	}
	switch s.Logging.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console or json, got %q", s.Logging.Format)
	}
	return nil
}

// Marshal renders the settings as TOML.
func (s Settings) Marshal() ([]byte, error) {
	return toml.Marshal(s)
}
