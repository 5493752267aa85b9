package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate(): %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("exists=true for a missing file")
	}
	if cfg != Default() {
		t.Fatalf("cfg=%+v want defaults", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[stream]
read_policy = "Strict"
batch_sectors = 64

[device]
path = "/dev/sr1"

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatalf("exists=false")
	}
	if cfg.Stream.ReadPolicy != "strict" || cfg.Stream.BatchSectors != 64 {
		t.Fatalf("stream=%+v", cfg.Stream)
	}
	if cfg.Device.Path != "/dev/sr1" || cfg.Logging.Format != "json" {
		t.Fatalf("device=%+v logging=%+v", cfg.Device, cfg.Logging)
	}
	if cfg.Stream.RetryDelayMS != 1 || cfg.Logging.Level != "info" {
		t.Fatalf("unset fields lost their defaults: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"policy":  "[stream]\nread_policy = \"sometimes\"\n",
		"batch":   "[stream]\nbatch_sectors = 0\n",
		"format":  "[logging]\nformat = \"xml\"\n",
		"unknown": "[stream]\nbogus = 1\n",
		"syntax":  "[stream\n",
	}
	for name, contents := range tests {
		path := filepath.Join(t.TempDir(), name+".toml")
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := Load(path); err == nil {
			t.Errorf("%s: Load accepted invalid config", name)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), "read_policy") || !strings.Contains(string(data), "best-effort") {
		t.Fatalf("marshalled config missing read_policy:\n%s", data)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := Load(path)
	if err != nil || cfg != Default() {
		t.Fatalf("Load(marshalled)=%+v, %v", cfg, err)
	}
}
