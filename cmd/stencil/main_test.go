package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/0x5844/stencil2d/internal/config"
	"github.com/0x5844/stencil2d/internal/grid"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if cfg.Grid.Input != "init.dat" || cfg.Grid.Output != config.DefaultOutput {
		t.Errorf("unexpected grid %+v", cfg.Grid)
	}
	if cfg.Run.Steps != config.DefaultSteps || cfg.Run.SubSteps != config.DefaultSubSteps || !cfg.VectorizeEnabled() {
		t.Errorf("unexpected run %+v", cfg.Run)
	}
	if opts.LogFormat != "text" || opts.Compare {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := "grid:\n  generate: uniform\n  width: 40\n  height: 30\nrun:\n  steps: 100\n  substeps: 10\n  threads: 1\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := parseFlags([]string{"-config", path, "-steps", "20", "-vectorize=false"})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if cfg.Run.Steps != 20 {
		t.Errorf("steps flag ignored: %d", cfg.Run.Steps)
	}
	if cfg.Run.SubSteps != 10 || cfg.Grid.Width != 40 || cfg.Grid.Generate != "uniform" {
		t.Errorf("file values lost: %+v %+v", cfg.Run, cfg.Grid)
	}
	if cfg.VectorizeEnabled() {
		t.Error("vectorize flag ignored")
	}
	if cfg.Grid.Input != "" {
		t.Errorf("generated grid should not get an input file, got %q", cfg.Grid.Input)
	}
}

func TestGenerateUsesFlagSize(t *testing.T) {
	cfg, _, err := parseFlags([]string{"-generate", "hotspot"})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if cfg.Grid.Width != 1024 || cfg.Grid.Height != 1024 {
		t.Errorf("expected 1024x1024, got %dx%d", cfg.Grid.Width, cfg.Grid.Height)
	}
}

func TestParseFlagsRejects(t *testing.T) {
	if _, _, err := parseFlags([]string{"-steps", "-4"}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	if _, _, err := parseFlags([]string{"-generate", "noise"}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestMaxAbsDiff(t *testing.T) {
	a, b := grid.NewField(3, 1), grid.NewField(3, 1)
	copy(a.Data, []float32{1, 2, 3})
	copy(b.Data, []float32{1, 2.5, 1})
	if got := maxAbsDiff(a, b); got != 2 {
		t.Errorf("got %v, want 2", got)
	}
}
