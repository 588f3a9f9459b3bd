package cmd

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/TFMV/filigram/internal/pipeline"
	"github.com/TFMV/filigram/internal/watermark"
	"github.com/spf13/viper"
)

func TestSpecFromConfigDefaults(t *testing.T) {
	spec, err := specFromConfig(viper.New())
	if err != nil {
		t.Fatalf("specFromConfig failed: %v", err)
	}
	if !reflect.DeepEqual(spec, watermark.DefaultSpec()) {
		t.Errorf("Expected default spec, got %+v", spec)
	}
}

func TestSpecFromConfig(t *testing.T) {
	v := viper.New()
	v.Set("text", "© Example")
	v.Set("color", "#ffffff80")
	v.Set("angle", 0.0)
	v.Set("y", 42)
	v.Set("opacity", 0.5)
	v.Set("filter", "lanczos")
	v.Set("preserve-metadata", false)

	spec, err := specFromConfig(v)
	if err != nil {
		t.Fatalf("specFromConfig failed: %v", err)
	}
	if spec.Text != "© Example" {
		t.Errorf("Expected text to be set, got %q", spec.Text)
	}
	if spec.Color != (color.NRGBA{R: 255, G: 255, B: 255, A: 128}) {
		t.Errorf("Expected white half-transparent colour, got %v", spec.Color)
	}
	if spec.Angle != 0 || spec.Opacity != 0.5 || spec.Filter != "lanczos" || spec.PreserveMetadata {
		t.Errorf("Unexpected spec: %+v", spec)
	}
	if spec.Position != image.Pt(0, 42) {
		t.Errorf("Expected position (0,42), got %v", spec.Position)
	}
}

func TestSpecFromConfigErrors(t *testing.T) {
	tests := []struct {
		key   string
		value interface{}
	}{
		{"color", "not-a-colour"},
		{"opacity", 3.0},
		{"filter", "bicubic"},
		{"graphic", filepath.Join(os.TempDir(), "does-not-exist.png")},
	}
	for _, tt := range tests {
		v := viper.New()
		v.Set(tt.key, tt.value)
		if _, err := specFromConfig(v); err == nil {
			t.Errorf("Expected error for %s=%v", tt.key, tt.value)
		}
	}
}

func TestRulesFromConfig(t *testing.T) {
	v := viper.New()
	v.Set("extensions", []string{"jpg", "webp"})
	v.Set("exclude-dir", []string{"drafts"})
	v.Set("exclude", []string{"*.bak"})

	r := rulesFromConfig(v)
	if !reflect.DeepEqual(r.Extensions, []string{"jpg", "webp"}) {
		t.Errorf("Unexpected extensions: %v", r.Extensions)
	}
	if !reflect.DeepEqual(r.ExcludeDirs, []string{"drafts"}) {
		t.Errorf("Unexpected exclude dirs: %v", r.ExcludeDirs)
	}
	if len(r.ExcludeFiles) != 0 {
		t.Errorf("Expected no excluded files, got %v", r.ExcludeFiles)
	}
	if !reflect.DeepEqual(r.ExcludePatterns, []string{"*.bak"}) {
		t.Errorf("Unexpected patterns: %v", r.ExcludePatterns)
	}
}

func TestLogLevel(t *testing.T) {
	v := viper.New()
	if got := logLevel(v); got != pipeline.LogLevelInfo {
		t.Errorf("Expected info by default, got %v", got)
	}
	v.Set("silent", true)
	if got := logLevel(v); got != pipeline.LogLevelError {
		t.Errorf("Expected error when silent, got %v", got)
	}
	v.Set("verbose", true)
	if got := logLevel(v); got != pipeline.LogLevelDebug {
		t.Errorf("Expected debug when verbose, got %v", got)
	}
}

func TestCleanDestination(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")
	for _, dir := range []string{src, filepath.Join(dst, "old")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	if err := cleanDestination(src, dst); err != nil {
		t.Fatalf("cleanDestination failed: %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("Expected destination to be removed, got err=%v", err)
	}

	if err := cleanDestination(src, base); err == nil {
		t.Error("Expected refusal to clean a parent of the source")
	}
	if err := cleanDestination(src, src); err == nil {
		t.Error("Expected refusal to clean the source")
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("Expected source to survive, got err=%v", err)
	}
}

func TestCleanDestinationChecksSourceFirst(t *testing.T) {
	base := t.TempDir()
	dst := filepath.Join(base, "dst")
	keep := filepath.Join(dst, "keep.txt")
	if err := os.MkdirAll(dst, 0755); err != nil {
		t.Fatalf("Failed to create %s: %v", dst, err)
	}
	if err := os.WriteFile(keep, []byte("keep"), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", keep, err)
	}
	file := filepath.Join(base, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", file, err)
	}

	err := cleanDestination(filepath.Join(base, "missing"), dst)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist for a missing source, got %v", err)
	}
	if err := cleanDestination(file, dst); !errors.Is(err, pipeline.ErrNotDirectory) {
		t.Errorf("Expected ErrNotDirectory for a file source, got %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("Expected destination to survive, got err=%v", err)
	}
}
