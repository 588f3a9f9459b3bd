package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/TFMV/filigram/internal/pipeline"
	"gopkg.in/yaml.v3"
)

var formats = []string{"text", "json", "yaml"}

func validFormat(format string) bool {
	for _, f := range formats {
		if f == format {
			return true
		}
	}
	return false
}

// writeReport prints the summary in the given format.
func writeReport(w io.Writer, s *pipeline.Summary, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		return writeText(w, s)
	default:
		return fmt.Errorf("invalid format: %s", format)
	}
}

func writeText(w io.Writer, s *pipeline.Summary) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\nRun %s: %s -> %s\n", s.RunID, s.Source, s.Destination)
	fmt.Fprintf(&b, "  Files:        %d (%d watermarked, %d copied)\n", s.Files, s.Watermarked, s.Copied)
	fmt.Fprintf(&b, "  Succeeded:    %d\n", s.Succeeded)
	fmt.Fprintf(&b, "  Failed:       %d\n", s.Failed)
	if s.Canceled > 0 {
		fmt.Fprintf(&b, "  Canceled:     %d\n", s.Canceled)
	}
	fmt.Fprintf(&b, "  Skipped:      %d\n", len(s.Skipped))
	fmt.Fprintf(&b, "  Directories:  %d\n", s.Directories)
	fmt.Fprintf(&b, "  Bytes:        %d read, %d written\n", s.BytesRead, s.BytesWritten)
	if s.MetadataWarnings > 0 {
		fmt.Fprintf(&b, "  Metadata:     %d files written without Exif/ICC data\n", s.MetadataWarnings)
	}
	fmt.Fprintf(&b, "  Duration:     %s (%d workers)\n", s.Duration, s.Workers)
	if s.Interrupted {
		b.WriteString("  Interrupted before every file was processed\n")
	}

	if len(s.Failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "  %s [%s] %s\n", f.Path, f.Kind, f.Error)
		}
	}
	if len(s.Skipped) > 0 {
		b.WriteString("\nSkipped:\n")
		for _, sk := range s.Skipped {
			fmt.Fprintf(&b, "  %s (%s)\n", sk.Path, sk.Reason)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// reportFormat picks the report format from the file extension.
func reportFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	case ".txt", "":
		return "text", nil
	default:
		return "", fmt.Errorf("unsupported report extension: %s", filepath.Ext(path))
	}
}

func writeReportFile(path string, s *pipeline.Summary) (err error) {
	format, err := reportFormat(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return writeReport(f, s, format)
}
