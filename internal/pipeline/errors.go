package pipeline

import (
	"errors"
	"fmt"

	"github.com/TFMV/filigram/internal/watermark"
)

var (
	// ErrNotDirectory is returned when the source root is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrDestinationInsideSource is returned when the destination would be
	// walked as part of the source.
	ErrDestinationInsideSource = errors.New("destination is inside source")
	// ErrNotWritable is returned when the destination cannot be created or
	// written to.
	ErrNotWritable = errors.New("destination not writable")
)

// SetupError aborts a run before any file is processed.
type SetupError struct {
	Op   string // "source", "destination" or "config"
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("setup %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("setup %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// FailureKind names why a single file failed.
type FailureKind string

const (
	KindDecodeFailed    FailureKind = "DecodeFailed"
	KindInvalidGeometry FailureKind = "InvalidGeometry"
	KindEncodeFailed    FailureKind = "EncodeFailed"
	KindIOCopy          FailureKind = "IOCopyError" // pass-through copy failed
	KindIO              FailureKind = "IOError"     // reading, writing or walking failed
	KindPanic           FailureKind = "Panic"
)

// TaskError is the failure of one file. It never aborts the run.
type TaskError struct {
	Path string // Relative path
	Kind FailureKind
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// watermarkKind maps an error from the watermark path to its kind.
func watermarkKind(err error) FailureKind {
	switch {
	case errors.Is(err, watermark.ErrDecodeFailed):
		return KindDecodeFailed
	case errors.Is(err, watermark.ErrInvalidGeometry):
		return KindInvalidGeometry
	case errors.Is(err, watermark.ErrEncodeFailed):
		return KindEncodeFailed
	default:
		return KindIO
	}
}
