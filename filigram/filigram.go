// Package filigram copies a directory tree, watermarking the images in it.
//
// This package is the public entry point. It re-exports the types a caller
// needs and wires the classifier, the renderer and the dispatcher together.
package filigram

import (
	"context"
	"image/color"

	"github.com/TFMV/filigram/internal/pipeline"
	"github.com/TFMV/filigram/internal/rules"
	"github.com/TFMV/filigram/internal/watermark"
)

// Re-export the types from the internal packages
type (
	// Rules decide which files are watermarked.
	Rules = rules.Rules

	// Class is the decision for one path.
	Class = rules.Class

	// Reason explains a Class.
	Reason = rules.Reason

	// Spec describes the watermark overlay.
	Spec = watermark.Spec

	// Options configure the worker pool, logging and progress reporting.
	Options = pipeline.Options

	// Summary is the report of one run.
	Summary = pipeline.Summary

	// Failure records one path that could not be processed.
	Failure = pipeline.Failure

	// Skip records an entry that was neither watermarked nor copied.
	Skip = pipeline.Skip

	// Stats is a point-in-time view of a run in progress.
	Stats = pipeline.Stats

	// ProgressFn is called periodically with a Stats snapshot.
	ProgressFn = pipeline.ProgressFn

	// Event describes one processed entry.
	Event = pipeline.Event

	// EventFn receives one Event per processed entry.
	EventFn = pipeline.EventFn

	// Outcome is what happened to one entry.
	Outcome = pipeline.Outcome

	// LogLevel defines the verbosity of logging.
	LogLevel = pipeline.LogLevel

	// FailureKind names why a single file failed.
	FailureKind = pipeline.FailureKind

	// SetupError aborts a run before any file is processed.
	SetupError = pipeline.SetupError

	// TaskError is the failure of one file.
	TaskError = pipeline.TaskError
)

// Re-export all the constants
const (
	// Classes
	Excluded      = rules.Excluded
	Watermarkable = rules.Watermarkable

	// Outcomes
	OutcomeWatermarked = pipeline.OutcomeWatermarked
	OutcomeCopied      = pipeline.OutcomeCopied
	OutcomeFailed      = pipeline.OutcomeFailed
	OutcomeSkipped     = pipeline.OutcomeSkipped
	OutcomeCanceled    = pipeline.OutcomeCanceled

	// Log levels
	LogLevelError = pipeline.LogLevelError
	LogLevelWarn  = pipeline.LogLevelWarn
	LogLevelInfo  = pipeline.LogLevelInfo
	LogLevelDebug = pipeline.LogLevelDebug

	// Failure kinds
	KindDecodeFailed    = pipeline.KindDecodeFailed
	KindInvalidGeometry = pipeline.KindInvalidGeometry
	KindEncodeFailed    = pipeline.KindEncodeFailed
	KindIOCopy          = pipeline.KindIOCopy
	KindIO              = pipeline.KindIO
	KindPanic           = pipeline.KindPanic

	// CanvasSize is the width and height of every watermarked image.
	CanvasSize = watermark.CanvasSize
)

// Re-export the sentinel errors
var (
	ErrNotDirectory            = pipeline.ErrNotDirectory
	ErrDestinationInsideSource = pipeline.ErrDestinationInsideSource
	ErrDecodeFailed            = watermark.ErrDecodeFailed
	ErrInvalidGeometry         = watermark.ErrInvalidGeometry
	ErrEncodeFailed            = watermark.ErrEncodeFailed
)

// DefaultRules returns the rules filigram uses when none are given.
func DefaultRules() Rules {
	return rules.DefaultRules()
}

// DefaultSpec returns the default watermark: a translucent copyright line
// drawn diagonally across the image.
func DefaultSpec() Spec {
	return watermark.DefaultSpec()
}

// ParseColor parses a CSS colour such as "#ffffff80", "white" or "rgba(0, 0, 0, 0.4)".
func ParseColor(s string) (color.NRGBA, error) {
	return watermark.ParseColor(s)
}

// Spread copies src into dst. Images selected by rules are watermarked with
// spec, every other file is copied unchanged.
//
// Invalid rules or spec, and problems with either root, are returned as
// *SetupError before anything is written. Files that fail are listed in the
// Summary; they do not make Spread return an error. When ctx is canceled the
// partial Summary is returned together with ctx.Err().
func Spread(ctx context.Context, src, dst string, spec Spec, r Rules, opts Options) (*Summary, error) {
	classifier, err := rules.NewClassifier(r)
	if err != nil {
		return nil, &SetupError{Op: "config", Err: err}
	}
	renderer, err := watermark.NewRenderer(spec)
	if err != nil {
		return nil, &SetupError{Op: "config", Err: err}
	}
	d, err := pipeline.New(renderer, classifier, opts)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx, src, dst)
}

// Classify reports how rules treat each relative path, without touching the
// filesystem.
func Classify(r Rules, rels ...string) (map[string]Class, error) {
	classifier, err := rules.NewClassifier(r)
	if err != nil {
		return nil, err
	}
	classes := make(map[string]Class, len(rels))
	for _, rel := range rels {
		classes[rel] = classifier.Classify(rel)
	}
	return classes, nil
}
