package pipeline

import (
	"sort"
	"time"

	"github.com/TFMV/filigram/internal/rules"
	"github.com/google/uuid"
)

// Failure records one path that could not be processed.
type Failure struct {
	Path  string      `json:"path" yaml:"path"`
	Kind  FailureKind `json:"kind" yaml:"kind"`
	Error string      `json:"error" yaml:"error"`
}

// Skip records an entry that was neither watermarked nor copied.
type Skip struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

// Summary is the report of one run. It is only written by the aggregator
// and is final once Run returns.
type Summary struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	Source      string        `json:"source" yaml:"source"`
	Destination string        `json:"destination" yaml:"destination"`
	Workers     int           `json:"workers" yaml:"workers"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`

	Files            int   `json:"files" yaml:"files"`
	Watermarked      int   `json:"watermarked" yaml:"watermarked"`
	Copied           int   `json:"copied" yaml:"copied"`
	Succeeded        int   `json:"succeeded" yaml:"succeeded"`
	Failed           int   `json:"failed" yaml:"failed"`
	Canceled         int   `json:"canceled" yaml:"canceled"`
	Directories      int   `json:"directories" yaml:"directories"`
	MetadataWarnings int   `json:"metadata_warnings" yaml:"metadata_warnings"`
	BytesRead        int64 `json:"bytes_read" yaml:"bytes_read"`
	BytesWritten     int64 `json:"bytes_written" yaml:"bytes_written"`

	Failures    []Failure `json:"failures" yaml:"failures"`
	Skipped     []Skip    `json:"skipped" yaml:"skipped"`
	Interrupted bool      `json:"interrupted" yaml:"interrupted"`
}

func newSummary(src, dst string, workers int) *Summary {
	return &Summary{
		RunID:       uuid.New().String(),
		Source:      src,
		Destination: dst,
		Workers:     workers,
		StartedAt:   time.Now(),
		Failures:    []Failure{},
		Skipped:     []Skip{},
	}
}

// addResult folds one task result into the summary.
func (s *Summary) addResult(r *TaskResult) {
	s.Files++
	s.BytesRead += r.BytesRead
	s.BytesWritten += r.BytesWritten

	switch {
	case r.Canceled:
		s.Canceled++
	case r.State == StateFailed:
		s.addFailure(r.Err)
	case r.State == StateSucceeded:
		s.Succeeded++
		if r.Task.Class == rules.Watermarkable {
			s.Watermarked++
		} else {
			s.Copied++
		}
		if r.MetadataErr != nil {
			s.MetadataWarnings++
		}
	}
}

func (s *Summary) addFailure(err *TaskError) {
	s.Failed++
	s.Failures = append(s.Failures, Failure{
		Path:  err.Path,
		Kind:  err.Kind,
		Error: err.Err.Error(),
	})
}

func (s *Summary) addSkip(path, reason string) {
	s.Skipped = append(s.Skipped, Skip{Path: path, Reason: reason})
}

// finalize orders the lists so that the report does not depend on worker
// scheduling.
func (s *Summary) finalize() {
	s.Duration = time.Since(s.StartedAt)
	sort.Slice(s.Failures, func(i, j int) bool { return s.Failures[i].Path < s.Failures[j].Path })
	sort.Slice(s.Skipped, func(i, j int) bool { return s.Skipped[i].Path < s.Skipped[j].Path })
}

// OK reports whether every file was processed.
func (s *Summary) OK() bool {
	return s.Failed == 0 && s.Canceled == 0 && !s.Interrupted
}

// FailedPaths lists the relative paths that failed, sorted.
func (s *Summary) FailedPaths() []string {
	paths := make([]string, len(s.Failures))
	for i, f := range s.Failures {
		paths[i] = f.Path
	}
	return paths
}
