// Package pipeline mirrors a source tree into a destination tree,
// watermarking images and copying everything else on a bounded pool of
// workers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/TFMV/filigram/internal/rules"
	"github.com/TFMV/filigram/internal/walk"
	"github.com/TFMV/filigram/internal/watermark"
	"go.uber.org/zap"
)

// Renderer turns the bytes of a source image into the bytes of its
// watermarked copy. *watermark.Renderer implements it.
type Renderer interface {
	Watermark(src []byte, dstPath string) (watermark.Output, error)
}

// Classifier decides which relative paths are watermarked.
// *rules.Classifier implements it.
type Classifier interface {
	Explain(rel string) (rules.Class, rules.Reason)
}

// Outcome is what happened to one entry, as reported to EventFn.
type Outcome string

const (
	OutcomeWatermarked Outcome = "watermarked"
	OutcomeCopied      Outcome = "copied"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeCanceled    Outcome = "canceled"
)

// Event describes one processed entry.
type Event struct {
	Path     string // Relative path
	Class    rules.Class
	Reason   rules.Reason
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// EventFn receives one Event per file, skipped entry or failed directory.
// Calls are serialized, so the function does not need to be thread-safe.
type EventFn func(Event)

// Options configure a Dispatcher.
type Options struct {
	Workers    int // Concurrent workers, defaults to runtime.NumCPU()
	BufferSize int // Queued tasks, defaults to Workers
	Logger     *zap.Logger
	LogLevel   LogLevel // Used when Logger is nil
	Progress   ProgressFn
	OnEvent    EventFn
}

// Dispatcher runs the watermark pipeline. Its renderer and classifier are
// shared read-only by every worker.
type Dispatcher struct {
	renderer   Renderer
	classifier Classifier
	opts       Options
	logger     *zap.Logger
}

// New returns a Dispatcher.
func New(renderer Renderer, classifier Classifier, opts Options) (*Dispatcher, error) {
	if renderer == nil {
		return nil, &SetupError{Op: "config", Err: errors.New("renderer is required")}
	}
	if classifier == nil {
		return nil, &SetupError{Op: "config", Err: errors.New("classifier is required")}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = opts.Workers
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(opts.LogLevel)
	}
	return &Dispatcher{renderer: renderer, classifier: classifier, opts: opts, logger: logger}, nil
}

// record is what the aggregator folds: a task result, a skipped entry, a
// mirrored directory or a failure found while walking.
type record struct {
	result  *TaskResult
	entry   walk.Entry
	skip    string
	failure *TaskError
}

// Run processes every file under src into dst and blocks until all of them
// are done. Problems with the roots are returned as *SetupError before any
// file is touched. Per-file failures are recorded in the Summary and do not
// make Run fail. If ctx is canceled, no new file is started, files in flight
// finish, and the partial Summary is returned with ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, src, dst string) (*Summary, error) {
	defer d.logger.Sync()

	src, dst, err := prepare(src, dst)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.logger.Info("starting run",
		zap.String("source", src),
		zap.String("destination", dst),
		zap.Int("workers", d.opts.Workers),
		zap.Int("buffer_size", d.opts.BufferSize),
	)

	summary := newSummary(src, dst, d.opts.Workers)
	stats := &counters{}
	stopProgress := startProgress(d.opts.Progress, stats, summary.StartedAt)

	tasks := make(chan *FileTask, d.opts.BufferSize)
	records := make(chan record, d.opts.BufferSize)

	var workerWg sync.WaitGroup
	for i := 0; i < d.opts.Workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for task := range tasks {
				records <- record{result: d.execute(ctx, task)}
			}
		}()
	}

	aggregated := make(chan struct{})
	go func() {
		defer close(aggregated)
		for rec := range records {
			d.fold(summary, stats, rec)
		}
	}()

	walker := walk.New(src, walk.Options{Mirror: dst, Logger: d.logger})
	walkErr := walker.Walk(ctx, func(e walk.Entry) error {
		switch {
		case e.Err != nil:
			records <- record{entry: e, failure: &TaskError{Path: e.Rel, Kind: KindIO, Err: e.Err}}
		case e.Kind == walk.KindDir:
			records <- record{entry: e}
		case e.Kind == walk.KindSymlink:
			records <- record{entry: e, skip: "symlink not followed"}
		case e.Kind == walk.KindOther:
			records <- record{entry: e, skip: "not a regular file"}
		default:
			class, reason := d.classifier.Explain(e.Rel)
			task := &FileTask{
				Source:      e.Path,
				Destination: filepath.Join(dst, e.Rel),
				Rel:         e.Rel,
				Class:       class,
				Reason:      reason,
				Info:        e.Info,
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case tasks <- task:
			}
		}
		return nil
	})

	// Join: no more tasks, wait for the workers, then for the aggregator.
	close(tasks)
	workerWg.Wait()
	close(records)
	<-aggregated
	stopProgress()

	// A cancel that lands after the walk is done still leaves tasks unstarted.
	if ctx.Err() != nil && (walkErr != nil || summary.Canceled > 0) {
		summary.Interrupted = true
	}
	summary.finalize()

	d.logger.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("files", summary.Files),
		zap.Int("watermarked", summary.Watermarked),
		zap.Int("copied", summary.Copied),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Bool("interrupted", summary.Interrupted),
		zap.Duration("duration", summary.Duration),
	)

	if summary.Interrupted {
		return summary, ctx.Err()
	}
	if walkErr != nil {
		return summary, walkErr
	}
	return summary, nil
}

// fold is the single place the summary and counters are written.
func (d *Dispatcher) fold(summary *Summary, stats *counters, rec record) {
	var ev Event

	switch {
	case rec.result != nil:
		r := rec.result
		summary.addResult(r)
		ev = Event{Path: r.Task.Rel, Class: r.Task.Class, Reason: r.Task.Reason, Duration: r.Duration}

		stats.bytes.Add(r.BytesRead)
		switch {
		case r.Canceled:
			ev.Outcome = OutcomeCanceled
		case r.State == StateFailed:
			stats.files.Add(1)
			stats.errors.Add(1)
			ev.Outcome, ev.Err = OutcomeFailed, r.Err
			d.logger.Error("file failed",
				zap.String("path", r.Task.Rel),
				zap.String("kind", string(r.Err.Kind)),
				zap.Error(r.Err.Err),
			)
		default:
			stats.files.Add(1)
			if r.Task.Class == rules.Watermarkable {
				stats.watermarked.Add(1)
				ev.Outcome = OutcomeWatermarked
			} else {
				stats.copied.Add(1)
				ev.Outcome = OutcomeCopied
			}
			if r.MetadataErr != nil {
				d.logger.Warn("metadata not preserved", zap.String("path", r.Task.Rel), zap.Error(r.MetadataErr))
			}
		}
		d.logger.Debug("file processed",
			zap.String("path", r.Task.Rel),
			zap.Stringer("class", r.Task.Class),
			zap.String("reason", string(r.Task.Reason)),
			zap.String("outcome", string(ev.Outcome)),
			zap.Duration("duration", r.Duration),
		)

	case rec.failure != nil:
		summary.addFailure(rec.failure)
		stats.errors.Add(1)
		ev = Event{Path: rec.failure.Path, Outcome: OutcomeFailed, Err: rec.failure}
		d.logger.Error("entry failed", zap.String("path", rec.failure.Path), zap.Error(rec.failure.Err))

	case rec.skip != "":
		summary.addSkip(rec.entry.Rel, rec.skip)
		ev = Event{Path: rec.entry.Rel, Outcome: OutcomeSkipped}
		d.logger.Debug("entry skipped", zap.String("path", rec.entry.Rel), zap.String("reason", rec.skip))

	default:
		summary.Directories++
		stats.dirs.Add(1)
		return
	}

	if d.opts.OnEvent != nil {
		d.opts.OnEvent(ev)
	}
}

// execute runs one task. It never panics and never returns an error: every
// problem ends up in the result.
func (d *Dispatcher) execute(ctx context.Context, task *FileTask) (result *TaskResult) {
	if ctx.Err() != nil {
		return &TaskResult{Task: *task, State: task.State(), Canceled: true}
	}

	start := time.Now()
	task.moveTo(StateRunning)
	result = &TaskResult{}

	defer func() {
		if p := recover(); p != nil {
			result.Err = &TaskError{Path: task.Rel, Kind: KindPanic, Err: fmt.Errorf("panic: %v", p)}
		}
		if result.Err != nil {
			task.moveTo(StateFailed)
		} else {
			task.moveTo(StateSucceeded)
		}
		result.State = task.State()
		result.Task = *task
		result.Duration = time.Since(start)
	}()

	if task.Class == rules.Watermarkable {
		d.watermarkFile(task, result)
	} else {
		d.copyFile(task, result)
	}
	return result
}

func (d *Dispatcher) watermarkFile(task *FileTask, result *TaskResult) {
	data, err := os.ReadFile(task.Source)
	if err != nil {
		result.Err = &TaskError{Path: task.Rel, Kind: KindIO, Err: err}
		return
	}
	result.BytesRead = int64(len(data))

	out, err := d.renderer.Watermark(data, task.Destination)
	if err != nil {
		result.Err = &TaskError{Path: task.Rel, Kind: watermarkKind(err), Err: err}
		return
	}
	result.MetadataErr = out.MetadataErr

	if err := os.WriteFile(task.Destination, out.Data, filePerm(task.Info)); err != nil {
		result.Err = &TaskError{Path: task.Rel, Kind: KindIO, Err: err}
		return
	}
	result.BytesWritten = int64(len(out.Data))
}

func (d *Dispatcher) copyFile(task *FileTask, result *TaskResult) {
	n, err := copyContents(task.Source, task.Destination, filePerm(task.Info))
	result.BytesRead, result.BytesWritten = n, n
	if err != nil {
		result.Err = &TaskError{Path: task.Rel, Kind: KindIOCopy, Err: err}
		return
	}
	if task.Info != nil {
		// Keep the modification time, as cp -p would.
		if err := os.Chtimes(task.Destination, time.Now(), task.Info.ModTime()); err != nil {
			result.Err = &TaskError{Path: task.Rel, Kind: KindIOCopy, Err: err}
		}
	}
}

func copyContents(src, dst string, perm os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

func filePerm(info os.FileInfo) os.FileMode {
	if info == nil {
		return 0o644
	}
	return info.Mode().Perm()
}
