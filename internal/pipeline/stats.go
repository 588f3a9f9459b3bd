package pipeline

import (
	"sync/atomic"
	"time"
)

// ProgressFn is called periodically with a snapshot of the run. It is called
// from a single goroutine.
type ProgressFn func(stats Stats)

// Stats is a point-in-time view of a run in progress.
type Stats struct {
	FilesProcessed int64         // Files finished, whatever the outcome
	Watermarked    int64         // Files watermarked
	Copied         int64         // Files copied through
	DirsProcessed  int64         // Directories mirrored
	BytesProcessed int64         // Source bytes read
	ErrorCount     int64         // Failed files and directories
	ElapsedTime    time.Duration // Time since the run started
	AvgFileSize    int64         // Average source file size in bytes
	SpeedMBPerSec  float64       // Source throughput in MB/s
}

// counters is updated by the aggregator and read by the progress ticker.
type counters struct {
	files       atomic.Int64
	watermarked atomic.Int64
	copied      atomic.Int64
	dirs        atomic.Int64
	bytes       atomic.Int64
	errors      atomic.Int64
}

func (c *counters) snapshot(start time.Time) Stats {
	s := Stats{
		FilesProcessed: c.files.Load(),
		Watermarked:    c.watermarked.Load(),
		Copied:         c.copied.Load(),
		DirsProcessed:  c.dirs.Load(),
		BytesProcessed: c.bytes.Load(),
		ErrorCount:     c.errors.Load(),
		ElapsedTime:    time.Since(start),
	}
	s.updateDerivedStats()
	return s
}

// updateDerivedStats calculates averages and speeds.
func (s *Stats) updateDerivedStats() {
	if s.FilesProcessed > 0 {
		s.AvgFileSize = s.BytesProcessed / s.FilesProcessed
	}

	elapsedSec := s.ElapsedTime.Seconds()
	if elapsedSec > 0 && s.BytesProcessed > 0 {
		megabytes := float64(s.BytesProcessed) / (1024.0 * 1024.0)
		s.SpeedMBPerSec = megabytes / elapsedSec
	} else {
		s.SpeedMBPerSec = 0
	}
}

// progressInterval is the time between two ProgressFn calls.
const progressInterval = 500 * time.Millisecond

// startProgress calls fn every progressInterval until the returned stop
// function is called. stop makes one last call and waits for the ticker
// goroutine to exit.
func startProgress(fn ProgressFn, c *counters, start time.Time) (stop func()) {
	if fn == nil {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn(c.snapshot(start))
			}
		}
	}()

	return func() {
		close(done)
		<-exited
		fn(c.snapshot(start))
	}
}
