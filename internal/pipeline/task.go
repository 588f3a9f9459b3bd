package pipeline

import (
	"os"
	"time"

	"github.com/TFMV/filigram/internal/rules"
)

// TaskState is the lifecycle of a FileTask. It only moves forward:
// Pending -> Running -> Succeeded or Failed. Failed tasks are not retried.
type TaskState int

const (
	StatePending TaskState = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// canMove reports whether s may transition to next.
func (s TaskState) canMove(next TaskState) bool {
	switch s {
	case StatePending:
		return next == StateRunning
	case StateRunning:
		return next == StateSucceeded || next == StateFailed
	default:
		return false
	}
}

// FileTask is one file to watermark or copy. Each task is executed once,
// by a single worker.
type FileTask struct {
	Source      string // Path in the source tree
	Destination string // Path in the destination tree
	Rel         string // Path relative to both roots
	Class       rules.Class
	Reason      rules.Reason
	Info        os.FileInfo

	state TaskState
}

// State returns the current lifecycle state.
func (t *FileTask) State() TaskState {
	return t.state
}

func (t *FileTask) moveTo(next TaskState) {
	if !t.state.canMove(next) {
		panic("pipeline: invalid task transition " + t.state.String() + " -> " + next.String())
	}
	t.state = next
}

// TaskResult is the outcome of a FileTask.
type TaskResult struct {
	Task         FileTask
	State        TaskState
	Err          *TaskError // Set when State is StateFailed
	MetadataErr  error      // Exif/ICC carry-over problem, the file itself succeeded
	Canceled     bool       // The run was canceled before the task started
	Duration     time.Duration
	BytesRead    int64
	BytesWritten int64
}
