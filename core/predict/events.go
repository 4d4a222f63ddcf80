package predict

import "time"

// Progress is published after every task.
type Progress struct {
	RunID      string
	Index      int
	Total      int
	Time       time.Time
	Mode       Mode
	Convention string
	Samples    int
	Duration   time.Duration
	Err        error
}

// Recorder receives per-task progress, typically for metrics.
type Recorder interface {
	RecordTask(p Progress)
}

// NopRecorder ignores everything.
type NopRecorder struct{}

func (NopRecorder) RecordTask(Progress) {}
