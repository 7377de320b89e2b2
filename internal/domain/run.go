package domain

import "time"

// RunState represents the lifecycle state of a harvest run.
// Transitions are strictly Idle -> Running -> Draining -> Stopped.
type RunState int32

const (
	StateIdle RunState = iota
	StateRunning
	StateDraining
	StateStopped
)

// String returns the lowercase state name for logs.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// RunStats holds counters for a harvest run.
type RunStats struct {
	Scanned   int64 // rows read from the source
	Filtered  int64 // rows rejected by keyword or dimension filters
	Attempted int64 // rows handed to the worker pool
	Kept      int64
	Duplicate int64
	Failed    int64
	Bytes     int64 // total size of kept images
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the wall-clock time of the run.
func (s *RunStats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
