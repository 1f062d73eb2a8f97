package kevsync

import "fmt"

// Stage identifies the pipeline stage a sync run is in or failed at.
type Stage int

const (
	StageIdle Stage = iota
	StageFetching
	StageValidating
	StageParsing
	StageReconciling
	StageApplying
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageFetching:
		return "fetching"
	case StageValidating:
		return "validating"
	case StageParsing:
		return "parsing"
	case StageReconciling:
		return "reconciling"
	case StageApplying:
		return "applying"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StageError is a stage-fatal failure; it aborts the run and names the
// stage the underlying error originated from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("sync failed while %s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ApplyError is a single failed upsert or delete. It does not abort the
// run; the remaining operations are still applied.
type ApplyError struct {
	Op  string
	ID  string
	Err error
}

func (e ApplyError) Error() string {
	return fmt.Sprintf("failed to %s %s: %s", e.Op, e.ID, e.Err)
}

func (e ApplyError) Unwrap() error {
	return e.Err
}

// Result summarizes one sync run. A run with a non-empty Failures list
// still completed: the store reflects the feed except for those documents.
type Result struct {
	Processed int
	Upserted  int
	Deleted   int
	Failures  []ApplyError
}
