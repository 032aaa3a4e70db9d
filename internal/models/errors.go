package models

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrDataUnavailable  = errors.New("data unavailable")
	ErrSchemaMismatch   = errors.New("feature schema mismatch")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrPersistenceWrite = errors.New("persistence write failed")
)

// DataUnavailableError reports an unreachable, empty or timed-out feed. The run for the
// period is skipped and retried next period.
type DataUnavailableError struct {
	Source string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: data unavailable", e.Source)
	}
	return fmt.Sprintf("%s: data unavailable: %v", e.Source, e.Err)
}

func (e *DataUnavailableError) Unwrap() error        { return e.Err }
func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }

// SchemaMismatchError reports a feature vector that does not match the trained schema.
type SchemaMismatchError struct {
	WantVersion string
	GotVersion  string
	WantArity   int
	GotArity    int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch: model expects %s/%d features, got %s/%d",
		e.WantVersion, e.WantArity, e.GotVersion, e.GotArity)
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// ModelUnavailableError reports that no trained model exists for a sport/version.
type ModelUnavailableError struct {
	Sport   Sport
	Version string
	Err     error
}

func (e *ModelUnavailableError) Error() string {
	msg := fmt.Sprintf("no trained model for %s version %q", e.Sport, e.Version)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelUnavailableError) Unwrap() error        { return e.Err }
func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// PersistenceWriteError reports a failed store commit. Nothing from the run was written.
type PersistenceWriteError struct {
	Document string
	Err      error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Document, e.Err)
}

func (e *PersistenceWriteError) Unwrap() error        { return e.Err }
func (e *PersistenceWriteError) Is(target error) bool { return target == ErrPersistenceWrite }

// Pipeline stages reported by StageError.
const (
	StageLock          = "lock"
	StageLoad          = "load"
	StageFetchSchedule = "fetch_schedule"
	StageFetchOutcomes = "fetch_outcomes"
	StagePredict       = "predict"
	StageReconcile     = "reconcile"
	StageCommit        = "commit"
	StageTrain         = "train"
)

// StageError tags a failure with the pipeline stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with a stage, or returns nil for a nil err.
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage recorded in err's chain, or "" if there is none.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
