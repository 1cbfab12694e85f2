// Package task defines the unit of work exchanged between the batch
// orchestrator, the worker pool, and the per-task child process.
//
// Failures never travel as Go error values across the process boundary;
// they are tagged results with a classification kind and a human-readable
// message, which is what the ledger and error log record.
package task

import (
	"fmt"
	"time"

	"wavebatch/internal/metadata"
)

// Kind classifies how a task failed. An empty kind means success.
type Kind string

const (
	KindNone            Kind = ""
	KindMissingMetadata Kind = "missing_metadata"
	KindConversion      Kind = "conversion_error"
	KindValidation      Kind = "validation_failed"
	KindTimeout         Kind = "timeout"
	KindWorkerCrash     Kind = "worker_crash"
)

// Spec carries everything the disposable child process needs to run one
// conversion. The metadata row travels with the spec so the child never
// loads the side table itself.
type Spec struct {
	TaskID     string        `json:"task_id"`
	SourcePath string        `json:"source_path"`
	OutputPath string        `json:"output_path"`
	Metadata   *metadata.Row `json:"metadata,omitempty"`
}

// Result is the terminal outcome of one task for the current run.
// Produced exactly once per task; immutable once created.
type Result struct {
	TaskID     string `json:"task_id"`
	OutputPath string `json:"output_path,omitempty"`
	Kind       Kind   `json:"kind,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Failed reports whether the result records a failure.
func (r Result) Failed() bool { return r.Kind != KindNone }

// Success builds a successful result.
func Success(taskID, outputPath string) Result {
	return Result{TaskID: taskID, OutputPath: outputPath}
}

// MissingMetadata builds the failure for a task with no side-table row.
func MissingMetadata(taskID string) Result {
	return Result{TaskID: taskID, Kind: KindMissingMetadata, Error: "Missing metadata row"}
}

// ConversionFailure builds the failure for an error inside the mapping step.
func ConversionFailure(taskID string, cause error) Result {
	return Result{TaskID: taskID, Kind: KindConversion, Error: fmt.Sprintf("ConversionError: %v", cause)}
}

// ValidationFailure builds the failure for a structurally invalid artifact.
func ValidationFailure(taskID, reason string) Result {
	return Result{TaskID: taskID, Kind: KindValidation, Error: "ValidationFailed: " + reason}
}

// Timeout builds the failure for a task killed at its deadline.
func Timeout(taskID string, limit time.Duration) Result {
	return Result{TaskID: taskID, Kind: KindTimeout, Error: fmt.Sprintf("Timeout>%ds", int(limit.Seconds()))}
}

// WorkerCrash builds the failure for an unexpected error at the dispatch
// boundary.
func WorkerCrash(taskID string, cause any) Result {
	return Result{TaskID: taskID, Kind: KindWorkerCrash, Error: fmt.Sprintf("WorkerCrash: %v", cause)}
}
