package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/automata/internal/ir"
)

// Stage identifies the part of a cycle that failed.
type Stage string

const (
	// StageCompile is Parser.Compile over the whole source.
	StageCompile Stage = "compile"

	// StageBuild is the coordinator pass over the manifest.
	StageBuild Stage = "build"

	// StageOperations is operation evaluation.
	StageOperations Stage = "operations"
)

// StageError wraps the error that aborted a cycle with the stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// DependencyError is the per-definition failure for an undefined or failed
// dependency. It never aborts a cycle.
type DependencyError = ir.DependencyError

// IsCompileError returns true if err aborted a cycle during compilation.
// Uses errors.As to handle wrapped errors.
func IsCompileError(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage == StageCompile
	}
	return false
}

// IsDependencyError returns true if err is or wraps a DependencyError.
func IsDependencyError(err error) bool {
	return ir.IsDependencyError(err)
}

// IsStage returns true if err is a StageError for the given stage.
func IsStage(err error, stage Stage) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage == stage
	}
	return false
}
