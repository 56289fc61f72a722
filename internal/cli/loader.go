package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/automata/internal/compiler"
	"github.com/roach88/automata/internal/ir"
)

// LoadError represents an error that occurred while loading a source file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSource reads a source file.
func LoadSource(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("source file not found: %s", path)}
	}
	if err != nil {
		return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing source file: %v", err)}
	}
	if info.IsDir() {
		return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading source file: %v", err)}
	}
	return string(data), nil
}

// CompileFile loads and compiles a source file.
func CompileFile(path string) (*ir.Manifest, string, error) {
	text, err := LoadSource(path)
	if err != nil {
		return nil, "", err
	}
	manifest, err := compiler.NewParser().Compile(text)
	if err != nil {
		return nil, text, convertCompileError(err)
	}
	return manifest, text, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := MapFieldToErrorCode(compileErr.Field)
		if strings.HasPrefix(compileErr.Message, "dependency cycle") {
			code = ErrCodeCycle
		}
		return &LoadError{
			Code:    code,
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // Source read error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeSyntax      = "E006" // CUE syntax or evaluation error
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeConfig      = "E008" // Settings file error
	ErrCodeDatabase    = "E009" // Store error

	// Definition errors
	ErrCodeProcess     = "E010" // Malformed process block or definition name
	ErrCodeTransitions = "E011" // Missing or malformed transitions
	ErrCodeUses        = "E012" // Malformed uses list
	ErrCodeCycle       = "E013" // Dependency cycle
	ErrCodeOperation   = "E014" // Malformed operation list
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeSyntax
	case field == "process":
		return ErrCodeProcess
	case field == "operation":
		return ErrCodeOperation
	case strings.HasSuffix(field, ".uses"):
		return ErrCodeUses
	case strings.HasSuffix(field, ".transitions"):
		return ErrCodeTransitions
	default:
		// A bare definition key means the definition itself is incomplete
		return ErrCodeTransitions
	}
}
