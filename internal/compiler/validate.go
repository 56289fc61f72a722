package compiler

import (
	"fmt"

	"github.com/roach88/automata/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrUndefinedDependency = "E101" // uses names a definition that does not exist
	ErrReservedName        = "E102" // definition name collides with a reserved variable
)

// ValidationError represents a manifest validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled manifest for problems the build would only
// report per definition. Returns all errors found (does not fail-fast).
func Validate(m *ir.Manifest) []ValidationError {
	errs := []ValidationError{}

	defined := make(map[ir.DefinitionKey]bool, len(m.Definitions))
	for _, def := range m.Definitions {
		defined[def.Key] = true
	}

	for _, def := range m.Definitions {
		if def.Key == FairVariable {
			errs = append(errs, ValidationError{
				Field:   string(def.Key),
				Message: fmt.Sprintf("%q is reserved for operations and cannot be referenced", FairVariable),
				Code:    ErrReservedName,
			})
		}
		for _, dep := range def.Dependencies {
			if !defined[dep] {
				errs = append(errs, ValidationError{
					Field:   string(def.Key) + ".uses",
					Message: fmt.Sprintf("undefined dependency %q", dep),
					Code:    ErrUndefinedDependency,
				})
			}
		}
	}

	return errs
}
