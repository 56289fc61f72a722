package ir

import (
	"errors"
	"fmt"
)

// DependencyError reports that a definition names a dependency whose compiled
// form is not available in the symbol table being assembled.
//
// It is a per-definition failure: the build pass records it against Key and
// carries on with the remaining definitions.
type DependencyError struct {
	Key        DefinitionKey
	Dependency DefinitionKey
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %q of %q is undefined", e.Dependency, e.Key)
}

// IsDependencyError returns true if err is or wraps a DependencyError.
func IsDependencyError(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}
