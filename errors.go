package bundle

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	// ErrNotFound is returned by a Resolver when a path cannot be mapped to
	// an asset.
	ErrNotFound = errors.New("asset not found")

	// ErrImmutable is returned by every configuration-mutating call on a
	// Cached view, regardless of arguments.
	ErrImmutable = errors.New("cached environment is immutable")
)

// CircularDependencyError is returned when a path transitively requires
// itself. It is fatal to the build attempt that raised it.
type CircularDependencyError struct {
	Path  string   // the path that closed the cycle
	Chain []string // the active expansion chain, outermost first
}

// Error implements the error interface.
func (e *CircularDependencyError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("circular dependency: %s requires itself", e.Path)
	}
	return fmt.Sprintf("circular dependency: %s required through %s",
		e.Path, strings.Join(e.Chain, " -> "))
}
