package beleg

import (
	"errors"
	"fmt"

	"github.com/zombor/belegflow/internal/preflight"
)

var (
	// ErrNotFound is returned when a document, rule or export does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid marks requests that can never succeed as sent.
	ErrInvalid = errors.New("invalid request")
)

// PreflightError is returned when an export is refused because the
// preflight check found blockers.
type PreflightError struct {
	Result preflight.Result
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("export blocked: %d blocker(s)", len(e.Result.Blockers))
}
