package compile

import (
	"errors"
	"fmt"

	"github.com/rkondo/kaiwa/internal/repair"
)

// CompileFailed reports which stage sank the compile and why. The whole
// compile is all-or-nothing: no partial lesson is ever persisted.
type CompileFailed struct {
	Stage string
	Cause error
}

func (e *CompileFailed) Error() string {
	return fmt.Sprintf("compile failed at stage %q: %v", e.Stage, e.Cause)
}

func (e *CompileFailed) Unwrap() error { return e.Cause }

// Retryable reports whether re-running the compile could plausibly succeed.
// A transient transport error is retryable; an exhausted repair budget means
// the model repeatedly missed the schema and a retry would likely do the
// same.
func (e *CompileFailed) Retryable() bool {
	var exhausted *repair.ErrGenerationExhausted
	return !errors.As(e.Cause, &exhausted)
}
