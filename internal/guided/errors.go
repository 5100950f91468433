package guided

import "fmt"

// TurnEvaluationFailed means the learner turn was rejected before anything
// was recorded: the session is exactly as it was and the caller should
// resubmit the same turn.
type TurnEvaluationFailed struct {
	Cause error
}

func (e *TurnEvaluationFailed) Error() string {
	return fmt.Sprintf("turn evaluation failed, resubmit the turn: %v", e.Cause)
}

func (e *TurnEvaluationFailed) Unwrap() error { return e.Cause }
