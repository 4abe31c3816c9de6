package workflow

import "fmt"

// InvariantViolationError signals a workflow programming defect: a stage
// produced no result where one was required, or wrote a result field twice.
// It is never recovered; the run aborts.
type InvariantViolationError struct {
	Msg string
}

func (e *InvariantViolationError) Error() string {
	return "workflow invariant violated: " + e.Msg
}

// WorkflowError is the top-level failure returned by Coordinator.Run when a
// run cannot produce a report at all.
type WorkflowError struct {
	Stage string
	Err   error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("workflow failed at %s: %v", e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
