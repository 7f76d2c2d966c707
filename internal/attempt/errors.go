package attempt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownQuestion  = errors.New("question is not part of this attempt")
	ErrWrongKind        = errors.New("answer does not match question type")
	ErrInvalidOption    = errors.New("option index out of range")
	ErrIndexOutOfRange  = errors.New("question index out of range")
	ErrLastQuestion     = errors.New("already on the last question")
	ErrInvalidState     = errors.New("operation not allowed in current state")
	ErrAlreadyAttempted = errors.New("assignment already attempted")
	ErrNotReady         = errors.New("attempt is not ready for submission")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrSessionClosed    = errors.New("attempt session is closed")
	ErrSessionNotFound  = errors.New("attempt session not found")
	ErrForbidden        = errors.New("attempt session belongs to another user")
)

// MissingAnswersError rejects a submit that fails the completeness gate.
// It is produced locally and never reaches the network.
type MissingAnswersError struct {
	QuestionIDs []string
}

func (e *MissingAnswersError) Error() string {
	return fmt.Sprintf("please answer all questions: %d missing (%s)",
		len(e.QuestionIDs), strings.Join(e.QuestionIDs, ", "))
}

// LoadError reports which of the two load calls failed. Either field may be
// nil; at least one is set.
type LoadError struct {
	Questions error
	AttemptID error
}

func (e *LoadError) Error() string {
	var parts []string
	if e.Questions != nil {
		parts = append(parts, "questions: "+e.Questions.Error())
	}
	if e.AttemptID != nil {
		parts = append(parts, "attempt id: "+e.AttemptID.Error())
	}
	return "load attempt: " + strings.Join(parts, "; ")
}

func (e *LoadError) Unwrap() []error {
	var errs []error
	if e.Questions != nil {
		errs = append(errs, e.Questions)
	}
	if e.AttemptID != nil {
		errs = append(errs, e.AttemptID)
	}
	return errs
}

// EvaluationError wraps a failed evaluate call. The session stays
// resubmittable and keeps every answer.
type EvaluationError struct {
	Err error
}

func (e *EvaluationError) Error() string { return "evaluate attempt: " + e.Err.Error() }
func (e *EvaluationError) Unwrap() error { return e.Err }
