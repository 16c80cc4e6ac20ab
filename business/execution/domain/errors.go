package domain

import (
	"errors"

	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

// StaleOpportunity rejects a trade whose source state is too old. It is
// never retried with the same snapshot.
type StaleOpportunity struct {
	Seq    uint64
	Reason string
}

func (e *StaleOpportunity) Error() string {
	return "stale opportunity: " + e.Reason
}

// Is matches CodeStaleOpportunity.
func (e *StaleOpportunity) Is(target error) bool {
	return hasCode(target, apperror.CodeStaleOpportunity)
}

// ExecutionFailure is a permanent rejection: the builder refused the route
// or the transaction landed with an error. It is not retried.
type ExecutionFailure struct {
	Signature string
	Reason    string
}

func (e *ExecutionFailure) Error() string {
	if e.Signature == "" {
		return "execution failure: " + e.Reason
	}
	return "execution failure (" + e.Signature + "): " + e.Reason
}

// Is matches CodeExecutionFailure.
func (e *ExecutionFailure) Is(target error) bool {
	return hasCode(target, apperror.CodeExecutionFailure)
}

// UnconfirmedBroadcast reports a send that failed after the signed
// transaction left the process. It may still land under Signature, so the
// route must be followed, never rebuilt.
type UnconfirmedBroadcast struct {
	Signature string
	Err       error
}

func (e *UnconfirmedBroadcast) Error() string {
	return "broadcast unconfirmed (" + e.Signature + "): " + e.Err.Error()
}

func (e *UnconfirmedBroadcast) Unwrap() error {
	return e.Err
}

// IsExecutionFailure reports whether err is an ExecutionFailure.
func IsExecutionFailure(err error) bool {
	var ef *ExecutionFailure
	return errors.As(err, &ef)
}

func hasCode(target error, code apperror.Code) bool {
	var appErr *apperror.AppError
	return errors.As(target, &appErr) && appErr.Code == code
}
