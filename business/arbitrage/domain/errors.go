package domain

import (
	"errors"

	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

// ScoringUnavailable signals that the scorer could not produce a confidence
// for an opportunity.
type ScoringUnavailable struct {
	Scorer string
	Reason string
	Err    error
}

func (e *ScoringUnavailable) Error() string {
	msg := "scoring unavailable (" + e.Scorer + "): " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScoringUnavailable) Unwrap() error {
	return e.Err
}

// Is matches CodeScoringUnavailable.
func (e *ScoringUnavailable) Is(target error) bool {
	var appErr *apperror.AppError
	return errors.As(target, &appErr) && appErr.Code == apperror.CodeScoringUnavailable
}

// IsScoringUnavailable reports whether err is a ScoringUnavailable.
func IsScoringUnavailable(err error) bool {
	var su *ScoringUnavailable
	return errors.As(err, &su)
}
