package domain

import (
	"errors"
	"fmt"

	"github.com/fd1az/dex-arbitrage/internal/apperror"
)

// DecodeError reports account bytes that cannot become a PoolState.
// It is permanent for the (protocol, version) that produced it.
type DecodeError struct {
	Venue  string
	Layout LayoutKey
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s (%s): %s", e.Venue, e.Layout, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches apperror codes so callers can use errors.Is uniformly.
func (e *DecodeError) Is(target error) bool {
	var appErr *apperror.AppError
	if !errors.As(target, &appErr) {
		return false
	}
	if errors.Is(e.Err, ErrUnsupportedLayout) && appErr.Code == apperror.CodeUnsupportedLayout {
		return true
	}
	return appErr.Code == apperror.CodeDecodeError
}

// NewDecodeError builds a DecodeError.
func NewDecodeError(venue string, key LayoutKey, reason string) *DecodeError {
	return &DecodeError{Venue: venue, Layout: key, Reason: reason}
}

// FetchError reports a transient failure to obtain a target's state.
// It is retried on the next cycle and never becomes a placeholder state.
type FetchError struct {
	TargetID string
	Venue    string
	NotFound bool
	Err      error
}

func (e *FetchError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("fetch %s (%s): account not found", e.TargetID, e.Venue)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.TargetID, e.Venue, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches CodeFetchError and, for missing accounts, CodeAccountNotFound.
func (e *FetchError) Is(target error) bool {
	var appErr *apperror.AppError
	if !errors.As(target, &appErr) {
		return false
	}
	if e.NotFound && appErr.Code == apperror.CodeAccountNotFound {
		return true
	}
	return appErr.Code == apperror.CodeFetchError
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsFetchError reports whether err is (or wraps) a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
