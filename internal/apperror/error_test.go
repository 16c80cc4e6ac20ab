package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Is(t *testing.T) {
	err := New(CodeDecodeError, WithContext("venue=orca"))

	if !errors.Is(err, New(CodeDecodeError)) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, New(CodeFetchError)) {
		t.Error("errors.Is should not match a different code")
	}

	wrapped := fmt.Errorf("cycle 7: %w", err)
	if !errors.Is(wrapped, New(CodeDecodeError)) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestHasCode(t *testing.T) {
	inner := New(CodeAccountNotFound)
	outer := New(CodeFetchError, WithCause(inner))

	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{name: "outer_code", err: outer, code: CodeFetchError, want: true},
		{name: "cause_code", err: outer, code: CodeAccountNotFound, want: true},
		{name: "absent_code", err: outer, code: CodeDecodeError, want: false},
		{name: "plain_error", err: errors.New("boom"), code: CodeFetchError, want: false},
		{name: "nil_error", err: nil, code: CodeFetchError, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_DefaultStatusCode(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeAccountNotFound, http.StatusNotFound},
		{CodeInvalidConfig, http.StatusBadRequest},
		{CodeServiceTimeout, http.StatusServiceUnavailable},
		{CodeRateLimitExceeded, http.StatusTooManyRequests},
		{CodeScoringUnavailable, http.StatusServiceUnavailable},
		{CodeExecutionFailure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code).StatusCode; got != tt.want {
				t.Errorf("StatusCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "code_only",
			err:  New(CodeStoreError),
			want: "STORE_ERROR: Persistence error",
		},
		{
			name: "with_context_and_cause",
			err:  New(CodeDecodeError, WithContext("orca"), WithCause(errors.New("short buffer"))),
			want: "DECODE_ERROR: Failed to decode pool account (orca): short buffer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
