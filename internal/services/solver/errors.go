package solver

import (
	"errors"
	"fmt"
)

// ErrorKind classifies solver failures for the retry policy.
// Terminal errors must never be retried automatically.
type ErrorKind int

const (
	// KindRetryable covers transient service or network conditions
	KindRetryable ErrorKind = iota
	// KindTerminal covers bad credentials, zero balance and unsolvable
	// challenges - retrying cannot help
	KindTerminal
)

// SolveError is a classified failure from the solving service
type SolveError struct {
	Code string
	Kind ErrorKind
	Msg  string
}

func (e *SolveError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("solver: %s (%s)", e.Msg, e.Code)
	}
	return "solver: " + e.Msg
}

// terminalCodes are service error codes that cannot succeed on retry
var terminalCodes = map[string]bool{
	"ERROR_KEY_DOES_NOT_EXIST":  true,
	"ERROR_WRONG_USER_KEY":      true,
	"ERROR_ZERO_BALANCE":        true,
	"ERROR_CAPTCHA_UNSOLVABLE":  true,
	"ERROR_BAD_PARAMETERS":      true,
	"ERROR_PAGEURL":             true,
}

// classify maps a service error code to an error kind
func classify(code string) ErrorKind {
	if terminalCodes[code] {
		return KindTerminal
	}
	return KindRetryable
}

// serviceError builds a SolveError from a service error code
func serviceError(code, description string) *SolveError {
	return &SolveError{
		Code: code,
		Kind: classify(code),
		Msg:  description,
	}
}

// retryableError wraps a transport-level failure as retryable
func retryableError(format string, args ...interface{}) *SolveError {
	return &SolveError{
		Kind: KindRetryable,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// terminalError builds a terminal failure with no service code
func terminalError(format string, args ...interface{}) *SolveError {
	return &SolveError{
		Kind: KindTerminal,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// IsTerminal reports whether err is a terminal solver failure
func IsTerminal(err error) bool {
	var se *SolveError
	if errors.As(err, &se) {
		return se.Kind == KindTerminal
	}
	return false
}
