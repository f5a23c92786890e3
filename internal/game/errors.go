package game

import (
	"errors"
	"fmt"
)

// RoundErrorCode categorizes round errors.
type RoundErrorCode string

const (
	// ErrCodeRoundActive indicates Start was called during a round.
	ErrCodeRoundActive RoundErrorCode = "ROUND_ACTIVE"

	// ErrCodeNoBands indicates Start was called with no registered band.
	ErrCodeNoBands RoundErrorCode = "NO_BANDS"
)

// RoundError is returned when a round cannot be started.
type RoundError struct {
	Code    RoundErrorCode
	Message string
	State   State
}

// Error implements the error interface.
func (e *RoundError) Error() string {
	return fmt.Sprintf("%s: %s (state=%s)", e.Code, e.Message, e.State)
}

// IsRoundActive returns true if err is a ROUND_ACTIVE RoundError.
func IsRoundActive(err error) bool {
	var re *RoundError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRoundActive
	}
	return false
}

// IsNoBands returns true if err is a NO_BANDS RoundError.
func IsNoBands(err error) bool {
	var re *RoundError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoBands
	}
	return false
}

func newRoundActiveError(s State) *RoundError {
	return &RoundError{
		Code:    ErrCodeRoundActive,
		Message: "a round is already in progress",
		State:   s,
	}
}

func newNoBandsError(s State) *RoundError {
	return &RoundError{
		Code:    ErrCodeNoBands,
		Message: "no band registered",
		State:   s,
	}
}
