package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input that was rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for unknown users and resources.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyCompleted is returned when an activity kind was already credited for the day.
	ErrAlreadyCompleted = errors.New("activity already completed today")
	// ErrAlreadyMinted is returned when the minting authority already recorded the achievement.
	ErrAlreadyMinted = errors.New("achievement already minted")
	// ErrNotEligible is returned when the streak has not reached the achievement threshold.
	ErrNotEligible = errors.New("achievement not unlocked")
	// ErrMintInProgress is returned when another mint for the same user and type holds the lock.
	ErrMintInProgress = errors.New("mint already in progress")
	// ErrForbidden is returned by capability checks.
	ErrForbidden = errors.New("forbidden")
	// ErrExternal wraps failures of the minting authority or points contract.
	ErrExternal = errors.New("external dependency failure")
	// ErrChainDisabled is returned when no minting authority is configured.
	ErrChainDisabled = errors.New("minting authority not configured")
)

// ValidationError carries a message that is surfaced verbatim to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
