package services

import "errors"

// Invariant violations: the caller asked for something the campaign state cannot allow.
var (
	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrActionNotFound     = errors.New("action not found")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrCampaignTerminal   = errors.New("campaign is in a terminal state")
	ErrCampaignNotRunning = errors.New("campaign is not running")
	ErrRetryExhausted     = errors.New("action cannot be retried")
	ErrPhaseClosed        = errors.New("phase already completed")
)

var (
	// ErrValidation marks bad input on create/submit/approve.
	ErrValidation = errors.New("validation failed")
	// ErrStorage wraps persistence failures. The transition that hit it did not happen.
	ErrStorage = errors.New("storage failure")
)

var invariantErrors = []error{
	ErrCampaignNotFound,
	ErrActionNotFound,
	ErrInvalidTransition,
	ErrCampaignTerminal,
	ErrCampaignNotRunning,
	ErrRetryExhausted,
	ErrPhaseClosed,
}

// IsInvariantViolation reports whether err means the campaign state forbids the call.
func IsInvariantViolation(err error) bool {
	for _, target := range invariantErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
