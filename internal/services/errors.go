package services

import "errors"

// Failure taxonomy for conversation onboarding. Handlers map all
// foreground kinds to one retryable user-facing response; the distinction
// lives in logs, except ErrPreconditionUnmet which surfaces with its own
// code so the product can explain why.
var (
	// ErrRaceExhausted: the visit-number recount retry also collided.
	ErrRaceExhausted = errors.New("visit number contention not resolved after retry")

	// ErrPreconditionUnmet: too few prior conversations with messages to
	// personalize this session.
	ErrPreconditionUnmet = errors.New("not enough prior conversations for persona generation")

	// ErrGenerationTimedOut: the awaited worker result never appeared
	// within the retry/backoff budget.
	ErrGenerationTimedOut = errors.New("generation result did not arrive in time")

	// ErrPersistence: any other storage fault.
	ErrPersistence = errors.New("persistence failure")
)
