package domain

import "errors"

var (
	// ErrPollNotFound is returned when a poll id has no tracking entry,
	// either because it was never tracked or already consumed. Answer
	// handlers absorb it silently.
	ErrPollNotFound = errors.New("poll not tracked")
	// ErrPollAlreadyTracked is returned when a poll id is tracked twice.
	ErrPollAlreadyTracked = errors.New("poll already tracked")
	// ErrNoStats is returned when a user has no stats row yet.
	ErrNoStats = errors.New("no stats recorded for user")
	// ErrQuestionBankEmpty signals the question pool is exhausted. It is a
	// normal terminal state, not a failure.
	ErrQuestionBankEmpty = errors.New("question bank is empty")
	// ErrInvalidAnswerKey indicates a correct-answer marker outside 1-4/A-D.
	ErrInvalidAnswerKey = errors.New("invalid answer key")
	// ErrInvalidSetting indicates a malformed configuration value, e.g. a
	// non-numeric autoquiz interval. Stored state is left untouched.
	ErrInvalidSetting = errors.New("invalid setting value")
	// ErrUnauthorized is returned before any state mutation when a
	// non-admin invokes an admin-only operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRelayUnavailable is returned when no messaging relay is connected.
	ErrRelayUnavailable = errors.New("messaging relay unavailable")
)
