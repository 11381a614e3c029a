package service

import "errors"

var (
	// ErrSessionNotFound is returned when a wizard draft is missing or expired.
	ErrSessionNotFound = errors.New("form session not found")

	// ErrSessionIncomplete is returned when a submit is missing required answers.
	ErrSessionIncomplete = errors.New("form session is missing required answers")

	// ErrConsentRequired is returned when a submit lacks the consent flag.
	ErrConsentRequired = errors.New("consent is required")

	// ErrRateLimited is returned when a verification resend limit is hit.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCodeExpired is returned when a verification code is past its TTL.
	ErrCodeExpired = errors.New("verification code expired")

	// ErrTooManyAttempts is returned when the attempt budget is exhausted.
	ErrTooManyAttempts = errors.New("too many verification attempts")

	// ErrInvalidCode is returned on a code mismatch.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrInvalidTransition is returned on a disallowed status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoTherapistAvailable is returned when matching finds no candidate.
	ErrNoTherapistAvailable = errors.New("no therapist available for the requested specialty")

	// ErrMatchNotAccepted is returned when booking against a non-accepted match.
	ErrMatchNotAccepted = errors.New("match is not accepted")
)
