package domain

import "errors"

var (
	// ErrProfileNotFound is returned when no profile exists for a player id.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists is returned when creating a profile that is already stored.
	ErrProfileExists = errors.New("profile already exists")

	// ErrMatchNotFound indicates no match exists for the given id or join code.
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchUnavailable is returned when a match is no longer waiting for an opponent,
	// typically because another player claimed it first.
	ErrMatchUnavailable = errors.New("match already taken")
	// ErrOwnMatch is returned when a host tries to join its own match.
	ErrOwnMatch = errors.New("cannot join own match")
	// ErrNoOpenMatch is returned by quick match when nobody is waiting.
	ErrNoOpenMatch = errors.New("no open match")
	// ErrInvalidCode indicates a join code that is not six digits.
	ErrInvalidCode = errors.New("join code must be six digits")
	// ErrCodeInUse is returned when a requested join code belongs to a waiting match.
	ErrCodeInUse = errors.New("join code already in use")
	// ErrInvalidSlot indicates a player slot other than 1 or 2.
	ErrInvalidSlot = errors.New("invalid player slot")
	// ErrNotParticipant is returned when a player acts on a match they are not part of.
	ErrNotParticipant = errors.New("player is not part of match")

	// ErrNoCredential indicates the question API has no key configured.
	ErrNoCredential = errors.New("question api credential not configured")
	// ErrUpstream wraps failures calling the question API.
	ErrUpstream = errors.New("question api unavailable")
	// ErrMalformedQuestions indicates the question API returned an unusable payload.
	ErrMalformedQuestions = errors.New("malformed question payload")
)
