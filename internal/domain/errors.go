package domain

import "emperror.dev/errors"

var (
	// ErrNotFound is returned when a question identifier is unknown.
	ErrNotFound = errors.NewPlain("question not found")
	// ErrInvalidOptions indicates fewer than two, blank or duplicate option labels.
	ErrInvalidOptions = errors.NewPlain("invalid question options")
	// ErrUnknownOption indicates a vote for a label outside the question's option set.
	ErrUnknownOption = errors.NewPlain("option not in question")
	// ErrPoolEmpty is returned by the selector when no active question exists.
	ErrPoolEmpty = errors.NewPlain("no active questions")
	// ErrIntegrity marks a tally whose total no longer equals the sum of its counts.
	ErrIntegrity = errors.NewPlain("tally integrity violation")
	// ErrContention is returned when an optimistic vote could not commit within its retry budget.
	ErrContention = errors.NewPlain("too much contention on question")
	// ErrNotAuthenticated is returned by leaderboard reads before the handshake completes.
	ErrNotAuthenticated = errors.NewPlain("leaderboard not authenticated")
	// ErrInvalidRequest covers malformed submissions (missing identifiers, bad bodies).
	ErrInvalidRequest = errors.NewPlain("invalid request")
)
