package domain

import "errors"

// Domain errors
var (
	ErrInvalidActivity     = errors.New("invalid activity type")
	ErrAlreadyRecorded     = errors.New("activity already recorded")
	ErrMissingRelatedEvent = errors.New("activity requires a related event")
	ErrAlreadyEarned       = errors.New("achievement already earned")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrInvalidPeriod       = errors.New("invalid leaderboard period")
	ErrInvalidPagination   = errors.New("page and per_page must be positive")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrCascadeLimit        = errors.New("achievement cascade exceeded catalog bound")
	ErrInvalidCatalog      = errors.New("invalid achievement catalog")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrProfileNotFound) || errors.Is(err, ErrEventNotFound)
}

// IsValidationError reports whether err was caused by bad caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidActivity) ||
		errors.Is(err, ErrMissingRelatedEvent) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidPagination) ||
		errors.Is(err, ErrInvalidRating) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidRequest)
}
