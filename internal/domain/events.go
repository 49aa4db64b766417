package domain

import (
	"fmt"
	"time"
)

// Action tells an ingestion handler what happened to the source row.
type Action string

const (
	ActionUpsert  Action = ""
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ProfileEvent is emitted by the identity collaborator.
type ProfileEvent struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Action   Action `json:"action,omitempty"`
}

// Validate checks the fields the ledger relies on.
func (e ProfileEvent) Validate() error {
	if e.UserID <= 0 {
		return fmt.Errorf("%w: user_id required", ErrInvalidRequest)
	}
	if e.Action != ActionDeleted && e.Username == "" {
		return fmt.Errorf("%w: username required", ErrInvalidRequest)
	}
	return nil
}

// ParticipationEvent is emitted when a participation row is created,
// changes status, or is deleted.
type ParticipationEvent struct {
	UserID     int64               `json:"user_id"`
	EventID    int64               `json:"event_id"`
	Status     ParticipationStatus `json:"status"`
	Action     Action              `json:"action,omitempty"`
	OccurredAt time.Time           `json:"timestamp"`
}

// Validate checks the fields the ledger relies on.
func (e ParticipationEvent) Validate() error {
	if e.UserID <= 0 || e.EventID <= 0 {
		return fmt.Errorf("%w: user_id and event_id required", ErrInvalidRequest)
	}
	if e.Action != ActionDeleted && !e.Status.IsValid() {
		return fmt.Errorf("%w: participation status %q", ErrInvalidStatus, e.Status)
	}
	return nil
}

// EventLifecycleEvent is emitted by the scheduling collaborator.
type EventLifecycleEvent struct {
	EventID     int64       `json:"event_id"`
	OrganizerID int64       `json:"organizer_id"`
	Title       string      `json:"title,omitempty"`
	Status      EventStatus `json:"status"`
	Action      Action      `json:"action,omitempty"`
}

// Validate checks the fields the ledger relies on.
func (e EventLifecycleEvent) Validate() error {
	if e.EventID <= 0 {
		return fmt.Errorf("%w: event_id required", ErrInvalidRequest)
	}
	if e.Action == ActionDeleted {
		return nil
	}
	if e.OrganizerID <= 0 {
		return fmt.Errorf("%w: organizer_id required", ErrInvalidRequest)
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("%w: event status %q", ErrInvalidStatus, e.Status)
	}
	return nil
}

// ReviewEvent is emitted when a review is created.
type ReviewEvent struct {
	FromUserID int64 `json:"from_user_id"`
	ToUserID   int64 `json:"to_user_id"`
	EventID    int64 `json:"event_id"`
	Rating     int   `json:"rating"`
}

// Validate rejects malformed reviews before they reach the ledger.
func (e ReviewEvent) Validate() error {
	if e.FromUserID <= 0 || e.ToUserID <= 0 || e.EventID <= 0 {
		return fmt.Errorf("%w: from_user_id, to_user_id and event_id required", ErrInvalidRequest)
	}
	if e.Rating < 1 || e.Rating > 5 {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, e.Rating)
	}
	return nil
}
