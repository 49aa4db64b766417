package domain

import "time"

// Profile is the externally owned user record that carries the cached
// aggregates. Only the aggregate columns are written by this service's
// write chain.
type Profile struct {
	UserID      int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Username    string    `gorm:"size:150;not null" json:"username"`
	FullName    string    `gorm:"size:100" json:"full_name"`
	TotalPoints int64     `gorm:"not null;default:0" json:"total_points"`
	TotalEvents int64     `gorm:"not null;default:0" json:"total_events"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// ParticipationStatus is the state of a user's participation in an event.
type ParticipationStatus string

const (
	ParticipationJoined    ParticipationStatus = "joined"
	ParticipationAttended  ParticipationStatus = "attended"
	ParticipationCancelled ParticipationStatus = "cancelled"
)

// IsValid reports whether s is a known status.
func (s ParticipationStatus) IsValid() bool {
	switch s {
	case ParticipationJoined, ParticipationAttended, ParticipationCancelled:
		return true
	}
	return false
}

// Counts reports whether the participation counts toward total_events.
func (s ParticipationStatus) Counts() bool {
	return s == ParticipationJoined || s == ParticipationAttended
}

// Participation mirrors the participation collaborator's row.
type Participation struct {
	UserID    int64               `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	EventID   int64               `gorm:"primaryKey;autoIncrement:false;index" json:"event_id"`
	Status    ParticipationStatus `gorm:"size:16;not null" json:"status"`
	JoinedAt  time.Time           `json:"joined_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (Participation) TableName() string {
	return "participations"
}

// EventStatus is the lifecycle state of a sports event.
type EventStatus string

const (
	EventOpen      EventStatus = "open"
	EventFull      EventStatus = "full"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// IsValid reports whether s is a known status.
func (s EventStatus) IsValid() bool {
	switch s {
	case EventOpen, EventFull, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// Event mirrors the scheduling collaborator's event row.
type Event struct {
	ID          int64       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrganizerID int64       `gorm:"not null;index:idx_event_organizer_status,priority:1" json:"organizer_id"`
	Title       string      `gorm:"size:200" json:"title"`
	Status      EventStatus `gorm:"size:16;not null;index:idx_event_organizer_status,priority:2" json:"status"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Event) TableName() string {
	return "events"
}
