package domain

import (
	"time"

	"github.com/google/uuid"
)

// PointTransaction is one immutable ledger entry.
type PointTransaction struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         int64        `gorm:"not null;index:idx_point_tx_user_created,priority:1;uniqueIndex:idx_point_tx_dedup,priority:1" json:"user_id"`
	ActivityType   ActivityType `gorm:"size:32;not null;index" json:"activity_type"`
	Points         int64        `gorm:"not null" json:"points"`
	Description    string       `gorm:"type:text;not null" json:"description"`
	RelatedEventID *int64       `gorm:"index" json:"related_event_id,omitempty"`
	DedupKey       *string      `gorm:"size:64;uniqueIndex:idx_point_tx_dedup,priority:2" json:"-"`
	CreatedAt      time.Time    `gorm:"not null;index:idx_point_tx_user_created,priority:2;index:idx_point_tx_created" json:"created_at"`
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}

// ActivityLabel is the display name of the entry's activity.
func (t PointTransaction) ActivityLabel() string {
	return t.ActivityType.Label()
}

// Achievement is a one-time unlock; (UserID, Code) is unique.
type Achievement struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      int64     `gorm:"not null;uniqueIndex:idx_achievement_user_code,priority:1" json:"user_id"`
	Code        string    `gorm:"column:achievement_code;size:32;not null;uniqueIndex:idx_achievement_user_code,priority:2" json:"achievement_code"`
	Title       string    `gorm:"size:100;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	BonusPoints int64     `gorm:"not null;default:0" json:"bonus_points"`
	EarnedAt    time.Time `gorm:"not null" json:"earned_at"`
}

func (Achievement) TableName() string {
	return "achievements"
}

// ActivityTotal is the per-activity slice of a user's ledger.
type ActivityTotal struct {
	ActivityType ActivityType `json:"activity_type"`
	Label        string       `json:"label"`
	Total        int64        `json:"total"`
	Count        int64        `json:"count"`
}
