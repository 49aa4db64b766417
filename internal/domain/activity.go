package domain

import "fmt"

// ActivityType classifies a ledger entry. The set is closed.
type ActivityType string

const (
	ActivityEventJoin        ActivityType = "event_join"
	ActivityEventComplete    ActivityType = "event_complete"
	ActivityEventOrganize    ActivityType = "event_organize"
	ActivityReviewGiven      ActivityType = "review_given"
	ActivityFiveStarReceived ActivityType = "five_star_received"
	ActivityAchievementBonus ActivityType = "achievement_bonus"
)

// ActivityTypes lists every activity type in display order.
var ActivityTypes = []ActivityType{
	ActivityEventJoin,
	ActivityEventComplete,
	ActivityEventOrganize,
	ActivityReviewGiven,
	ActivityFiveStarReceived,
	ActivityAchievementBonus,
}

var activityLabels = map[ActivityType]string{
	ActivityEventJoin:        "Event Join",
	ActivityEventComplete:    "Event Complete",
	ActivityEventOrganize:    "Event Organize",
	ActivityReviewGiven:      "Review Given",
	ActivityFiveStarReceived: "Five Star Received",
	ActivityAchievementBonus: "Achievement Bonus",
}

// IsValid reports whether a is a member of the closed enum.
func (a ActivityType) IsValid() bool {
	_, ok := activityLabels[a]
	return ok
}

// Label returns the human-readable name.
func (a ActivityType) Label() string {
	if l, ok := activityLabels[a]; ok {
		return l
	}
	return string(a)
}

// OncePerEvent reports whether at most one entry may exist per
// (user, activity, related event).
func (a ActivityType) OncePerEvent() bool {
	return a == ActivityEventComplete || a == ActivityEventOrganize
}

// DedupKey returns the value stored in the ledger's unique dedup column,
// or nil when the activity is not constrained.
func (a ActivityType) DedupKey(eventID *int64) *string {
	if !a.OncePerEvent() || eventID == nil {
		return nil
	}
	key := fmt.Sprintf("%s:%d", a, *eventID)
	return &key
}

// ParseActivityType validates s against the enum.
func ParseActivityType(s string) (ActivityType, error) {
	a := ActivityType(s)
	if !a.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidActivity, s)
	}
	return a, nil
}
