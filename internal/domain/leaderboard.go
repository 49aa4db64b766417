package domain

import (
	"fmt"
	"time"
)

// Period selects the time window a leaderboard is computed over.
type Period string

const (
	PeriodAllTime Period = "all_time"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Periods lists every supported period.
var Periods = []Period{PeriodAllTime, PeriodWeekly, PeriodMonthly}

// ParsePeriod validates s. An empty string means all_time.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodAllTime, nil
	case PeriodAllTime, PeriodWeekly, PeriodMonthly:
		return Period(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// Window returns the length of the period; zero means unbounded.
func (p Period) Window() time.Duration {
	switch p {
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	case PeriodMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Since returns the inclusive lower bound of the window ending at now and
// false for all_time.
func (p Period) Since(now time.Time) (time.Time, bool) {
	w := p.Window()
	if w == 0 {
		return time.Time{}, false
	}
	return now.Add(-w), true
}

// Tier is the cosmetic classification of a point total.
type Tier struct {
	Name  string `json:"tier"`
	Badge string `json:"badge"`
}

var tiers = []struct {
	min  int64
	tier Tier
}{
	{1000, Tier{Name: "Master", Badge: "🥇"}},
	{500, Tier{Name: "Expert", Badge: "🥈"}},
	{200, Tier{Name: "Advanced", Badge: "🥉"}},
	{50, Tier{Name: "Intermediate", Badge: "⭐"}},
}

// TierFor maps a point total to its tier and badge.
func TierFor(points int64) Tier {
	for _, t := range tiers {
		if points >= t.min {
			return t.tier
		}
	}
	return Tier{Name: "Beginner", Badge: "🔰"}
}

// LeaderboardEntry represents a single ranked row.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name,omitempty"`
	Points      int64  `json:"total_points"`
	TotalEvents int64  `json:"total_events"`
	Tier        string `json:"tier"`
	Badge       string `json:"badge"`
}

// LeaderboardQuery is a request for one page of a leaderboard.
type LeaderboardQuery struct {
	Period  Period
	Page    int
	PerPage int
	// CurrentUserID is looked up in the full ordering when non-zero.
	CurrentUserID int64
}

// LeaderboardPage is one page of a ranked leaderboard.
type LeaderboardPage struct {
	Period          Period             `json:"period"`
	Users           []LeaderboardEntry `json:"users"`
	TotalCount      int                `json:"total_count"`
	Page            int                `json:"page"`
	PerPage         int                `json:"per_page"`
	CurrentUserRank *int               `json:"current_user_rank"`
	ComputedAt      time.Time          `json:"computed_at"`
}

// PointsDashboard summarises one user's standing.
type PointsDashboard struct {
	UserID             int64              `json:"user_id"`
	TotalPoints        int64              `json:"total_points"`
	TotalEvents        int64              `json:"total_events"`
	Rank               *int               `json:"rank"`
	Tier               string             `json:"tier"`
	Badge              string             `json:"badge"`
	Breakdown          []ActivityTotal    `json:"breakdown"`
	RecentTransactions []PointTransaction `json:"recent_transactions"`
	Achievements       []Achievement      `json:"achievements"`
}

// AchievementStatus is one catalog entry as seen by a particular user.
type AchievementStatus struct {
	Code        string     `json:"code"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	BonusPoints int64      `json:"bonus_points"`
	Earned      bool       `json:"is_earned"`
	EarnedAt    *time.Time `json:"earned_at"`
}

// AchievementOverview is the full catalog with per-user status.
type AchievementOverview struct {
	CatalogVersion int                 `json:"catalog_version"`
	Achievements   []AchievementStatus `json:"achievements"`
	EarnedCount    int                 `json:"earned_count"`
	TotalCount     int                 `json:"total_count"`
	EarnedPercent  string              `json:"earned_percent"`
}

// PointsHistory is a filtered slice of a user's ledger, newest first.
type PointsHistory struct {
	Transactions      []PointTransaction `json:"transactions"`
	TotalTransactions int64              `json:"total_transactions"`
}
