package store

import (
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
)

// InsertAchievement records an unlock. A second unlock of the same code for
// the same user is dropped and reported as ErrAlreadyEarned.
func (s *Store) InsertAchievement(dbc dbctx.Context, a *domain.Achievement) error {
	res := s.conn(dbc).Clauses(clause.OnConflict{DoNothing: true}).Create(a)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return domain.ErrAlreadyEarned
		}
		return fmt.Errorf("inserting achievement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlreadyEarned
	}
	return nil
}

// ListAchievements returns the user's unlocks, newest first.
func (s *Store) ListAchievements(dbc dbctx.Context, userID int64) ([]domain.Achievement, error) {
	var out []domain.Achievement
	err := s.conn(dbc).
		Where("user_id = ?", userID).
		Order("earned_at DESC").Order("achievement_code").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing achievements: %w", err)
	}
	return out, nil
}

// CountAchievements counts rows for (user, code).
func (s *Store) CountAchievements(dbc dbctx.Context, userID int64, code string) (int64, error) {
	var n int64
	err := s.conn(dbc).Model(&domain.Achievement{}).
		Where("user_id = ? AND achievement_code = ?", userID, code).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting achievements: %w", err)
	}
	return n, nil
}
