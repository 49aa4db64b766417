package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
)

// GetProfile loads one profile.
func (s *Store) GetProfile(dbc dbctx.Context, userID int64) (*domain.Profile, error) {
	var p domain.Profile
	err := s.conn(dbc).Where("user_id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return &p, nil
}

// LockProfile takes a row lock on the profile for the rest of the
// transaction. Every write chain for a user starts here, so recomputed
// aggregates and achievement counts see each other's committed rows. A
// missing profile is not an error. sqlite has no row locks and serializes
// writers on its own.
func (s *Store) LockProfile(dbc dbctx.Context, userID int64) error {
	var p domain.Profile
	err := s.conn(dbc).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Select("user_id").
		Where("user_id = ?", userID).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return fmt.Errorf("locking profile: %w", err)
	}
	return nil
}

// ListProfiles returns every profile ordered by user id.
func (s *Store) ListProfiles(dbc dbctx.Context) ([]domain.Profile, error) {
	var out []domain.Profile
	if err := s.conn(dbc).Order("user_id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return out, nil
}

// ListProfileIDs pages through user ids greater than afterID.
func (s *Store) ListProfileIDs(dbc dbctx.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := s.conn(dbc).Model(&domain.Profile{}).
		Where("user_id > ?", afterID).
		Order("user_id").
		Limit(limit).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing profile ids: %w", err)
	}
	return ids, nil
}

// UpsertProfile creates the profile or refreshes its identity columns. The
// aggregate columns are never touched here.
func (s *Store) UpsertProfile(dbc dbctx.Context, p *domain.Profile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	err := s.conn(dbc).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "full_name", "updated_at"}),
	}).Omit("total_points", "total_events").Create(p).Error
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}

// DeleteProfile removes the profile together with the user's ledger,
// achievements and participations. It reports whether a profile existed.
func (s *Store) DeleteProfile(dbc dbctx.Context, userID int64) (bool, error) {
	db := s.conn(dbc)
	for _, model := range []interface{}{
		&domain.PointTransaction{},
		&domain.Achievement{},
		&domain.Participation{},
	} {
		if err := db.Where("user_id = ?", userID).Delete(model).Error; err != nil {
			return false, fmt.Errorf("deleting user rows: %w", err)
		}
	}
	res := db.Where("user_id = ?", userID).Delete(&domain.Profile{})
	if res.Error != nil {
		return false, fmt.Errorf("deleting profile: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetTotalPoints writes the cached point aggregate. ErrProfileNotFound is
// returned when no profile row exists.
func (s *Store) SetTotalPoints(dbc dbctx.Context, userID, total int64) error {
	return s.setAggregate(dbc, userID, "total_points", total)
}

// SetTotalEvents writes the cached event aggregate.
func (s *Store) SetTotalEvents(dbc dbctx.Context, userID, total int64) error {
	return s.setAggregate(dbc, userID, "total_events", total)
}

func (s *Store) setAggregate(dbc dbctx.Context, userID int64, column string, value int64) error {
	res := s.conn(dbc).Model(&domain.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			column:       value,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("updating %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
