package store

import (
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
)

// InsertTransaction appends one ledger row. A row colliding with the
// (user_id, dedup_key) index is dropped and reported as ErrAlreadyRecorded
// without aborting the surrounding transaction.
func (s *Store) InsertTransaction(dbc dbctx.Context, tx *domain.PointTransaction) error {
	res := s.conn(dbc).Clauses(clause.OnConflict{DoNothing: true}).Create(tx)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return domain.ErrAlreadyRecorded
		}
		return fmt.Errorf("inserting point transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlreadyRecorded
	}
	return nil
}

// SumPoints returns SUM(points) over every ledger row of the user.
func (s *Store) SumPoints(dbc dbctx.Context, userID int64) (int64, error) {
	var total int64
	err := s.conn(dbc).Model(&domain.PointTransaction{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("summing points: %w", err)
	}
	return total, nil
}

// CountActivity counts the user's ledger rows of one activity type.
func (s *Store) CountActivity(dbc dbctx.Context, userID int64, activity domain.ActivityType) (int64, error) {
	var n int64
	err := s.conn(dbc).Model(&domain.PointTransaction{}).
		Where("user_id = ? AND activity_type = ?", userID, activity).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", activity, err)
	}
	return n, nil
}

// WindowedPoints sums points per user for rows created at or after since,
// in a single grouped query.
func (s *Store) WindowedPoints(dbc dbctx.Context, since time.Time) (map[int64]int64, error) {
	var rows []struct {
		UserID int64
		Total  int64
	}
	err := s.conn(dbc).Model(&domain.PointTransaction{}).
		Select("user_id, COALESCE(SUM(points), 0) AS total").
		Where("created_at >= ?", since.UTC()).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summing windowed points: %w", err)
	}

	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		out[r.UserID] = r.Total
	}
	return out, nil
}

// Breakdown returns total and count per activity type for the user. Every
// activity type is present, in display order.
func (s *Store) Breakdown(dbc dbctx.Context, userID int64) ([]domain.ActivityTotal, error) {
	var rows []struct {
		ActivityType domain.ActivityType
		Total        int64
		Count        int64
	}
	err := s.conn(dbc).Model(&domain.PointTransaction{}).
		Select("activity_type, COALESCE(SUM(points), 0) AS total, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("activity_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("computing breakdown: %w", err)
	}

	byType := make(map[domain.ActivityType]domain.ActivityTotal, len(rows))
	for _, r := range rows {
		byType[r.ActivityType] = domain.ActivityTotal{Total: r.Total, Count: r.Count}
	}
	out := make([]domain.ActivityTotal, 0, len(domain.ActivityTypes))
	for _, a := range domain.ActivityTypes {
		t := byType[a]
		t.ActivityType = a
		t.Label = a.Label()
		out = append(out, t)
	}
	return out, nil
}

// ListTransactions returns the user's ledger newest first. A nil activity
// means every type.
func (s *Store) ListTransactions(dbc dbctx.Context, userID int64, activity *domain.ActivityType, limit int) ([]domain.PointTransaction, error) {
	q := s.conn(dbc).Where("user_id = ?", userID)
	if activity != nil {
		q = q.Where("activity_type = ?", *activity)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []domain.PointTransaction
	if err := q.Order("created_at DESC").Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return out, nil
}

// CountTransactions counts the user's ledger rows, optionally by type.
func (s *Store) CountTransactions(dbc dbctx.Context, userID int64, activity *domain.ActivityType) (int64, error) {
	q := s.conn(dbc).Model(&domain.PointTransaction{}).Where("user_id = ?", userID)
	if activity != nil {
		q = q.Where("activity_type = ?", *activity)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return n, nil
}
