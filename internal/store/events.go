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

// GetParticipation loads one participation row.
func (s *Store) GetParticipation(dbc dbctx.Context, userID, eventID int64) (*domain.Participation, bool, error) {
	var p domain.Participation
	err := s.conn(dbc).Where("user_id = ? AND event_id = ?", userID, eventID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting participation: %w", err)
	}
	return &p, true, nil
}

// SaveParticipation inserts the row, or updates the status of an existing
// one. created is true only for the insert, so concurrent creations of the
// same (user, event) see exactly one winner.
func (s *Store) SaveParticipation(dbc dbctx.Context, p *domain.Participation) (created bool, err error) {
	now := time.Now().UTC()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now
	}
	p.UpdatedAt = now

	db := s.conn(dbc)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return false, fmt.Errorf("saving participation: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	err = db.Model(&domain.Participation{}).
		Where("user_id = ? AND event_id = ?", p.UserID, p.EventID).
		Updates(map[string]interface{}{"status": p.Status, "updated_at": now}).Error
	if err != nil {
		return false, fmt.Errorf("updating participation: %w", err)
	}
	return false, nil
}

// DeleteParticipation removes one row and reports whether it existed.
func (s *Store) DeleteParticipation(dbc dbctx.Context, userID, eventID int64) (bool, error) {
	res := s.conn(dbc).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		Delete(&domain.Participation{})
	if res.Error != nil {
		return false, fmt.Errorf("deleting participation: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CountActiveParticipations counts the user's participations in joined or
// attended state.
func (s *Store) CountActiveParticipations(dbc dbctx.Context, userID int64) (int64, error) {
	var n int64
	err := s.conn(dbc).Model(&domain.Participation{}).
		Where("user_id = ? AND status IN ?", userID, []domain.ParticipationStatus{
			domain.ParticipationJoined,
			domain.ParticipationAttended,
		}).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting participations: %w", err)
	}
	return n, nil
}

// GetEvent loads one mirrored event.
func (s *Store) GetEvent(dbc dbctx.Context, eventID int64) (*domain.Event, error) {
	var e domain.Event
	err := s.conn(dbc).Where("id = ?", eventID).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	return &e, nil
}

// SaveEvent inserts or updates a mirrored event.
func (s *Store) SaveEvent(dbc dbctx.Context, e *domain.Event) error {
	e.UpdatedAt = time.Now().UTC()
	err := s.conn(dbc).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"organizer_id", "title", "status", "updated_at"}),
	}).Create(e).Error
	if err != nil {
		return fmt.Errorf("saving event: %w", err)
	}
	return nil
}

// DeleteEvent removes an event. Ledger rows that reference it keep their
// points but lose the reference; its participations are deleted. The ids of
// users whose participations were removed are returned.
func (s *Store) DeleteEvent(dbc dbctx.Context, eventID int64) ([]int64, error) {
	db := s.conn(dbc)

	err := db.Model(&domain.PointTransaction{}).
		Where("related_event_id = ?", eventID).
		Update("related_event_id", nil).Error
	if err != nil {
		return nil, fmt.Errorf("orphaning ledger rows: %w", err)
	}

	var userIDs []int64
	err = db.Model(&domain.Participation{}).
		Where("event_id = ?", eventID).
		Order("user_id").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}

	if err := db.Where("event_id = ?", eventID).Delete(&domain.Participation{}).Error; err != nil {
		return nil, fmt.Errorf("deleting participations: %w", err)
	}
	if err := db.Where("id = ?", eventID).Delete(&domain.Event{}).Error; err != nil {
		return nil, fmt.Errorf("deleting event: %w", err)
	}
	return userIDs, nil
}

// CountOrganizedCompleted counts completed events organized by the user.
func (s *Store) CountOrganizedCompleted(dbc dbctx.Context, userID int64) (int64, error) {
	var n int64
	err := s.conn(dbc).Model(&domain.Event{}).
		Where("organizer_id = ? AND status = ?", userID, domain.EventCompleted).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting organized events: %w", err)
	}
	return n, nil
}
