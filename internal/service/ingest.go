package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/ledger"
)

// IngestProfile mirrors a profile lifecycle event.
func (s *GamificationService) IngestProfile(ctx context.Context, ev domain.ProfileEvent) (*IngestResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	res := newIngestResult()
	err := s.store.Transaction(ctx, func(dbc dbctx.Context) error {
		if ev.Action == domain.ActionDeleted {
			existed, err := s.store.DeleteProfile(dbc, ev.UserID)
			if err != nil {
				return err
			}
			if !existed {
				s.logger.Warn("deleted profile did not exist", "user_id", ev.UserID)
			}
			return nil
		}

		if err := s.store.UpsertProfile(dbc, &domain.Profile{
			UserID:   ev.UserID,
			Username: ev.Username,
			FullName: ev.FullName,
		}); err != nil {
			return err
		}
		if _, err := s.pipeline.RecomputeTotalEvents(dbc, ev.UserID); err != nil {
			return err
		}
		out, err := s.pipeline.Reevaluate(dbc, ev.UserID)
		if err != nil {
			return err
		}
		s.collect(res, out)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingesting profile %d: %w", ev.UserID, err)
	}

	s.afterCommit(ctx)
	return s.finish(res), nil
}

// IngestParticipation mirrors a participation lifecycle event. Creation,
// status change and deletion each recompute total_events.
func (s *GamificationService) IngestParticipation(ctx context.Context, ev domain.ParticipationEvent) (*IngestResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	res := newIngestResult()
	err := s.store.Transaction(ctx, func(dbc dbctx.Context) error {
		if ev.Action == domain.ActionDeleted {
			if _, err := s.store.DeleteParticipation(dbc, ev.UserID, ev.EventID); err != nil {
				return err
			}
			_, err := s.pipeline.RecomputeTotalEvents(dbc, ev.UserID)
			return err
		}

		if err := s.pipeline.Lock(dbc, ev.UserID); err != nil {
			return err
		}
		created, err := s.store.SaveParticipation(dbc, &domain.Participation{
			UserID:   ev.UserID,
			EventID:  ev.EventID,
			Status:   ev.Status,
			JoinedAt: ev.OccurredAt.UTC(),
		})
		if err != nil {
			return err
		}
		if _, err := s.pipeline.RecomputeTotalEvents(dbc, ev.UserID); err != nil {
			return err
		}

		title, err := s.eventTitle(dbc, ev.EventID)
		if err != nil {
			return err
		}
		eventID := ev.EventID

		if created && ev.Status == domain.ParticipationJoined {
			if err := s.award(dbc, res, ledger.Entry{
				UserID:         ev.UserID,
				Activity:       domain.ActivityEventJoin,
				Points:         s.points.EventJoin,
				Description:    "Joined event: " + title,
				RelatedEventID: &eventID,
			}); err != nil {
				return err
			}
		}
		if ev.Status == domain.ParticipationAttended {
			if err := s.award(dbc, res, ledger.Entry{
				UserID:         ev.UserID,
				Activity:       domain.ActivityEventComplete,
				Points:         s.points.EventComplete,
				Description:    "Completed event: " + title,
				RelatedEventID: &eventID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingesting participation %d/%d: %w", ev.UserID, ev.EventID, err)
	}

	s.afterCommit(ctx)
	return s.finish(res), nil
}

// IngestEvent mirrors an event lifecycle event. Deleting an event keeps the
// points earned from it.
func (s *GamificationService) IngestEvent(ctx context.Context, ev domain.EventLifecycleEvent) (*IngestResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	res := newIngestResult()
	err := s.store.Transaction(ctx, func(dbc dbctx.Context) error {
		if ev.Action == domain.ActionDeleted {
			userIDs, err := s.store.DeleteEvent(dbc, ev.EventID)
			if err != nil {
				return err
			}
			for _, id := range userIDs {
				if _, err := s.pipeline.RecomputeTotalEvents(dbc, id); err != nil {
					return err
				}
			}
			return nil
		}

		e := &domain.Event{
			ID:          ev.EventID,
			OrganizerID: ev.OrganizerID,
			Title:       ev.Title,
			Status:      ev.Status,
		}
		if err := s.store.SaveEvent(dbc, e); err != nil {
			return err
		}
		if ev.Status != domain.EventCompleted {
			return nil
		}

		eventID := ev.EventID
		return s.award(dbc, res, ledger.Entry{
			UserID:         ev.OrganizerID,
			Activity:       domain.ActivityEventOrganize,
			Points:         s.points.EventOrganize,
			Description:    "Organized event: " + titleOrID(ev.Title, ev.EventID),
			RelatedEventID: &eventID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ingesting event %d: %w", ev.EventID, err)
	}

	s.afterCommit(ctx)
	return s.finish(res), nil
}

// IngestReview awards the reviewer and, for five stars, the reviewee.
func (s *GamificationService) IngestReview(ctx context.Context, ev domain.ReviewEvent) (*IngestResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	res := newIngestResult()
	err := s.store.Transaction(ctx, func(dbc dbctx.Context) error {
		if err := s.pipeline.Lock(dbc, ev.FromUserID, ev.ToUserID); err != nil {
			return err
		}
		eventID := ev.EventID

		to, err := s.username(dbc, ev.ToUserID)
		if err != nil {
			return err
		}
		if err := s.award(dbc, res, ledger.Entry{
			UserID:         ev.FromUserID,
			Activity:       domain.ActivityReviewGiven,
			Points:         s.points.ReviewGiven,
			Description:    "Gave review to " + to,
			RelatedEventID: &eventID,
		}); err != nil {
			return err
		}

		if ev.Rating != 5 {
			return nil
		}
		from, err := s.username(dbc, ev.FromUserID)
		if err != nil {
			return err
		}
		return s.award(dbc, res, ledger.Entry{
			UserID:         ev.ToUserID,
			Activity:       domain.ActivityFiveStarReceived,
			Points:         s.points.FiveStarReceived,
			Description:    "Received 5-star review from " + from,
			RelatedEventID: &eventID,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("ingesting review %d->%d: %w", ev.FromUserID, ev.ToUserID, err)
	}

	s.afterCommit(ctx)
	return s.finish(res), nil
}

func (s *GamificationService) eventTitle(dbc dbctx.Context, eventID int64) (string, error) {
	e, err := s.store.GetEvent(dbc, eventID)
	if errors.Is(err, domain.ErrEventNotFound) {
		return titleOrID("", eventID), nil
	}
	if err != nil {
		return "", err
	}
	return titleOrID(e.Title, eventID), nil
}

func (s *GamificationService) username(dbc dbctx.Context, userID int64) (string, error) {
	p, err := s.store.GetProfile(dbc, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return fmt.Sprintf("user %d", userID), nil
	}
	if err != nil {
		return "", err
	}
	return p.Username, nil
}

func titleOrID(title string, eventID int64) string {
	if title == "" {
		return fmt.Sprintf("event #%d", eventID)
	}
	return title
}
