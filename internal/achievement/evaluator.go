package achievement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
)

// Store is the persistence the evaluator needs.
type Store interface {
	ListAchievements(dbc dbctx.Context, userID int64) ([]domain.Achievement, error)
	InsertAchievement(dbc dbctx.Context, a *domain.Achievement) error
	CountActivity(dbc dbctx.Context, userID int64, activity domain.ActivityType) (int64, error)
	CountOrganizedCompleted(dbc dbctx.Context, userID int64) (int64, error)
}

// Evaluator checks the whole catalog for a user and records new unlocks.
// It never writes ledger rows; the caller appends the bonus entries.
type Evaluator struct {
	store   Store
	catalog Catalog
	now     func() time.Time
	log     *logger.Logger
}

// NewEvaluator creates an evaluator over a validated catalog.
func NewEvaluator(store Store, catalog Catalog, log *logger.Logger) *Evaluator {
	return &Evaluator{
		store:   store,
		catalog: catalog,
		now:     time.Now,
		log:     log.With("component", "AchievementEvaluator"),
	}
}

// WithClock overrides the earned_at source.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Catalog returns the catalog being evaluated.
func (e *Evaluator) Catalog() Catalog { return e.catalog }

// Evaluate returns the achievements newly unlocked by this call. Codes the
// user already owns are skipped; a concurrent unlock that wins the race is
// treated the same way.
func (e *Evaluator) Evaluate(dbc dbctx.Context, userID int64) ([]domain.Achievement, error) {
	owned, err := e.store.ListAchievements(dbc, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(owned))
	for _, a := range owned {
		have[a.Code] = true
	}

	var unlocked []domain.Achievement
	for _, def := range e.catalog.Definitions {
		if have[def.Code] {
			continue
		}
		ok, err := e.holds(dbc, userID, def.Condition)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", def.Code, err)
		}
		if !ok {
			continue
		}

		a := domain.Achievement{
			ID:          uuid.New(),
			UserID:      userID,
			Code:        def.Code,
			Title:       def.Title,
			Description: def.Description,
			BonusPoints: def.BonusPoints,
			EarnedAt:    e.now().UTC(),
		}
		if err := e.store.InsertAchievement(dbc, &a); err != nil {
			if errors.Is(err, domain.ErrAlreadyEarned) {
				continue
			}
			return nil, err
		}
		e.log.Info("achievement unlocked", "user_id", userID, "code", def.Code)
		unlocked = append(unlocked, a)
	}
	return unlocked, nil
}

func (e *Evaluator) holds(dbc dbctx.Context, userID int64, c Condition) (bool, error) {
	switch c.Kind {
	case ConditionActivityCount:
		n, err := e.store.CountActivity(dbc, userID, c.Activity)
		if err != nil {
			return false, err
		}
		return n >= c.Threshold, nil
	case ConditionOrganizedCompleted:
		n, err := e.store.CountOrganizedCompleted(dbc, userID)
		if err != nil {
			return false, err
		}
		return n >= c.Threshold, nil
	}
	return false, nil
}
