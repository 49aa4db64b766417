// Package pipeline runs the ordered write chain for one awarded activity:
// ledger write, total_points recompute, catalog evaluation, bonus writes,
// repeated until no new achievement unlocks.
package pipeline

import (
	"fmt"

	"github.com/sigma-sports/gamification/internal/achievement"
	"github.com/sigma-sports/gamification/internal/aggregate"
	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/ledger"
	"github.com/sigma-sports/gamification/internal/logger"
)

// Outcome describes everything one Award call wrote.
type Outcome struct {
	Entry       *domain.PointTransaction
	Bonuses     []*domain.PointTransaction
	Unlocked    []domain.Achievement
	TotalPoints int64
}

// Pipeline wires the writer, updater and evaluator together.
type Pipeline struct {
	ledger    *ledger.Writer
	aggregate *aggregate.Updater
	evaluator *achievement.Evaluator
	log       *logger.Logger
}

// New creates a pipeline.
func New(w *ledger.Writer, u *aggregate.Updater, e *achievement.Evaluator, log *logger.Logger) *Pipeline {
	return &Pipeline{
		ledger:    w,
		aggregate: u,
		evaluator: e,
		log:       log.With("component", "Pipeline"),
	}
}

// Award records entry and runs the chain. All writes go through dbc, so
// callers wanting atomicity pass a transaction. ErrAlreadyRecorded is
// returned untouched when the entry is a duplicate; nothing else is written
// in that case. The user's profile row is locked first, which serializes
// concurrent chains for the same user.
func (p *Pipeline) Award(dbc dbctx.Context, entry ledger.Entry) (*Outcome, error) {
	if err := p.aggregate.Lock(dbc, entry.UserID); err != nil {
		return nil, err
	}
	tx, err := p.ledger.Record(dbc, entry)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Entry: tx}
	if err := p.settle(dbc, entry.UserID, out); err != nil {
		return nil, err
	}

	p.log.Debug("award applied",
		"user_id", entry.UserID,
		"activity", entry.Activity,
		"unlocked", len(out.Unlocked),
		"total_points", out.TotalPoints,
	)
	return out, nil
}

// Lock takes the profile locks of several users up front, for domain
// events that award more than one user.
func (p *Pipeline) Lock(dbc dbctx.Context, userIDs ...int64) error {
	return p.aggregate.Lock(dbc, userIDs...)
}

// RecomputeTotalEvents refreshes the participation aggregate.
func (p *Pipeline) RecomputeTotalEvents(dbc dbctx.Context, userID int64) (int64, error) {
	if err := p.aggregate.Lock(dbc, userID); err != nil {
		return 0, err
	}
	return p.aggregate.RecomputeTotalEvents(dbc, userID)
}

// Reevaluate runs the chain without a triggering entry. It is used when an
// achievement source outside the ledger changes, such as an event reaching
// completed.
func (p *Pipeline) Reevaluate(dbc dbctx.Context, userID int64) (*Outcome, error) {
	if err := p.aggregate.Lock(dbc, userID); err != nil {
		return nil, err
	}
	out := &Outcome{}
	if err := p.settle(dbc, userID, out); err != nil {
		return nil, err
	}
	return out, nil
}

// settle alternates recompute and evaluation until no code unlocks. Each
// round that writes a bonus unlocks at least one code, so a valid catalog
// settles within len(catalog)+1 rounds.
func (p *Pipeline) settle(dbc dbctx.Context, userID int64, out *Outcome) error {
	maxRounds := len(p.evaluator.Catalog().Definitions) + 1
	for round := 0; round < maxRounds; round++ {
		total, err := p.aggregate.RecomputeTotalPoints(dbc, userID)
		if err != nil {
			return err
		}
		out.TotalPoints = total

		unlocked, err := p.evaluator.Evaluate(dbc, userID)
		if err != nil {
			return err
		}
		if len(unlocked) == 0 {
			return nil
		}

		for _, a := range unlocked {
			bonus, err := p.ledger.Record(dbc, ledger.Entry{
				UserID:      a.UserID,
				Activity:    domain.ActivityAchievementBonus,
				Points:      a.BonusPoints,
				Description: fmt.Sprintf("Achievement bonus: %s [%s]", a.Title, a.Code),
			})
			if err != nil {
				return fmt.Errorf("recording bonus for %s: %w", a.Code, err)
			}
			out.Bonuses = append(out.Bonuses, bonus)
		}
		out.Unlocked = append(out.Unlocked, unlocked...)
	}
	return fmt.Errorf("%w: user %d", domain.ErrCascadeLimit, userID)
}
