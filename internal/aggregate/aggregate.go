// Package aggregate keeps the cached profile totals equal to their sources.
package aggregate

import (
	"errors"
	"slices"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
)

// Store is the persistence the updater needs.
type Store interface {
	LockProfile(dbc dbctx.Context, userID int64) error
	SumPoints(dbc dbctx.Context, userID int64) (int64, error)
	CountActiveParticipations(dbc dbctx.Context, userID int64) (int64, error)
	SetTotalPoints(dbc dbctx.Context, userID, total int64) error
	SetTotalEvents(dbc dbctx.Context, userID, total int64) error
}

// Updater recomputes total_points and total_events.
type Updater struct {
	store Store
	log   *logger.Logger
}

// NewUpdater creates an aggregate updater.
func NewUpdater(store Store, log *logger.Logger) *Updater {
	return &Updater{store: store, log: log.With("component", "AggregateUpdater")}
}

// Lock holds the users' profile rows until the transaction ends. Ids are
// locked in ascending order so two chains touching the same pair of users
// cannot deadlock.
func (u *Updater) Lock(dbc dbctx.Context, userIDs ...int64) error {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if err := u.store.LockProfile(dbc, id); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeTotalPoints writes SUM(points) for the user into the profile and
// returns it. A missing profile is logged and skipped.
func (u *Updater) RecomputeTotalPoints(dbc dbctx.Context, userID int64) (int64, error) {
	total, err := u.store.SumPoints(dbc, userID)
	if err != nil {
		return 0, err
	}
	if err := u.store.SetTotalPoints(dbc, userID, total); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			u.log.Warn("no profile for user, skipping total_points", "user_id", userID)
			return total, nil
		}
		return 0, err
	}
	return total, nil
}

// RecomputeTotalEvents writes the number of joined or attended
// participations into the profile and returns it.
func (u *Updater) RecomputeTotalEvents(dbc dbctx.Context, userID int64) (int64, error) {
	total, err := u.store.CountActiveParticipations(dbc, userID)
	if err != nil {
		return 0, err
	}
	if err := u.store.SetTotalEvents(dbc, userID, total); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			u.log.Warn("no profile for user, skipping total_events", "user_id", userID)
			return total, nil
		}
		return 0, err
	}
	return total, nil
}
