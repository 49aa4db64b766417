package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sigma-sports/gamification/internal/aggregate"
	"github.com/sigma-sports/gamification/internal/config"
	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
	"github.com/sigma-sports/gamification/internal/store"
)

// Invalidator drops cached leaderboard snapshots.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Reconciler periodically recomputes profile aggregates from the ledger
// and participation rows, repairing any drift.
type Reconciler struct {
	store      *store.Store
	aggregates *aggregate.Updater
	ranker     Invalidator
	config     *config.ReconcileConfig
	logger     *logger.Logger
	stopCh     chan struct{}
	doneCh     chan struct{}
	mu         sync.Mutex
	running    bool
}

// Result summarizes one reconciliation cycle.
type Result struct {
	Checked int
	Drifted int
	Errors  int
}

// NewReconciler creates a new reconciler. ranker may be nil.
func NewReconciler(
	st *store.Store,
	aggregates *aggregate.Updater,
	ranker Invalidator,
	cfg *config.ReconcileConfig,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		store:      st,
		aggregates: aggregates,
		ranker:     ranker,
		config:     cfg,
		logger:     log.With("component", "Reconciler"),
	}
}

// Start begins the background reconcile loop
func (w *Reconciler) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	w.logger.Info("reconciler started", "interval", w.config.Interval)

	go w.run(ctx, w.stopCh, w.doneCh)
	return nil
}

// Stop stops the background reconcile loop
func (w *Reconciler) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("reconciler stopped")
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *Reconciler) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Reconciler) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce reconciles every profile, batch by batch.
func (w *Reconciler) RunOnce(ctx context.Context) Result {
	w.logger.Info("starting reconcile cycle")
	startTime := time.Now()

	batchSize := w.config.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	var res Result
	var after int64
	for ctx.Err() == nil {
		ids, err := w.store.ListProfileIDs(dbctx.Background(ctx), after, batchSize)
		if err != nil {
			w.logger.Error("failed to list profiles for reconcile", "error", err)
			res.Errors++
			break
		}
		for _, id := range ids {
			res.Checked++
			drifted, err := w.reconcileUser(ctx, id)
			switch {
			case err != nil:
				w.logger.Error("failed to reconcile profile", "user_id", id, "error", err)
				res.Errors++
			case drifted:
				res.Drifted++
			}
		}
		if len(ids) < batchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	if res.Drifted > 0 && w.ranker != nil {
		w.ranker.Invalidate(ctx)
	}

	w.logger.Info("reconcile cycle completed",
		"duration", time.Since(startTime),
		"checked", res.Checked,
		"drifted", res.Drifted,
		"errors", res.Errors,
	)
	return res
}

func (w *Reconciler) reconcileUser(ctx context.Context, userID int64) (bool, error) {
	var drifted bool
	err := w.store.Transaction(ctx, func(dbc dbctx.Context) error {
		if err := w.aggregates.Lock(dbc, userID); err != nil {
			return err
		}
		before, err := w.store.GetProfile(dbc, userID)
		if err != nil {
			return err
		}
		points, err := w.aggregates.RecomputeTotalPoints(dbc, userID)
		if err != nil {
			return err
		}
		events, err := w.aggregates.RecomputeTotalEvents(dbc, userID)
		if err != nil {
			return err
		}
		if points != before.TotalPoints || events != before.TotalEvents {
			drifted = true
			w.logger.Warn("profile aggregates drifted",
				"user_id", userID,
				"total_points", before.TotalPoints,
				"recomputed_points", points,
				"total_events", before.TotalEvents,
				"recomputed_events", events,
			)
		}
		return nil
	})
	// Deleted between listing and reconciling.
	if errors.Is(err, domain.ErrProfileNotFound) {
		return false, nil
	}
	return drifted, err
}
