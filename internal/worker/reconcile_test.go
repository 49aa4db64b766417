package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigma-sports/gamification/internal/aggregate"
	"github.com/sigma-sports/gamification/internal/config"
	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
	"github.com/sigma-sports/gamification/internal/store"
	"github.com/sigma-sports/gamification/internal/store/storetest"
)

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate(context.Context) { c.n.Add(1) }

func newTestReconciler(t *testing.T, cfg *config.ReconcileConfig) (*Reconciler, *store.Store, *countingInvalidator) {
	t.Helper()
	s := storetest.New(t)
	inv := &countingInvalidator{}
	log := logger.Nop()
	return NewReconciler(s, aggregate.NewUpdater(s, log), inv, cfg, log), s, inv
}

func TestRunOnce_RepairsDrift(t *testing.T) {
	r, s, inv := newTestReconciler(t, &config.ReconcileConfig{BatchSize: 2, Interval: time.Hour})
	ctx := context.Background()
	dbc := dbctx.Background(ctx)
	storetest.SeedProfiles(t, s, 1, 2, 3)

	// user 1 has a ledger row the cached total never saw
	require.NoError(t, s.InsertTransaction(dbc, &domain.PointTransaction{
		ID:           uuid.New(),
		UserID:       1,
		ActivityType: domain.ActivityReviewGiven,
		Points:       5,
		Description:  "Gave review to user 2",
		CreatedAt:    time.Now().UTC(),
	}))
	// user 2 has a cached total with no ledger behind it
	require.NoError(t, s.SetTotalPoints(dbc, 2, 99))

	res := r.RunOnce(ctx)
	assert.Equal(t, Result{Checked: 3, Drifted: 2}, res)
	assert.Equal(t, int32(1), inv.n.Load())

	p1, err := s.GetProfile(dbc, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p1.TotalPoints)
	p2, err := s.GetProfile(dbc, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p2.TotalPoints)

	res = r.RunOnce(ctx)
	assert.Equal(t, Result{Checked: 3}, res)
	assert.Equal(t, int32(1), inv.n.Load())
}

func TestRunOnce_NoProfiles(t *testing.T) {
	r, _, _ := newTestReconciler(t, &config.ReconcileConfig{Interval: time.Hour})
	assert.Equal(t, Result{}, r.RunOnce(context.Background()))
}

func TestStartStop(t *testing.T) {
	r, s, _ := newTestReconciler(t, &config.ReconcileConfig{BatchSize: 10, Interval: 10 * time.Millisecond})
	ctx := context.Background()
	storetest.SeedProfiles(t, s, 1)
	require.NoError(t, s.SetTotalEvents(dbctx.Background(ctx), 1, 4))

	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Start(ctx))
	assert.True(t, r.IsRunning())

	assert.Eventually(t, func() bool {
		p, err := s.GetProfile(dbctx.Background(ctx), 1)
		return err == nil && p.TotalEvents == 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, r.Stop())
	assert.False(t, r.IsRunning())
	require.NoError(t, r.Stop())
}
