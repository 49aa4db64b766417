package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
	"github.com/sigma-sports/gamification/internal/store/storetest"
)

func TestRecomputeTotalPoints(t *testing.T) {
	s := storetest.New(t)
	storetest.SeedProfiles(t, s, 1)
	dbc := dbctx.Background(context.Background())

	for _, pts := range []int64{10, 30, -5} {
		require.NoError(t, s.InsertTransaction(dbc, &domain.PointTransaction{
			ID: uuid.New(), UserID: 1, ActivityType: domain.ActivityEventJoin,
			Points: pts, Description: "x", CreatedAt: time.Now().UTC(),
		}))
	}

	u := NewUpdater(s, logger.Nop())
	total, err := u.RecomputeTotalPoints(dbc, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(35), total)

	p, err := s.GetProfile(dbc, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(35), p.TotalPoints)
}

func TestRecomputeTotalEvents(t *testing.T) {
	s := storetest.New(t)
	storetest.SeedProfiles(t, s, 1)
	dbc := dbctx.Background(context.Background())

	storetest.SaveParticipation(t, s, &domain.Participation{UserID: 1, EventID: 1, Status: domain.ParticipationJoined})
	storetest.SaveParticipation(t, s, &domain.Participation{UserID: 1, EventID: 2, Status: domain.ParticipationCancelled})

	u := NewUpdater(s, logger.Nop())
	total, err := u.RecomputeTotalEvents(dbc, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	p, err := s.GetProfile(dbc, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.TotalEvents)
	assert.Zero(t, p.TotalPoints)
}

func TestRecompute_MissingProfileIsSkipped(t *testing.T) {
	u := NewUpdater(storetest.New(t), logger.Nop())
	dbc := dbctx.Background(context.Background())

	_, err := u.RecomputeTotalPoints(dbc, 404)
	assert.NoError(t, err)
	_, err = u.RecomputeTotalEvents(dbc, 404)
	assert.NoError(t, err)
}
