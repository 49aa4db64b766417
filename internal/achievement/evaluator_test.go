package achievement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
	"github.com/sigma-sports/gamification/internal/store"
	"github.com/sigma-sports/gamification/internal/store/storetest"
)

func insert(t *testing.T, s *store.Store, userID int64, a domain.ActivityType, n int) {
	t.Helper()
	dbc := dbctx.Background(context.Background())
	for i := 0; i < n; i++ {
		eventID := int64(1000 + i)
		require.NoError(t, s.InsertTransaction(dbc, &domain.PointTransaction{
			ID:             uuid.New(),
			UserID:         userID,
			ActivityType:   a,
			Points:         1,
			Description:    fmt.Sprintf("%s #%d", a, i),
			RelatedEventID: &eventID,
			DedupKey:       a.DedupKey(&eventID),
			CreatedAt:      time.Now().UTC(),
		}))
	}
}

func codes(as []domain.Achievement) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.Code)
	}
	return out
}

func TestEvaluate_FirstEvent(t *testing.T) {
	s := storetest.New(t)
	e := NewEvaluator(s, DefaultCatalog(), logger.Nop())
	dbc := dbctx.Background(context.Background())

	unlocked, err := e.Evaluate(dbc, 1)
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	insert(t, s, 1, domain.ActivityEventJoin, 1)
	unlocked, err = e.Evaluate(dbc, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"first_event"}, codes(unlocked))
	assert.Equal(t, int64(5), unlocked[0].BonusPoints)
	assert.Equal(t, "🏃 First Event", unlocked[0].Title)
}

func TestEvaluate_IsIdempotent(t *testing.T) {
	s := storetest.New(t)
	e := NewEvaluator(s, DefaultCatalog(), logger.Nop())
	dbc := dbctx.Background(context.Background())
	insert(t, s, 1, domain.ActivityEventJoin, 1)

	first, err := e.Evaluate(dbc, 1)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := e.Evaluate(dbc, 1)
	require.NoError(t, err)
	assert.Empty(t, second)

	owned, err := s.ListAchievements(dbc, 1)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestEvaluate_ChecksWholeCatalog(t *testing.T) {
	s := storetest.New(t)
	e := NewEvaluator(s, DefaultCatalog(), logger.Nop())
	dbc := dbctx.Background(context.Background())

	insert(t, s, 1, domain.ActivityEventJoin, 1)
	insert(t, s, 1, domain.ActivityEventComplete, 10)
	insert(t, s, 1, domain.ActivityFiveStarReceived, 10)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.SaveEvent(dbc, &domain.Event{ID: i, OrganizerID: 1, Status: domain.EventCompleted}))
	}

	unlocked, err := e.Evaluate(dbc, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"first_event", "ten_events", "organizer", "highly_rated"}, codes(unlocked))
}

func TestEvaluate_Thresholds(t *testing.T) {
	s := storetest.New(t)
	e := NewEvaluator(s, DefaultCatalog(), logger.Nop())
	dbc := dbctx.Background(context.Background())

	insert(t, s, 1, domain.ActivityEventComplete, 9)
	insert(t, s, 1, domain.ActivityFiveStarReceived, 9)
	for i := int64(1); i <= 4; i++ {
		require.NoError(t, s.SaveEvent(dbc, &domain.Event{ID: i, OrganizerID: 1, Status: domain.EventCompleted}))
	}
	require.NoError(t, s.SaveEvent(dbc, &domain.Event{ID: 5, OrganizerID: 1, Status: domain.EventOpen}))

	unlocked, err := e.Evaluate(dbc, 1)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestEvaluate_BonusRowsNeverUnlock(t *testing.T) {
	s := storetest.New(t)
	e := NewEvaluator(s, DefaultCatalog(), logger.Nop())
	insert(t, s, 1, domain.ActivityAchievementBonus, 50)

	unlocked, err := e.Evaluate(dbctx.Background(context.Background()), 1)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}
