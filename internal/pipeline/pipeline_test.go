package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigma-sports/gamification/internal/achievement"
	"github.com/sigma-sports/gamification/internal/aggregate"
	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/ledger"
	"github.com/sigma-sports/gamification/internal/logger"
	"github.com/sigma-sports/gamification/internal/store"
	"github.com/sigma-sports/gamification/internal/store/storetest"
)

func setup(t *testing.T, userIDs ...int64) (*Pipeline, *store.Store) {
	t.Helper()
	s := storetest.New(t)
	storetest.SeedProfiles(t, s, userIDs...)
	log := logger.Nop()
	p := New(
		ledger.NewWriter(s, log),
		aggregate.NewUpdater(s, log),
		achievement.NewEvaluator(s, achievement.DefaultCatalog(), log),
		log,
	)
	return p, s
}

func award(t *testing.T, p *Pipeline, s *store.Store, e ledger.Entry) (*Outcome, error) {
	t.Helper()
	var out *Outcome
	err := s.Transaction(context.Background(), func(dbc dbctx.Context) error {
		var err error
		out, err = p.Award(dbc, e)
		return err
	})
	return out, err
}

// assertTotalMatchesLedger checks total_points == SUM(points).
func assertTotalMatchesLedger(t *testing.T, s *store.Store, userID int64) {
	t.Helper()
	dbc := dbctx.Background(context.Background())
	sum, err := s.SumPoints(dbc, userID)
	require.NoError(t, err)
	p, err := s.GetProfile(dbc, userID)
	require.NoError(t, err)
	assert.Equal(t, sum, p.TotalPoints)
}

func TestAward_FirstJoinUnlocksFirstEvent(t *testing.T) {
	p, s := setup(t, 1)
	eventID := int64(100)

	out, err := award(t, p, s, ledger.Entry{
		UserID: 1, Activity: domain.ActivityEventJoin, Points: 10,
		Description: "Joined event: Morning run", RelatedEventID: &eventID,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(15), out.TotalPoints)
	require.Len(t, out.Unlocked, 1)
	assert.Equal(t, "first_event", out.Unlocked[0].Code)
	require.Len(t, out.Bonuses, 1)
	assert.Equal(t, domain.ActivityAchievementBonus, out.Bonuses[0].ActivityType)
	assert.Equal(t, int64(5), out.Bonuses[0].Points)
	assert.Contains(t, out.Bonuses[0].Description, "first_event")

	dbc := dbctx.Background(context.Background())
	prof, err := s.GetProfile(dbc, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(15), prof.TotalPoints)

	breakdown, err := s.Breakdown(dbc, 1)
	require.NoError(t, err)
	for _, b := range breakdown {
		switch b.ActivityType {
		case domain.ActivityEventJoin:
			assert.Equal(t, int64(10), b.Total)
		case domain.ActivityAchievementBonus:
			assert.Equal(t, int64(5), b.Total)
		default:
			assert.Zero(t, b.Total)
		}
	}
}

func TestAward_SecondJoinDoesNotRepeatBonus(t *testing.T) {
	p, s := setup(t, 1)

	_, err := award(t, p, s, ledger.Entry{UserID: 1, Activity: domain.ActivityEventJoin, Points: 10})
	require.NoError(t, err)
	out, err := award(t, p, s, ledger.Entry{UserID: 1, Activity: domain.ActivityEventJoin, Points: 10})
	require.NoError(t, err)

	assert.Empty(t, out.Unlocked)
	assert.Equal(t, int64(25), out.TotalPoints)
	assertTotalMatchesLedger(t, s, 1)
}

func TestAward_TenthCompletionUnlocksTenEvents(t *testing.T) {
	p, s := setup(t, 1)

	for i := 1; i <= 9; i++ {
		eventID := int64(i)
		out, err := award(t, p, s, ledger.Entry{
			UserID: 1, Activity: domain.ActivityEventComplete, Points: 30,
			Description: fmt.Sprintf("Completed event: #%d", i), RelatedEventID: &eventID,
		})
		require.NoError(t, err)
		assert.Empty(t, out.Unlocked, "event %d", i)
	}

	dbc := dbctx.Background(context.Background())
	n, err := s.CountAchievements(dbc, 1, "ten_events")
	require.NoError(t, err)
	assert.Zero(t, n)

	eventID := int64(10)
	out, err := award(t, p, s, ledger.Entry{
		UserID: 1, Activity: domain.ActivityEventComplete, Points: 30, RelatedEventID: &eventID,
	})
	require.NoError(t, err)
	require.Len(t, out.Unlocked, 1)
	assert.Equal(t, "ten_events", out.Unlocked[0].Code)
	assert.Equal(t, int64(10*30+20), out.TotalPoints)
	assertTotalMatchesLedger(t, s, 1)
}

func TestAward_DuplicateCompletionIsAlreadyRecorded(t *testing.T) {
	p, s := setup(t, 1)
	eventID := int64(5)
	entry := ledger.Entry{UserID: 1, Activity: domain.ActivityEventComplete, Points: 30, RelatedEventID: &eventID}

	_, err := award(t, p, s, entry)
	require.NoError(t, err)
	_, err = award(t, p, s, entry)
	assert.ErrorIs(t, err, domain.ErrAlreadyRecorded)

	prof, err := s.GetProfile(dbctx.Background(context.Background()), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(30), prof.TotalPoints)
}

func TestAward_ConcurrentCompletionsRecordOnce(t *testing.T) {
	p, s := setup(t, 1)
	eventID := int64(77)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dups int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := award(t, p, s, ledger.Entry{
				UserID: 1, Activity: domain.ActivityEventComplete, Points: 30, RelatedEventID: &eventID,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrAlreadyRecorded):
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, dups)

	n, err := s.CountActivity(dbctx.Background(context.Background()), 1, domain.ActivityEventComplete)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assertTotalMatchesLedger(t, s, 1)
}

func TestAward_ConcurrentFirstJoinsUnlockOnce(t *testing.T) {
	p, s := setup(t, 1)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = award(t, p, s, ledger.Entry{UserID: 1, Activity: domain.ActivityEventJoin, Points: 10})
		}()
	}
	wg.Wait()

	dbc := dbctx.Background(context.Background())
	n, err := s.CountAchievements(dbc, 1, "first_event")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	bonuses, err := s.CountActivity(dbc, 1, domain.ActivityAchievementBonus)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bonuses)
	assertTotalMatchesLedger(t, s, 1)
}

func TestAward_MissingProfileStillRecords(t *testing.T) {
	p, s := setup(t)

	out, err := award(t, p, s, ledger.Entry{UserID: 9, Activity: domain.ActivityReviewGiven, Points: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.TotalPoints)
}

func TestReevaluate_OrganizerUnlock(t *testing.T) {
	p, s := setup(t, 3)
	ctx := context.Background()

	err := s.Transaction(ctx, func(dbc dbctx.Context) error {
		for i := int64(1); i <= 5; i++ {
			if err := s.SaveEvent(dbc, &domain.Event{ID: i, OrganizerID: 3, Status: domain.EventCompleted}); err != nil {
				return err
			}
		}
		out, err := p.Reevaluate(dbc, 3)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(30), out.TotalPoints)
		return nil
	})
	require.NoError(t, err)
	assertTotalMatchesLedger(t, s, 3)
}

// Codes unlock at most once, so even a catalog that counts bonuses (and
// would fail validation) settles inside the round bound.
func TestAward_SelfTriggeringCatalogSettles(t *testing.T) {
	s := storetest.New(t)
	storetest.SeedProfiles(t, s, 1)
	log := logger.Nop()
	catalog := achievement.Catalog{Version: 99, Definitions: []achievement.Definition{{
		Code:        "seed",
		BonusPoints: 1,
		Condition:   achievement.Condition{Kind: achievement.ConditionActivityCount, Activity: domain.ActivityEventJoin, Threshold: 1},
	}}}
	for i := 1; i <= 3; i++ {
		catalog.Definitions = append(catalog.Definitions, achievement.Definition{
			Code:        fmt.Sprintf("loop_%d", i),
			BonusPoints: 1,
			Condition: achievement.Condition{
				Kind:      achievement.ConditionActivityCount,
				Activity:  domain.ActivityAchievementBonus,
				Threshold: int64(i),
			},
		})
	}
	require.ErrorIs(t, catalog.Validate(), domain.ErrInvalidCatalog)

	p := New(ledger.NewWriter(s, log), aggregate.NewUpdater(s, log), achievement.NewEvaluator(s, catalog, log), log)
	out, err := award(t, p, s, ledger.Entry{UserID: 1, Activity: domain.ActivityEventJoin, Points: 1})
	require.NoError(t, err)
	assert.Len(t, out.Unlocked, 4)
	assert.Equal(t, int64(5), out.TotalPoints)
	assertTotalMatchesLedger(t, s, 1)
}

// traceStore records the order of the statements the chain issues.
type traceStore struct {
	*store.Store
	mu    sync.Mutex
	calls []string
}

func (s *traceStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *traceStore) LockProfile(dbc dbctx.Context, userID int64) error {
	s.record(fmt.Sprintf("lock:%d", userID))
	return s.Store.LockProfile(dbc, userID)
}

func (s *traceStore) InsertTransaction(dbc dbctx.Context, tx *domain.PointTransaction) error {
	s.record("insert:" + string(tx.ActivityType))
	return s.Store.InsertTransaction(dbc, tx)
}

func (s *traceStore) SumPoints(dbc dbctx.Context, userID int64) (int64, error) {
	s.record(fmt.Sprintf("sum:%d", userID))
	return s.Store.SumPoints(dbc, userID)
}

func (s *traceStore) CountActiveParticipations(dbc dbctx.Context, userID int64) (int64, error) {
	s.record(fmt.Sprintf("count_events:%d", userID))
	return s.Store.CountActiveParticipations(dbc, userID)
}

func tracedSetup(t *testing.T, userIDs ...int64) (*Pipeline, *traceStore) {
	t.Helper()
	ts := &traceStore{Store: storetest.New(t)}
	storetest.SeedProfiles(t, ts.Store, userIDs...)
	log := logger.Nop()
	p := New(
		ledger.NewWriter(ts, log),
		aggregate.NewUpdater(ts, log),
		achievement.NewEvaluator(ts, achievement.DefaultCatalog(), log),
		log,
	)
	return p, ts
}

func TestAward_LocksProfileBeforeWriting(t *testing.T) {
	p, ts := tracedSetup(t, 1)
	eventID := int64(5)

	_, err := award(t, p, ts.Store, ledger.Entry{
		UserID: 1, Activity: domain.ActivityEventJoin, Points: 10,
		Description: "Joined event: Track night", RelatedEventID: &eventID,
	})
	require.NoError(t, err)

	require.NotEmpty(t, ts.calls)
	assert.Equal(t, "lock:1", ts.calls[0])
	assert.Equal(t, "insert:event_join", ts.calls[1])
	assert.Contains(t, ts.calls, "insert:achievement_bonus")
	assertTotalMatchesLedger(t, ts.Store, 1)
}

func TestReevaluateAndRecompute_LockFirst(t *testing.T) {
	p, ts := tracedSetup(t, 1)
	dbc := dbctx.Background(context.Background())

	_, err := p.Reevaluate(dbc, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"lock:1", "sum:1"}, ts.calls)

	ts.calls = nil
	_, err = p.RecomputeTotalEvents(dbc, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"lock:1", "count_events:1"}, ts.calls)
}

func TestLock_OrdersAndDedupsUsers(t *testing.T) {
	p, ts := tracedSetup(t, 1, 3)
	require.NoError(t, p.Lock(dbctx.Background(context.Background()), 3, 1, 3, 404))
	assert.Equal(t, []string{"lock:1", "lock:3", "lock:404"}, ts.calls)
}
