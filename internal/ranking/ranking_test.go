package ranking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigma-sports/gamification/internal/config"
	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
	"github.com/sigma-sports/gamification/internal/store"
	"github.com/sigma-sports/gamification/internal/store/storetest"
)

var lbConfig = config.LeaderboardConfig{DefaultPerPage: 20, MaxPerPage: 100}

func addPoints(t *testing.T, s *store.Store, userID, points int64, at time.Time) {
	t.Helper()
	dbc := dbctx.Background(context.Background())
	require.NoError(t, s.InsertTransaction(dbc, &domain.PointTransaction{
		ID: uuid.New(), UserID: userID, ActivityType: domain.ActivityEventJoin,
		Points: points, Description: "seed", CreatedAt: at.UTC(),
	}))
	total, err := s.SumPoints(dbc, userID)
	require.NoError(t, err)
	require.NoError(t, s.SetTotalPoints(dbc, userID, total))
}

func TestCompute_TiesAndZeroPointUsers(t *testing.T) {
	s := storetest.New(t)
	storetest.SeedProfiles(t, s, 3, 2, 1)
	now := time.Now()
	addPoints(t, s, 2, 200, now)
	addPoints(t, s, 1, 200, now)

	r := NewRanker(s, lbConfig, logger.Nop())
	b, err := r.Compute(context.Background(), domain.PeriodAllTime)
	require.NoError(t, err)

	require.Len(t, b.Entries, 3)
	assert.Equal(t, int64(1), b.Entries[0].UserID)
	assert.Equal(t, int64(2), b.Entries[1].UserID)
	assert.Equal(t, int64(3), b.Entries[2].UserID)
	for i, e := range b.Entries {
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, int64(0), b.Entries[2].Points)
	assert.Equal(t, "Advanced", b.Entries[0].Tier)
	assert.Equal(t, "🥉", b.Entries[0].Badge)
	assert.Equal(t, "Beginner", b.Entries[2].Tier)

	rank, ok := b.RankOf(3)
	require.True(t, ok)
	assert.Equal(t, 3, rank)
	_, ok = b.RankOf(404)
	assert.False(t, ok)
}

func TestCompute_WeeklyWindow(t *testing.T) {
	s := storetest.New(t)
	storetest.SeedProfiles(t, s, 1)
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	addPoints(t, s, 1, 100, now.Add(-10*24*time.Hour))
	addPoints(t, s, 1, 30, now.Add(-2*24*time.Hour))

	r := NewRanker(s, lbConfig, logger.Nop()).WithClock(func() time.Time { return now })
	ctx := context.Background()

	weekly, err := r.Compute(ctx, domain.PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, int64(30), weekly.Entries[0].Points)

	monthly, err := r.Compute(ctx, domain.PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, int64(130), monthly.Entries[0].Points)

	allTime, err := r.Compute(ctx, domain.PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(130), allTime.Entries[0].Points)
}

func TestPage(t *testing.T) {
	s := storetest.New(t)
	storetest.SeedProfiles(t, s, 1, 2, 3, 4, 5)
	now := time.Now()
	for id := int64(1); id <= 5; id++ {
		addPoints(t, s, id, id*100, now)
	}
	r := NewRanker(s, lbConfig, logger.Nop())
	ctx := context.Background()

	page, err := r.Page(ctx, domain.LeaderboardQuery{Page: 2, PerPage: 2, CurrentUserID: 5})
	require.NoError(t, err)
	assert.Equal(t, domain.PeriodAllTime, page.Period)
	assert.Equal(t, 5, page.TotalCount)
	require.Len(t, page.Users, 2)
	assert.Equal(t, int64(3), page.Users[0].UserID)
	assert.Equal(t, 3, page.Users[0].Rank)
	require.NotNil(t, page.CurrentUserRank)
	assert.Equal(t, 1, *page.CurrentUserRank)

	last, err := r.Page(ctx, domain.LeaderboardQuery{Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, last.Users, 1)
	assert.Nil(t, last.CurrentUserRank)

	beyond, err := r.Page(ctx, domain.LeaderboardQuery{Page: 50, PerPage: 2})
	require.NoError(t, err)
	assert.NotNil(t, beyond.Users)
	assert.Empty(t, beyond.Users)

	clamped, err := r.Page(ctx, domain.LeaderboardQuery{Page: 1, PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, clamped.PerPage)
	assert.Len(t, clamped.Users, 5)
}

func TestPage_InvalidInput(t *testing.T) {
	r := NewRanker(storetest.New(t), lbConfig, logger.Nop())
	ctx := context.Background()

	_, err := r.Page(ctx, domain.LeaderboardQuery{Period: "yearly", Page: 1, PerPage: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
	_, err = r.Page(ctx, domain.LeaderboardQuery{Page: 0, PerPage: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidPagination)
	_, err = r.Page(ctx, domain.LeaderboardQuery{Page: 1, PerPage: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidPagination)
}

func TestPage_EmptyBoard(t *testing.T) {
	r := NewRanker(storetest.New(t), lbConfig, logger.Nop())

	page, err := r.Page(context.Background(), domain.LeaderboardQuery{Period: domain.PeriodWeekly, Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)
	assert.Empty(t, page.Users)
}

type memoryCache struct {
	mu     sync.Mutex
	boards map[domain.Period]Board
	sets   int
}

func (c *memoryCache) Get(_ context.Context, p domain.Period) (*Board, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.boards[p]
	if !ok {
		return nil, false, nil
	}
	return &b, true, nil
}

func (c *memoryCache) Set(_ context.Context, b *Board) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.boards == nil {
		c.boards = map[domain.Period]Board{}
	}
	c.boards[b.Period] = Board{Period: b.Period, Entries: b.Entries, ComputedAt: b.ComputedAt}
	c.sets++
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards = nil
	return nil
}

func TestBoard_UsesCacheUntilInvalidated(t *testing.T) {
	s := storetest.New(t)
	storetest.SeedProfiles(t, s, 1, 2)
	cache := &memoryCache{}
	r := NewRanker(s, lbConfig, logger.Nop()).WithCache(cache)
	ctx := context.Background()

	b, err := r.Board(ctx, domain.PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.Entries[0].UserID)

	addPoints(t, s, 2, 60, time.Now())

	stale, err := r.Board(ctx, domain.PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stale.Entries[0].UserID)
	rank, ok := stale.RankOf(2)
	require.True(t, ok)
	assert.Equal(t, 2, rank)

	r.Invalidate(ctx)
	fresh, err := r.Board(ctx, domain.PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.Entries[0].UserID)
	assert.Equal(t, 2, cache.sets)
}

// gatedSource holds the first ListProfiles call until released.
type gatedSource struct {
	*store.Store
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (g *gatedSource) ListProfiles(dbc dbctx.Context) ([]domain.Profile, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return g.Store.ListProfiles(dbc)
}

func TestBoard_InvalidateDuringComputationIsNotCached(t *testing.T) {
	s := storetest.New(t)
	storetest.SeedProfiles(t, s, 1, 2)
	src := &gatedSource{Store: s, started: make(chan struct{}), release: make(chan struct{})}
	cache := &memoryCache{}
	r := NewRanker(src, lbConfig, logger.Nop()).WithCache(cache)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := r.Board(ctx, domain.PeriodAllTime)
		assert.NoError(t, err)
	}()
	<-src.started

	addPoints(t, s, 2, 60, time.Now())
	r.Invalidate(ctx)

	// a caller arriving after the write does not join the older computation
	during, err := r.Board(ctx, domain.PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), during.Entries[0].UserID)

	close(src.release)
	wg.Wait()

	after, err := r.Board(ctx, domain.PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.Entries[0].UserID)
	assert.Equal(t, int64(60), after.Entries[0].Points)
	assert.Equal(t, 1, cache.sets)
}

func TestBoard_CancelledCallerStillComputes(t *testing.T) {
	s := storetest.New(t)
	storetest.SeedProfiles(t, s, 1)
	r := NewRanker(s, lbConfig, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, err := r.Board(ctx, domain.PeriodAllTime)
	require.NoError(t, err)
	assert.Len(t, b.Entries, 1)
}
