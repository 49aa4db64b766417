// Package ranking computes windowed, tiered and paginated leaderboards.
package ranking

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sigma-sports/gamification/internal/config"
	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
)

// Source supplies the data a board is computed from.
type Source interface {
	ListProfiles(dbc dbctx.Context) ([]domain.Profile, error)
	WindowedPoints(dbc dbctx.Context, since time.Time) (map[int64]int64, error)
}

// SnapshotCache stores computed boards between requests.
type SnapshotCache interface {
	Get(ctx context.Context, period domain.Period) (*Board, bool, error)
	Set(ctx context.Context, board *Board) error
	Invalidate(ctx context.Context) error
}

// Board is the full ordering for one period.
type Board struct {
	Period     domain.Period             `json:"period"`
	Entries    []domain.LeaderboardEntry `json:"entries"`
	ComputedAt time.Time                 `json:"computed_at"`

	index map[int64]int
}

func (b *Board) buildIndex() {
	b.index = make(map[int64]int, len(b.Entries))
	for i, e := range b.Entries {
		b.index[e.UserID] = i
	}
}

// RankOf returns the 1-based rank of the user.
func (b *Board) RankOf(userID int64) (int, bool) {
	i, ok := b.index[userID]
	if !ok {
		return 0, false
	}
	return b.Entries[i].Rank, true
}

// Entry returns the user's row.
func (b *Board) Entry(userID int64) (domain.LeaderboardEntry, bool) {
	i, ok := b.index[userID]
	if !ok {
		return domain.LeaderboardEntry{}, false
	}
	return b.Entries[i], true
}

// Top returns at most n leading entries.
func (b *Board) Top(n int) []domain.LeaderboardEntry {
	if n > len(b.Entries) {
		n = len(b.Entries)
	}
	return b.Entries[:n]
}

// Ranker computes boards on demand. It only reads.
type Ranker struct {
	src            Source
	cache          SnapshotCache
	group          singleflight.Group
	mu             sync.Mutex // orders cache writes against Invalidate
	generation     uint64
	now            func() time.Time
	defaultPerPage int
	maxPerPage     int
	log            *logger.Logger
}

// NewRanker creates a ranker.
func NewRanker(src Source, cfg config.LeaderboardConfig, log *logger.Logger) *Ranker {
	return &Ranker{
		src:            src,
		now:            time.Now,
		defaultPerPage: cfg.DefaultPerPage,
		maxPerPage:     cfg.MaxPerPage,
		log:            log.With("component", "Ranker"),
	}
}

// WithCache enables snapshot caching.
func (r *Ranker) WithCache(c SnapshotCache) *Ranker {
	r.cache = c
	return r
}

// WithClock overrides the window reference time.
func (r *Ranker) WithClock(now func() time.Time) *Ranker {
	r.now = now
	return r
}

// Compute builds a fresh board, bypassing the cache.
func (r *Ranker) Compute(ctx context.Context, period domain.Period) (*Board, error) {
	dbc := dbctx.Background(ctx)
	now := r.now().UTC()

	profiles, err := r.src.ListProfiles(dbc)
	if err != nil {
		return nil, err
	}

	var windowed map[int64]int64
	if since, ok := period.Since(now); ok {
		windowed, err = r.src.WindowedPoints(dbc, since)
		if err != nil {
			return nil, err
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(profiles))
	for _, p := range profiles {
		points := p.TotalPoints
		if windowed != nil {
			points = windowed[p.UserID]
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      p.UserID,
			Username:    p.Username,
			FullName:    p.FullName,
			Points:      points,
			TotalEvents: p.TotalEvents,
		})
	}

	slices.SortFunc(entries, func(a, b domain.LeaderboardEntry) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	for i := range entries {
		entries[i].Rank = i + 1
		tier := domain.TierFor(entries[i].Points)
		entries[i].Tier = tier.Name
		entries[i].Badge = tier.Badge
	}

	b := &Board{Period: period, Entries: entries, ComputedAt: now}
	b.buildIndex()
	return b, nil
}

// Board returns the board for period from the cache when possible.
// Concurrent callers for the same period share one computation. A
// computation that started before an Invalidate is never cached and is not
// joined by later callers.
func (r *Ranker) Board(ctx context.Context, period domain.Period) (*Board, error) {
	if r.cache != nil {
		b, ok, err := r.cache.Get(ctx, period)
		if err != nil {
			r.log.Warn("snapshot cache read failed", "period", period, "error", err)
		} else if ok {
			b.buildIndex()
			return b, nil
		}
	}

	// The computation outlives any single caller.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(string(period), func() (interface{}, error) {
		gen := r.currentGeneration()
		b, err := r.Compute(flightCtx, period)
		if err != nil {
			return nil, err
		}
		r.cacheBoard(flightCtx, gen, b)
		return b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("computing %s leaderboard: %w", period, err)
	}
	return v.(*Board), nil
}

func (r *Ranker) currentGeneration() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// cacheBoard caches b unless an Invalidate happened since gen was read.
func (r *Ranker) cacheBoard(ctx context.Context, gen uint64, b *Board) {
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		r.log.Debug("discarding board computed before invalidation", "period", b.Period)
		return
	}
	if err := r.cache.Set(ctx, b); err != nil {
		r.log.Warn("snapshot cache write failed", "period", b.Period, "error", err)
	}
}

// Invalidate drops cached boards and detaches in-flight computations, so
// the next Board call reflects every write committed before it.
func (r *Ranker) Invalidate(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	for _, p := range domain.Periods {
		r.group.Forget(string(p))
	}
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx); err != nil {
		r.log.Warn("snapshot cache invalidation failed", "error", err)
	}
}

// Page returns one page of the board. Pages past the end are empty.
func (r *Ranker) Page(ctx context.Context, q domain.LeaderboardQuery) (*domain.LeaderboardPage, error) {
	period, err := domain.ParsePeriod(string(q.Period))
	if err != nil {
		return nil, err
	}
	q.Period = period
	if q.Page <= 0 || q.PerPage <= 0 {
		return nil, domain.ErrInvalidPagination
	}
	if r.maxPerPage > 0 && q.PerPage > r.maxPerPage {
		q.PerPage = r.maxPerPage
	}

	b, err := r.Board(ctx, q.Period)
	if err != nil {
		return nil, err
	}

	page := &domain.LeaderboardPage{
		Period:     q.Period,
		Users:      []domain.LeaderboardEntry{},
		TotalCount: len(b.Entries),
		Page:       q.Page,
		PerPage:    q.PerPage,
		ComputedAt: b.ComputedAt,
	}
	if q.Page-1 < (len(b.Entries)+q.PerPage-1)/q.PerPage {
		start := (q.Page - 1) * q.PerPage
		end := min(start+q.PerPage, len(b.Entries))
		page.Users = b.Entries[start:end]
	}
	if q.CurrentUserID != 0 {
		if rank, ok := b.RankOf(q.CurrentUserID); ok {
			page.CurrentUserRank = &rank
		}
	}
	return page, nil
}

// DefaultPerPage is the page size used when the caller gives none.
func (r *Ranker) DefaultPerPage() int { return r.defaultPerPage }
