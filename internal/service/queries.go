package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
)

// GetLeaderboard returns one page of a ranked leaderboard.
func (s *GamificationService) GetLeaderboard(ctx context.Context, q domain.LeaderboardQuery) (*domain.LeaderboardPage, error) {
	return s.ranker.Page(ctx, q)
}

// GetPointsDashboard summarises a user's points, activity and standing.
func (s *GamificationService) GetPointsDashboard(ctx context.Context, userID int64) (*domain.PointsDashboard, error) {
	dbc := dbctx.Background(ctx)

	profile, err := s.store.GetProfile(dbc, userID)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.store.Breakdown(dbc, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListTransactions(dbc, userID, nil, s.config.RecentTransactions)
	if err != nil {
		return nil, err
	}
	achievements, err := s.store.ListAchievements(dbc, userID)
	if err != nil {
		return nil, err
	}

	tier := domain.TierFor(profile.TotalPoints)
	dash := &domain.PointsDashboard{
		UserID:             userID,
		TotalPoints:        profile.TotalPoints,
		TotalEvents:        profile.TotalEvents,
		Tier:               tier.Name,
		Badge:              tier.Badge,
		Breakdown:          breakdown,
		RecentTransactions: nonNil(recent),
		Achievements:       nonNil(achievements),
	}

	board, err := s.ranker.Board(ctx, domain.PeriodAllTime)
	if err != nil {
		return nil, err
	}
	if rank, ok := board.RankOf(userID); ok {
		dash.Rank = &rank
	}
	return dash, nil
}

// GetAchievements lists the catalog with the user's earned or locked state.
func (s *GamificationService) GetAchievements(ctx context.Context, userID int64) (*domain.AchievementOverview, error) {
	dbc := dbctx.Background(ctx)

	if _, err := s.store.GetProfile(dbc, userID); err != nil {
		return nil, err
	}
	owned, err := s.store.ListAchievements(dbc, userID)
	if err != nil {
		return nil, err
	}
	earned := make(map[string]domain.Achievement, len(owned))
	for _, a := range owned {
		earned[a.Code] = a
	}

	view := &domain.AchievementOverview{
		CatalogVersion: s.catalog.Version,
		Achievements:   make([]domain.AchievementStatus, 0, len(s.catalog.Definitions)),
		TotalCount:     len(s.catalog.Definitions),
	}
	for _, def := range s.catalog.Definitions {
		st := domain.AchievementStatus{
			Code:        def.Code,
			Title:       def.Title,
			Description: def.Description,
			BonusPoints: def.BonusPoints,
		}
		if a, ok := earned[def.Code]; ok {
			earnedAt := a.EarnedAt
			st.Earned = true
			st.EarnedAt = &earnedAt
			st.BonusPoints = a.BonusPoints
			view.EarnedCount++
		}
		view.Achievements = append(view.Achievements, st)
	}
	view.EarnedPercent = percent(view.EarnedCount, view.TotalCount)
	return view, nil
}

// GetPointsHistory returns the user's ledger newest first, optionally
// filtered by activity type.
func (s *GamificationService) GetPointsHistory(ctx context.Context, userID int64, activity string, limit int) (*domain.PointsHistory, error) {
	dbc := dbctx.Background(ctx)

	var filter *domain.ActivityType
	if activity != "" {
		a, err := domain.ParseActivityType(activity)
		if err != nil {
			return nil, err
		}
		filter = &a
	}
	if limit <= 0 {
		limit = s.config.HistoryLimit
	}
	if limit > s.config.MaxHistoryLimit {
		limit = s.config.MaxHistoryLimit
	}

	if _, err := s.store.GetProfile(dbc, userID); err != nil {
		return nil, err
	}
	total, err := s.store.CountTransactions(dbc, userID, filter)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(dbc, userID, filter, limit)
	if err != nil {
		return nil, err
	}
	return &domain.PointsHistory{Transactions: nonNil(txs), TotalTransactions: total}, nil
}

// percent renders part/whole*100 with one decimal place.
func percent(part, whole int) string {
	if whole == 0 {
		return decimal.Zero.StringFixed(1)
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		StringFixed(1)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
