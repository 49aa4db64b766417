package service

import (
	"context"
	"errors"

	"github.com/sigma-sports/gamification/internal/achievement"
	"github.com/sigma-sports/gamification/internal/config"
	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/ledger"
	"github.com/sigma-sports/gamification/internal/logger"
	"github.com/sigma-sports/gamification/internal/pipeline"
	"github.com/sigma-sports/gamification/internal/ranking"
	"github.com/sigma-sports/gamification/internal/store"
)

// Broadcaster pushes leaderboard updates to live subscribers.
type Broadcaster interface {
	GetSubscriberCount(period string) int
	BroadcastLeaderboardUpdate(period string, entries []domain.LeaderboardEntry, totalUsers int)
}

// Ingest statuses.
const (
	StatusProcessed       = "processed"
	StatusAlreadyRecorded = "already_recorded"
)

// IngestResult reports what one domain event changed.
type IngestResult struct {
	Status       string                    `json:"status"`
	Transactions []domain.PointTransaction `json:"transactions"`
	Unlocked     []domain.Achievement      `json:"unlocked"`
	Duplicates   int                       `json:"duplicates"`
}

func newIngestResult() *IngestResult {
	return &IngestResult{
		Status:       StatusProcessed,
		Transactions: []domain.PointTransaction{},
		Unlocked:     []domain.Achievement{},
	}
}

// GamificationService ingests domain events and serves the read APIs.
type GamificationService struct {
	store    *store.Store
	pipeline *pipeline.Pipeline
	ranker   *ranking.Ranker
	catalog  achievement.Catalog
	points   config.PointsConfig
	config   config.LeaderboardConfig
	hub      Broadcaster
	logger   *logger.Logger
}

// NewGamificationService creates a new gamification service
func NewGamificationService(
	st *store.Store,
	p *pipeline.Pipeline,
	r *ranking.Ranker,
	catalog achievement.Catalog,
	cfg *config.Config,
	log *logger.Logger,
) *GamificationService {
	return &GamificationService{
		store:    st,
		pipeline: p,
		ranker:   r,
		catalog:  catalog,
		points:   cfg.Points,
		config:   cfg.Leaderboard,
		logger:   log.With("component", "GamificationService"),
	}
}

// SetHub sets the broadcaster used after each committed write.
func (s *GamificationService) SetHub(hub Broadcaster) {
	s.hub = hub
}

// Ping checks the database.
func (s *GamificationService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// award runs the write chain and folds the outcome into res. A duplicate is
// counted, not returned.
func (s *GamificationService) award(dbc dbctx.Context, res *IngestResult, entry ledger.Entry) error {
	out, err := s.pipeline.Award(dbc, entry)
	if errors.Is(err, domain.ErrAlreadyRecorded) {
		res.Duplicates++
		return nil
	}
	if err != nil {
		return err
	}
	s.collect(res, out)
	return nil
}

func (s *GamificationService) collect(res *IngestResult, out *pipeline.Outcome) {
	if out.Entry != nil {
		res.Transactions = append(res.Transactions, *out.Entry)
	}
	for _, b := range out.Bonuses {
		res.Transactions = append(res.Transactions, *b)
	}
	res.Unlocked = append(res.Unlocked, out.Unlocked...)
}

func (s *GamificationService) finish(res *IngestResult) *IngestResult {
	if len(res.Transactions) == 0 && res.Duplicates > 0 {
		res.Status = StatusAlreadyRecorded
	}
	return res
}

// afterCommit drops cached boards and pushes fresh ones to subscribers.
func (s *GamificationService) afterCommit(ctx context.Context) {
	s.ranker.Invalidate(ctx)
	if s.hub == nil {
		return
	}

	for _, period := range domain.Periods {
		if s.hub.GetSubscriberCount(string(period)) == 0 {
			continue
		}
		board, err := s.ranker.Board(ctx, period)
		if err != nil {
			s.logger.Warn("failed to compute board for broadcast", "period", period, "error", err)
			continue
		}
		s.hub.BroadcastLeaderboardUpdate(string(period), board.Top(s.config.BroadcastTop), len(board.Entries))
	}
}
