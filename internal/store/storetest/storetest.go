// Package storetest opens throwaway in-memory stores for tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
	"github.com/sigma-sports/gamification/internal/store"
)

// New returns a migrated store backed by a private in-memory sqlite
// database. The pool is pinned to one connection so every query sees the
// same database.
func New(tb testing.TB) *store.Store {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	s := store.New(db, logger.Nop())
	if err := s.RunMigrations(context.Background()); err != nil {
		tb.Fatalf("failed to migrate test database: %v", err)
	}
	return s
}

// SeedProfiles inserts a profile for each id with username "user<id>".
func SeedProfiles(tb testing.TB, s *store.Store, ids ...int64) {
	tb.Helper()
	for _, id := range ids {
		p := &domain.Profile{UserID: id, Username: usernameFor(id)}
		if err := s.DB().Create(p).Error; err != nil {
			tb.Fatalf("failed to seed profile %d: %v", id, err)
		}
	}
}

// SaveParticipation writes one participation row or fails the test.
func SaveParticipation(tb testing.TB, s *store.Store, p *domain.Participation) {
	tb.Helper()
	if _, err := s.SaveParticipation(dbctx.Background(context.Background()), p); err != nil {
		tb.Fatalf("failed to save participation: %v", err)
	}
}

func usernameFor(id int64) string {
	return fmt.Sprintf("user%d", id)
}
