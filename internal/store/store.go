package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/sigma-sports/gamification/internal/config"
	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
)

// Store provides gorm-backed access to the ledger, aggregates and the
// mirrored collaborator tables.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to the configured database and applies pool settings.
func Open(cfg *config.DatabaseConfig, baseLog *logger.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql handle: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}

	return New(db, baseLog), nil
}

// New wraps an existing connection.
func New(db *gorm.DB, baseLog *logger.Logger) *Store {
	return &Store{db: db, log: baseLog.With("component", "Store")}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

// RunMigrations creates or updates every table the service owns.
func (s *Store) RunMigrations(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&domain.Profile{},
		&domain.Event{},
		&domain.Participation{},
		&domain.PointTransaction{},
		&domain.Achievement{},
	)
	if err != nil {
		return fmt.Errorf("executing migrations: %w", err)
	}
	s.log.Info("database migrations completed")
	return nil
}

// Transaction runs fn inside one database transaction. The dbctx handed to
// fn must be used for every query made inside it.
func (s *Store) Transaction(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) conn(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return transaction.WithContext(ctx)
}

// isUniqueViolation reports whether err came from a unique index.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
