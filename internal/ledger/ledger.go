// Package ledger appends immutable point transactions.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sigma-sports/gamification/internal/dbctx"
	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
)

// Store is the persistence the writer needs.
type Store interface {
	InsertTransaction(dbc dbctx.Context, tx *domain.PointTransaction) error
}

// Entry is a request to append one ledger row.
type Entry struct {
	UserID         int64
	Activity       domain.ActivityType
	Points         int64
	Description    string
	RelatedEventID *int64
}

// Writer appends ledger rows. There is no update path.
type Writer struct {
	store Store
	now   func() time.Time
	log   *logger.Logger
}

// NewWriter creates a ledger writer.
func NewWriter(store Store, log *logger.Logger) *Writer {
	return &Writer{
		store: store,
		now:   time.Now,
		log:   log.With("component", "LedgerWriter"),
	}
}

// WithClock overrides the creation timestamp source.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Record validates e and appends it. ErrAlreadyRecorded is returned when a
// once-per-event activity already exists for (user, event).
func (w *Writer) Record(dbc dbctx.Context, e Entry) (*domain.PointTransaction, error) {
	if !e.Activity.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidActivity, e.Activity)
	}
	if e.Activity.OncePerEvent() && e.RelatedEventID == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingRelatedEvent, e.Activity)
	}

	tx := &domain.PointTransaction{
		ID:             uuid.New(),
		UserID:         e.UserID,
		ActivityType:   e.Activity,
		Points:         e.Points,
		Description:    e.Description,
		RelatedEventID: e.RelatedEventID,
		DedupKey:       e.Activity.DedupKey(e.RelatedEventID),
		CreatedAt:      w.now().UTC(),
	}
	if err := w.store.InsertTransaction(dbc, tx); err != nil {
		return nil, err
	}

	w.log.Debug("point transaction recorded",
		"user_id", tx.UserID,
		"activity", tx.ActivityType,
		"points", tx.Points,
	)
	return tx, nil
}
