package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/steward/internal/models"
	"github.com/fatflowers/steward/pkg/logctx"
	"github.com/fatflowers/steward/pkg/tool"
)

// Service owns the processed-notification ledger. Admission is the
// idempotency gate: a conflict-ignoring insert on the ledger's
// (provider, notification_id) unique index, so concurrent deliveries of
// the same notification collapse to exactly one admission at the
// database, not in application code.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Admit inserts the ledger row inside the caller's transaction and
// reports whether this delivery won the key. A false return means a
// ledger row for (provider, notification_id) already exists or is being
// committed by a concurrent delivery; the caller must treat the
// notification as a duplicate and touch nothing.
func (s *Service) Admit(ctx context.Context, tx *gorm.DB, rec *models.ProcessedNotification) (bool, error) {
	if rec.ID == "" {
		rec.ID = tool.GenerateUUIDV7()
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now()
	}

	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "notification_id"}},
			DoNothing: true,
		}).
		Create(rec)
	if res.Error != nil {
		return false, fmt.Errorf("failed to admit notification: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Finalize records the reconciliation outcome on the row Admit created.
// It runs in the same transaction as the state mutation it describes, so
// after commit the ledger is immutable and always consistent with state.
func (s *Service) Finalize(ctx context.Context, tx *gorm.DB, recID string, applied bool, result string) error {
	err := tx.WithContext(ctx).
		Model(&models.ProcessedNotification{}).
		Where("id = ?", recID).
		Updates(map[string]any{"applied": applied, "apply_result": result}).
		Error
	if err != nil {
		return fmt.Errorf("failed to finalize ledger record: %w", err)
	}
	return nil
}

// SaveRawLog asynchronously persists a raw notification audit entry.
// Nil input is ignored; failures are logged, never propagated.
func (s *Service) SaveRawLog(ctx context.Context, entry *models.NotificationLog) {
	go func() {
		if entry == nil {
			return
		}
		if entry.ID == "" {
			entry.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save notification log: %v", err)
		}
	}()
}
