package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/steward/internal/app/service/eventmap"
	"github.com/fatflowers/steward/internal/models"
	"github.com/fatflowers/steward/pkg/logctx"
	"github.com/fatflowers/steward/pkg/tool"
	"github.com/fatflowers/steward/pkg/types"
)

// ProcessEvent runs the idempotency gate and the state mutation as one
// transaction: a crash can never leave the ledger showing processed with
// state unapplied, or the reverse. Concurrent deliveries of the same
// notification serialize on the ledger's unique index; concurrent events
// for the same user serialize on the row lock; different users proceed in
// parallel.
func (s *Service) ProcessEvent(ctx context.Context, ev *Event) (*Result, error) {
	var result *Result

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := &models.ProcessedNotification{
			Provider:        ev.Provider,
			NotificationID:  ev.NotificationID,
			EventKind:       ev.Kind,
			SubscriptionKey: ev.SubscriptionKey,
			OccurredAt:      ev.OccurredAt,
			ApplyResult:     string(ResultDuplicate),
		}
		admitted, err := s.ledger.Admit(ctx, tx, rec)
		if err != nil {
			return err
		}
		if !admitted {
			result = &Result{Status: ResultDuplicate}
			return nil
		}

		sub, err := s.lockSubscriptionByKey(ctx, tx, ev.Provider, ev.SubscriptionKey)
		if err != nil {
			return err
		}

		if sub == nil {
			sub, err = s.linkNewSubscriber(ctx, tx, ev)
			if err != nil {
				return err
			}
		}

		if sub == nil {
			// No owner could be linked: acknowledge, queue for manual
			// resolution, never silently drop.
			if err := s.queuePendingLink(ctx, tx, ev); err != nil {
				return err
			}
			if err := s.ledger.Finalize(ctx, tx, rec.ID, false, string(ResultPendingLink)); err != nil {
				return err
			}
			result = &Result{Status: ResultPendingLink, LedgerID: rec.ID}
			return nil
		}

		applied, status, err := s.applyToSubscription(ctx, tx, sub, ev, ev.changeReason())
		if err != nil {
			return err
		}
		if err := s.ledger.Finalize(ctx, tx, rec.ID, applied, string(status)); err != nil {
			return err
		}
		result = &Result{Status: status, UserID: sub.UserID, LedgerID: rec.ID}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process event: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infow("event_reconciled",
		"provider", ev.Provider,
		"kind", ev.Kind,
		"notification_id", ev.NotificationID,
		"status", result.Status,
		"user_id", result.UserID,
	)
	return result, nil
}

// applyToSubscription mutates the locked subscription row with the
// event's target effect. Last-write-wins by occurred_at: events older
// than the newest applied one are skipped as stale.
func (s *Service) applyToSubscription(ctx context.Context, tx *gorm.DB, sub *models.UserSubscription, ev *Event, reason types.SubscriptionChangeReason) (bool, ResultStatus, error) {
	if isStale(sub.LastEventAt, ev.OccurredAt) {
		return false, ResultStale, nil
	}

	plan := s.cfg.PlanForProduct(ev.Provider, ev.ProductID)
	effect := eventmap.EffectOf(ev.Kind, plan, ev.AutoRenewEnabled)

	before := lo.ToPtr(*sub)
	changed := applyEffect(sub, effect)
	sub.LastEventAt = lo.ToPtr(ev.OccurredAt)
	if ev.ExpiresAt != nil {
		sub.ExpiresAt = ev.ExpiresAt
	}

	if err := tx.WithContext(ctx).Save(sub).Error; err != nil {
		return false, "", fmt.Errorf("failed to save subscription: %w", err)
	}

	// Change log rides the same transaction: a rollback takes the log
	// entry with it, so the log never describes a change that never
	// committed.
	if entry := newChangeLog(before, lo.ToPtr(*sub), ev, reason, changed); entry != nil {
		if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
			return false, "", fmt.Errorf("failed to save subscription log: %w", err)
		}
	}

	if !changed {
		return false, ResultNoOp, nil
	}
	return true, ResultApplied, nil
}

// newChangeLog builds the change-log entry for an applied effect, or nil
// when nothing materially changed (no before==after noise on no-ops).
func newChangeLog(before, after *models.UserSubscription, ev *Event, reason types.SubscriptionChangeReason, changed bool) *models.SubscriptionLog {
	if !changed {
		return nil
	}
	return &models.SubscriptionLog{
		ID:        tool.GenerateUUIDV7(),
		UserID:    after.UserID,
		Reason:    reason,
		EventKind: ev.Kind,
		Before:    datatypes.NewJSONType(before),
		After:     datatypes.NewJSONType(after),
		Extra:     datatypes.JSONMap{"notification_id": ev.NotificationID},
	}
}

// lockSubscriptionByKey loads the subscription owning the external key
// with a row lock, or nil when no row carries the key.
func (s *Service) lockSubscriptionByKey(ctx context.Context, tx *gorm.DB, provider types.Provider, key string) (*models.UserSubscription, error) {
	q := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	switch provider {
	case types.ProviderApple:
		q = q.Where("apple_original_transaction_id = ?", key)
	case types.ProviderGoogle:
		q = q.Where("google_purchase_token = ?", key)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	var sub models.UserSubscription
	if err := q.First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load subscription by key: %w", err)
	}
	return &sub, nil
}

// linkNewSubscriber handles a key with no owner. Only a Subscribed event
// carrying a usable account token can establish the link; everything else
// goes to the pending queue. Keys are identity: an existing row already
// bound to a different key is never rebound.
func (s *Service) linkNewSubscriber(ctx context.Context, tx *gorm.DB, ev *Event) (*models.UserSubscription, error) {
	if ev.AccountUserID == "" {
		return nil, nil
	}
	if ev.Kind != types.EventKindSubscribed && ev.Reason != types.SubscriptionChangeReasonResync {
		return nil, nil
	}

	var sub models.UserSubscription
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", ev.AccountUserID).
		First(&sub).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load subscription by user: %w", err)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub = models.UserSubscription{
			ID:       tool.GenerateUUIDV7(),
			UserID:   ev.AccountUserID,
			Provider: ev.Provider,
			Status:   types.SubscriptionStatusNone,
			Plan:     types.PlanFree,
		}
	}

	if !bindKey(&sub, ev.Provider, ev.SubscriptionKey) {
		logctx.FromCtx(ctx, s.log).Errorw("subscription_key_conflict",
			"user_id", ev.AccountUserID,
			"provider", ev.Provider,
			"existing_key", sub.SubscriptionKey(),
		)
		return nil, nil
	}
	return &sub, nil
}

// queuePendingLink stores the event for manual linking. A second
// unlinked event for the same key keeps the first queue entry.
func (s *Service) queuePendingLink(ctx context.Context, tx *gorm.DB, ev *Event) error {
	link := &models.PendingLink{
		ID:              tool.GenerateUUIDV7(),
		Provider:        ev.Provider,
		SubscriptionKey: ev.SubscriptionKey,
		EventKind:       ev.Kind,
		ProductID:       ev.ProductID,
		OccurredAt:      ev.OccurredAt,
		Payload:         datatypes.JSON(ev.Payload),
		Status:          models.PendingLinkStatusPending,
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "subscription_key"}},
			DoNothing: true,
		}).
		Create(link).Error
	if err != nil {
		return fmt.Errorf("failed to queue pending link: %w", err)
	}
	return nil
}

// isStale reports whether occurredAt predates the newest applied event.
// Equal timestamps are applied: duplicates were already filtered by the
// ledger, so an equal timestamp is a distinct event from the same instant.
func isStale(lastEventAt *time.Time, occurredAt time.Time) bool {
	return lastEventAt != nil && occurredAt.Before(*lastEventAt)
}

// applyEffect writes the effect's set fields onto the subscription and
// reports whether anything changed.
func applyEffect(sub *models.UserSubscription, effect eventmap.Effect) bool {
	changed := false
	if effect.Status != nil && sub.Status != *effect.Status {
		sub.Status = *effect.Status
		changed = true
	}
	if effect.Plan != nil && sub.Plan != *effect.Plan {
		sub.Plan = *effect.Plan
		changed = true
	}
	if effect.CancelAtPeriodEnd != nil && sub.CancelAtPeriodEnd != *effect.CancelAtPeriodEnd {
		sub.CancelAtPeriodEnd = *effect.CancelAtPeriodEnd
		changed = true
	}
	return changed
}

// bindKey sets the provider key on first link; a row already bound to a
// different key refuses the bind.
func bindKey(sub *models.UserSubscription, provider types.Provider, key string) bool {
	switch provider {
	case types.ProviderApple:
		if sub.AppleOriginalTransactionID != nil {
			return *sub.AppleOriginalTransactionID == key
		}
		sub.AppleOriginalTransactionID = &key
	case types.ProviderGoogle:
		if sub.GooglePurchaseToken != nil {
			return *sub.GooglePurchaseToken == key
		}
		sub.GooglePurchaseToken = &key
	default:
		return false
	}
	sub.Provider = provider
	return true
}
