package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/steward/internal/models"
	"github.com/fatflowers/steward/pkg/logctx"
	"github.com/fatflowers/steward/pkg/tool"
	"github.com/fatflowers/steward/pkg/types"
)

var ErrPendingLinkNotFound = errors.New("pending link not found")

// ListPendingLinks returns unresolved pending links, oldest first.
func (s *Service) ListPendingLinks(ctx context.Context, limit int) ([]*models.PendingLink, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var links []*models.PendingLink
	err := s.db.WithContext(ctx).
		Where("status = ?", models.PendingLinkStatusPending).
		Order("created_at asc").
		Limit(limit).
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending links: %w", err)
	}
	return links, nil
}

// ResolvePendingLink binds the queued subscription key to userID and
// replays the stored event through the reconciler. The replay skips the
// idempotency gate: the originating notification was already ledgered
// when it was queued.
func (s *Service) ResolvePendingLink(ctx context.Context, linkID, userID string) (*Result, error) {
	if linkID == "" || userID == "" {
		return nil, fmt.Errorf("link id and user id are required")
	}

	var result *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link models.PendingLink
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", linkID, models.PendingLinkStatusPending).
			First(&link).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPendingLinkNotFound
			}
			return fmt.Errorf("failed to load pending link: %w", err)
		}

		var sub models.UserSubscription
		err = tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&sub).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load subscription by user: %w", err)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			sub = models.UserSubscription{
				ID:       tool.GenerateUUIDV7(),
				UserID:   userID,
				Provider: link.Provider,
				Status:   types.SubscriptionStatusNone,
				Plan:     types.PlanFree,
			}
		}

		if !bindKey(&sub, link.Provider, link.SubscriptionKey) {
			return fmt.Errorf("user %s already bound to a different %s subscription", userID, link.Provider)
		}

		ev := &Event{
			Provider:        link.Provider,
			Kind:            link.EventKind,
			SubscriptionKey: link.SubscriptionKey,
			OccurredAt:      link.OccurredAt,
			ProductID:       link.ProductID,
			Payload:         json.RawMessage(link.Payload),
		}
		_, status, err := s.applyToSubscription(ctx, tx, &sub, ev, types.SubscriptionChangeReasonManualLink)
		if err != nil {
			return err
		}

		link.Status = models.PendingLinkStatusResolved
		link.ResolvedUserID = lo.ToPtr(userID)
		if err := tx.WithContext(ctx).Save(&link).Error; err != nil {
			return fmt.Errorf("failed to mark pending link resolved: %w", err)
		}

		result = &Result{Status: status, UserID: userID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("pending_link_resolved", "link_id", linkID, "user_id", userID, "status", result.Status)
	return result, nil
}

// GetUserSubscription returns the current state plus recent change log
// entries, used by the admin surface.
func (s *Service) GetUserSubscription(ctx context.Context, userID string) (*models.UserSubscription, []*models.SubscriptionLog, error) {
	var sub models.UserSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	var logs []*models.SubscriptionLog
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(20).
		Find(&logs).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load subscription logs: %w", err)
	}
	return &sub, logs, nil
}
