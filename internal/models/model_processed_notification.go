package models

import (
	"time"

	"github.com/fatflowers/steward/pkg/types"
)

// ProcessedNotification is the idempotency ledger. One row per admitted
// vendor notification, keyed by (provider, notification_id); the unique
// index is what makes concurrent duplicate deliveries collapse to a
// single admission. Rows are immutable once their transaction commits and
// are never deleted by this service.
type ProcessedNotification struct {
	ID             string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider       types.Provider  `gorm:"column:provider;type:varchar(16);not null;uniqueIndex:unique_provider_notification_id,priority:1" json:"provider"`
	NotificationID string          `gorm:"column:notification_id;type:varchar(128);not null;uniqueIndex:unique_provider_notification_id,priority:2" json:"notification_id"`
	EventKind      types.EventKind `gorm:"column:event_kind;type:varchar(32);not null" json:"event_kind"`
	// SubscriptionKey is Apple's original transaction id or Google's
	// purchase token, kept for audit queries.
	SubscriptionKey string    `gorm:"column:subscription_key;type:varchar(255);not null;index" json:"subscription_key"`
	OccurredAt      time.Time `gorm:"column:occurred_at;not null" json:"occurred_at"`
	// Applied is false when the event was admitted but its effect skipped
	// (stale ordering, grace-period no-op, pending link).
	Applied     bool      `gorm:"column:applied;not null;default:false" json:"applied"`
	ApplyResult string    `gorm:"column:apply_result;type:varchar(32);not null" json:"apply_result"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null" json:"processed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ProcessedNotification) TableName() string {
	return "processed_notification"
}
