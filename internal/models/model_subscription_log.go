package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/steward/pkg/types"
)

// SubscriptionLog records every change to a user subscription.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);index:idx_user_id_id,priority:1;not null"`
	// Reason is the change reason.
	Reason types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	// EventKind is the normalized event that drove the change, if any.
	EventKind types.EventKind `gorm:"column:event_kind;type:varchar(32)"`
	// Before stores subscription data before the change in JSON format.
	Before datatypes.JSONType[*UserSubscription] `gorm:"column:before;type:jsonb;default:'null'"`
	// After stores subscription data after the change in JSON format.
	After datatypes.JSONType[*UserSubscription] `gorm:"column:after;type:jsonb;default:'null'"`
	// Extra stores additional context such as the ledger row id.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
