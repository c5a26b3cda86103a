package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/steward/pkg/types"
)

type PendingLinkStatus string

const (
	PendingLinkStatusPending  PendingLinkStatus = "pending"
	PendingLinkStatusResolved PendingLinkStatus = "resolved"
)

// PendingLink queues a verified notification whose subscription key could
// not be matched to any user. The vendor is acknowledged so it stops
// retrying; an operator (or an async job) resolves the link later and the
// stored event replays through the reconciler.
type PendingLink struct {
	ID              string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Provider        types.Provider    `gorm:"column:provider;type:varchar(16);not null;uniqueIndex:unique_pending_provider_key,priority:1" json:"provider"`
	SubscriptionKey string            `gorm:"column:subscription_key;type:varchar(255);not null;uniqueIndex:unique_pending_provider_key,priority:2" json:"subscription_key"`
	EventKind       types.EventKind   `gorm:"column:event_kind;type:varchar(32);not null" json:"event_kind"`
	ProductID       string            `gorm:"column:product_id;type:varchar(128)" json:"product_id"`
	OccurredAt      time.Time         `gorm:"column:occurred_at;not null" json:"occurred_at"`
	Payload         datatypes.JSON    `gorm:"column:payload;type:jsonb;default:'{}'" json:"payload"`
	Status          PendingLinkStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	ResolvedUserID  *string           `gorm:"column:resolved_user_id;type:varchar(64)" json:"resolved_user_id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (PendingLink) TableName() string {
	return "pending_link"
}
