package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/steward/pkg/types"
)

// UserSubscription stores the reconciled subscription state for one user.
// The external keys (AppleOriginalTransactionID / GooglePurchaseToken) are
// the identity of the subscription: set when the subscription is first
// linked, immutable afterwards. At most one row carries a given key.
type UserSubscription struct {
	ID       string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID   string                   `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`
	Provider types.Provider           `gorm:"column:provider;type:varchar(16);not null" json:"provider"`
	Status   types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Plan     types.Plan               `gorm:"column:plan;type:varchar(32);not null" json:"plan"`
	// CancelAtPeriodEnd mirrors the vendor's auto-renew toggle: the user
	// keeps access until ExpiresAt but will not renew.
	CancelAtPeriodEnd           bool       `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	AppleOriginalTransactionID  *string    `gorm:"column:apple_original_transaction_id;type:varchar(128);uniqueIndex" json:"apple_original_transaction_id"`
	GooglePurchaseToken         *string    `gorm:"column:google_purchase_token;type:varchar(255);uniqueIndex" json:"google_purchase_token"`
	ExpiresAt                   *time.Time `gorm:"column:expires_at;default:null" json:"expires_at"`
	// LastEventAt is the occurred_at of the newest applied event; events
	// older than this are recorded but not applied.
	LastEventAt *time.Time     `gorm:"column:last_event_at;default:null" json:"last_event_at"`
	Extra       datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (UserSubscription) TableName() string {
	return "user_subscription"
}

// SubscriptionKey returns the external key for the row's provider.
func (s *UserSubscription) SubscriptionKey() string {
	if s == nil {
		return ""
	}
	switch s.Provider {
	case types.ProviderApple:
		if s.AppleOriginalTransactionID != nil {
			return *s.AppleOriginalTransactionID
		}
	case types.ProviderGoogle:
		if s.GooglePurchaseToken != nil {
			return *s.GooglePurchaseToken
		}
	}
	return ""
}

func (s *UserSubscription) Entitled() bool {
	return s != nil && s.Status == types.SubscriptionStatusActive
}
