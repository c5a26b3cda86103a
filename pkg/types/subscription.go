package types

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusRefunded SubscriptionStatus = "refunded"
	SubscriptionStatusRevoked  SubscriptionStatus = "revoked"
	SubscriptionStatusNone     SubscriptionStatus = "none"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonNotification SubscriptionChangeReason = "notification"
	SubscriptionChangeReasonManualLink   SubscriptionChangeReason = "manualLink"
	SubscriptionChangeReasonResync       SubscriptionChangeReason = "resync"
)

// PlanItem maps a vendor product identifier to an internal plan.
// Configured per environment; unknown product ids default to PlanPro.
type PlanItem struct {
	ProviderID     Provider `json:"provider_id" mapstructure:"provider_id"`
	ProviderItemID string   `json:"provider_item_id" mapstructure:"provider_item_id"`
	Plan           Plan     `json:"plan" mapstructure:"plan"`
}
