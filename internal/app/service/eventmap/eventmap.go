// Package eventmap translates vendor-native notification codes into
// normalized subscription events and their target effects. Mapping is a
// pure lookup: the same code always yields the same event, and codes the
// table does not know produce ok=false rather than an error, since both
// vendors add codes over time and an unfamiliar code must never corrupt
// state.
package eventmap

import (
	"github.com/fatflowers/steward/internal/platform/apple/applejws"
	"github.com/fatflowers/steward/internal/platform/google/googlertdn"
	"github.com/fatflowers/steward/pkg/types"
)

// Effect is the state change a normalized event applies to the owning
// user's subscription. Nil fields leave the corresponding field alone; an
// all-nil effect is a recorded no-op (grace period).
type Effect struct {
	Status            *types.SubscriptionStatus
	Plan              *types.Plan
	CancelAtPeriodEnd *bool
}

func statusEffect(s types.SubscriptionStatus) Effect {
	return Effect{Status: &s}
}

func downgradeEffect(s types.SubscriptionStatus) Effect {
	free := types.PlanFree
	return Effect{Status: &s, Plan: &free}
}

var appleTable = map[string]types.EventKind{
	applejws.NotificationTypeSubscribed:             types.EventKindSubscribed,
	applejws.NotificationTypeDidRenew:               types.EventKindRenewed,
	applejws.NotificationTypeDidChangeRenewalStatus: types.EventKindRenewalToggled,
	applejws.NotificationTypeDidFailToRenew:         types.EventKindGracePeriod,
	applejws.NotificationTypeExpired:                types.EventKindExpired,
	applejws.NotificationTypeRefund:                 types.EventKindRefunded,
	applejws.NotificationTypeRevoke:                 types.EventKindRevoked,
}

var googleTable = map[int]types.EventKind{
	googlertdn.SubscriptionRecovered:     types.EventKindRecovered,
	googlertdn.SubscriptionRenewed:       types.EventKindRenewed,
	googlertdn.SubscriptionCanceled:      types.EventKindCanceled,
	googlertdn.SubscriptionPurchased:     types.EventKindSubscribed,
	googlertdn.SubscriptionInGracePeriod: types.EventKindGracePeriod,
	googlertdn.SubscriptionRestarted:     types.EventKindRecovered,
	googlertdn.SubscriptionRevoked:       types.EventKindRevoked,
	googlertdn.SubscriptionExpired:       types.EventKindExpired,
}

// MapApple normalizes an Apple notificationType string.
func MapApple(notificationType string) (types.EventKind, bool) {
	kind, ok := appleTable[notificationType]
	return kind, ok
}

// MapGoogle normalizes a Google subscription notificationType code.
func MapGoogle(notificationType int) (types.EventKind, bool) {
	kind, ok := googleTable[notificationType]
	return kind, ok
}

// EffectOf returns the target effect for a normalized event. plan is the
// plan granted on Subscribed (resolved from the purchased product);
// autoRenewEnabled feeds RenewalToggled.
func EffectOf(kind types.EventKind, plan types.Plan, autoRenewEnabled bool) Effect {
	switch kind {
	case types.EventKindSubscribed:
		active := types.SubscriptionStatusActive
		return Effect{Status: &active, Plan: &plan}
	case types.EventKindRenewed, types.EventKindRecovered:
		return statusEffect(types.SubscriptionStatusActive)
	case types.EventKindRenewalToggled:
		cancel := !autoRenewEnabled
		return Effect{CancelAtPeriodEnd: &cancel}
	case types.EventKindCanceled:
		cancel := true
		return Effect{CancelAtPeriodEnd: &cancel}
	case types.EventKindExpired:
		return downgradeEffect(types.SubscriptionStatusExpired)
	case types.EventKindRefunded:
		return downgradeEffect(types.SubscriptionStatusRefunded)
	case types.EventKindRevoked:
		return downgradeEffect(types.SubscriptionStatusRevoked)
	default:
		// GracePeriod and anything unforeseen: recorded, no state change.
		return Effect{}
	}
}
