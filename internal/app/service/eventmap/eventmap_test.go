package eventmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/steward/internal/platform/apple/applejws"
	"github.com/fatflowers/steward/internal/platform/google/googlertdn"
	"github.com/fatflowers/steward/pkg/types"
)

func TestMapApple_KnownTypes(t *testing.T) {
	cases := map[string]types.EventKind{
		applejws.NotificationTypeSubscribed:             types.EventKindSubscribed,
		applejws.NotificationTypeDidRenew:               types.EventKindRenewed,
		applejws.NotificationTypeDidChangeRenewalStatus: types.EventKindRenewalToggled,
		applejws.NotificationTypeDidFailToRenew:         types.EventKindGracePeriod,
		applejws.NotificationTypeExpired:                types.EventKindExpired,
		applejws.NotificationTypeRefund:                 types.EventKindRefunded,
		applejws.NotificationTypeRevoke:                 types.EventKindRevoked,
	}
	for code, want := range cases {
		kind, ok := MapApple(code)
		require.True(t, ok, "code %s", code)
		require.Equal(t, want, kind, "code %s", code)
	}
}

func TestMapApple_UnknownType(t *testing.T) {
	_, ok := MapApple("PRICE_INCREASE")
	require.False(t, ok)

	_, ok = MapApple("")
	require.False(t, ok)
}

func TestMapGoogle_KnownTypes(t *testing.T) {
	cases := map[int]types.EventKind{
		googlertdn.SubscriptionRecovered:     types.EventKindRecovered,
		googlertdn.SubscriptionRenewed:       types.EventKindRenewed,
		googlertdn.SubscriptionCanceled:      types.EventKindCanceled,
		googlertdn.SubscriptionPurchased:     types.EventKindSubscribed,
		googlertdn.SubscriptionInGracePeriod: types.EventKindGracePeriod,
		googlertdn.SubscriptionRestarted:     types.EventKindRecovered,
		googlertdn.SubscriptionRevoked:       types.EventKindRevoked,
		googlertdn.SubscriptionExpired:       types.EventKindExpired,
	}
	for code, want := range cases {
		kind, ok := MapGoogle(code)
		require.True(t, ok, "code %d", code)
		require.Equal(t, want, kind, "code %d", code)
	}
}

func TestMapGoogle_UnknownTypes(t *testing.T) {
	// Pause, defer, price-change and out-of-range codes stay unmapped.
	for _, code := range []int{
		googlertdn.SubscriptionOnHold,
		googlertdn.SubscriptionPriceChangeConfirmed,
		googlertdn.SubscriptionDeferred,
		googlertdn.SubscriptionPaused,
		googlertdn.SubscriptionPauseScheduleChanged,
		0, 99,
	} {
		_, ok := MapGoogle(code)
		require.False(t, ok, "code %d", code)
	}
}

func TestEffectOf_Subscribed(t *testing.T) {
	effect := EffectOf(types.EventKindSubscribed, types.PlanPro, true)
	require.NotNil(t, effect.Status)
	require.Equal(t, types.SubscriptionStatusActive, *effect.Status)
	require.NotNil(t, effect.Plan)
	require.Equal(t, types.PlanPro, *effect.Plan)
	require.Nil(t, effect.CancelAtPeriodEnd)
}

func TestEffectOf_RenewedAndRecovered(t *testing.T) {
	for _, kind := range []types.EventKind{types.EventKindRenewed, types.EventKindRecovered} {
		effect := EffectOf(kind, types.PlanPro, true)
		require.NotNil(t, effect.Status, "kind %s", kind)
		require.Equal(t, types.SubscriptionStatusActive, *effect.Status)
		require.Nil(t, effect.Plan)
	}
}

func TestEffectOf_RenewalToggled(t *testing.T) {
	effect := EffectOf(types.EventKindRenewalToggled, types.PlanPro, false)
	require.Nil(t, effect.Status)
	require.NotNil(t, effect.CancelAtPeriodEnd)
	require.True(t, *effect.CancelAtPeriodEnd)

	effect = EffectOf(types.EventKindRenewalToggled, types.PlanPro, true)
	require.NotNil(t, effect.CancelAtPeriodEnd)
	require.False(t, *effect.CancelAtPeriodEnd)
}

func TestEffectOf_Canceled(t *testing.T) {
	effect := EffectOf(types.EventKindCanceled, types.PlanPro, false)
	require.Nil(t, effect.Status)
	require.NotNil(t, effect.CancelAtPeriodEnd)
	require.True(t, *effect.CancelAtPeriodEnd)
}

func TestEffectOf_TerminalStatesDowngradePlan(t *testing.T) {
	cases := map[types.EventKind]types.SubscriptionStatus{
		types.EventKindExpired:  types.SubscriptionStatusExpired,
		types.EventKindRefunded: types.SubscriptionStatusRefunded,
		types.EventKindRevoked:  types.SubscriptionStatusRevoked,
	}
	for kind, want := range cases {
		effect := EffectOf(kind, types.PlanPro, true)
		require.NotNil(t, effect.Status, "kind %s", kind)
		require.Equal(t, want, *effect.Status)
		require.NotNil(t, effect.Plan)
		require.Equal(t, types.PlanFree, *effect.Plan)
	}
}

func TestEffectOf_GracePeriodIsNoOp(t *testing.T) {
	effect := EffectOf(types.EventKindGracePeriod, types.PlanPro, true)
	require.Nil(t, effect.Status)
	require.Nil(t, effect.Plan)
	require.Nil(t, effect.CancelAtPeriodEnd)
}
