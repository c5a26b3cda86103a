package models

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/steward/pkg/types"
)

func TestUserSubscription_SubscriptionKey(t *testing.T) {
	var nilSub *UserSubscription
	require.Empty(t, nilSub.SubscriptionKey())

	sub := &UserSubscription{Provider: types.ProviderApple}
	require.Empty(t, sub.SubscriptionKey())

	sub.AppleOriginalTransactionID = lo.ToPtr("100000001")
	require.Equal(t, "100000001", sub.SubscriptionKey())

	sub = &UserSubscription{
		Provider:            types.ProviderGoogle,
		GooglePurchaseToken: lo.ToPtr("token-abc"),
	}
	require.Equal(t, "token-abc", sub.SubscriptionKey())
}

func TestUserSubscription_Entitled(t *testing.T) {
	var nilSub *UserSubscription
	require.False(t, nilSub.Entitled())

	sub := &UserSubscription{Status: types.SubscriptionStatusActive}
	require.True(t, sub.Entitled())

	// CancelAtPeriodEnd keeps access until the period actually ends.
	sub.CancelAtPeriodEnd = true
	require.True(t, sub.Entitled())

	sub.Status = types.SubscriptionStatusExpired
	require.False(t, sub.Entitled())
}
