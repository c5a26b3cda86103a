package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/steward/internal/platform/apple/applejws"
	"github.com/fatflowers/steward/internal/platform/apple/applestore"
	"github.com/fatflowers/steward/pkg/types"
)

func appleNotification(notificationType string) *applejws.Notification {
	return &applejws.Notification{
		Payload: &applejws.NotificationPayload{
			NotificationType: notificationType,
			NotificationUUID: "2e58e199-1fbd-4e0c-a2a6-a3e71b4146f6",
			SignedDate:       1756100000000,
		},
		TransactionInfo: &applejws.TransactionInfo{
			OriginalTransactionID: "100000001",
			TransactionID:         "100000002",
			ProductID:             "pro_monthly",
			BundleID:              "com.example.app",
			ExpiresDate:           1756200000000,
		},
		RenewalInfo: &applejws.RenewalInfo{AutoRenewStatus: 1},
	}
}

func TestAppleParser_NormalizedEvent(t *testing.T) {
	p := &AppleParser{Notification: appleNotification(applejws.NotificationTypeDidRenew)}

	ev, ok := p.NormalizedEvent()
	require.True(t, ok)
	require.Equal(t, types.ProviderApple, ev.Provider)
	require.Equal(t, types.EventKindRenewed, ev.Kind)
	require.Equal(t, "2e58e199-1fbd-4e0c-a2a6-a3e71b4146f6", ev.NotificationID)
	require.Equal(t, "100000001", ev.SubscriptionKey)
	require.Equal(t, time.UnixMilli(1756100000000), ev.OccurredAt)
	require.Equal(t, "pro_monthly", ev.ProductID)
	require.True(t, ev.AutoRenewEnabled)
	require.NotNil(t, ev.ExpiresAt)
	require.Equal(t, time.UnixMilli(1756200000000), *ev.ExpiresAt)
	require.Empty(t, ev.AccountUserID)
}

func TestAppleParser_NormalizedEvent_AccountToken(t *testing.T) {
	token, err := applestore.EncodeAccountToken("1234567890")
	require.NoError(t, err)

	n := appleNotification(applejws.NotificationTypeSubscribed)
	n.TransactionInfo.AppAccountToken = token
	p := &AppleParser{Notification: n}

	ev, ok := p.NormalizedEvent()
	require.True(t, ok)
	require.Equal(t, types.EventKindSubscribed, ev.Kind)
	require.Equal(t, "1234567890", ev.AccountUserID)
}

func TestAppleParser_NormalizedEvent_BadAccountTokenIsNotFatal(t *testing.T) {
	n := appleNotification(applejws.NotificationTypeSubscribed)
	n.TransactionInfo.AppAccountToken = "4b825dc6-5f3b-4f8e-b9d6-4f4f2d8c1122"
	p := &AppleParser{Notification: n}

	ev, ok := p.NormalizedEvent()
	require.True(t, ok)
	require.Empty(t, ev.AccountUserID)
}

func TestAppleParser_NormalizedEvent_UnmappedType(t *testing.T) {
	p := &AppleParser{Notification: appleNotification("PRICE_INCREASE")}

	_, ok := p.NormalizedEvent()
	require.False(t, ok)
}

func TestAppleParser_NormalizedEvent_AutoRenewDisabled(t *testing.T) {
	n := appleNotification(applejws.NotificationTypeDidChangeRenewalStatus)
	n.RenewalInfo.AutoRenewStatus = 0
	p := &AppleParser{Notification: n}

	ev, ok := p.NormalizedEvent()
	require.True(t, ok)
	require.Equal(t, types.EventKindRenewalToggled, ev.Kind)
	require.False(t, ev.AutoRenewEnabled)
}

func TestResyncKind(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	txn := &applejws.TransactionInfo{RevocationDate: now.Add(-time.Hour).UnixMilli()}
	require.Equal(t, types.EventKindRevoked, resyncKind(txn, now))

	txn = &applejws.TransactionInfo{ExpiresDate: now.Add(-time.Hour).UnixMilli()}
	require.Equal(t, types.EventKindExpired, resyncKind(txn, now))

	txn = &applejws.TransactionInfo{ExpiresDate: now.Add(time.Hour).UnixMilli()}
	require.Equal(t, types.EventKindRenewed, resyncKind(txn, now))
}
