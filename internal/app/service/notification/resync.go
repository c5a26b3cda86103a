package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/steward/internal/app/service/subscription"
	"github.com/fatflowers/steward/internal/platform/apple/applejws"
	"github.com/fatflowers/steward/internal/platform/apple/applestore"
	"github.com/fatflowers/steward/pkg/logctx"
	"github.com/fatflowers/steward/pkg/types"
)

// Resync pulls the current signed transaction for an Apple original
// transaction id from the App Store Server API and reconciles it,
// covering notifications that never arrived. The synthetic event goes
// through the normal gate with a deterministic notification id, so
// re-running a resync against unchanged state is a duplicate, not a
// second application.
func (h *Handler) Resync(ctx context.Context, originalTransactionID string) (*subscription.Result, error) {
	if originalTransactionID == "" {
		return nil, fmt.Errorf("original transaction id is required")
	}

	client, err := applestore.New(h.cfg)
	if err != nil {
		return nil, err
	}

	signed, err := client.GetSignedTransaction(ctx, originalTransactionID)
	if err != nil {
		return nil, err
	}

	rootPEM := h.cfg.Apple.RootCertPEM
	if rootPEM == "" {
		rootPEM = applejws.AppleRootCAG3PEM
	}
	txn := &applejws.TransactionInfo{}
	if err := applejws.VerifyAndDecode(signed, rootPEM, txn); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticNotification, err)
	}

	ev := &subscription.Event{
		Provider:        types.ProviderApple,
		Kind:            resyncKind(txn, time.Now()),
		NotificationID:  fmt.Sprintf("resync:%s:%d", txn.OriginalTransactionID, txn.SignedDate),
		SubscriptionKey: txn.OriginalTransactionID,
		OccurredAt:      time.UnixMilli(txn.SignedDate),
		ProductID:       txn.ProductID,
		Reason:          types.SubscriptionChangeReasonResync,
	}
	if txn.ExpiresDate > 0 {
		ev.ExpiresAt = lo.ToPtr(time.UnixMilli(txn.ExpiresDate))
	}
	if txn.AppAccountToken != "" {
		if userID, err := applestore.DecodeAccountToken(txn.AppAccountToken); err == nil {
			ev.AccountUserID = userID
		}
	}

	logctx.FromCtx(ctx, h.Logger).Infow("resync_transaction",
		"original_transaction_id", txn.OriginalTransactionID,
		"kind", ev.Kind,
	)
	return h.subSvc.ProcessEvent(ctx, ev)
}

// resyncKind derives the event kind from the transaction's current state.
func resyncKind(txn *applejws.TransactionInfo, now time.Time) types.EventKind {
	switch {
	case txn.RevocationDate > 0:
		return types.EventKindRevoked
	case txn.ExpiresDate > 0 && time.UnixMilli(txn.ExpiresDate).Before(now):
		return types.EventKindExpired
	default:
		return types.EventKindRenewed
	}
}
