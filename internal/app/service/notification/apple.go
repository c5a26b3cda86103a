package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/fatflowers/steward/internal/app/service/eventmap"
	"github.com/fatflowers/steward/internal/app/service/subscription"
	"github.com/fatflowers/steward/internal/platform/apple/applejws"
	"github.com/fatflowers/steward/internal/platform/apple/applestore"
	"github.com/fatflowers/steward/pkg/config"
	"github.com/fatflowers/steward/pkg/types"
)

type AppleParser struct {
	Notification *applejws.Notification
	cfg          *config.Config
}

func (p *AppleParser) Provider() types.Provider { return types.ProviderApple }

func (p *AppleParser) NotificationID() string {
	return p.Notification.Payload.NotificationUUID
}

func (p *AppleParser) EventCode() string {
	return p.Notification.Payload.NotificationType
}

func (p *AppleParser) IsTest() bool { return p.Notification.IsTest }

func (p *AppleParser) Raw() any { return p.Notification }

func (p *AppleParser) NormalizedEvent() (*subscription.Event, bool) {
	kind, ok := eventmap.MapApple(p.Notification.Payload.NotificationType)
	if !ok {
		return nil, false
	}

	txn := p.Notification.TransactionInfo
	ev := &subscription.Event{
		Provider:        types.ProviderApple,
		Kind:            kind,
		NotificationID:  p.Notification.Payload.NotificationUUID,
		SubscriptionKey: txn.OriginalTransactionID,
		OccurredAt:      time.UnixMilli(p.Notification.Payload.SignedDate),
		ProductID:       txn.ProductID,
	}

	if txn.ExpiresDate > 0 {
		ev.ExpiresAt = lo.ToPtr(time.UnixMilli(txn.ExpiresDate))
	}
	if r := p.Notification.RenewalInfo; r != nil {
		ev.AutoRenewEnabled = r.AutoRenewStatus == 1
	}
	if txn.AppAccountToken != "" {
		// Token decode failure is not fatal: the event just arrives
		// unlinked and queues for manual resolution.
		if userID, err := applestore.DecodeAccountToken(txn.AppAccountToken); err == nil {
			ev.AccountUserID = userID
		}
	}
	return ev, true
}

// ParseAppleRequest decodes and verifies an App Store Server Notification
// V2 request. The wrong bundle id is treated the same as a bad signature.
func ParseAppleRequest(cfg *config.Config, c *gin.Context) (Parser, error) {
	var request applejws.AppStoreServerRequest
	if err := c.BindJSON(&request); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if request.SignedPayload == "" {
		return nil, fmt.Errorf("%w: missing signedPayload", ErrMalformedPayload)
	}

	rootPEM := cfg.Apple.RootCertPEM
	if rootPEM == "" {
		rootPEM = applejws.AppleRootCAG3PEM
	}

	n, err := applejws.Decode(request.SignedPayload, rootPEM)
	if err != nil {
		if errors.Is(err, applejws.ErrMalformedToken) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticNotification, err)
	}

	if !n.IsTest && cfg.Apple.BundleID != "" && n.TransactionInfo.BundleID != cfg.Apple.BundleID {
		return nil, fmt.Errorf("%w: bundle id mismatch", ErrUnauthenticNotification)
	}

	return &AppleParser{Notification: n, cfg: cfg}, nil
}
