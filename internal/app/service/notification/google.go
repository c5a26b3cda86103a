package notification

import (
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/steward/internal/app/service/eventmap"
	"github.com/fatflowers/steward/internal/app/service/subscription"
	"github.com/fatflowers/steward/internal/platform/google/googlertdn"
	"github.com/fatflowers/steward/pkg/config"
	"github.com/fatflowers/steward/pkg/types"
)

type GoogleParser struct {
	Notification *googlertdn.DeveloperNotification
	MessageID    string
	OccurredAt   time.Time
}

func (p *GoogleParser) Provider() types.Provider { return types.ProviderGoogle }

func (p *GoogleParser) NotificationID() string { return p.MessageID }

func (p *GoogleParser) EventCode() string {
	if p.Notification.SubscriptionNotification == nil {
		return "none"
	}
	return strconv.Itoa(p.Notification.SubscriptionNotification.NotificationType)
}

func (p *GoogleParser) IsTest() bool { return p.Notification.TestNotification != nil }

func (p *GoogleParser) Raw() any { return p.Notification }

func (p *GoogleParser) NormalizedEvent() (*subscription.Event, bool) {
	sn := p.Notification.SubscriptionNotification
	if sn == nil {
		// One-time product and voided-purchase notifications are outside
		// the subscription pipeline.
		return nil, false
	}

	kind, ok := eventmap.MapGoogle(sn.NotificationType)
	if !ok {
		return nil, false
	}

	return &subscription.Event{
		Provider:        types.ProviderGoogle,
		Kind:            kind,
		NotificationID:  p.MessageID,
		SubscriptionKey: sn.PurchaseToken,
		OccurredAt:      p.OccurredAt,
		ProductID:       sn.SubscriptionID,
		// RTDN carries no auto-renew flag; the Canceled/Recovered codes
		// express the toggle instead.
		AutoRenewEnabled: kind != types.EventKindCanceled,
	}, true
}

// ParseGoogleRequest verifies a Pub/Sub push delivery and decodes the
// developer notification. Verification runs before any decoding of the
// inner message so a forged envelope does no parsing work on untrusted
// bytes beyond the transport wrapper.
func ParseGoogleRequest(cfg *config.Config, verifier *googlertdn.OIDCVerifier, c *gin.Context) (Parser, error) {
	if err := verifyGooglePush(cfg, verifier, c); err != nil {
		return nil, err
	}

	body, err := c.GetRawData()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	n, messageID, err := googlertdn.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if cfg.Google.PackageName != "" && n.PackageName != cfg.Google.PackageName {
		return nil, fmt.Errorf("%w: package name mismatch", ErrUnauthenticNotification)
	}

	occurredAt := time.Now()
	if n.EventTimeMillis != "" {
		t, err := n.EventTime()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		occurredAt = t
	}

	return &GoogleParser{Notification: n, MessageID: messageID, OccurredAt: occurredAt}, nil
}

func verifyGooglePush(cfg *config.Config, verifier *googlertdn.OIDCVerifier, c *gin.Context) error {
	g := cfg.Google

	if g.Audience != "" && g.ServiceAccountEmail != "" {
		bearer := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if err := verifier.Verify(c.Request.Context(), bearer, g.Audience, g.ServiceAccountEmail); err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthenticNotification, err)
		}
		return nil
	}

	if g.VerificationToken != "" {
		token := c.Query("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(g.VerificationToken)) != 1 {
			return fmt.Errorf("%w: verification token mismatch", ErrUnauthenticNotification)
		}
		return nil
	}

	// No auth material configured: reject everything rather than trust
	// anything.
	return fmt.Errorf("%w: no google push verification configured", ErrUnauthenticNotification)
}
