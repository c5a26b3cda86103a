package notification

import (
	"github.com/fatflowers/steward/internal/app/service/subscription"
	"github.com/fatflowers/steward/pkg/types"
)

// Parser is a decoded, verified vendor notification. Building one
// performs decoding and authenticity verification; a Parser in hand means
// the payload is trusted.
type Parser interface {
	Provider() types.Provider
	NotificationID() string
	// EventCode is the vendor-native code rendered for logs.
	EventCode() string
	// IsTest reports a vendor connectivity-test notification.
	IsTest() bool
	// NormalizedEvent maps the notification into a reconciler event.
	// ok is false when the vendor code has no mapping.
	NormalizedEvent() (*subscription.Event, bool)
	// Raw returns the decoded payload for the audit log.
	Raw() any
}
