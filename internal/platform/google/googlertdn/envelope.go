package googlertdn

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var ErrMalformedEnvelope = errors.New("malformed pub/sub envelope")

// Real-time developer notification types for subscriptions.
// https://developer.android.com/google/play/billing/rtdn-reference
const (
	SubscriptionRecovered            = 1
	SubscriptionRenewed              = 2
	SubscriptionCanceled             = 3
	SubscriptionPurchased            = 4
	SubscriptionOnHold               = 5
	SubscriptionInGracePeriod        = 6
	SubscriptionRestarted            = 7
	SubscriptionPriceChangeConfirmed = 8
	SubscriptionDeferred             = 9
	SubscriptionPaused               = 10
	SubscriptionPauseScheduleChanged = 11
	SubscriptionRevoked              = 12
	SubscriptionExpired              = 13
)

// PushEnvelope is the Pub/Sub push delivery wrapper.
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription"`
}

type PushMessage struct {
	Data        string `json:"data"`
	MessageID   string `json:"messageId"`
	PublishTime string `json:"publishTime"`
}

// DeveloperNotification is the base64-decoded message payload.
type DeveloperNotification struct {
	Version                  string                    `json:"version"`
	PackageName              string                    `json:"packageName"`
	EventTimeMillis          string                    `json:"eventTimeMillis"`
	SubscriptionNotification *SubscriptionNotification `json:"subscriptionNotification"`
	TestNotification         *TestNotification         `json:"testNotification"`
}

type SubscriptionNotification struct {
	Version          string `json:"version"`
	NotificationType int    `json:"notificationType"`
	PurchaseToken    string `json:"purchaseToken"`
	SubscriptionID   string `json:"subscriptionId"`
}

type TestNotification struct {
	Version string `json:"version"`
}

// EventTime parses eventTimeMillis (epoch milliseconds as a string).
func (n *DeveloperNotification) EventTime() (time.Time, error) {
	ms, err := strconv.ParseInt(n.EventTimeMillis, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: eventTimeMillis %q", ErrMalformedEnvelope, n.EventTimeMillis)
	}
	return time.UnixMilli(ms), nil
}

// Decode unwraps a Pub/Sub push body into the developer notification and
// the Pub/Sub message id. Pure transformation; authenticity is checked
// separately by the OIDC verifier.
func Decode(body []byte) (*DeveloperNotification, string, error) {
	var envelope PushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if envelope.Message.MessageID == "" {
		return nil, "", fmt.Errorf("%w: missing messageId", ErrMalformedEnvelope)
	}
	if envelope.Message.Data == "" {
		return nil, "", fmt.Errorf("%w: missing message data", ErrMalformedEnvelope)
	}

	raw, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: data base64: %v", ErrMalformedEnvelope, err)
	}

	var notification DeveloperNotification
	if err := json.Unmarshal(raw, &notification); err != nil {
		return nil, "", fmt.Errorf("%w: data json: %v", ErrMalformedEnvelope, err)
	}
	if notification.PackageName == "" {
		return nil, "", fmt.Errorf("%w: missing packageName", ErrMalformedEnvelope)
	}

	return &notification, envelope.Message.MessageID, nil
}
