package notification

import "errors"

var (
	// ErrMalformedPayload: the body could not be decoded. Surfaces as a
	// client error; nothing is ledgered.
	ErrMalformedPayload = errors.New("malformed notification payload")
	// ErrUnauthenticNotification: signature or identity verification
	// failed, including notifications for the wrong bundle/package. Logged
	// as a security event; the sender only ever sees a generic rejection.
	ErrUnauthenticNotification = errors.New("unauthentic notification")
)
