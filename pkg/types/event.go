package types

// EventKind is the normalized subscription event derived from a vendor
// notification code. Both Apple and Google codes collapse into this set.
type EventKind string

const (
	EventKindSubscribed     EventKind = "subscribed"
	EventKindRenewed        EventKind = "renewed"
	EventKindRenewalToggled EventKind = "renewal_toggled"
	EventKindExpired        EventKind = "expired"
	EventKindRefunded       EventKind = "refunded"
	EventKindRevoked        EventKind = "revoked"
	EventKindRecovered      EventKind = "recovered"
	EventKindCanceled       EventKind = "canceled"
	// EventKindGracePeriod covers billing-retry/grace notifications.
	// Access continues until the vendor sends the terminal EXPIRED event,
	// so the normalized effect is empty.
	EventKindGracePeriod EventKind = "grace_period"
)
