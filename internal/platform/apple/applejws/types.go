package applejws

// AppStoreServerRequest is the webhook body for App Store Server
// Notifications V2.
type AppStoreServerRequest struct {
	SignedPayload string `json:"signedPayload"`
}

// Notification type codes sent by the App Store.
// https://developer.apple.com/documentation/appstoreservernotifications/notificationtype
const (
	NotificationTypeSubscribed             = "SUBSCRIBED"
	NotificationTypeDidRenew               = "DID_RENEW"
	NotificationTypeDidChangeRenewalStatus = "DID_CHANGE_RENEWAL_STATUS"
	NotificationTypeDidFailToRenew         = "DID_FAIL_TO_RENEW"
	NotificationTypeExpired                = "EXPIRED"
	NotificationTypeRefund                 = "REFUND"
	NotificationTypeRevoke                 = "REVOKE"
	NotificationTypeTest                   = "TEST"
)

type NotificationData struct {
	AppAppleID            int64  `json:"appAppleId"`
	BundleID              string `json:"bundleId"`
	BundleVersion         string `json:"bundleVersion"`
	Environment           string `json:"environment"`
	SignedTransactionInfo string `json:"signedTransactionInfo"`
	SignedRenewalInfo     string `json:"signedRenewalInfo"`
}

// NotificationPayload is the decoded outer JWS payload.
type NotificationPayload struct {
	NotificationType string           `json:"notificationType"`
	Subtype          string           `json:"subtype"`
	NotificationUUID string           `json:"notificationUUID"`
	Version          string           `json:"version"`
	SignedDate       int64            `json:"signedDate"`
	Data             NotificationData `json:"data"`
}

func (p *NotificationPayload) Valid() error { return nil }

// TransactionInfo is the decoded signedTransactionInfo JWS payload.
// Dates are unix epoch milliseconds.
type TransactionInfo struct {
	AppAccountToken       string  `json:"appAccountToken"`
	BundleID              string  `json:"bundleId"`
	Currency              string  `json:"currency"`
	Environment           string  `json:"environment"`
	ExpiresDate           int64   `json:"expiresDate"`
	InAppOwnershipType    string  `json:"inAppOwnershipType"`
	OriginalTransactionID string  `json:"originalTransactionId"`
	Price                 float64 `json:"price"`
	ProductID             string  `json:"productId"`
	PurchaseDate          int64   `json:"purchaseDate"`
	RevocationDate        int64   `json:"revocationDate"`
	RevocationReason      int     `json:"revocationReason"`
	SignedDate            int64   `json:"signedDate"`
	TransactionID         string  `json:"transactionId"`
	Type                  string  `json:"type"`
}

func (t *TransactionInfo) Valid() error { return nil }

// RenewalInfo is the decoded signedRenewalInfo JWS payload.
type RenewalInfo struct {
	AutoRenewProductID     string `json:"autoRenewProductId"`
	AutoRenewStatus        int    `json:"autoRenewStatus"`
	ExpirationIntent       int    `json:"expirationIntent"`
	GracePeriodExpiresDate int64  `json:"gracePeriodExpiresDate"`
	IsInBillingRetryPeriod bool   `json:"isInBillingRetryPeriod"`
	OriginalTransactionID  string `json:"originalTransactionId"`
	ProductID              string `json:"productId"`
	RenewalDate            int64  `json:"renewalDate"`
	SignedDate             int64  `json:"signedDate"`
}

func (r *RenewalInfo) Valid() error { return nil }
