package applejws

import "fmt"

// AppleRootCAG3PEM is Apple's published root of trust for App Store
// Server Notifications, pinned at build time.
const AppleRootCAG3PEM = `-----BEGIN CERTIFICATE-----
MIICQzCCAcmgAwIBAgIILcX8iNLFS5UwCgYIKoZIzj0EAwMwZzEbMBkGA1UEAwwS
QXBwbGUgUm9vdCBDQSAtIEczMSYwJAYDVQQLDB1BcHBsZSBDZXJ0aWZpY2F0aW9u
IEF1dGhvcml0eTETMBEGA1UECgwKQXBwbGUgSW5jLjELMAkGA1UEBhMCVVMwHhcN
MTQwNDMwMTgxOTA2WhcNMzkwNDMwMTgxOTA2WjBnMRswGQYDVQQDDBJBcHBsZSBS
b290IENBIC0gRzMxJjAkBgNVBAsMHUFwcGxlIENlcnRpZmljYXRpb24gQXV0aG9y
aXR5MRMwEQYDVQQKDApBcHBsZSBJbmMuMQswCQYDVQQGEwJVUzB2MBAGByqGSM49
AgEGBSuBBAAiA2IABJjpLz1AcqTtkyJygRMc3RCV8cWjTnHcFBbZDuWmBSp3ZHtf
TjjTuxxEtX/1H7YyYl3J6YRbTzBPEVoA/VhYDKX1DyxNB0cTddqXl5dvMVztK517
IDvYuVTZXpmkOlEKMaNCMEAwHQYDVR0OBBYEFLuw3qFYM4iapIqZ3r6966/ayySr
MA8GA1UdEwEB/wQFMAMBAf8wDgYDVR0PAQH/BAQDAgEGMAoGCCqGSM49BAMDA2gA
MGUCMQCD6cHEFl4aXTQY2e3v9GwOAEZLuN+yRhHFD/3meoyhpmvOwgPUnPWTxnS4
at+qIxUCMG1mihDK1A3UT82NQz60imOlM27jbdoXt2QfyFMm+YhidDkLF1vLUagM
6BgD56KyKA==
-----END CERTIFICATE-----`

// Notification is a fully verified App Store server notification with
// its nested transaction and renewal claims decoded.
type Notification struct {
	Payload         *NotificationPayload
	TransactionInfo *TransactionInfo
	RenewalInfo     *RenewalInfo
	IsTest          bool
	IsSandbox       bool
}

// Decode verifies the outer signed payload and each nested signed*Info
// field against rootPEM (pass AppleRootCAG3PEM outside of tests) and
// returns the assembled notification. No claim is trusted before its own
// envelope verifies.
func Decode(signedPayload string, rootPEM string) (*Notification, error) {
	payload := &NotificationPayload{}
	if err := VerifyAndDecode(signedPayload, rootPEM, payload); err != nil {
		return nil, fmt.Errorf("notification payload: %w", err)
	}

	n := &Notification{
		Payload:   payload,
		IsTest:    payload.NotificationType == NotificationTypeTest,
		IsSandbox: payload.Data.Environment == "Sandbox",
	}

	if n.IsTest {
		return n, nil
	}

	if payload.Data.SignedTransactionInfo == "" {
		return nil, fmt.Errorf("%w: missing signedTransactionInfo", ErrMalformedToken)
	}
	txn := &TransactionInfo{}
	if err := VerifyAndDecode(payload.Data.SignedTransactionInfo, rootPEM, txn); err != nil {
		return nil, fmt.Errorf("transaction info: %w", err)
	}
	n.TransactionInfo = txn

	if payload.Data.SignedRenewalInfo != "" {
		renewal := &RenewalInfo{}
		if err := VerifyAndDecode(payload.Data.SignedRenewalInfo, rootPEM, renewal); err != nil {
			return nil, fmt.Errorf("renewal info: %w", err)
		}
		n.RenewalInfo = renewal
	}

	return n, nil
}
