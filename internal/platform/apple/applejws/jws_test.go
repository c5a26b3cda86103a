package applejws

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

// signingChain is a throwaway root -> intermediate -> leaf chain used to
// sign test tokens the way the App Store signs real ones.
type signingChain struct {
	rootPEM string
	leafKey *ecdsa.PrivateKey
	x5c     []string
}

func newSigningChain(t *testing.T) *signingChain {
	t.Helper()

	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	interKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	now := time.Now()
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root CA"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	require.NoError(t, err)
	rootCert, err := x509.ParseCertificate(rootDER)
	require.NoError(t, err)

	interTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: "Test Intermediate CA"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	interDER, err := x509.CreateCertificate(rand.Reader, interTmpl, rootCert, &interKey.PublicKey, rootKey)
	require.NoError(t, err)
	interCert, err := x509.ParseCertificate(interDER)
	require.NoError(t, err)

	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "Test Signing Leaf"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, interCert, &leafKey.PublicKey, interKey)
	require.NoError(t, err)

	rootPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: rootDER})

	return &signingChain{
		rootPEM: string(rootPEM),
		leafKey: leafKey,
		x5c: []string{
			base64.StdEncoding.EncodeToString(leafDER),
			base64.StdEncoding.EncodeToString(interDER),
			base64.StdEncoding.EncodeToString(rootDER),
		},
	}
}

func (c *signingChain) sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["x5c"] = c.x5c
	signed, err := token.SignedString(c.leafKey)
	require.NoError(t, err)
	return signed
}

func TestVerifyAndDecode_ValidToken(t *testing.T) {
	chain := newSigningChain(t)
	token := chain.sign(t, &TransactionInfo{
		OriginalTransactionID: "100000001",
		ProductID:             "pro_monthly",
		BundleID:              "com.example.app",
	})

	got := &TransactionInfo{}
	err := VerifyAndDecode(token, chain.rootPEM, got)
	require.NoError(t, err)
	require.Equal(t, "100000001", got.OriginalTransactionID)
	require.Equal(t, "pro_monthly", got.ProductID)
}

func TestVerifyAndDecode_WrongRoot(t *testing.T) {
	chain := newSigningChain(t)
	other := newSigningChain(t)
	token := chain.sign(t, &TransactionInfo{OriginalTransactionID: "100000001"})

	err := VerifyAndDecode(token, other.rootPEM, &TransactionInfo{})
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyAndDecode_TamperedPayload(t *testing.T) {
	chain := newSigningChain(t)
	token := chain.sign(t, &TransactionInfo{OriginalTransactionID: "100000001"})

	forged, err := json.Marshal(&TransactionInfo{OriginalTransactionID: "999999999"})
	require.NoError(t, err)

	parts := splitToken(t, token)
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)
	tampered := parts[0] + "." + parts[1] + "." + parts[2]

	err = VerifyAndDecode(tampered, chain.rootPEM, &TransactionInfo{})
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyAndDecode_MalformedToken(t *testing.T) {
	chain := newSigningChain(t)

	err := VerifyAndDecode("not-a-jws", chain.rootPEM, &TransactionInfo{})
	require.ErrorIs(t, err, ErrMalformedToken)

	err = VerifyAndDecode("a.b.c", chain.rootPEM, &TransactionInfo{})
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestVerifyAndDecode_MissingX5c(t *testing.T) {
	chain := newSigningChain(t)
	token := jwt.NewWithClaims(jwt.SigningMethodES256, &TransactionInfo{})
	signed, err := token.SignedString(chain.leafKey)
	require.NoError(t, err)

	err = VerifyAndDecode(signed, chain.rootPEM, &TransactionInfo{})
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestDecode_FullNotification(t *testing.T) {
	chain := newSigningChain(t)

	signedTxn := chain.sign(t, &TransactionInfo{
		OriginalTransactionID: "100000001",
		TransactionID:         "100000002",
		ProductID:             "pro_monthly",
		BundleID:              "com.example.app",
		ExpiresDate:           1756200000000,
	})
	signedRenewal := chain.sign(t, &RenewalInfo{
		OriginalTransactionID: "100000001",
		AutoRenewStatus:       1,
	})
	signedPayload := chain.sign(t, &NotificationPayload{
		NotificationType: NotificationTypeDidRenew,
		NotificationUUID: "2e58e199-1fbd-4e0c-a2a6-a3e71b4146f6",
		SignedDate:       1756100000000,
		Data: NotificationData{
			BundleID:              "com.example.app",
			Environment:           "Production",
			SignedTransactionInfo: signedTxn,
			SignedRenewalInfo:     signedRenewal,
		},
	})

	n, err := Decode(signedPayload, chain.rootPEM)
	require.NoError(t, err)
	require.False(t, n.IsTest)
	require.False(t, n.IsSandbox)
	require.Equal(t, NotificationTypeDidRenew, n.Payload.NotificationType)
	require.Equal(t, "100000001", n.TransactionInfo.OriginalTransactionID)
	require.NotNil(t, n.RenewalInfo)
	require.Equal(t, 1, n.RenewalInfo.AutoRenewStatus)
}

func TestDecode_TestNotificationSkipsNestedClaims(t *testing.T) {
	chain := newSigningChain(t)
	signedPayload := chain.sign(t, &NotificationPayload{
		NotificationType: NotificationTypeTest,
		NotificationUUID: "6a7cbe25-68a2-4f5c-8a1e-13a6e1d3e519",
		Data:             NotificationData{Environment: "Sandbox"},
	})

	n, err := Decode(signedPayload, chain.rootPEM)
	require.NoError(t, err)
	require.True(t, n.IsTest)
	require.True(t, n.IsSandbox)
	require.Nil(t, n.TransactionInfo)
}

func TestDecode_MissingTransactionInfo(t *testing.T) {
	chain := newSigningChain(t)
	signedPayload := chain.sign(t, &NotificationPayload{
		NotificationType: NotificationTypeDidRenew,
		NotificationUUID: "8b3f0a8e-0f44-4dc0-9a2f-6f4c2e1a9b01",
	})

	_, err := Decode(signedPayload, chain.rootPEM)
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestDecode_NestedClaimSignedByForeignChain(t *testing.T) {
	chain := newSigningChain(t)
	foreign := newSigningChain(t)

	signedTxn := foreign.sign(t, &TransactionInfo{OriginalTransactionID: "100000001"})
	signedPayload := chain.sign(t, &NotificationPayload{
		NotificationType: NotificationTypeDidRenew,
		NotificationUUID: "0b5cf46a-9c11-4b3f-9e0a-2f7c8d9e1a22",
		Data:             NotificationData{SignedTransactionInfo: signedTxn},
	})

	_, err := Decode(signedPayload, chain.rootPEM)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func splitToken(t *testing.T, token string) []string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	return parts
}
