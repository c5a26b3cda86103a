package googlertdn

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

const (
	testAudience = "https://steward.example.com/webhooks/google"
	testEmail    = "play-rtdn@demo.iam.gserviceaccount.com"
)

type oidcFixture struct {
	key      *rsa.PrivateKey
	kid      string
	server   *httptest.Server
	verifier *OIDCVerifier
	fetches  int
}

func newOIDCFixture(t *testing.T) *oidcFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &oidcFixture{key: key, kid: "test-key-1"}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.fetches++
		doc := jwksDocument{Keys: []jwk{{
			Kty: "RSA",
			Kid: f.kid,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	}))
	t.Cleanup(f.server.Close)

	f.verifier = NewOIDCVerifier(time.Hour)
	f.verifier.certsURL = f.server.URL
	return f
}

func (f *oidcFixture) token(t *testing.T, mutate func(*oidcClaims)) string {
	t.Helper()
	claims := &oidcClaims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    "https://accounts.google.com",
			Audience:  testAudience,
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
		Email:         testEmail,
		EmailVerified: true,
	}
	if mutate != nil {
		mutate(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = f.kid
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func TestOIDCVerifier_ValidToken(t *testing.T) {
	f := newOIDCFixture(t)
	bearer := f.token(t, nil)

	err := f.verifier.Verify(context.Background(), bearer, testAudience, testEmail)
	require.NoError(t, err)
}

func TestOIDCVerifier_CachesKeys(t *testing.T) {
	f := newOIDCFixture(t)
	bearer := f.token(t, nil)

	require.NoError(t, f.verifier.Verify(context.Background(), bearer, testAudience, testEmail))
	require.NoError(t, f.verifier.Verify(context.Background(), bearer, testAudience, testEmail))
	require.Equal(t, 1, f.fetches)
}

func TestOIDCVerifier_EmptyBearer(t *testing.T) {
	f := newOIDCFixture(t)
	err := f.verifier.Verify(context.Background(), "", testAudience, testEmail)
	require.ErrorIs(t, err, ErrUnauthenticToken)
}

func TestOIDCVerifier_WrongAudience(t *testing.T) {
	f := newOIDCFixture(t)
	bearer := f.token(t, func(c *oidcClaims) { c.Audience = "https://other.example.com" })

	err := f.verifier.Verify(context.Background(), bearer, testAudience, testEmail)
	require.ErrorIs(t, err, ErrUnauthenticToken)
}

func TestOIDCVerifier_WrongIssuer(t *testing.T) {
	f := newOIDCFixture(t)
	bearer := f.token(t, func(c *oidcClaims) { c.Issuer = "https://evil.example.com" })

	err := f.verifier.Verify(context.Background(), bearer, testAudience, testEmail)
	require.ErrorIs(t, err, ErrUnauthenticToken)
}

func TestOIDCVerifier_WrongIdentity(t *testing.T) {
	f := newOIDCFixture(t)

	bearer := f.token(t, func(c *oidcClaims) { c.Email = "intruder@example.com" })
	err := f.verifier.Verify(context.Background(), bearer, testAudience, testEmail)
	require.ErrorIs(t, err, ErrUnauthenticToken)

	bearer = f.token(t, func(c *oidcClaims) { c.EmailVerified = false })
	err = f.verifier.Verify(context.Background(), bearer, testAudience, testEmail)
	require.ErrorIs(t, err, ErrUnauthenticToken)
}

func TestOIDCVerifier_ExpiredToken(t *testing.T) {
	f := newOIDCFixture(t)
	bearer := f.token(t, func(c *oidcClaims) { c.ExpiresAt = time.Now().Add(-time.Hour).Unix() })

	err := f.verifier.Verify(context.Background(), bearer, testAudience, testEmail)
	require.ErrorIs(t, err, ErrUnauthenticToken)
}

func TestOIDCVerifier_UnknownKid(t *testing.T) {
	f := newOIDCFixture(t)
	bearer := f.token(t, nil)
	f.kid = "rotated-away"

	err := f.verifier.Verify(context.Background(), bearer, testAudience, testEmail)
	require.ErrorIs(t, err, ErrUnauthenticToken)
}

func TestOIDCVerifier_ForeignKey(t *testing.T) {
	f := newOIDCFixture(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, &oidcClaims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    "https://accounts.google.com",
			Audience:  testAudience,
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		Email:         testEmail,
		EmailVerified: true,
	})
	token.Header["kid"] = f.kid
	bearer, err := token.SignedString(otherKey)
	require.NoError(t, err)

	err = f.verifier.Verify(context.Background(), bearer, testAudience, testEmail)
	require.ErrorIs(t, err, ErrUnauthenticToken)
}
