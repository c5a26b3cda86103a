package googlertdn

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
)

// ErrUnauthenticToken marks any OIDC verification failure. Callers log
// the wrapped detail but never surface it to the sender.
var ErrUnauthenticToken = errors.New("pub/sub oidc token verification failed")

const googleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

type oidcClaims struct {
	jwt.StandardClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// OIDCVerifier validates the bearer token Pub/Sub attaches to push
// deliveries. Google's signing keys are cached process-wide and refreshed
// at a bounded interval; a cache miss that cannot be refilled is a
// verification failure, never a bypass.
type OIDCVerifier struct {
	certsURL string
	refresh  time.Duration
	client   *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewOIDCVerifier(refresh time.Duration) *OIDCVerifier {
	if refresh <= 0 {
		refresh = time.Hour
	}
	return &OIDCVerifier{
		certsURL: googleCertsURL,
		refresh:  refresh,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify checks the bearer token's signature against Google's published
// keys and enforces issuer, audience, and the expected service-account
// identity.
func (v *OIDCVerifier) Verify(ctx context.Context, bearer, audience, serviceAccountEmail string) error {
	if bearer == "" {
		return fmt.Errorf("%w: empty bearer token", ErrUnauthenticToken)
	}

	claims := &oidcClaims{}
	_, err := jwt.ParseWithClaims(bearer, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return v.keyForKid(ctx, kid)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthenticToken, err)
	}

	if claims.Issuer != "accounts.google.com" && claims.Issuer != "https://accounts.google.com" {
		return fmt.Errorf("%w: unexpected issuer %q", ErrUnauthenticToken, claims.Issuer)
	}
	if claims.Audience != audience {
		return fmt.Errorf("%w: unexpected audience", ErrUnauthenticToken)
	}
	if !claims.EmailVerified || claims.Email != serviceAccountEmail {
		return fmt.Errorf("%w: unexpected identity", ErrUnauthenticToken)
	}
	return nil
}

func (v *OIDCVerifier) keyForKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) < v.refresh
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		// Fail safe: a stale cached key is still better than bypassing
		// verification, but an unknown kid with a failed fetch is fatal.
		if ok {
			return key, nil
		}
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("no signing key for kid %q", kid)
}

func (v *OIDCVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch google certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch google certs: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read google certs: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("failed to parse google certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := parseRSAKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("google certs document contained no usable keys")
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}

func parseRSAKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 1 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
