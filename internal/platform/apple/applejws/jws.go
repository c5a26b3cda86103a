package applejws

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt"
)

var (
	// ErrMalformedToken marks structural failures: the token cannot be
	// split or its segments cannot be decoded.
	ErrMalformedToken = errors.New("malformed jws token")
	// ErrInvalidSignature marks authenticity failures: the x5c chain does
	// not terminate at the trusted root or the signature does not verify.
	ErrInvalidSignature = errors.New("jws signature verification failed")
)

type tokenHeader struct {
	Alg string   `json:"alg"`
	X5c []string `json:"x5c"`
}

// VerifyAndDecode validates a JWS token against the given trust anchor and
// unmarshals its payload into claims. Apple signs the outer notification
// and each nested signed*Info field the same way, so the same routine is
// applied to all three.
func VerifyAndDecode(token string, rootPEM string, claims jwt.Claims) error {
	certs, err := certificateChain(token)
	if err != nil {
		return err
	}

	if err := verifyChain(certs, rootPEM); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	pub, ok := certs[0].PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: signing key must be ecdsa.PublicKey", ErrInvalidSignature)
	}

	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pub, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// certificateChain extracts the x5c certificates from the token header.
// The leaf (signing) certificate comes first.
func certificateChain(token string) ([]*x509.Certificate, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(segments))
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header segment: %v", ErrMalformedToken, err)
	}

	var header tokenHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("%w: header json: %v", ErrMalformedToken, err)
	}
	if len(header.X5c) == 0 {
		return nil, fmt.Errorf("%w: missing x5c certificate chain", ErrMalformedToken)
	}

	certs := make([]*x509.Certificate, 0, len(header.X5c))
	for _, c := range header.X5c {
		der, err := base64.StdEncoding.DecodeString(c)
		if err != nil {
			return nil, fmt.Errorf("%w: x5c base64: %v", ErrMalformedToken, err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: x5c certificate: %v", ErrMalformedToken, err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// verifyChain checks that the leaf certificate chains to the pinned root.
func verifyChain(certs []*x509.Certificate, rootPEM string) error {
	roots := x509.NewCertPool()
	if ok := roots.AppendCertsFromPEM([]byte(rootPEM)); !ok {
		return errors.New("root certificate couldn't be parsed")
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		// Apple's signing certificates carry their own EKU, not ServerAuth.
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if _, err := certs[0].Verify(opts); err != nil {
		return err
	}
	return nil
}
