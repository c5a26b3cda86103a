package applestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/awa/go-iap/appstore/api"

	"github.com/fatflowers/steward/pkg/config"
)

// Client wraps the App Store Server API for the admin resync flow: given
// an original transaction id, fetch the latest signed transaction so a
// missed notification can be reconciled after the fact.
type Client struct {
	store *api.StoreClient
}

func New(cfg *config.Config) (*Client, error) {
	a := cfg.Apple
	if a.KeyID == "" || a.KeyContent == "" || a.Issuer == "" || a.BundleID == "" {
		return nil, errors.New("apple app store server api credentials are not configured")
	}

	c := &api.StoreConfig{
		KeyContent: []byte(a.KeyContent),
		KeyID:      a.KeyID,
		BundleID:   a.BundleID,
		Issuer:     a.Issuer,
		Sandbox:    !a.IsProd,
	}
	return &Client{store: api.NewStoreClient(c)}, nil
}

// GetSignedTransaction returns the signed JWS transaction for the given
// transaction id. The caller verifies and decodes it exactly like a
// notification's signedTransactionInfo.
func (c *Client) GetSignedTransaction(ctx context.Context, transactionID string) (string, error) {
	resp, err := c.store.GetTransactionInfo(ctx, transactionID)
	if err != nil {
		return "", fmt.Errorf("failed to get transaction info: %w", err)
	}
	if resp == nil || resp.SignedTransactionInfo == "" {
		return "", errors.New("empty signed transaction info")
	}
	return resp.SignedTransactionInfo, nil
}
