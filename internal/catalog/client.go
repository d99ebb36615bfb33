package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

// TokenSource supplies the M2M token attached to outbound catalog calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Fetcher resolves catalog item ids to prices and owner types. The checkout
// service trusts what it returns at order-build time and freezes it.
type Fetcher interface {
	GetItem(ctx context.Context, catalogItemID string) (*models.CatalogItem, error)
}

// Client calls the catalog service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
	log     *logger.Logger
}

func NewClient(baseURL string, client *http.Client, tokens TokenSource, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		tokens:  tokens,
		log:     log,
	}
}

func (c *Client) GetItem(ctx context.Context, catalogItemID string) (*models.CatalogItem, error) {
	if catalogItemID == "" {
		return nil, fmt.Errorf("catalog item id is required")
	}

	url := fmt.Sprintf("%s/internal/v1/catalog-items/%s", c.baseURL, catalogItemID)
	c.log.Debug("CATALOG", fmt.Sprintf("Fetching catalog item: %s", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get M2M token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error("CATALOG", fmt.Sprintf("Catalog service error: %v", err))
		return nil, fmt.Errorf("catalog service error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.log.Error("CATALOG", fmt.Sprintf("Failed to close catalog response body: %v", cerr))
		}
	}(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("catalog item %s not found", catalogItemID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	var item models.CatalogItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode catalog item: %w", err)
	}
	if item.CatalogItemID == "" {
		item.CatalogItemID = catalogItemID
	}

	return &item, nil
}
