package payos

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

// MaxItemNameLength is the gateway's limit on line-item names; longer names
// are truncated before sending.
const MaxItemNameLength = 25

// Client talks to the PayOS-style payment gateway. Calls are bounded by the
// configured timeout and transport failures get a single retry.
type Client struct {
	baseURL     string
	clientID    string
	apiKey      string
	checksumKey string
	returnURL   string
	cancelURL   string
	client      *http.Client
	log         *logger.Logger
}

func NewClient(cfg config.GatewayConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		clientID:    cfg.ClientID,
		apiKey:      cfg.APIKey,
		checksumKey: cfg.ChecksumKey,
		returnURL:   cfg.ReturnURL,
		cancelURL:   cfg.CancelURL,
		client:      &http.Client{Timeout: cfg.Timeout},
		log:         log,
	}
}

type linkItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type linkRequest struct {
	OrderCode   int64      `json:"orderCode"`
	Amount      int64      `json:"amount"`
	Description string     `json:"description"`
	Items       []linkItem `json:"items"`
	ReturnURL   string     `json:"returnUrl"`
	CancelURL   string     `json:"cancelUrl"`
	Signature   string     `json:"signature"`
}

type gatewayEnvelope struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

type linkData struct {
	CheckoutURL string `json:"checkoutUrl"`
}

type statusData struct {
	OrderCode  int64  `json:"orderCode"`
	Status     string `json:"status"`
	AmountPaid int64  `json:"amountPaid"`
}

// MinorUnits converts a major-unit amount to the integer minor units the
// gateway expects.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// TruncateItemName enforces the gateway's name-length limit.
func TruncateItemName(name string) string {
	runes := []rune(name)
	if len(runes) <= MaxItemNameLength {
		return name
	}
	return string(runes[:MaxItemNameLength])
}

// CreatePaymentLink builds a hosted checkout link for an order code. The
// order code is the correlation key; no transaction state changes here.
func (c *Client) CreatePaymentLink(ctx context.Context, orderCode int64, amount float64, description string, items []models.CheckoutItem) (string, error) {
	amountMinor := MinorUnits(amount)

	payload := linkRequest{
		OrderCode:   orderCode,
		Amount:      amountMinor,
		Description: description,
		ReturnURL:   c.returnURL,
		CancelURL:   c.cancelURL,
		Signature:   c.sign(orderCode, amountMinor, description),
	}
	for _, item := range items {
		payload.Items = append(payload.Items, linkItem{
			Name:     TruncateItemName(item.Name),
			Quantity: item.Quantity,
			Price:    MinorUnits(item.Price),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment request: %w", err)
	}

	c.log.LogGateway("CREATE_LINK", fmt.Sprintf("order code %d, amount %d", orderCode, amountMinor))

	respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/payment-requests", body)
	if err != nil {
		return "", err
	}

	var data linkData
	if err := json.Unmarshal(respBody, &data); err != nil {
		return "", fmt.Errorf("malformed gateway response: %w", err)
	}
	if data.CheckoutURL == "" {
		return "", fmt.Errorf("gateway returned no checkout URL for order code %d", orderCode)
	}

	return data.CheckoutURL, nil
}

// GetPaymentStatus asks the gateway for the authoritative status of an order
// code.
func (c *Client) GetPaymentStatus(ctx context.Context, orderCode int64) (*models.GatewayStatus, error) {
	url := fmt.Sprintf("%s/v2/payment-requests/%d", c.baseURL, orderCode)

	respBody, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var data statusData
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("malformed gateway response: %w", err)
	}

	return &models.GatewayStatus{
		OrderCode:  data.OrderCode,
		Status:     data.Status,
		PaidAmount: data.AmountPaid,
	}, nil
}

// do sends one request with a single retry on transport errors. HTTP-level
// failures are not retried.
func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-client-id", c.clientID)
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn("GATEWAY", fmt.Sprintf("Gateway request failed (attempt %d): %v", attempt+1, err))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read gateway response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
		}

		var envelope gatewayEnvelope
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return nil, fmt.Errorf("malformed gateway envelope: %w", err)
		}
		if envelope.Code != "00" {
			return nil, fmt.Errorf("gateway error %s: %s", envelope.Code, envelope.Desc)
		}
		return envelope.Data, nil
	}
	return nil, fmt.Errorf("gateway unreachable: %w", lastErr)
}

// sign computes the request checksum over the canonical field order the
// gateway verifies.
func (c *Client) sign(orderCode, amount int64, description string) string {
	payload := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		amount, c.cancelURL, description, orderCode, c.returnURL)
	mac := hmac.New(sha256.New, []byte(c.checksumKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
