// Package paygateway is the HTTP client for the payment gateway: listing
// captured payments for reconciliation and issuing refunds.
package paygateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tutorcoach_backend/platform/config"
	"tutorcoach_backend/platform/logger"
)

// CapturedPayment is one gateway-confirmed capture.
type CapturedPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	AmountMinorUnits int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// Client talks to the payment gateway with basic key auth.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	log       *logger.Logger
}

// NewClient creates a payment gateway client. Returns nil when no base URL
// is configured.
func NewClient(cfg config.PaymentGatewayConfig, log *logger.Logger) *Client {
	if cfg.GetPaymentGatewayBaseURL() == "" {
		return nil
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.GetPaymentGatewayBaseURL(), "/"),
		keyID:     cfg.GetPaymentGatewayKeyID(),
		keySecret: cfg.GetPaymentGatewayKeySecret(),
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

type listCapturedResponse struct {
	Items []CapturedPayment `json:"items"`
	Count int               `json:"count"`
}

// ListCaptured returns all captured payments in the window. The gateway
// pages at 100 items; the client follows pages until exhausted.
func (c *Client) ListCaptured(ctx context.Context, from, to time.Time) ([]CapturedPayment, error) {
	if c == nil {
		return nil, fmt.Errorf("payment gateway not configured")
	}

	var all []CapturedPayment
	skip := 0
	for {
		path := fmt.Sprintf("/payments?status=captured&from=%d&to=%d&count=100&skip=%d",
			from.Unix(), to.Unix(), skip)

		var page listCapturedResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if len(page.Items) < 100 {
			break
		}
		skip += len(page.Items)
	}

	c.log.Debug("gateway captures listed", "count", strconv.Itoa(len(all)))
	return all, nil
}

type refundRequest struct {
	Amount int64             `json:"amount"`
	Notes  map[string]string `json:"notes,omitempty"`
}

type refundResponse struct {
	ID string `json:"id"`
}

// Refund issues a refund against a captured payment and returns the refund id.
func (c *Client) Refund(ctx context.Context, paymentID string, amountMinorUnits int64, notes string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("payment gateway not configured")
	}

	payload := refundRequest{Amount: amountMinorUnits}
	if notes != "" {
		payload.Notes = map[string]string{"reason": notes}
	}

	var resp refundResponse
	if err := c.do(ctx, http.MethodPost, "/payments/"+paymentID+"/refund", payload, &resp); err != nil {
		return "", err
	}

	c.log.Info("refund issued", "payment_id", paymentID, "refund_id", resp.ID)
	return resp.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal gateway payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return nil
}
