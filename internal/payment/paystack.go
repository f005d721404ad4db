package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

const (
	GatewayPaystack = "paystack"

	paystackDefaultBaseURL = "https://api.paystack.co"
	// Paystack signs webhook bodies with HMAC-SHA512 of the raw payload.
	PaystackSignatureHeader = "x-paystack-signature"
)

var (
	ErrInvalidSignature    = errors.New("webhook signature verification failed")
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
)

// PaystackClient talks to the Paystack REST API. Amounts cross the wire in
// kobo; everything above this client works in naira.
type PaystackClient struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

func NewPaystackClient(secretKey string) *PaystackClient {
	return &PaystackClient{
		secretKey: secretKey,
		baseURL:   paystackDefaultBaseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL points the client at a different host, used by tests.
func (c *PaystackClient) WithBaseURL(u string) *PaystackClient {
	c.baseURL = u
	return c
}

type PaystackInitRequest struct {
	Email       string
	Amount      float64
	Reference   string
	OrderID     string
	CallbackURL string
}

type PaystackInitResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize starts a hosted checkout and returns the authorization URL the
// customer is redirected to.
func (c *PaystackClient) Initialize(ctx context.Context, in PaystackInitRequest) (*PaystackInitResult, error) {
	body := map[string]any{
		"email":     in.Email,
		"amount":    toKobo(in.Amount),
		"reference": in.Reference,
		// Metadata rides through to verify and webhook payloads; it is how a
		// confirmation finds its order.
		"metadata": map[string]string{"order_id": in.OrderID},
	}
	if in.CallbackURL != "" {
		body["callback_url"] = in.CallbackURL
	}

	var out PaystackInitResult
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PaystackTransaction is the subset of the verify/webhook payload we use.
type PaystackTransaction struct {
	Status    string  `json:"status"`
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"` // kobo
	Channel   string  `json:"channel"`
	PaidAt    string  `json:"paid_at"`
	ID        int64   `json:"id"`
	Metadata  struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
}

// Verify fetches the transaction by reference and returns a Confirmation if
// the charge succeeded. Callers still own marking the order paid.
func (c *PaystackClient) Verify(ctx context.Context, reference string) (*Confirmation, error) {
	var tx PaystackTransaction
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &tx); err != nil {
		return nil, err
	}
	if tx.Status != "success" {
		return nil, fmt.Errorf("%w: status %q", ErrPaymentNotSucceeded, tx.Status)
	}
	return confirmationFromPaystack(&tx), nil
}

// VerifyWebhook checks the HMAC-SHA512 signature of a raw webhook body
// against the x-paystack-signature header value.
func (c *PaystackClient) VerifyWebhook(body []byte, signature string) error {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// ParseWebhook decodes a verified webhook body. Only charge.success carries a
// confirmation; every other event returns (nil, nil) and should be
// acknowledged without action.
func (c *PaystackClient) ParseWebhook(body []byte) (*Confirmation, error) {
	var event struct {
		Event string              `json:"event"`
		Data  PaystackTransaction `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}
	if event.Event != "charge.success" {
		return nil, nil
	}
	return confirmationFromPaystack(&event.Data), nil
}

func confirmationFromPaystack(tx *PaystackTransaction) *Confirmation {
	paidAt, err := time.Parse(time.RFC3339, tx.PaidAt)
	if err != nil {
		paidAt = time.Now()
	}
	return &Confirmation{
		OrderID:       tx.Metadata.OrderID,
		Gateway:       GatewayPaystack,
		Reference:     tx.Reference,
		Amount:        fromKobo(tx.Amount),
		Channel:       tx.Channel,
		TransactionID: fmt.Sprintf("%d", tx.ID),
		PaidAt:        paidAt,
	}
}

func (c *PaystackClient) do(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paystack request failed: %w", err)
	}
	defer resp.Body.Close()

	var env paystackEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode paystack response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Status {
		return fmt.Errorf("paystack error (%d): %s", resp.StatusCode, env.Message)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode paystack data: %w", err)
		}
	}
	return nil
}

// toKobo converts naira to the integer kobo amount Paystack expects.
// Rounded, not truncated: 19.99 naira is 1999 kobo, not 1998.
func toKobo(naira float64) int64 { return int64(math.Round(naira * 100)) }

func fromKobo(kobo float64) float64 { return kobo / 100 }
