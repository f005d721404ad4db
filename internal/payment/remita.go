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
	"net/http"
	"time"
)

const (
	GatewayRemita = "remita"

	remitaDefaultBaseURL = "https://remitademo.net/remita/exapp/api/v1/send/api"
)

var ErrRRRNotFound = errors.New("rrr not found")

// RemitaClient generates and verifies RRRs (Remita Retrieval References).
// Requests are authenticated with a SHA-512 hash over the request fields and
// the merchant's API key, not a bearer token.
type RemitaClient struct {
	merchantID    string
	apiKey        string
	serviceTypeID string
	baseURL       string
	http          *http.Client
}

func NewRemitaClient(merchantID, apiKey, serviceTypeID string) *RemitaClient {
	return &RemitaClient{
		merchantID:    merchantID,
		apiKey:        apiKey,
		serviceTypeID: serviceTypeID,
		baseURL:       remitaDefaultBaseURL,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *RemitaClient) WithBaseURL(u string) *RemitaClient {
	c.baseURL = u
	return c
}

type RemitaInitRequest struct {
	OrderID     string
	PayerName   string
	PayerEmail  string
	PayerPhone  string
	Amount      float64
	Description string
}

type RemitaInitResult struct {
	RRR string `json:"RRR"`
}

// GenerateRRR registers the invoice with Remita and returns the RRR the
// customer pays against at a bank or through the Remita portal.
func (c *RemitaClient) GenerateRRR(ctx context.Context, in RemitaInitRequest) (*RemitaInitResult, error) {
	amount := fmt.Sprintf("%.2f", in.Amount)
	hash := sha512Hex(c.merchantID + c.serviceTypeID + in.OrderID + amount + c.apiKey)

	body := map[string]any{
		"serviceTypeId": c.serviceTypeID,
		"amount":        amount,
		"orderId":       in.OrderID,
		"payerName":     in.PayerName,
		"payerEmail":    in.PayerEmail,
		"payerPhone":    in.PayerPhone,
		"description":   in.Description,
	}

	var out RemitaInitResult
	status, err := c.do(ctx, http.MethodPost, "/echannelsvc/merchant/api/paymentinit", hash, body, &out)
	if err != nil {
		return nil, err
	}
	if status != "Payment Reference generated" && out.RRR == "" {
		return nil, fmt.Errorf("remita rejected invoice: %s", status)
	}
	return &out, nil
}

type remitaStatus struct {
	RRR         string  `json:"RRR"`
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Amount      float64 `json:"amount"`
	OrderID     string  `json:"orderId"`
	Channel     string  `json:"channel"`
	PaymentDate string  `json:"paymentDate"`
}

// Verify looks up an RRR's payment status. Status code "00" or "01" means
// the RRR has been settled.
func (c *RemitaClient) Verify(ctx context.Context, rrr string) (*Confirmation, error) {
	hash := sha512Hex(rrr + c.apiKey + c.merchantID)
	path := fmt.Sprintf("/echannelsvc/%s/%s/%s/status.reg", c.merchantID, rrr, hash)

	var out remitaStatus
	if _, err := c.do(ctx, http.MethodGet, path, hash, nil, &out); err != nil {
		return nil, err
	}
	if !remitaSettled(out.Status) {
		return nil, fmt.Errorf("%w: status %q (%s)", ErrPaymentNotSucceeded, out.Status, out.Message)
	}
	return confirmationFromRemita(&out), nil
}

// VerifyWebhook checks the notification hash: SHA-512 over rrr + apiKey +
// merchantId, sent by Remita alongside each payment notification. Unsigned
// or mis-signed notifications are rejected.
func (c *RemitaClient) VerifyWebhook(rrr, hash string) error {
	expected := sha512Hex(rrr + c.apiKey + c.merchantID)
	if hash == "" || !hmac.Equal([]byte(expected), []byte(hash)) {
		return ErrInvalidSignature
	}
	return nil
}

// RemitaNotification is one entry of a webhook delivery. Remita posts an
// array of these.
type RemitaNotification struct {
	RRR         string  `json:"rrr"`
	Hash        string  `json:"hash"`
	OrderID     string  `json:"orderId"`
	Amount      float64 `json:"amount"`
	Channel     string  `json:"channel"`
	PaymentDate string  `json:"paymentDate"`
}

// ParseWebhook decodes a webhook body and verifies each notification's hash.
// A single bad hash fails the whole delivery.
func (c *RemitaClient) ParseWebhook(body []byte) ([]Confirmation, error) {
	var notifications []RemitaNotification
	if err := json.Unmarshal(body, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}

	out := make([]Confirmation, 0, len(notifications))
	for _, n := range notifications {
		if err := c.VerifyWebhook(n.RRR, n.Hash); err != nil {
			return nil, fmt.Errorf("notification for rrr %s: %w", n.RRR, err)
		}
		paidAt := parseRemitaDate(n.PaymentDate)
		out = append(out, Confirmation{
			OrderID:       n.OrderID,
			Gateway:       GatewayRemita,
			Reference:     n.RRR,
			Amount:        n.Amount,
			Channel:       n.Channel,
			TransactionID: n.RRR,
			PaidAt:        paidAt,
		})
	}
	return out, nil
}

func confirmationFromRemita(s *remitaStatus) *Confirmation {
	return &Confirmation{
		OrderID:       s.OrderID,
		Gateway:       GatewayRemita,
		Reference:     s.RRR,
		Amount:        s.Amount,
		Channel:       s.Channel,
		TransactionID: s.RRR,
		PaidAt:        parseRemitaDate(s.PaymentDate),
	}
}

func remitaSettled(status string) bool {
	return status == "00" || status == "01"
}

func parseRemitaDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}

func (c *RemitaClient) do(ctx context.Context, method, path, hash string, body any, out any) (string, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return "", err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("remitaConsumerKey=%s,remitaConsumerToken=%s", c.merchantID, hash))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("remita request failed: %w", err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("failed to decode remita response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("remita error (%d): %s", resp.StatusCode, string(raw))
	}

	var envelope struct {
		StatusMessage string `json:"statusMessage"`
	}
	_ = json.Unmarshal(raw, &envelope)
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return "", fmt.Errorf("failed to decode remita data: %w", err)
		}
	}
	return envelope.StatusMessage, nil
}

func sha512Hex(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}
