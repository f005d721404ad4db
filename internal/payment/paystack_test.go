package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPaystack(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestToKobo_Rounds(t *testing.T) {
	tests := []struct {
		naira float64
		kobo  int64
	}{
		{5500, 550000},
		{19.99, 1999}, // 19.99*100 is 1998.999... in binary; must round, not truncate
		{0.01, 1},
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kobo, toKobo(tt.naira), "%.2f naira", tt.naira)
	}
}

func TestPaystackClient_VerifyWebhook(t *testing.T) {
	c := NewPaystackClient("sk_test_secret")
	body := []byte(`{"event":"charge.success"}`)

	assert.NoError(t, c.VerifyWebhook(body, signPaystack("sk_test_secret", body)))
	assert.ErrorIs(t, c.VerifyWebhook(body, signPaystack("wrong_secret", body)), ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifyWebhook(body, ""), ErrInvalidSignature)
	assert.ErrorIs(t, c.VerifyWebhook([]byte(`tampered`), signPaystack("sk_test_secret", body)), ErrInvalidSignature)
}

func TestPaystackClient_ParseWebhook(t *testing.T) {
	c := NewPaystackClient("sk_test_secret")

	body := []byte(`{
		"event": "charge.success",
		"data": {
			"status": "success",
			"reference": "ref-123",
			"amount": 550000,
			"channel": "card",
			"paid_at": "2026-08-28T10:15:00Z",
			"id": 987654,
			"metadata": {"order_id": "o1"}
		}
	}`)
	conf, err := c.ParseWebhook(body)
	require.NoError(t, err)
	require.NotNil(t, conf)
	assert.Equal(t, "o1", conf.OrderID)
	assert.Equal(t, "ref-123", conf.Reference)
	assert.Equal(t, 5500.0, conf.Amount) // kobo -> naira
	assert.Equal(t, "card", conf.Channel)
	assert.Equal(t, "987654", conf.TransactionID)

	// Events other than charge.success are acknowledged with no action.
	conf, err = c.ParseWebhook([]byte(`{"event":"transfer.success","data":{}}`))
	require.NoError(t, err)
	assert.Nil(t, conf)

	_, err = c.ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestPaystackClient_Initialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(550000), req["amount"]) // naira sent as kobo
		assert.Equal(t, "ref-123", req["reference"])

		fmt.Fprint(w, `{"status":true,"message":"Authorization URL created","data":{
			"authorization_url":"https://checkout.paystack.com/abc",
			"access_code":"abc",
			"reference":"ref-123"
		}}`)
	}))
	defer srv.Close()

	c := NewPaystackClient("sk_test_secret").WithBaseURL(srv.URL)
	res, err := c.Initialize(context.Background(), PaystackInitRequest{
		Email:     "ada@example.com",
		Amount:    5500,
		Reference: "ref-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", res.AuthorizationURL)
}

func TestPaystackClient_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ref-123", r.URL.Path)
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{
			"status":"success",
			"reference":"ref-123",
			"amount":550000,
			"channel":"bank_transfer",
			"paid_at":"2026-08-28T10:15:00Z",
			"id":42,
			"metadata":{"order_id":"o1"}
		}}`)
	}))
	defer srv.Close()

	c := NewPaystackClient("sk_test_secret").WithBaseURL(srv.URL)
	conf, err := c.Verify(context.Background(), "ref-123")
	require.NoError(t, err)
	assert.Equal(t, "o1", conf.OrderID)
	assert.Equal(t, 5500.0, conf.Amount)
	assert.Equal(t, GatewayPaystack, conf.Gateway)
}

func TestPaystackClient_Verify_Abandoned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":true,"message":"Verification successful","data":{
			"status":"abandoned","reference":"ref-123","amount":550000
		}}`)
	}))
	defer srv.Close()

	c := NewPaystackClient("sk_test_secret").WithBaseURL(srv.URL)
	_, err := c.Verify(context.Background(), "ref-123")
	assert.ErrorIs(t, err, ErrPaymentNotSucceeded)
}

func TestPaystackClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":false,"message":"Invalid key"}`)
	}))
	defer srv.Close()

	c := NewPaystackClient("sk_live_wrong").WithBaseURL(srv.URL)
	_, err := c.Verify(context.Background(), "ref-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid key")
}
