package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-backend/internal/auth"
	"github.com/example/ec-backend/internal/domain/order"
	"github.com/example/ec-backend/internal/domain/product"
	"github.com/example/ec-backend/internal/domain/user"
	"github.com/example/ec-backend/internal/infrastructure/store"
	"github.com/example/ec-backend/internal/inventory"
	"github.com/example/ec-backend/internal/orders"
	"github.com/example/ec-backend/internal/payment"
)

type testEnv struct {
	server   http.Handler
	store    *store.MemoryStore
	jwt      *auth.JWTService
	paystack *payment.PaystackClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := store.NewMemoryStore()
	jwtService := auth.NewJWTService("test-secret", time.Hour)

	orderService := orders.NewService(s, s, inventory.NewLedger(s), nil)
	reconciler := payment.NewReconciler(s, nil)
	paystack := payment.NewPaystackClient("sk_test_secret")
	remita := payment.NewRemitaClient("2547916", "1946", "4430731")

	h := &Handlers{
		Auth:     NewAuthHandlers(s, jwtService),
		Products: NewProductHandlers(s, nil),
		Orders:   NewOrderHandlers(orderService),
		Payments: NewPaymentHandlers(s, reconciler, paystack, remita),
		Contact:  NewContactHandlers(s),
		Services: NewServiceHandlers(s),
	}
	return &testEnv{
		server:   NewRouter(h, jwtService),
		store:    s,
		jwt:      jwtService,
		paystack: paystack,
	}
}

func (e *testEnv) seedUser(t *testing.T, id, email, role string) string {
	t.Helper()
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	err = e.store.CreateUser(context.Background(), &user.User{
		ID: id, Name: "Test User", Email: email, PasswordHash: hash,
		Role: role, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	require.NoError(t, err)

	token, _, err := e.jwt.Generate(id, email, role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) seedProduct(t *testing.T, id string, price float64, stock int) {
	t.Helper()
	err := e.store.CreateProduct(context.Background(), &product.Product{
		ID: id, Name: "Product " + id, Price: price, Stock: stock, IsActive: true,
	})
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/users/register", "", map[string]any{
		"name": "Ada Obi", "email": "Ada@Example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	// Email is stored lowercased; duplicate registrations conflict.
	rec = env.do(t, http.MethodPost, "/api/users/register", "", map[string]any{
		"name": "Ada Again", "email": "ada@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/users/login", "", map[string]any{
		"email": "ada@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var loginResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp.Data.Token)

	rec = env.do(t, http.MethodGet, "/api/users/me", loginResp.Data.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/users/login", "", map[string]any{
		"email": "ada@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_ShortPassword(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/users/register", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductRoutes_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	customerToken := env.seedUser(t, "u1", "c@example.com", user.RoleCustomer)
	adminToken := env.seedUser(t, "a1", "a@example.com", user.RoleAdmin)

	body := map[string]any{"name": "Gas Cooker", "price": 45000, "stock": 10}

	rec := env.do(t, http.MethodPost, "/api/products", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/products", customerToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/products", adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	// The catalog is public.
	rec = env.do(t, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProductRestock(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.seedUser(t, "a1", "a@example.com", user.RoleAdmin)
	env.seedProduct(t, "p1", 100, 2)

	rec := env.do(t, http.MethodPut, "/api/products/p1/stock", adminToken, map[string]any{"stock": 50})
	require.Equal(t, http.StatusOK, rec.Code)

	p, err := env.store.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Stock)

	rec = env.do(t, http.MethodPut, "/api/products/missing/stock", adminToken, map[string]any{"stock": 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/products/p1/stock", adminToken, map[string]any{"stock": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func orderBody(productID string, qty int) map[string]any {
	return map[string]any{
		"items": []map[string]any{{"product_id": productID, "quantity": qty}},
		"shipping_address": map[string]any{
			"name": "Ada Obi", "phone": "+2348012345678",
			"street": "12 Marina Rd", "city": "Lagos", "state": "Lagos",
		},
		"payment_method": "transfer",
	}
}

func placeTestOrder(t *testing.T, env *testEnv, token, productID string, qty int) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/orders", token, orderBody(productID, qty))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data order.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.ID
}

func TestOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	customerToken := env.seedUser(t, "u1", "c@example.com", user.RoleCustomer)
	otherToken := env.seedUser(t, "u2", "o@example.com", user.RoleCustomer)
	adminToken := env.seedUser(t, "a1", "a@example.com", user.RoleAdmin)
	env.seedProduct(t, "p1", 45000, 10)

	orderID := placeTestOrder(t, env, customerToken, "p1", 2)

	// Owner and admin can read it; a stranger cannot.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/orders/"+orderID, customerToken, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/orders/"+orderID, adminToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/orders/"+orderID, otherToken, nil).Code)

	// Status override is admin-only.
	statusBody := map[string]any{"status": "confirmed", "note": "payment expected"}
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, "/api/orders/"+orderID+"/status", customerToken, statusBody).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/orders/"+orderID+"/status", adminToken, statusBody).Code)

	// Owner cancels from confirmed; stock comes back.
	rec := env.do(t, http.MethodPut, "/api/orders/"+orderID+"/cancel", customerToken, map[string]any{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p, err := env.store.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)

	// Cancelling again is rejected.
	rec = env.do(t, http.MethodPut, "/api/orders/"+orderID+"/cancel", customerToken, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderCreate_OutOfStock(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "u1", "c@example.com", user.RoleCustomer)
	env.seedProduct(t, "p1", 100, 1)

	rec := env.do(t, http.MethodPost, "/api/orders", token, orderBody("p1", 5))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Error, "insufficient stock")
}

func TestPaystackWebhook(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "u1", "c@example.com", user.RoleCustomer)
	env.seedProduct(t, "p1", 5500, 10)
	orderID := placeTestOrder(t, env, token, "p1", 1)

	payload := fmt.Sprintf(`{
		"event": "charge.success",
		"data": {
			"status": "success",
			"reference": "ref-1",
			"amount": 550000,
			"channel": "card",
			"paid_at": "2026-08-28T10:15:00Z",
			"id": 7,
			"metadata": {"order_id": %q}
		}
	}`, orderID)

	sendWebhook := func(body, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook/paystack", bytes.NewReader([]byte(body)))
		if signature != "" {
			req.Header.Set(payment.PaystackSignatureHeader, signature)
		}
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)
		return rec
	}

	// Unsigned and forged deliveries are rejected before parsing.
	assert.Equal(t, http.StatusBadRequest, sendWebhook(payload, "").Code)
	assert.Equal(t, http.StatusBadRequest, sendWebhook(payload, "deadbeef").Code)

	rec := sendWebhook(payload, signPaystackBody(t, "sk_test_secret", payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	o, err := env.store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)
	require.NotNil(t, o.PaymentDetails)
	assert.Equal(t, 5500.0, o.PaymentDetails.Amount)

	// Replay is acknowledged without changing anything.
	rec = sendWebhook(payload, signPaystackBody(t, "sk_test_secret", payload))
	assert.Equal(t, http.StatusOK, rec.Code)
	o, err = env.store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, "ref-1", o.PaymentDetails.Reference)
}

func TestRemitaWebhook(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "u1", "c@example.com", user.RoleCustomer)
	env.seedProduct(t, "p1", 5500, 10)
	orderID := placeTestOrder(t, env, token, "p1", 1)

	rrr := "110009999999"
	hash := sha512HexFor(rrr + "1946" + "2547916")
	payload := fmt.Sprintf(`[{"rrr":%q,"hash":%q,"orderId":%q,"amount":5500,"channel":"bank_branch","paymentDate":"2026-08-28 10:15:00"}]`, rrr, hash, orderID)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook/remita", bytes.NewReader([]byte(payload)))
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	o, err := env.store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)

	// A forged hash rejects the delivery.
	forged := fmt.Sprintf(`[{"rrr":%q,"hash":"forged","orderId":%q,"amount":5500}]`, rrr, orderID)
	req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook/remita", bytes.NewReader([]byte(forged)))
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentStatus(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "u1", "c@example.com", user.RoleCustomer)
	otherToken := env.seedUser(t, "u2", "o@example.com", user.RoleCustomer)
	env.seedProduct(t, "p1", 100, 5)
	orderID := placeTestOrder(t, env, token, "p1", 1)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/payments/status/"+orderID, token, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/payments/status/"+orderID, otherToken, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/payments/status/"+orderID, "", nil).Code)
}

func TestContactFlow(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.seedUser(t, "a1", "a@example.com", user.RoleAdmin)
	customerToken := env.seedUser(t, "u1", "c@example.com", user.RoleCustomer)

	rec := env.do(t, http.MethodPost, "/api/contact", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "subject": "Delivery", "message": "Where is my order?",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Missing subject is rejected.
	rec = env.do(t, http.MethodPost, "/api/contact", "", map[string]any{
		"name": "Ada", "email": "ada@example.com", "message": "hello",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The queue is admin-only.
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/contact", customerToken, nil).Code)
	rec = env.do(t, http.MethodGet, "/api/contact", adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServiceRequestFlow(t *testing.T) {
	env := newTestEnv(t)
	customerToken := env.seedUser(t, "u1", "c@example.com", user.RoleCustomer)
	adminToken := env.seedUser(t, "a1", "a@example.com", user.RoleAdmin)

	body := map[string]any{
		"customer": map[string]any{
			"name": "Ada Obi", "email": "c@example.com",
			"phone": "+2348012345678", "address": "12 Marina Rd, Lagos",
		},
		"service_type": "installation",
		"category":     "solar",
		"description":  "Install 5kVA inverter and panels",
	}

	// Logged-in submission links the request to the account.
	rec := env.do(t, http.MethodPost, "/api/services/request", customerToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			ID            string `json:"id"`
			RequestNumber string `json:"request_number"`
			UserID        string `json:"user_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "u1", created.Data.UserID)
	assert.Regexp(t, `^SRV\d{8}$`, created.Data.RequestNumber)

	// Anonymous submission works too.
	rec = env.do(t, http.MethodPost, "/api/services/request", "", body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/services/my-requests", customerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Admin updates: assign and complete.
	rec = env.do(t, http.MethodPut, "/api/services/"+created.Data.ID, adminToken, map[string]any{
		"status": "completed", "actual_cost": 250000, "admin_notes": "done same day",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	sr, err := env.store.GetRequest(context.Background(), created.Data.ID)
	require.NoError(t, err)
	assert.NotNil(t, sr.CompletedDate)
	assert.Equal(t, 250000.0, sr.ActualCost)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, "/api/services/"+created.Data.ID, customerToken, map[string]any{}).Code)
}

func signPaystackBody(t *testing.T, secret, body string) string {
	t.Helper()
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func sha512HexFor(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
