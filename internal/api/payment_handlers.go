package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/ec-backend/internal/api/middleware"
	"github.com/example/ec-backend/internal/domain/order"
	"github.com/example/ec-backend/internal/infrastructure/store"
	"github.com/example/ec-backend/internal/metrics"
	"github.com/example/ec-backend/internal/payment"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// PaymentHandlers exposes gateway initialization, user-initiated
// verification and the webhook endpoints. Both webhook paths and both verify
// paths converge on the reconciler, which owns idempotency.
type PaymentHandlers struct {
	orders     store.OrderStore
	reconciler *payment.Reconciler
	paystack   *payment.PaystackClient
	remita     *payment.RemitaClient
}

func NewPaymentHandlers(orders store.OrderStore, reconciler *payment.Reconciler, paystack *payment.PaystackClient, remita *payment.RemitaClient) *PaymentHandlers {
	return &PaymentHandlers{orders: orders, reconciler: reconciler, paystack: paystack, remita: remita}
}

type InitializeRequest struct {
	OrderID string `json:"order_id"`
	Gateway string `json:"gateway"` // paystack | remita
}

// Initialize starts a checkout for an order with the chosen gateway. Only
// the order's owner may pay for it, and only while it is still unpaid.
func (h *PaymentHandlers) Initialize(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req InitializeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), req.OrderID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !o.OwnedBy(claims.UserID) && !middleware.IsAdmin(r.Context()) {
		respondError(w, http.StatusForbidden, "not authorized to pay for this order")
		return
	}
	if o.IsPaid() {
		respondError(w, http.StatusConflict, "order is already paid")
		return
	}
	if o.Status == order.StatusCancelled {
		respondError(w, http.StatusConflict, "order is cancelled")
		return
	}

	switch req.Gateway {
	case payment.GatewayPaystack:
		h.initializePaystack(w, r, o, claims.Email)
	case payment.GatewayRemita:
		h.initializeRemita(w, r, o, claims.Email)
	default:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown gateway %q", req.Gateway))
	}
}

func (h *PaymentHandlers) initializePaystack(w http.ResponseWriter, r *http.Request, o *order.Order, email string) {
	if h.paystack == nil {
		respondError(w, http.StatusServiceUnavailable, "paystack is not configured")
		return
	}
	reference := fmt.Sprintf("%s-%d", o.OrderNumber, time.Now().Unix())
	res, err := h.paystack.Initialize(r.Context(), payment.PaystackInitRequest{
		Email:     email,
		Amount:    o.Total,
		Reference: reference,
		OrderID:   o.ID,
	})
	if err != nil {
		log.Printf("[Payment] Paystack initialize failed for order %s: %v", o.ID, err)
		respondError(w, http.StatusBadGateway, "failed to initialize payment")
		return
	}
	respondData(w, http.StatusOK, "Payment initialized", map[string]any{
		"gateway":           payment.GatewayPaystack,
		"authorization_url": res.AuthorizationURL,
		"access_code":       res.AccessCode,
		"reference":         res.Reference,
	})
}

func (h *PaymentHandlers) initializeRemita(w http.ResponseWriter, r *http.Request, o *order.Order, email string) {
	if h.remita == nil {
		respondError(w, http.StatusServiceUnavailable, "remita is not configured")
		return
	}
	res, err := h.remita.GenerateRRR(r.Context(), payment.RemitaInitRequest{
		OrderID:     o.ID,
		PayerName:   o.ShippingAddress.Name,
		PayerEmail:  email,
		PayerPhone:  o.ShippingAddress.Phone,
		Amount:      o.Total,
		Description: "Payment for order " + o.OrderNumber,
	})
	if err != nil {
		log.Printf("[Payment] Remita RRR generation failed for order %s: %v", o.ID, err)
		respondError(w, http.StatusBadGateway, "failed to initialize payment")
		return
	}
	respondData(w, http.StatusOK, "Payment initialized", map[string]any{
		"gateway": payment.GatewayRemita,
		"rrr":     res.RRR,
	})
}

// VerifyPaystack handles the customer's return from checkout: it asks the
// gateway for the transaction's final state and applies the confirmation.
func (h *PaymentHandlers) VerifyPaystack(w http.ResponseWriter, r *http.Request) {
	if h.paystack == nil {
		respondError(w, http.StatusServiceUnavailable, "paystack is not configured")
		return
	}
	conf, err := h.paystack.Verify(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.applyConfirmation(w, r, *conf)
}

func (h *PaymentHandlers) VerifyRemita(w http.ResponseWriter, r *http.Request) {
	if h.remita == nil {
		respondError(w, http.StatusServiceUnavailable, "remita is not configured")
		return
	}
	conf, err := h.remita.Verify(r.Context(), chi.URLParam(r, "rrr"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.applyConfirmation(w, r, *conf)
}

func (h *PaymentHandlers) applyConfirmation(w http.ResponseWriter, r *http.Request, conf payment.Confirmation) {
	if err := h.reconciler.Apply(r.Context(), conf); err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Payment verified", map[string]any{
		"order_id":  conf.OrderID,
		"reference": conf.Reference,
		"amount":    conf.Amount,
	})
}

// WebhookPaystack verifies the HMAC signature over the raw body before
// anything is decoded. Deliveries failing verification are rejected without
// looking at their contents.
func (h *PaymentHandlers) WebhookPaystack(w http.ResponseWriter, r *http.Request) {
	if h.paystack == nil {
		respondError(w, http.StatusServiceUnavailable, "paystack is not configured")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if err := h.paystack.VerifyWebhook(body, r.Header.Get(payment.PaystackSignatureHeader)); err != nil {
		metrics.WebhooksRejected.WithLabelValues(payment.GatewayPaystack).Inc()
		log.Printf("[Payment] Rejected paystack webhook: %v", err)
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	conf, err := h.paystack.ParseWebhook(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if conf == nil {
		// Not a charge.success event; acknowledge so the gateway stops.
		respondData(w, http.StatusOK, "ignored", nil)
		return
	}

	if err := h.reconciler.Apply(r.Context(), *conf); err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "ok", nil)
}

// WebhookRemita verifies each notification's SHA-512 hash before applying.
func (h *PaymentHandlers) WebhookRemita(w http.ResponseWriter, r *http.Request) {
	if h.remita == nil {
		respondError(w, http.StatusServiceUnavailable, "remita is not configured")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	confs, err := h.remita.ParseWebhook(body)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			metrics.WebhooksRejected.WithLabelValues(payment.GatewayRemita).Inc()
			log.Printf("[Payment] Rejected remita webhook: %v", err)
			respondError(w, http.StatusBadRequest, "invalid hash")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, conf := range confs {
		if err := h.reconciler.Apply(r.Context(), conf); err != nil {
			respondDomainError(w, err)
			return
		}
	}
	respondData(w, http.StatusOK, "ok", nil)
}

// Status reports the payment state of one order to its owner.
func (h *PaymentHandlers) Status(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	o, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !o.OwnedBy(claims.UserID) && !middleware.IsAdmin(r.Context()) {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	respondData(w, http.StatusOK, "", map[string]any{
		"order_id":        o.ID,
		"order_number":    o.OrderNumber,
		"payment_status":  o.PaymentStatus,
		"payment_method":  o.PaymentMethod,
		"payment_details": o.PaymentDetails,
		"total":           o.Total,
	})
}
