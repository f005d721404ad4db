package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/ec-backend/internal/api/middleware"
	"github.com/example/ec-backend/internal/domain/order"
	"github.com/example/ec-backend/internal/orders"
)

// OrderHandlers exposes the order lifecycle over HTTP. All authorization
// decisions live in the service; handlers only translate the caller's claims
// into a Principal.
type OrderHandlers struct {
	service *orders.Service
}

func NewOrderHandlers(service *orders.Service) *OrderHandlers {
	return &OrderHandlers{service: service}
}

func principalFrom(r *http.Request) (orders.Principal, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		return orders.Principal{}, false
	}
	return orders.Principal{UserID: claims.UserID, Admin: middleware.IsAdmin(r.Context())}, true
}

func (h *OrderHandlers) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req orders.CreateInput
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.service.Create(r.Context(), p.UserID, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, "Order placed successfully", o)
}

func (h *OrderHandlers) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	in := orders.ListInput{
		Status: order.Status(r.URL.Query().Get("status")),
		Page:   page,
		Limit:  limit,
	}

	list, total, err := h.service.List(r.Context(), p, in)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "", map[string]any{
		"orders": list,
		"meta":   NewListMeta(len(list), total, page, limit),
	})
}

func (h *OrderHandlers) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	o, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "", o)
}

type UpdateStatusRequest struct {
	Status order.Status `json:"status"`
	Note   string       `json:"note,omitempty"`
}

func (h *OrderHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Note, p)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Order status updated", o)
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus order.PaymentStatus `json:"payment_status"`
}

func (h *OrderHandlers) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdatePaymentStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.service.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "id"), req.PaymentStatus, p)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Payment status updated", o)
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *OrderHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CancelRequest
	// An empty body is a valid cancellation with no reason.
	_ = decodeSilently(r, &req)

	o, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason, p)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Order cancelled", o)
}
