package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/example/ec-backend/internal/domain/contact"
	"github.com/example/ec-backend/internal/domain/order"
	"github.com/example/ec-backend/internal/domain/product"
	"github.com/example/ec-backend/internal/domain/servicereq"
	"github.com/example/ec-backend/internal/domain/user"
	"github.com/example/ec-backend/internal/orders"
	"github.com/example/ec-backend/internal/payment"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListMeta is attached to paged list responses.
type ListMeta struct {
	Count int `json:"count"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

func NewListMeta(count, total, page, limit int) ListMeta {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	pages := (total + limit - 1) / limit
	return ListMeta{Count: count, Total: total, Page: page, Pages: pages}
}

func respondJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func respondData(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, Response{Success: false, Error: message})
}

// respondDomainError maps domain sentinels onto the HTTP taxonomy. Anything
// unrecognized is a 500 with the detail kept out of the response body.
func respondDomainError(w http.ResponseWriter, err error) {
	var oos *product.OutOfStockError

	switch {
	case errors.As(err, &oos):
		respondError(w, http.StatusBadRequest, oos.Error())
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, contact.ErrMessageNotFound),
		errors.Is(err, servicereq.ErrRequestNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orders.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, order.ErrTerminalStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, user.ErrEmailTaken):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, user.ErrDeactivated):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, product.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrPaymentNotSucceeded):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[API] Internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeSilently reads an optional JSON body; an empty or absent body is
// not an error.
func decodeSilently(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dest)
	if err == io.EOF {
		return nil
	}
	return err
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
