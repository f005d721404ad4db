package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/ec-backend/internal/domain/contact"
	"github.com/example/ec-backend/internal/infrastructure/store"
)

// ContactHandlers serves the public contact form and its admin queue.
type ContactHandlers struct {
	messages store.ContactStore
}

func NewContactHandlers(messages store.ContactStore) *ContactHandlers {
	return &ContactHandlers{messages: messages}
}

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (h *ContactHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !decodeBody(w, r, &req) {
		return
	}

	now := time.Now()
	m := &contact.Message{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Subject:   req.Subject,
		Body:      req.Message,
		Status:    contact.StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.messages.CreateMessage(r.Context(), m); err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, "Message received, we will get back to you shortly", m)
}

func (h *ContactHandlers) List(w http.ResponseWriter, r *http.Request) {
	status := contact.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	list, total, err := h.messages.ListMessages(r.Context(), status, page, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "", map[string]any{
		"messages": list,
		"meta":     NewListMeta(len(list), total, page, limit),
	})
}

type UpdateMessageStatusRequest struct {
	Status contact.Status `json:"status"`
}

func (h *ContactHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateMessageStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	m, err := h.messages.UpdateMessageStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Message updated", m)
}
