package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/ec-backend/internal/api/middleware"
	"github.com/example/ec-backend/internal/domain/servicereq"
	"github.com/example/ec-backend/internal/infrastructure/store"
)

// ServiceHandlers manages installation/repair service requests. Submission
// is public; a logged-in submitter gets the request linked to their account.
type ServiceHandlers struct {
	requests store.ServiceRequestStore
}

func NewServiceHandlers(requests store.ServiceRequestStore) *ServiceHandlers {
	return &ServiceHandlers{requests: requests}
}

type ServiceRequestInput struct {
	Customer      servicereq.Customer    `json:"customer"`
	ServiceType   servicereq.ServiceType `json:"service_type"`
	Category      servicereq.Category    `json:"category"`
	Description   string                 `json:"description"`
	PreferredDate *time.Time             `json:"preferred_date,omitempty"`
}

func (h *ServiceHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req ServiceRequestInput
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Customer.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.ServiceType.Valid() {
		respondError(w, http.StatusBadRequest, "invalid service type")
		return
	}
	if !req.Category.Valid() {
		respondError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if req.Description == "" {
		respondError(w, http.StatusBadRequest, "description is required")
		return
	}

	now := time.Now()
	sr := &servicereq.Request{
		ID:            uuid.New().String(),
		RequestNumber: servicereq.NewRequestNumber(now),
		Customer:      req.Customer,
		ServiceType:   req.ServiceType,
		Category:      req.Category,
		Description:   req.Description,
		PreferredDate: req.PreferredDate,
		Status:        servicereq.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// Anonymous submissions are allowed; a token links the request.
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		sr.UserID = claims.UserID
	}

	if err := h.requests.CreateRequest(r.Context(), sr); err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, "Service request submitted", sr)
}

func (h *ServiceHandlers) List(w http.ResponseWriter, r *http.Request) {
	f := store.ServiceRequestFilter{
		Status:      servicereq.Status(r.URL.Query().Get("status")),
		ServiceType: servicereq.ServiceType(r.URL.Query().Get("service_type")),
		Category:    servicereq.Category(r.URL.Query().Get("category")),
		Page:        queryInt(r, "page", 1),
		Limit:       queryInt(r, "limit", 10),
	}

	list, total, err := h.requests.ListRequests(r.Context(), f)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "", map[string]any{
		"requests": list,
		"meta":     NewListMeta(len(list), total, f.Page, f.Limit),
	})
}

// MyRequests lists the caller's requests, matched by account id or by the
// email captured on requests filed before they registered.
func (h *ServiceHandlers) MyRequests(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	list, err := h.requests.ListRequestsForUser(r.Context(), claims.UserID, claims.Email)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "", list)
}

func (h *ServiceHandlers) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sr, err := h.requests.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	owns := sr.UserID == claims.UserID || sr.Customer.Email == claims.Email
	if !owns && !middleware.IsAdmin(r.Context()) {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	respondData(w, http.StatusOK, "", sr)
}

type UpdateServiceRequestInput struct {
	Status        *servicereq.Status `json:"status,omitempty"`
	AssignedTo    *string            `json:"assigned_to,omitempty"`
	EstimatedCost *float64           `json:"estimated_cost,omitempty"`
	ActualCost    *float64           `json:"actual_cost,omitempty"`
	AdminNotes    *string            `json:"admin_notes,omitempty"`
}

// Update applies the admin's partial edit. Completing a request stamps the
// completion date once.
func (h *ServiceHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateServiceRequestInput
	if !decodeBody(w, r, &req) {
		return
	}

	sr, err := h.requests.GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if req.Status != nil {
		if !req.Status.Valid() {
			respondError(w, http.StatusBadRequest, "invalid status")
			return
		}
		sr.Status = *req.Status
		if sr.Status == servicereq.StatusCompleted && sr.CompletedDate == nil {
			now := time.Now()
			sr.CompletedDate = &now
		}
	}
	if req.AssignedTo != nil {
		sr.AssignedTo = *req.AssignedTo
	}
	if req.EstimatedCost != nil {
		sr.EstimatedCost = *req.EstimatedCost
	}
	if req.ActualCost != nil {
		sr.ActualCost = *req.ActualCost
	}
	if req.AdminNotes != nil {
		sr.AdminNotes = *req.AdminNotes
	}
	sr.UpdatedAt = time.Now()

	if err := h.requests.UpdateRequest(r.Context(), sr); err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Service request updated", sr)
}
