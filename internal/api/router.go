package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ec-backend/internal/api/middleware"
	"github.com/example/ec-backend/internal/auth"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth     *AuthHandlers
	Products *ProductHandlers
	Orders   *OrderHandlers
	Payments *PaymentHandlers
	Contact  *ContactHandlers
	Services *ServiceHandlers
}

func NewRouter(h *Handlers, jwtService *auth.JWTService) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondData(w, http.StatusOK, "ok", nil)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	requireAuth := middleware.RequireAuth(jwtService)
	optionalAuth := middleware.OptionalAuth(jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.With(requireAuth).Get("/me", h.Auth.Me)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/{id}", h.Products.Get)
			r.With(requireAuth, middleware.RequireAdmin).Post("/", h.Products.Create)
			r.With(requireAuth, middleware.RequireAdmin).Put("/{id}/stock", h.Products.Restock)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", h.Orders.Create)
			r.Get("/", h.Orders.List)
			r.Get("/{id}", h.Orders.Get)
			r.Put("/{id}/cancel", h.Orders.Cancel)
			r.With(middleware.RequireAdmin).Put("/{id}/status", h.Orders.UpdateStatus)
			r.With(middleware.RequireAdmin).Put("/{id}/payment", h.Orders.UpdatePaymentStatus)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(requireAuth).Post("/initialize", h.Payments.Initialize)
			r.With(requireAuth).Get("/status/{orderID}", h.Payments.Status)
			r.Get("/verify/{reference}", h.Payments.VerifyPaystack)
			r.Get("/remita/verify/{rrr}", h.Payments.VerifyRemita)
			// Webhooks authenticate by signature, never by session.
			r.Post("/webhook/paystack", h.Payments.WebhookPaystack)
			r.Post("/webhook/remita", h.Payments.WebhookRemita)
		})

		r.Route("/contact", func(r chi.Router) {
			r.Post("/", h.Contact.Submit)
			r.With(requireAuth, middleware.RequireAdmin).Get("/", h.Contact.List)
			r.With(requireAuth, middleware.RequireAdmin).Put("/{id}/status", h.Contact.UpdateStatus)
		})

		r.Route("/services", func(r chi.Router) {
			r.With(optionalAuth).Post("/request", h.Services.Submit)
			r.With(requireAuth, middleware.RequireAdmin).Get("/", h.Services.List)
			r.With(requireAuth).Get("/my-requests", h.Services.MyRequests)
			r.With(requireAuth).Get("/{id}", h.Services.Get)
			r.With(requireAuth, middleware.RequireAdmin).Put("/{id}", h.Services.Update)
		})
	})

	return r
}
