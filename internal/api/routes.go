package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, health *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health checks
	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	}

	// Public routes, reached from links in delivered email
	r.Get("/about", h.About)
	r.Get("/unsubscribe/{key}", h.Unsubscribe)
	r.Get("/confirm/{key}", h.Confirm)
	r.Get("/link/clicked/{key}", h.LinkClicked)
	r.Post("/signup", h.Signup)

	// Data subject requests, authorized by the contact's key
	r.Get("/data-subject/export/{key}", h.ExportContact)
	r.Put("/data-subject/update/{key}", h.UpdateContact)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/validate", h.ValidateBroadcast)
		r.Post("/queue-broadcast", h.QueueBroadcast)
		r.Post("/bulk/contacts/tag", h.BulkTag)
		r.Post("/contacts/{id}/optin", h.OptIn)
		r.Get("/contacts/search", h.SearchContacts)
		r.Get("/audience", h.Audience)
	})

	return r
}

// securityHeaders sets the response headers every page served to a
// subscriber's browser carries.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}
