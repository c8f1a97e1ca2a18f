package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes registers all admin API routes using chi router
func RegisterRoutes(mux *http.ServeMux, handlers *AdminHandlers) {
	r := chi.NewRouter()

	// Operator status & membership
	r.With(chiAuthMiddleware).Get("/status", handlers.handleStatus)
	r.With(chiAuthMiddleware).Get("/seeds", handlers.handleSeeds)

	// Proxied backend cluster health
	r.With(chiAuthMiddleware).Get("/health", handlers.handleHealth)

	// Mount chi router under /admin
	mux.Handle("/admin", http.RedirectHandler("/admin/", http.StatusMovedPermanently))
	mux.Handle("/admin/", http.StripPrefix("/admin", r))

	// Liveness probe stays unauthenticated
	mux.HandleFunc("/healthz", handlers.handleLiveness)

	log.Info().Msg("Admin endpoints enabled at /admin/*")
}

// chiAuthMiddleware adapts AuthMiddleware for chi
func chiAuthMiddleware(next http.Handler) http.Handler {
	return AuthMiddleware(next)
}
