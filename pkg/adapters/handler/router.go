package handler

import (
	"log/slog"
	"net/http"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Links      *HTTPHandler
	Auth       *AuthHandler
	Admin      *AdminHandler
	Middleware *Middleware
	Logger     *slog.Logger
}

// NewRouter creates and configures the main application router
func NewRouter(h Handlers) http.Handler {
	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.HandleFunc("POST /api/v1/auth/signup", h.Auth.Signup)
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)
	mux.HandleFunc("GET /api/v1/admin/stats", h.Admin.Stats)
	mux.HandleFunc("GET /{code}", h.Links.Redirect)

	if h.Auth.GoogleEnabled() {
		mux.HandleFunc("GET /auth/google/login", h.Auth.GoogleLogin)
		mux.HandleFunc("GET /auth/google/callback", h.Auth.GoogleCallback)
		mux.HandleFunc("GET /auth/logout", h.Auth.Logout)
	}

	// Protected Routes
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("GET /api/v1/auth/profile", h.Auth.Profile)
	protectedMux.HandleFunc("POST /api/v1/links", h.Links.Create)
	protectedMux.HandleFunc("GET /api/v1/links", h.Links.List)
	protectedMux.HandleFunc("GET /api/v1/links/{code}/analytics", h.Links.Analytics)
	protectedMux.HandleFunc("GET /api/v1/links/{code}/qr", h.Links.QRCode)

	// Everything else under /api/v1/ requires a token.
	// Since protectedMux contains the full paths, this works for dispatching.
	mux.Handle("/api/v1/", h.Middleware.AuthMiddleware(protectedMux))

	return h.Middleware.RequestLogger(mux)
}
