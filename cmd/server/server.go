// cmd/server/server.go
package main

import (
	"crypto/sha256"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/codr1/Ensaios/internal/api"
	"github.com/codr1/Ensaios/internal/api/agenda"
	"github.com/codr1/Ensaios/internal/api/auth"
	"github.com/codr1/Ensaios/internal/config"
)

// Writes are rare; this only guards the single shared ledger against floods.
const (
	writeRate  = rate.Limit(20)
	writeBurst = 40
)

func newServer(serverConfig *Config, appConfig *config.Config) *http.Server {
	router := http.NewServeMux()

	// gorilla/csrf wants its own 32-byte key; derive it so it never equals the session key.
	csrfKey := sha256.Sum256([]byte("csrf:" + appConfig.App.SecretKey))

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithAuth,
		api.WithCSRF(csrfKey[:], !appConfig.IsDevelopment(), trustedOrigins(appConfig.App.BaseURL)),
		api.WithThrottle(rate.NewLimiter(writeRate, writeBurst)),
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithSecurityHeaders,
		api.WithContentType,
	)

	// Register routes
	registerRoutes(router, serverConfig.StaticDir)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(appConfig.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func trustedOrigins(baseURL string) []string {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return nil
	}
	return []string{parsed.Host}
}

func registerRoutes(mux *http.ServeMux, staticDir string) {
	// Main page handler
	mux.HandleFunc("GET /{$}", agenda.HandlePage)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Auth routes
	mux.HandleFunc("GET /login", auth.HandleLoginPage)
	mux.HandleFunc("POST /login", auth.HandleLogin)
	mux.HandleFunc("POST /logout", auth.HandleLogout)

	// Agenda routes
	mux.HandleFunc("GET /api/v1/agenda/month", agenda.HandleMonth)
	mux.HandleFunc("GET /api/v1/agenda/day", agenda.HandleDay)
	mux.HandleFunc("POST /api/v1/agenda/bookings", agenda.HandleCreateBooking)
	mux.HandleFunc("POST /api/v1/agenda/bookings/{id}/delete", agenda.HandleDeleteBooking)
	mux.HandleFunc("DELETE /api/v1/agenda/bookings/{id}", agenda.HandleDeleteBooking)
	mux.HandleFunc("POST /api/v1/agenda/flush", agenda.HandleFlush)
	mux.HandleFunc("POST /api/v1/agenda/reload", agenda.HandleReload)

	fs := http.FileServer(http.Dir(staticDir))

	// Add logging middleware for static files
	mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Ctx(r.Context()).Debug().
			Str("path", r.URL.Path).
			Str("static_dir", staticDir).
			Msg("Static file request")
		http.StripPrefix("/static/", fs).ServeHTTP(w, r)
	}))
}
