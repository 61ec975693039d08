package auth

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Ensaios/internal/api/htmx"
	"github.com/codr1/Ensaios/internal/ratelimit"
	authtempl "github.com/codr1/Ensaios/internal/templates/components/auth"
	"github.com/codr1/Ensaios/internal/templates/layouts"
)

type Config struct {
	AppName      string
	PasswordHash string
	Sessions     *Sessions
	Limiter      *ratelimit.Limiter
	TrustProxy   bool
}

var handlerConfig *Config

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(cfg *Config) {
	handlerConfig = cfg
}

// IsAuthenticated reports whether the request carries a valid session cookie.
func IsAuthenticated(r *http.Request) bool {
	cfg := handlerConfig
	if cfg == nil || cfg.Sessions == nil {
		return false
	}
	ok, err := cfg.Sessions.Valid(r)
	if err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("Rejected session cookie")
		return false
	}
	return ok
}

// GET /login
func HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if IsAuthenticated(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	renderLogin(w, r, http.StatusOK, "", safeNext(r.URL.Query().Get("next")))
}

// POST /login
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	cfg := handlerConfig
	if cfg == nil || cfg.Sessions == nil {
		logger.Error().Msg("Auth handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	next := safeNext(r.PostForm.Get("next"))
	ip := ratelimit.GetClientIP(r, cfg.TrustProxy)

	if cfg.Limiter != nil {
		if result := cfg.Limiter.CheckLogin(ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(ip, result.Reason, result.RetryAfter)
			w.Header().Set("Retry-After", retryAfterSeconds(result.RetryAfter))
			renderLogin(w, r, http.StatusTooManyRequests, "Muitas tentativas. Tente novamente em alguns minutos.", next)
			return
		}
	}

	password := r.PostForm.Get("password")
	if password == "" || !VerifyPassword(cfg.PasswordHash, password) {
		lockedOut := false
		if cfg.Limiter != nil {
			lockedOut = cfg.Limiter.RecordFailure(ip)
		}
		logger.Warn().Str("ip", ip).Bool("locked_out", lockedOut).Msg("Login failed")
		renderLogin(w, r, http.StatusUnauthorized, "Senha incorreta.", next)
		return
	}

	if cfg.Limiter != nil {
		cfg.Limiter.RecordSuccess(ip)
	}
	if err := cfg.Sessions.Issue(w); err != nil {
		logger.Error().Err(err).Msg("Failed to issue session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	logger.Info().Str("ip", ip).Msg("Login succeeded")
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// POST /logout
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cfg := handlerConfig; cfg != nil && cfg.Sessions != nil {
		cfg.Sessions.Clear(w)
	}
	log.Ctx(r.Context()).Info().Msg("Logged out")
	htmx.Redirect(w, r, "/login")
}

func renderLogin(w http.ResponseWriter, r *http.Request, status int, message, next string) {
	appName := ""
	if cfg := handlerConfig; cfg != nil {
		appName = cfg.AppName
	}
	token := csrf.Token(r)

	page := layouts.Base(
		layouts.Page{Title: "Entrar - " + appName, AppName: appName, CSRFToken: token},
		authtempl.LoginForm(authtempl.LoginData{Error: message, Next: next, CSRFToken: token}),
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to render login page")
	}
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
