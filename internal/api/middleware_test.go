package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/codr1/Ensaios/internal/api/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func setupAuth(t *testing.T) *auth.Sessions {
	t.Helper()
	sessions, err := auth.NewSessions(strings.Repeat("k", 32), false, 0)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	auth.InitHandlers(&auth.Config{Sessions: sessions})
	t.Cleanup(func() { auth.InitHandlers(nil) })
	return sessions
}

func TestWithRequestIDSetsHeaderAndContext(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected request id in context and header, got ctx=%q header=%q", seen, rec.Header().Get("X-Request-ID"))
	}
}

func TestWithLoggingWithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	WithLogging(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestWithRecovery(t *testing.T) {
	h := WithRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestWithAuth(t *testing.T) {
	sessions := setupAuth(t)

	issued := httptest.NewRecorder()
	if err := sessions.Issue(issued); err != nil {
		t.Fatalf("issue: %v", err)
	}
	cookie := issued.Result().Cookies()[0]

	tests := []struct {
		name         string
		method       string
		target       string
		headers      map[string]string
		withCookie   bool
		wantStatus   int
		wantLocation string
		wantHeader   [2]string
	}{
		{name: "public_login", method: http.MethodGet, target: "/login", wantStatus: http.StatusNoContent},
		{name: "public_health", method: http.MethodGet, target: "/health", wantStatus: http.StatusNoContent},
		{name: "public_static", method: http.MethodGet, target: "/static/app.css", wantStatus: http.StatusNoContent},
		{name: "authenticated", method: http.MethodGet, target: "/", withCookie: true, wantStatus: http.StatusNoContent},
		{name: "browser_root", method: http.MethodGet, target: "/", wantStatus: http.StatusSeeOther, wantLocation: "/login"},
		{name: "browser_keeps_next", method: http.MethodGet, target: "/?year=2025&month=3", wantStatus: http.StatusSeeOther, wantLocation: "/login?next=%2F%3Fyear%3D2025%26month%3D3"},
		{name: "htmx", method: http.MethodPost, target: "/api/v1/agenda/bookings", headers: map[string]string{"HX-Request": "true"}, wantStatus: http.StatusUnauthorized, wantHeader: [2]string{"HX-Redirect", "/login"}},
		{name: "json", method: http.MethodGet, target: "/api/v1/agenda/month", headers: map[string]string{"Accept": "application/json"}, wantStatus: http.StatusUnauthorized, wantHeader: [2]string{"Content-Type", "application/json"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(test.method, test.target, nil)
			for k, v := range test.headers {
				req.Header.Set(k, v)
			}
			if test.withCookie {
				req.AddCookie(cookie)
			}
			rec := httptest.NewRecorder()
			WithAuth(okHandler()).ServeHTTP(rec, req)

			if rec.Code != test.wantStatus {
				t.Fatalf("expected %d, got %d", test.wantStatus, rec.Code)
			}
			if test.wantLocation != "" && rec.Header().Get("Location") != test.wantLocation {
				t.Fatalf("expected Location %q, got %q", test.wantLocation, rec.Header().Get("Location"))
			}
			if test.wantHeader[0] != "" && !strings.HasPrefix(rec.Header().Get(test.wantHeader[0]), test.wantHeader[1]) {
				t.Fatalf("expected %s %q, got %q", test.wantHeader[0], test.wantHeader[1], rec.Header().Get(test.wantHeader[0]))
			}
		})
	}
}

func TestWithCSRFRejectsFormPostWithoutToken(t *testing.T) {
	h := WithCSRF([]byte(strings.Repeat("c", 32)), false, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agenda/bookings", strings.NewReader("date=2025-03-14"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestWithCSRFAllowsSafeAndJSONRequests(t *testing.T) {
	h := WithCSRF([]byte(strings.Repeat("c", 32)), false, nil)(okHandler())

	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/", nil))
	if get.Code != http.StatusNoContent {
		t.Fatalf("expected GET to pass, got %d", get.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agenda/bookings", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected JSON POST to pass, got %d", rec.Code)
	}
}

func TestWithThrottle(t *testing.T) {
	h := WithThrottle(rate.NewLimiter(rate.Limit(0), 1))(okHandler())

	post := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/agenda/bookings", nil))
		return rec.Code
	}

	if code := post(); code != http.StatusNoContent {
		t.Fatalf("expected first write to pass, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second write to be throttled, got %d", code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected reads to bypass throttle, got %d", rec.Code)
	}
}
