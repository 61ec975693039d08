package htmx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRedirect(t *testing.T) {
	t.Run("htmx", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/logout", nil)
		r.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()

		Redirect(rec, r, "/login")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get("HX-Redirect") != "/login" {
			t.Fatalf("HX-Redirect = %q", rec.Header().Get("HX-Redirect"))
		}
	})

	t.Run("plain", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/logout", nil)
		rec := httptest.NewRecorder()

		Redirect(rec, r, "/login")

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get("Location") != "/login" {
			t.Fatalf("Location = %q", rec.Header().Get("Location"))
		}
	})
}
