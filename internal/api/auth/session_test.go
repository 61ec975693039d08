package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestSessions(t *testing.T) *Sessions {
	t.Helper()
	s, err := NewSessions(testSecret, false, time.Hour)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	return s
}

func issuedCookie(t *testing.T, s *Sessions) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := s.Issue(rec); err != nil {
		t.Fatalf("issue: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func requestWithCookie(c *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		r.AddCookie(c)
	}
	return r
}

func TestNewSessionsRejectsShortSecret(t *testing.T) {
	if _, err := NewSessions("short", false, time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestSessions(t)
	cookie := issuedCookie(t, s)

	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}
	ok, err := s.Valid(requestWithCookie(cookie))
	if err != nil || !ok {
		t.Fatalf("expected valid session, got ok=%v err=%v", ok, err)
	}
}

func TestSessionMissingCookie(t *testing.T) {
	ok, err := newTestSessions(t).Valid(requestWithCookie(nil))
	if ok || err != nil {
		t.Fatalf("expected no session and no error, got ok=%v err=%v", ok, err)
	}
}

func TestSessionRejectsTampering(t *testing.T) {
	s := newTestSessions(t)
	cookie := issuedCookie(t, s)

	tampered := []byte(cookie.Value)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	tests := []struct {
		name  string
		value string
	}{
		{name: "flipped_byte", value: string(tampered)},
		{name: "truncated", value: cookie.Value[:len(cookie.Value)/2]},
		{name: "garbage", value: "not-a-session"},
		{name: "empty", value: ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ok, err := s.Valid(requestWithCookie(&http.Cookie{Name: sessionCookieName, Value: test.value}))
			if ok || !errors.Is(err, ErrInvalidSession) {
				t.Fatalf("expected ErrInvalidSession, got ok=%v err=%v", ok, err)
			}
		})
	}

	other, err := NewSessions(strings.Repeat("x", 32), false, time.Hour)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	if ok, err := other.Valid(requestWithCookie(cookie)); ok || !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("cookie signed with another secret should be rejected, got ok=%v err=%v", ok, err)
	}
}

func TestSessionExpires(t *testing.T) {
	s := newTestSessions(t)
	now := time.Date(2025, 3, 14, 19, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	cookie := issuedCookie(t, s)

	now = now.Add(time.Hour + time.Second)
	if ok, err := s.Valid(requestWithCookie(cookie)); ok || !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got ok=%v err=%v", ok, err)
	}
}

func TestSessionClear(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestSessions(t).Clear(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 || cookies[0].Value != "" {
		t.Fatalf("expected expired cookie, got %+v", cookies)
	}
}
