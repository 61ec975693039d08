package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	sessionCookieName = "ensaios_session"
	DefaultSessionTTL = 12 * time.Hour
	sessionNonceBytes = 16
	minSecretLength   = 32
)

var (
	ErrInvalidSession = errors.New("invalid session cookie")
	ErrSessionExpired = errors.New("session expired")
)

type sessionPayload struct {
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	Nonce     string `json:"n"`
}

// Sessions issues and checks signed session cookies. There is no server-side
// session table: a cookie is valid while its signature matches and it has not expired.
type Sessions struct {
	codec  *securecookie.SecureCookie
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secretKey string, secure bool, ttl time.Duration) (*Sessions, error) {
	if len(secretKey) < minSecretLength {
		return nil, errors.New("session secret must be at least 32 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	// The CSRF key is derived from the same secret; keep the two apart.
	hashKey := sha256.Sum256([]byte("session:" + secretKey))
	codec := securecookie.New(hashKey[:], nil)
	codec.MaxAge(int(ttl.Seconds()))
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Sessions{
		codec:  codec,
		secure: secure,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue sets a fresh session cookie on w.
func (s *Sessions) Issue(w http.ResponseWriter) error {
	nonce := make([]byte, sessionNonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	value, err := s.codec.Encode(sessionCookieName, sessionPayload{
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
		Nonce:     base64.RawURLEncoding.EncodeToString(nonce),
	})
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
		MaxAge:   int(s.ttl.Seconds()),
	})
	return nil
}

// Valid reports whether r carries a live session. A missing cookie is not an error.
func (s *Sessions) Valid(r *http.Request) (bool, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return false, nil
		}
		return false, err
	}

	var payload sessionPayload
	if err := s.codec.Decode(sessionCookieName, cookie.Value, &payload); err != nil {
		return false, errors.Join(ErrInvalidSession, err)
	}
	if payload.ExpiresAt <= s.now().Unix() {
		return false, ErrSessionExpired
	}
	return true, nil
}

// Clear expires the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
