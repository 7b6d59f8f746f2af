// Package auth issues and verifies the signed session token carried in the
// session cookie. Sessions are stateless: validity is determined purely by
// signature and expiry, there is no server-side session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookieName = "session"

type ctxKey string

const claimsCtxKey = ctxKey("sessionClaims")

// Claims is the identity extracted from a verified session token.
type Claims struct {
	UserID   uint
	Identity string
	Role     string
	TenantID uint
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"uid"`
	Role     string `json:"role"`
	TenantID uint   `json:"emp"`
}

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: expired token")
)

// Sessions signs and verifies session tokens with a shared HMAC secret.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// NewSessions builds a verifier. secret must be non-empty; the server
// refuses to start without one instead of falling back to a dev value.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if secret == "" {
		return nil, errors.New("auth: session secret not configured")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session ttl must be positive")
	}
	return &Sessions{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token for the given identity.
func (s *Sessions) Issue(c Claims) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:   c.UserID,
		Role:     c.Role,
		TenantID: c.TenantID,
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify validates signature and expiry and returns the embedded claims.
// Expired payloads are rejected even with a valid signature.
func (s *Sessions) Verify(token string) (Claims, error) {
	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	return Claims{
		UserID:   tc.UserID,
		Identity: tc.Subject,
		Role:     tc.Role,
		TenantID: tc.TenantID,
	}, nil
}

// TTL exposes the configured session lifetime (used for the cookie expiry).
func (s *Sessions) TTL() time.Duration { return s.ttl }

// SetCookie writes the session cookie after a successful login.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.ttl),
	})
}

// ClearCookie deletes the session cookie (logout).
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// WithClaims stores verified claims in the context.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// FromContext extracts the verified claims, if any.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(Claims)
	return c, ok
}

// Middleware attaches claims to the request context when a valid session
// cookie is present. Invalid cookies are ignored here; enforcement happens
// in RequireAuth.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
			if claims, verr := s.Verify(c.Value); verr == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth enforces a verified session. API routes get a 401 JSON body
// with no redirect side effects; page routes redirect to /login.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			if isAPIRequest(r) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"ok":false,"error":"UNAUTHENTICATED","message":"autenticação necessária"}`)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
