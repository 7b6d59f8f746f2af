package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newSessions(t *testing.T, ttl time.Duration) *Sessions {
	t.Helper()
	s, err := NewSessions("test-secret", ttl)
	require.NoError(t, err)
	return s
}

func TestNewSessionsRejectsEmptySecret(t *testing.T) {
	_, err := NewSessions("", time.Hour)
	require.Error(t, err)
	_, err = NewSessions("x", 0)
	require.Error(t, err)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	s := newSessions(t, time.Hour)
	in := Claims{UserID: 42, Identity: "ana@demo.local", Role: "vendas", TenantID: 7}

	token, err := s.Issue(in)
	require.NoError(t, err)

	out, err := s.Verify(token)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	s := newSessions(t, time.Millisecond)
	token, err := s.Issue(Claims{UserID: 1, Identity: "a", Role: "user", TenantID: 1})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = s.Verify(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	s := newSessions(t, time.Hour)
	other, err := NewSessions("another-secret", time.Hour)
	require.NoError(t, err)

	token, err := other.Issue(Claims{UserID: 1, Identity: "a", Role: "user", TenantID: 1})
	require.NoError(t, err)

	_, err = s.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s := newSessions(t, time.Hour)
	_, err := s.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareAttachesClaims(t *testing.T) {
	s := newSessions(t, time.Hour)
	token, err := s.Issue(Claims{UserID: 3, Identity: "b", Role: "admin", TenantID: 2})
	require.NoError(t, err)

	var got Claims
	var ok bool
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	require.Equal(t, uint(3), got.UserID)
	require.Equal(t, uint(2), got.TenantID)
}

func TestMiddlewareIgnoresBadCookie(t *testing.T) {
	s := newSessions(t, time.Hour)
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := FromContext(r.Context())
		require.False(t, ok)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "bogus"})
	h.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequireAuthAPIGetsJSON401(t *testing.T) {
	h := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, false, body["ok"])
	require.Equal(t, "UNAUTHENTICATED", body["error"])
}

func TestRequireAuthPageRedirects(t *testing.T) {
	h := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept", "text/html")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login", rr.Header().Get("Location"))
}

func TestClearCookieExpiresSession(t *testing.T) {
	rr := httptest.NewRecorder()
	ClearCookie(rr)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "session", cookies[0].Name)
	require.Equal(t, "", cookies[0].Value)
	require.True(t, cookies[0].MaxAge < 0)
}
