package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/auth"
	"github.com/festahub/backoffice/internal/httpx"
	"github.com/festahub/backoffice/internal/models"
)

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *auth.Sessions
}

func NewAuthHandler(db *gorm.DB, sessions *auth.Sessions) *AuthHandler {
	return &AuthHandler{DB: db, Sessions: sessions}
}

// Login: POST /api/login {identity, secret}. Sets the session cookie and
// returns the redirect target.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identity string `json:"identity"`
		Secret   string `json:"secret"`
	}
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	req.Identity = strings.TrimSpace(strings.ToLower(req.Identity))
	if req.Identity == "" || req.Secret == "" {
		httpx.Error(w, apperr.Validation("identity e secret são obrigatórios"))
		return
	}

	var user models.User
	err := h.DB.Where("email = ? AND ativo = ?", req.Identity, true).First(&user).Error
	if err != nil {
		// Same response for unknown identity and bad password.
		httpx.Error(w, apperr.Unauthenticated())
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Secret)) != nil {
		httpx.Error(w, apperr.Unauthenticated())
		return
	}

	token, err := h.Sessions.Issue(auth.Claims{
		UserID:   user.ID,
		Identity: user.Email,
		Role:     user.Role,
		TenantID: user.EmpresaID,
	})
	if err != nil {
		httpx.Error(w, apperr.Internal(err))
		return
	}
	h.Sessions.SetCookie(w, token)
	httpx.Envelope(w, http.StatusOK, map[string]any{
		"redirect": "/dashboard",
		"user": map[string]any{
			"id":       user.ID,
			"identity": user.Email,
			"nome":     user.Nome,
			"role":     user.Role,
			"empresa":  user.EmpresaID,
		},
	})
}

// Me: GET /api/me, current identity or 401.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.Unauthenticated())
		return
	}
	httpx.Envelope(w, http.StatusOK, map[string]any{
		"identity": claims.Identity,
		"role":     claims.Role,
		"empresa":  claims.TenantID,
	})
}

// Logout: POST /api/logout. POST only, so an accidental GET navigation can
// never clear a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w)
	httpx.Envelope(w, http.StatusOK, map[string]any{"redirect": "/login"})
}
