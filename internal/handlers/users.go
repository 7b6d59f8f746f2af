package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/audit"
	"github.com/festahub/backoffice/internal/httpx"
	"github.com/festahub/backoffice/internal/models"
	"github.com/festahub/backoffice/internal/rbac"
)

type UserHandler struct {
	DB    *gorm.DB
	RBAC  *rbac.Evaluator
	Audit *audit.Recorder
}

func NewUserHandler(db *gorm.DB, eval *rbac.Evaluator, rec *audit.Recorder) *UserHandler {
	return &UserHandler{DB: db, RBAC: eval, Audit: rec}
}

type userRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nome     string `json:"nome"`
	Role     string `json:"role"`
	Ativo    *bool  `json:"ativo"`
}

// userView never carries the password hash out.
type userView struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Nome  string `json:"nome"`
	Role  string `json:"role"`
	Ativo bool   `json:"ativo"`
}

func toUserView(u models.User) userView {
	return userView{ID: u.ID, Email: u.Email, Nome: u.Nome, Role: u.Role, Ativo: u.Ativo}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleUsers)
	if !ok {
		return
	}
	var users []models.User
	err := h.DB.Where("empresa_id = ?", claims.TenantID).Order("id asc").Find(&users).Error
	if err != nil {
		httpx.Error(w, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	httpx.OK(w, http.StatusOK, "usuarios", views)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleUsers)
	if !ok {
		return
	}
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		httpx.Error(w, apperr.Validation("email é obrigatório"))
		return
	}
	if len(req.Password) < 6 {
		httpx.Error(w, apperr.Validation("senha deve ter pelo menos 6 caracteres"))
		return
	}
	role := req.Role
	if role == "" {
		role = "user"
	}
	var count int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	if count > 0 {
		httpx.Error(w, apperr.Conflict("email já cadastrado"))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.Error(w, apperr.Internal(err))
		return
	}
	user := models.User{
		EmpresaID: claims.TenantID,
		Email:     email,
		Password:  string(hash),
		Nome:      req.Nome,
		Role:      role,
		Ativo:     true,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "users", Action: "create", Entity: "user", EntityID: user.ID})
	httpx.OK(w, http.StatusCreated, "usuario", toUserView(user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleUsers)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var user models.User
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&user, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "usuário"))
		return
	}
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	updates := map[string]any{}
	if req.Nome != "" {
		updates["nome"] = req.Nome
	}
	if req.Role != "" {
		updates["role"] = req.Role
	}
	if req.Ativo != nil {
		// Deactivating yourself would lock the session out mid-flight.
		if !*req.Ativo && user.ID == claims.UserID {
			httpx.Error(w, apperr.Validation("não é possível desativar o próprio usuário"))
			return
		}
		updates["ativo"] = *req.Ativo
	}
	if req.Password != "" {
		if len(req.Password) < 6 {
			httpx.Error(w, apperr.Validation("senha deve ter pelo menos 6 caracteres"))
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			httpx.Error(w, apperr.Internal(err))
			return
		}
		updates["password"] = string(hash)
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			httpx.Error(w, err)
			return
		}
	}
	if err := h.DB.First(&user, user.ID).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "users", Action: "update", Entity: "user", EntityID: user.ID})
	httpx.OK(w, http.StatusOK, "usuario", toUserView(user))
}
