package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/audit"
	"github.com/festahub/backoffice/internal/httpx"
	"github.com/festahub/backoffice/internal/models"
	"github.com/festahub/backoffice/internal/rbac"
)

type ClientHandler struct {
	DB    *gorm.DB
	RBAC  *rbac.Evaluator
	Audit *audit.Recorder
}

func NewClientHandler(db *gorm.DB, eval *rbac.Evaluator, rec *audit.Recorder) *ClientHandler {
	return &ClientHandler{DB: db, RBAC: eval, Audit: rec}
}

type clientRequest struct {
	Nome      string `json:"nome"`
	Email     string `json:"email"`
	Telefone  string `json:"telefone"`
	Documento string `json:"documento"`
	Endereco  string `json:"endereco"`
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleClients)
	if !ok {
		return
	}
	var clients []models.Client
	err := h.DB.Where("empresa_id = ? AND ativo = ?", claims.TenantID, true).
		Order("nome asc").Find(&clients).Error
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "clientes", clients)
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleClients)
	if !ok {
		return
	}
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.Nome == "" {
		httpx.Error(w, apperr.Validation("nome é obrigatório"))
		return
	}
	client := models.Client{
		EmpresaID: claims.TenantID,
		Nome:      req.Nome,
		Email:     req.Email,
		Telefone:  req.Telefone,
		Documento: req.Documento,
		Endereco:  req.Endereco,
		Ativo:     true,
	}
	if err := h.DB.Create(&client).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "clients", Action: "create", Entity: "client", EntityID: client.ID})
	httpx.OK(w, http.StatusCreated, "cliente", client)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleClients)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var client models.Client
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&client, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "cliente"))
		return
	}
	httpx.OK(w, http.StatusOK, "cliente", client)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleClients)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var client models.Client
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&client, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "cliente"))
		return
	}
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	updates := map[string]any{}
	if req.Nome != "" {
		updates["nome"] = req.Nome
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if req.Telefone != "" {
		updates["telefone"] = req.Telefone
	}
	if req.Documento != "" {
		updates["documento"] = req.Documento
	}
	if req.Endereco != "" {
		updates["endereco"] = req.Endereco
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&models.Client{}).Where("id = ?", client.ID).Updates(updates).Error; err != nil {
			httpx.Error(w, err)
			return
		}
	}
	if err := h.DB.First(&client, client.ID).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "clients", Action: "update", Entity: "client", EntityID: client.ID})
	httpx.OK(w, http.StatusOK, "cliente", client)
}

// Delete archives the client (Ativo=false); rows are never hard-deleted.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleClients)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	res := h.DB.Model(&models.Client{}).
		Where("id = ? AND empresa_id = ? AND ativo = ?", id, claims.TenantID, true).
		Update("ativo", false)
	if res.Error != nil {
		httpx.Error(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		httpx.Error(w, apperr.NotFound("cliente"))
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "clients", Action: "delete", Entity: "client", EntityID: id})
	httpx.Envelope(w, http.StatusOK, nil)
}
