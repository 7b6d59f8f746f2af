package handlers

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/audit"
	"github.com/festahub/backoffice/internal/httpx"
	"github.com/festahub/backoffice/internal/models"
	"github.com/festahub/backoffice/internal/rbac"
	"github.com/festahub/backoffice/internal/services"
)

type LeadHandler struct {
	DB         *gorm.DB
	RBAC       *rbac.Evaluator
	Audit      *audit.Recorder
	Conversion *services.ConversionService
}

func NewLeadHandler(db *gorm.DB, eval *rbac.Evaluator, rec *audit.Recorder, conv *services.ConversionService) *LeadHandler {
	return &LeadHandler{DB: db, RBAC: eval, Audit: rec, Conversion: conv}
}

type leadRequest struct {
	Nome       string     `json:"nome"`
	Email      string     `json:"email"`
	Telefone   string     `json:"telefone"`
	TipoFesta  string     `json:"tipo_festa"`
	DataFesta  *time.Time `json:"data_festa"`
	Convidados int        `json:"convidados"`
	Origem     string     `json:"origem"`
	Status     string     `json:"status"`
	Notas      string     `json:"notas"`
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleLeads)
	if !ok {
		return
	}
	q := h.DB.Where("empresa_id = ?", claims.TenantID)
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var leads []models.Lead
	if err := q.Order("id desc").Find(&leads).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "leads", leads)
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleLeads)
	if !ok {
		return
	}
	var req leadRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.Nome == "" {
		httpx.Error(w, apperr.Validation("nome é obrigatório"))
		return
	}
	status := req.Status
	if status == "" {
		status = models.LeadStatusNew
	}
	lead := models.Lead{
		EmpresaID:  claims.TenantID,
		Nome:       req.Nome,
		Email:      req.Email,
		Telefone:   req.Telefone,
		TipoFesta:  req.TipoFesta,
		DataFesta:  req.DataFesta,
		Convidados: req.Convidados,
		Origem:     req.Origem,
		Status:     status,
		Notas:      req.Notas,
	}
	if err := h.DB.Create(&lead).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "leads", Action: "create", Entity: "lead", EntityID: lead.ID})
	httpx.OK(w, http.StatusCreated, "lead", lead)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleLeads)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var lead models.Lead
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&lead, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "lead"))
		return
	}
	httpx.OK(w, http.StatusOK, "lead", lead)
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleLeads)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var lead models.Lead
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&lead, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "lead"))
		return
	}
	var req leadRequest
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
	if req.TipoFesta != "" {
		updates["tipo_festa"] = req.TipoFesta
	}
	if req.DataFesta != nil {
		updates["data_festa"] = req.DataFesta
	}
	if req.Convidados > 0 {
		updates["convidados"] = req.Convidados
	}
	if req.Notas != "" {
		updates["notas"] = req.Notas
	}
	if req.Status != "" {
		// The closed transition happens only through conversion.
		if req.Status == models.LeadStatusClosed {
			httpx.Error(w, apperr.InvalidState("use a conversão para fechar um lead"))
			return
		}
		updates["status"] = req.Status
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&models.Lead{}).Where("id = ?", lead.ID).Updates(updates).Error; err != nil {
			httpx.Error(w, err)
			return
		}
	}
	if err := h.DB.First(&lead, lead.ID).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "leads", Action: "update", Entity: "lead", EntityID: lead.ID})
	httpx.OK(w, http.StatusOK, "lead", lead)
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleLeads)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	res := h.DB.Where("empresa_id = ?", claims.TenantID).Delete(&models.Lead{}, id)
	if res.Error != nil {
		httpx.Error(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		httpx.Error(w, apperr.NotFound("lead"))
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "leads", Action: "delete", Entity: "lead", EntityID: id})
	httpx.Envelope(w, http.StatusOK, nil)
}

// Convert: POST /api/leads/{id}/converter. Only the leads:create gate is
// checked; the client and event writes are part of the privileged workflow
// step, not separate permissions.
func (h *LeadHandler) Convert(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleLeads, rbac.ActionCreate)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	result, err := h.Conversion.Convert(r.Context(), claims.TenantID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "leads", Action: "update", Entity: "lead", EntityID: id})
	httpx.OK(w, http.StatusOK, "conversion", result)
}
