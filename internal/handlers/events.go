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

type EventHandler struct {
	DB             *gorm.DB
	RBAC           *rbac.Evaluator
	Audit          *audit.Recorder
	Staffing       *services.StaffingService
	Finance        *services.FinanceService
	Proposals      *services.ProposalService
	ContractPrefix string
}

func NewEventHandler(db *gorm.DB, eval *rbac.Evaluator, rec *audit.Recorder,
	staffing *services.StaffingService, finance *services.FinanceService,
	proposals *services.ProposalService, contractPrefix string) *EventHandler {
	return &EventHandler{
		DB: db, RBAC: eval, Audit: rec,
		Staffing: staffing, Finance: finance, Proposals: proposals,
		ContractPrefix: contractPrefix,
	}
}

type eventRequest struct {
	ClientID      *uint      `json:"client_id"`
	Titulo        string     `json:"titulo"`
	Local         string     `json:"local"`
	Data          *time.Time `json:"data"`
	Convidados    *int       `json:"convidados"`
	Criancas      *int       `json:"criancas"`
	TotalCents    *int64     `json:"total_cents"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	Notas         string     `json:"notas"`
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleEvents)
	if !ok {
		return
	}
	q := h.DB.Where("empresa_id = ?", claims.TenantID)
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var events []models.Event
	if err := q.Order("id desc").Find(&events).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "eventos", events)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleEvents)
	if !ok {
		return
	}
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.ClientID == nil || *req.ClientID == 0 {
		httpx.Error(w, apperr.Validation("client_id é obrigatório"))
		return
	}
	if req.Titulo == "" {
		httpx.Error(w, apperr.Validation("título é obrigatório"))
		return
	}
	var client models.Client
	err := h.DB.Where("empresa_id = ?", claims.TenantID).First(&client, *req.ClientID).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "cliente"))
		return
	}

	status := req.Status
	if status == "" {
		status = models.EventStatusQuote
	}
	if !models.ValidEventStatus(status) {
		httpx.Error(w, apperr.Validation("status de evento inválido: "+status))
		return
	}

	event := models.Event{
		EmpresaID:     claims.TenantID,
		ClientID:      client.ID,
		Titulo:        req.Titulo,
		Local:         req.Local,
		Data:          req.Data,
		Status:        status,
		PaymentMethod: req.PaymentMethod,
		Notas:         req.Notas,
	}
	if req.Convidados != nil {
		event.Convidados = *req.Convidados
	}
	if req.Criancas != nil {
		event.Criancas = *req.Criancas
	}
	if req.TotalCents != nil {
		event.TotalCents = *req.TotalCents
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		year := time.Now().Year()
		if event.Data != nil {
			year = event.Data.Year()
		}
		event.ContractNumber = services.ContractNumber(h.ContractPrefix, year, event.ID)
		return tx.Model(&models.Event{}).
			Where("id = ?", event.ID).
			Update("contract_number", event.ContractNumber).Error
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "events", Action: "create", Entity: "event", EntityID: event.ID})
	httpx.OK(w, http.StatusCreated, "evento", event)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleEvents)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var event models.Event
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&event, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "evento"))
		return
	}
	httpx.OK(w, http.StatusOK, "evento", event)
}

// Update handles PUT and PATCH. A guest-count change triggers a staffing
// recompute plus ledger sync.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleEvents)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var event models.Event
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&event, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "evento"))
		return
	}
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}

	updates := map[string]any{}
	guestsChanged := false
	if req.Titulo != "" {
		updates["titulo"] = req.Titulo
	}
	if req.Local != "" {
		updates["local"] = req.Local
	}
	if req.Data != nil {
		updates["data"] = req.Data
	}
	if req.Convidados != nil && *req.Convidados != event.Convidados {
		updates["convidados"] = *req.Convidados
		guestsChanged = true
	}
	if req.Criancas != nil && *req.Criancas != event.Criancas {
		updates["criancas"] = *req.Criancas
		guestsChanged = true
	}
	if req.TotalCents != nil {
		updates["total_cents"] = *req.TotalCents
	}
	if req.PaymentMethod != "" {
		updates["payment_method"] = req.PaymentMethod
	}
	if req.Notas != "" {
		updates["notas"] = req.Notas
	}
	if req.Status != "" {
		if !models.ValidEventStatus(req.Status) {
			httpx.Error(w, apperr.Validation("status de evento inválido: "+req.Status))
			return
		}
		updates["status"] = req.Status
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&models.Event{}).Where("id = ?", event.ID).Updates(updates).Error; err != nil {
			httpx.Error(w, err)
			return
		}
	}
	if guestsChanged {
		if _, err := h.Staffing.RecomputeAndSync(r.Context(), claims.TenantID, event.ID, nil); err != nil {
			httpx.Error(w, err)
			return
		}
	}
	if err := h.DB.First(&event, event.ID).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "events", Action: "update", Entity: "event", EntityID: event.ID})
	httpx.OK(w, http.StatusOK, "evento", event)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleEvents)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	res := h.DB.Model(&models.Event{}).
		Where("id = ? AND empresa_id = ? AND status <> ?", id, claims.TenantID, models.EventStatusCancelled).
		Update("status", models.EventStatusCancelled)
	if res.Error != nil {
		httpx.Error(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		httpx.Error(w, apperr.NotFound("evento"))
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "events", Action: "delete", Entity: "event", EntityID: id})
	httpx.Envelope(w, http.StatusOK, nil)
}

// --- nested staffing (equipe) ---

func (h *EventHandler) ListStaffing(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleStaffing, rbac.ActionRead)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var rows []models.EventStaffing
	err = h.DB.Where("empresa_id = ? AND event_id = ?", claims.TenantID, id).
		Order("id asc").Find(&rows).Error
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "equipe", rows)
}

type staffingRowRequest struct {
	RoleID        uint   `json:"role_id"`
	RoleName      string `json:"role_name"`
	Quantity      int    `json:"quantity"`
	UnitCostCents int64  `json:"unit_cost_cents"`
}

// AddStaffing creates a manual override row (never touched by recompute).
func (h *EventHandler) AddStaffing(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleStaffing, rbac.ActionCreate)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var event models.Event
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&event, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "evento"))
		return
	}
	var req staffingRowRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.Quantity <= 0 {
		httpx.Error(w, apperr.Validation("quantidade deve ser positiva"))
		return
	}
	name := req.RoleName
	if req.RoleID != 0 {
		var role models.StaffingRole
		err := h.DB.Where("empresa_id = ?", claims.TenantID).First(&role, req.RoleID).Error
		if err != nil {
			httpx.Error(w, notFoundIfMissing(err, "cargo"))
			return
		}
		if name == "" {
			name = role.Nome
		}
	}
	if name == "" {
		httpx.Error(w, apperr.Validation("role_name ou role_id é obrigatório"))
		return
	}
	row := models.EventStaffing{
		EmpresaID:     claims.TenantID,
		EventID:       event.ID,
		RoleID:        req.RoleID,
		RoleName:      name,
		Quantity:      req.Quantity,
		UnitCostCents: req.UnitCostCents,
		TotalCents:    int64(req.Quantity) * req.UnitCostCents,
		AutoComputed:  false,
	}
	if err := h.DB.Create(&row).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "staffing", Action: "create", Entity: "event_staffing", EntityID: row.ID})
	httpx.OK(w, http.StatusCreated, "equipe", row)
}

func (h *EventHandler) UpdateStaffing(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleStaffing, rbac.ActionUpdate)
	if !ok {
		return
	}
	eventID, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	rowID, err := idParam(r, "rowId")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var row models.EventStaffing
	err = h.DB.Where("empresa_id = ? AND event_id = ?", claims.TenantID, eventID).
		First(&row, rowID).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "linha de equipe"))
		return
	}
	var req staffingRowRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.Quantity <= 0 {
		httpx.Error(w, apperr.Validation("quantidade deve ser positiva"))
		return
	}
	// Editing a row converts it to a manual override so recompute leaves it
	// alone from now on.
	updates := map[string]any{
		"quantity":        req.Quantity,
		"unit_cost_cents": req.UnitCostCents,
		"total_cents":     int64(req.Quantity) * req.UnitCostCents,
		"auto_computed":   false,
	}
	if req.RoleName != "" {
		updates["role_name"] = req.RoleName
	}
	if err := h.DB.Model(&models.EventStaffing{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.DB.First(&row, row.ID).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "staffing", Action: "update", Entity: "event_staffing", EntityID: row.ID})
	httpx.OK(w, http.StatusOK, "equipe", row)
}

func (h *EventHandler) DeleteStaffing(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleStaffing, rbac.ActionDelete)
	if !ok {
		return
	}
	eventID, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	rowID, err := idParam(r, "rowId")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	res := h.DB.Where("empresa_id = ? AND event_id = ?", claims.TenantID, eventID).
		Delete(&models.EventStaffing{}, rowID)
	if res.Error != nil {
		httpx.Error(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		httpx.Error(w, apperr.NotFound("linha de equipe"))
		return
	}
	if err := h.Staffing.SyncLedger(r.Context(), claims.TenantID, eventID); err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "staffing", Action: "delete", Entity: "event_staffing", EntityID: rowID})
	httpx.Envelope(w, http.StatusOK, nil)
}

// Recompute: POST /api/eventos/{id}/equipe/recalcular.
func (h *EventHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleEvents, rbac.ActionUpdate)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req struct {
		Convidados *int `json:"convidados"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			httpx.Error(w, err)
			return
		}
	}
	count, err := h.Staffing.RecomputeAndSync(r.Context(), claims.TenantID, id, req.Convidados)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "events", Action: "update", Entity: "event", EntityID: id})
	httpx.Envelope(w, http.StatusOK, map[string]any{"count": count})
}

// --- nested finance ---

// GenerateInstallments: POST /api/eventos/{id}/gerar-parcelas, default
// 50/50 split over the event total.
func (h *EventHandler) GenerateInstallments(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleFinancial, rbac.ActionCreate)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var event models.Event
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&event, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "evento"))
		return
	}
	title, err := h.Finance.GenerateDefault(r.Context(), claims.TenantID, event.ID, event.TotalCents, "Parcelamento padrão "+event.Titulo)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "financial", Action: "create", Entity: "receivable_title", EntityID: title.ID})
	httpx.OK(w, http.StatusCreated, "titulo", title)
}

func (h *EventHandler) ListInstallments(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleFinancial, rbac.ActionRead)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var titles []models.ReceivableTitle
	err = h.DB.Preload("Installments").
		Where("empresa_id = ? AND event_id = ?", claims.TenantID, id).
		Order("id asc").Find(&titles).Error
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "titulos", titles)
}

// FinancialSummary: GET /api/eventos/{id}/resumo-financeiro.
func (h *EventHandler) FinancialSummary(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleFinancial, rbac.ActionRead)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	summary, err := h.Finance.EventSummary(r.Context(), claims.TenantID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "resumo", summary)
}

// --- nested proposals ---

func (h *EventHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleProposals, rbac.ActionRead)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	proposals, err := h.Proposals.ListByEvent(r.Context(), claims.TenantID, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "propostas", proposals)
}

func (h *EventHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleProposals, rbac.ActionCreate)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req struct {
		TotalCents int64  `json:"total_cents"`
		Content    string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	proposal, err := h.Proposals.Create(r.Context(), claims.TenantID, id, req.TotalCents, req.Content)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "proposals", Action: "create", Entity: "proposal", EntityID: proposal.ID})
	httpx.OK(w, http.StatusCreated, "proposta", proposal)
}
