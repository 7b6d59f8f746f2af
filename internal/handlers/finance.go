package handlers

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/audit"
	"github.com/festahub/backoffice/internal/httpx"
	"github.com/festahub/backoffice/internal/logger"
	"github.com/festahub/backoffice/internal/models"
	"github.com/festahub/backoffice/internal/rbac"
	"github.com/festahub/backoffice/internal/services"
)

type FinanceHandler struct {
	DB       *gorm.DB
	RBAC     *rbac.Evaluator
	Audit    *audit.Recorder
	Finance  *services.FinanceService
	Staffing *services.StaffingService
}

func NewFinanceHandler(db *gorm.DB, eval *rbac.Evaluator, rec *audit.Recorder,
	finance *services.FinanceService, staffing *services.StaffingService) *FinanceHandler {
	return &FinanceHandler{DB: db, RBAC: eval, Audit: rec, Finance: finance, Staffing: staffing}
}

// --- contas a receber ---

func (h *FinanceHandler) ListTitles(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	q := h.DB.Preload("Installments").Where("empresa_id = ?", claims.TenantID)
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var titles []models.ReceivableTitle
	if err := q.Order("id desc").Find(&titles).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "titulos", titles)
}

type titleRequest struct {
	EventID     uint   `json:"event_id"`
	Description string `json:"description"`
	TotalCents  int64  `json:"total_cents"`
	Parcelas    []struct {
		AmountCents int64     `json:"amount_cents"`
		DueDate     time.Time `json:"due_date"`
	} `json:"parcelas"`
}

func (h *FinanceHandler) CreateTitle(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.EventID == 0 {
		httpx.Error(w, apperr.Validation("event_id é obrigatório"))
		return
	}
	inputs := make([]services.InstallmentInput, 0, len(req.Parcelas))
	for _, p := range req.Parcelas {
		inputs = append(inputs, services.InstallmentInput{AmountCents: p.AmountCents, DueDate: p.DueDate})
	}
	title, err := h.Finance.CreateWithInstallments(r.Context(), claims.TenantID, req.EventID, req.TotalCents, req.Description, inputs)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "financial", Action: "create", Entity: "receivable_title", EntityID: title.ID})
	httpx.OK(w, http.StatusCreated, "titulo", title)
}

// GenerateDefaultTitle creates the standard 50/50 installment plan for an
// event without an explicit installment list.
func (h *FinanceHandler) GenerateDefaultTitle(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	var req struct {
		EventID     uint   `json:"event_id"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.EventID == 0 {
		httpx.Error(w, apperr.Validation("event_id é obrigatório"))
		return
	}
	var event models.Event
	if err := h.DB.Where("empresa_id = ?", claims.TenantID).First(&event, req.EventID).Error; err != nil {
		httpx.Error(w, notFoundIfMissing(err, "evento"))
		return
	}
	desc := req.Description
	if desc == "" {
		desc = "Parcelamento padrão " + event.Titulo
	}
	title, err := h.Finance.GenerateDefault(r.Context(), claims.TenantID, event.ID, event.TotalCents, desc)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "financial", Action: "create", Entity: "receivable_title", EntityID: title.ID})
	httpx.OK(w, http.StatusCreated, "titulo", title)
}

func (h *FinanceHandler) GetTitle(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var title models.ReceivableTitle
	err = h.DB.Preload("Installments").
		Where("empresa_id = ?", claims.TenantID).First(&title, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "título"))
		return
	}
	httpx.OK(w, http.StatusOK, "titulo", title)
}

// SetInstallmentStatus handles PATCH /api/financeiro/ar/parcelas/{id}. Marking an
// installment paid books an inflow in the cash ledger; reverting removes it.
func (h *FinanceHandler) SetInstallmentStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleFinancial, rbac.ActionUpdate)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req struct {
		Status        string `json:"status"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	installment, err := h.Finance.SetInstallmentStatus(r.Context(), claims.TenantID, id, req.Status, req.PaymentMethod)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "financial", Action: "update", Entity: "installment", EntityID: installment.ID})
	httpx.OK(w, http.StatusOK, "parcela", installment)
}

// --- contas a pagar ---

type payableRequest struct {
	EventID     *uint      `json:"event_id"`
	Description string     `json:"description"`
	AmountCents int64      `json:"amount_cents"`
	DueDate     *time.Time `json:"due_date"`
	Status      string     `json:"status"`
}

func (h *FinanceHandler) ListPayables(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	q := h.DB.Where("empresa_id = ?", claims.TenantID)
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var payables []models.Payable
	if err := q.Order("due_date asc, id asc").Find(&payables).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "pagaveis", payables)
}

func (h *FinanceHandler) CreatePayable(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	var req payableRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.AmountCents <= 0 {
		httpx.Error(w, apperr.Validation("valor deve ser positivo"))
		return
	}
	if req.Description == "" {
		httpx.Error(w, apperr.Validation("descrição é obrigatória"))
		return
	}
	payable := models.Payable{
		EmpresaID:   claims.TenantID,
		EventID:     req.EventID,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Status:      models.InstallmentOpen,
	}
	if req.DueDate != nil {
		payable.DueDate = *req.DueDate
	}
	if err := h.DB.Create(&payable).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "financial", Action: "create", Entity: "payable", EntityID: payable.ID})
	httpx.OK(w, http.StatusCreated, "pagavel", payable)
}

func (h *FinanceHandler) UpdatePayable(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var payable models.Payable
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&payable, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "conta a pagar"))
		return
	}
	var req payableRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	updates := map[string]any{}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.AmountCents > 0 {
		updates["amount_cents"] = req.AmountCents
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.Status != "" {
		switch req.Status {
		case models.InstallmentOpen, models.InstallmentPaid, models.InstallmentCancelled:
			updates["status"] = req.Status
		default:
			httpx.Error(w, apperr.Validation("status inválido: "+req.Status))
			return
		}
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&models.Payable{}).Where("id = ?", payable.ID).Updates(updates).Error; err != nil {
			httpx.Error(w, err)
			return
		}
	}
	if err := h.DB.First(&payable, payable.ID).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "financial", Action: "update", Entity: "payable", EntityID: payable.ID})
	httpx.OK(w, http.StatusOK, "pagavel", payable)
}

func (h *FinanceHandler) DeletePayable(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	res := h.DB.Model(&models.Payable{}).
		Where("id = ? AND empresa_id = ? AND status <> ?", id, claims.TenantID, models.InstallmentCancelled).
		Update("status", models.InstallmentCancelled)
	if res.Error != nil {
		httpx.Error(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		httpx.Error(w, apperr.NotFound("conta a pagar"))
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "financial", Action: "delete", Entity: "payable", EntityID: id})
	httpx.Envelope(w, http.StatusOK, nil)
}

// --- caixa ---

type ledgerRequest struct {
	EventID     *uint      `json:"event_id"`
	Kind        string     `json:"kind"`
	Date        *time.Time `json:"date"`
	AmountCents int64      `json:"amount_cents"`
	Description string     `json:"description"`
}

func (h *FinanceHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	q := h.DB.Where("empresa_id = ? AND ativo = ?", claims.TenantID, true)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if eventID := r.URL.Query().Get("event_id"); eventID != "" {
		q = q.Where("event_id = ?", eventID)
	}
	var entries []models.CashLedgerEntry
	if err := q.Order("date desc, id desc").Find(&entries).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "lancamentos", entries)
}

// CreateLedgerEntry books a manual cash movement. Synced categories
// (staffing, receipt) are owned by their subsystems and cannot be created
// here.
func (h *FinanceHandler) CreateLedgerEntry(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	var req ledgerRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.Kind != models.LedgerIn && req.Kind != models.LedgerOut {
		httpx.Error(w, apperr.Validation("kind deve ser 'in' ou 'out'"))
		return
	}
	if req.AmountCents <= 0 {
		httpx.Error(w, apperr.Validation("valor deve ser positivo"))
		return
	}
	entry := models.CashLedgerEntry{
		EmpresaID:   claims.TenantID,
		EventID:     req.EventID,
		Kind:        req.Kind,
		Category:    models.LedgerCategoryManual,
		AmountCents: req.AmountCents,
		Description: req.Description,
		Ativo:       true,
		Date:        time.Now(),
	}
	if req.Date != nil {
		entry.Date = *req.Date
	}
	if err := h.DB.Create(&entry).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "financial", Action: "create", Entity: "cash_ledger_entry", EntityID: entry.ID})
	httpx.OK(w, http.StatusCreated, "lancamento", entry)
}

// DeleteLedgerEntry deactivates a manual entry. Synced entries are managed by
// their source of truth and refuse manual removal.
func (h *FinanceHandler) DeleteLedgerEntry(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var entry models.CashLedgerEntry
	err = h.DB.Where("empresa_id = ? AND ativo = ?", claims.TenantID, true).First(&entry, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "lançamento"))
		return
	}
	if entry.Category != models.LedgerCategoryManual {
		httpx.Error(w, apperr.InvalidState("lançamentos sincronizados não podem ser removidos manualmente"))
		return
	}
	if err := h.DB.Model(&models.CashLedgerEntry{}).Where("id = ?", entry.ID).Update("ativo", false).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "financial", Action: "delete", Entity: "cash_ledger_entry", EntityID: entry.ID})
	httpx.Envelope(w, http.StatusOK, nil)
}

// --- custos (staffing roles) ---

type roleRequest struct {
	Nome             string `json:"nome"`
	CalcMode         string `json:"calc_mode"`
	Divisor          *int   `json:"divisor"`
	Minimum          *int   `json:"minimum"`
	RoundMode        string `json:"round_mode"`
	DefaultCostCents *int64 `json:"default_cost_cents"`
	DisplayOrder     *int   `json:"display_order"`
	Ativo            *bool  `json:"ativo"`
}

func validCalcMode(m string) bool {
	return m == models.CalcModeFixed || m == models.CalcModePerGuest || m == models.CalcModePerChild
}

func validRoundMode(m string) bool {
	return m == models.RoundCeil || m == models.RoundFloor || m == models.RoundHalf
}

func (h *FinanceHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleStaffing, rbac.ActionRead)
	if !ok {
		return
	}
	var roles []models.StaffingRole
	err := h.DB.Where("empresa_id = ?", claims.TenantID).
		Order("display_order asc, id asc").Find(&roles).Error
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "cargos", roles)
}

func (h *FinanceHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleStaffing, rbac.ActionCreate)
	if !ok {
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if req.Nome == "" {
		httpx.Error(w, apperr.Validation("nome é obrigatório"))
		return
	}
	role := models.StaffingRole{
		EmpresaID: claims.TenantID,
		Nome:      req.Nome,
		CalcMode:  models.CalcModeFixed,
		Divisor:   1,
		RoundMode: models.RoundCeil,
		Ativo:     true,
	}
	if req.CalcMode != "" {
		if !validCalcMode(req.CalcMode) {
			httpx.Error(w, apperr.Validation("calc_mode inválido: "+req.CalcMode))
			return
		}
		role.CalcMode = req.CalcMode
	}
	if req.RoundMode != "" {
		if !validRoundMode(req.RoundMode) {
			httpx.Error(w, apperr.Validation("round_mode inválido: "+req.RoundMode))
			return
		}
		role.RoundMode = req.RoundMode
	}
	if req.Divisor != nil {
		if *req.Divisor <= 0 {
			httpx.Error(w, apperr.Validation("divisor deve ser positivo"))
			return
		}
		role.Divisor = *req.Divisor
	}
	if req.Minimum != nil {
		role.Minimum = *req.Minimum
	}
	if req.DefaultCostCents != nil {
		role.DefaultCostCents = *req.DefaultCostCents
	}
	if req.DisplayOrder != nil {
		role.DisplayOrder = *req.DisplayOrder
	}
	if err := h.DB.Create(&role).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.cascadeAfterRoleChange(r, claims.TenantID)
	h.Audit.Record(r, claims, audit.Entry{Module: "staffing", Action: "create", Entity: "staffing_role", EntityID: role.ID})
	httpx.OK(w, http.StatusCreated, "cargo", role)
}

func (h *FinanceHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleStaffing, rbac.ActionUpdate)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var role models.StaffingRole
	err = h.DB.Where("empresa_id = ?", claims.TenantID).First(&role, id).Error
	if err != nil {
		httpx.Error(w, notFoundIfMissing(err, "cargo"))
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	updates := map[string]any{}
	if req.Nome != "" {
		updates["nome"] = req.Nome
	}
	if req.CalcMode != "" {
		if !validCalcMode(req.CalcMode) {
			httpx.Error(w, apperr.Validation("calc_mode inválido: "+req.CalcMode))
			return
		}
		updates["calc_mode"] = req.CalcMode
	}
	if req.RoundMode != "" {
		if !validRoundMode(req.RoundMode) {
			httpx.Error(w, apperr.Validation("round_mode inválido: "+req.RoundMode))
			return
		}
		updates["round_mode"] = req.RoundMode
	}
	if req.Divisor != nil {
		if *req.Divisor <= 0 {
			httpx.Error(w, apperr.Validation("divisor deve ser positivo"))
			return
		}
		updates["divisor"] = *req.Divisor
	}
	if req.Minimum != nil {
		updates["minimum"] = *req.Minimum
	}
	if req.DefaultCostCents != nil {
		updates["default_cost_cents"] = *req.DefaultCostCents
	}
	if req.DisplayOrder != nil {
		updates["display_order"] = *req.DisplayOrder
	}
	if req.Ativo != nil {
		updates["ativo"] = *req.Ativo
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&models.StaffingRole{}).Where("id = ?", role.ID).Updates(updates).Error; err != nil {
			httpx.Error(w, err)
			return
		}
	}
	if err := h.DB.First(&role, role.ID).Error; err != nil {
		httpx.Error(w, err)
		return
	}
	h.cascadeAfterRoleChange(r, claims.TenantID)
	h.Audit.Record(r, claims, audit.Entry{Module: "staffing", Action: "update", Entity: "staffing_role", EntityID: role.ID})
	httpx.OK(w, http.StatusOK, "cargo", role)
}

func (h *FinanceHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleStaffing, rbac.ActionDelete)
	if !ok {
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	res := h.DB.Model(&models.StaffingRole{}).
		Where("id = ? AND empresa_id = ? AND ativo = ?", id, claims.TenantID, true).
		Update("ativo", false)
	if res.Error != nil {
		httpx.Error(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		httpx.Error(w, apperr.NotFound("cargo"))
		return
	}
	h.cascadeAfterRoleChange(r, claims.TenantID)
	h.Audit.Record(r, claims, audit.Entry{Module: "staffing", Action: "delete", Entity: "staffing_role", EntityID: id})
	httpx.Envelope(w, http.StatusOK, nil)
}

// cascadeAfterRoleChange re-runs staffing on open events so their rows and
// ledger projections track the new role config. Failures are logged and
// never block the role mutation itself.
func (h *FinanceHandler) cascadeAfterRoleChange(r *http.Request, tenantID uint) {
	if _, err := h.Staffing.CascadeRecompute(r.Context(), tenantID); err != nil {
		logger.L().Error("staffing cascade failed", "err", err, "empresa_id", tenantID)
	}
}

// --- resumo ---

func (h *FinanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	claims, ok := guard(w, r, h.RBAC, rbac.ModuleFinancial)
	if !ok {
		return
	}
	summary, err := h.Finance.Summary(r.Context(), claims.TenantID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "resumo", summary)
}
