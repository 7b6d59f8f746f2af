package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/audit"
	"github.com/festahub/backoffice/internal/auth"
	"github.com/festahub/backoffice/internal/httpx"
	"github.com/festahub/backoffice/internal/rbac"
)

// AdminHandler holds the maintenance endpoints for rows written before the
// tenant column was enforced. Admin only.
type AdminHandler struct {
	DB    *gorm.DB
	Audit *audit.Recorder
}

func NewAdminHandler(db *gorm.DB, rec *audit.Recorder) *AdminHandler {
	return &AdminHandler{DB: db, Audit: rec}
}

// tenantTables lists every business table carrying empresa_id.
var tenantTables = []string{
	"leads", "clients", "events",
	"staffing_roles", "event_staffings",
	"cash_ledger_entries", "receivable_titles", "installments", "payables",
	"proposals", "contracts", "contract_versions", "acceptance_tokens",
	"users", "role_permissions", "audit_logs",
}

func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.Unauthenticated())
		return auth.Claims{}, false
	}
	if claims.Role != rbac.RoleAdmin {
		httpx.Error(w, apperr.Forbidden())
		return auth.Claims{}, false
	}
	return claims, true
}

// DiagNullEmpresa counts rows with a NULL or zero empresa_id per table.
func (h *AdminHandler) DiagNullEmpresa(w http.ResponseWriter, r *http.Request) {
	_, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	counts := map[string]int64{}
	var total int64
	for _, table := range tenantTables {
		var n int64
		err := h.DB.Table(table).
			Where("empresa_id IS NULL OR empresa_id = 0").
			Count(&n).Error
		if err != nil {
			httpx.Error(w, apperr.Internal(err))
			return
		}
		if n > 0 {
			counts[table] = n
		}
		total += n
	}
	httpx.Envelope(w, http.StatusOK, map[string]any{
		"total":  total,
		"tables": counts,
	})
}

// BackfillNullEmpresa assigns orphan rows to the single existing tenant. It
// refuses to run when more than one tenant exists: with several candidates
// there is no safe owner to guess.
func (h *AdminHandler) BackfillNullEmpresa(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	var tenantIDs []uint
	err := h.DB.Table("empresas").Where("ativo = ?", true).Pluck("id", &tenantIDs).Error
	if err != nil {
		httpx.Error(w, apperr.Internal(err))
		return
	}
	if len(tenantIDs) != 1 {
		httpx.Error(w, apperr.Conflict("backfill exige exatamente uma empresa ativa"))
		return
	}
	target := tenantIDs[0]

	updated := map[string]int64{}
	var total int64
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		for _, table := range tenantTables {
			res := tx.Table(table).
				Where("empresa_id IS NULL OR empresa_id = 0").
				Update("empresa_id", target)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				updated[table] = res.RowsAffected
			}
			total += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		httpx.Error(w, apperr.Internal(err))
		return
	}
	h.Audit.Record(r, claims, audit.Entry{Module: "users", Action: "update", Entity: "backfill", EntityID: target})
	httpx.Envelope(w, http.StatusOK, map[string]any{
		"empresa_id": target,
		"total":      total,
		"tables":     updated,
	})
}
