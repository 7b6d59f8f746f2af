package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/audit"
	"github.com/festahub/backoffice/internal/auth"
	"github.com/festahub/backoffice/internal/httpx"
	"github.com/festahub/backoffice/internal/models"
	"github.com/festahub/backoffice/internal/rbac"
)

type PermissionHandler struct {
	DB    *gorm.DB
	RBAC  *rbac.Evaluator
	Audit *audit.Recorder
}

func NewPermissionHandler(db *gorm.DB, eval *rbac.Evaluator, rec *audit.Recorder) *PermissionHandler {
	return &PermissionHandler{DB: db, RBAC: eval, Audit: rec}
}

// permissionCell mirrors one row of the matrix on the wire.
type permissionCell struct {
	Role    string `json:"role"`
	Module  string `json:"module"`
	Action  string `json:"action"`
	Allowed bool   `json:"allowed"`
}

// ListMatrix returns every stored cell for the tenant. Absent cells are
// implicit denies; the client renders them unchecked.
func (h *PermissionHandler) ListMatrix(w http.ResponseWriter, r *http.Request) {
	claims, ok := guardAction(w, r, h.RBAC, rbac.ModuleUsers, rbac.ActionRead)
	if !ok {
		return
	}
	var rows []models.RolePermission
	err := h.DB.Where("empresa_id = ?", claims.TenantID).
		Order("role asc, module asc, action asc").Find(&rows).Error
	if err != nil {
		httpx.Error(w, err)
		return
	}
	cells := make([]permissionCell, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, permissionCell{Role: row.Role, Module: row.Module, Action: row.Action, Allowed: row.Allowed})
	}
	httpx.OK(w, http.StatusOK, "perfis", cells)
}

// ReplaceMatrix upserts the submitted cells and drops the tenant's cache so
// new rules take effect on the next request. Admin only; the admin role
// itself is not storable.
func (h *PermissionHandler) ReplaceMatrix(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.Unauthenticated())
		return
	}
	if err := rbac.RequireTenant(claims); err != nil {
		httpx.Error(w, err)
		return
	}
	if claims.Role != rbac.RoleAdmin {
		httpx.Error(w, apperr.Forbidden())
		return
	}
	var req struct {
		Perfis []permissionCell `json:"perfis"`
	}
	if err := decodeJSON(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	for _, cell := range req.Perfis {
		if cell.Role == "" || cell.Role == rbac.RoleAdmin {
			httpx.Error(w, apperr.Validation("perfil inválido: "+cell.Role))
			return
		}
		if !rbac.ValidModule(rbac.Module(cell.Module)) || !rbac.ValidAction(rbac.Action(cell.Action)) {
			httpx.Error(w, apperr.Validation("módulo ou ação inválido: "+cell.Module+":"+cell.Action))
			return
		}
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		for _, cell := range req.Perfis {
			row := models.RolePermission{
				EmpresaID: claims.TenantID,
				Role:      cell.Role,
				Module:    cell.Module,
				Action:    cell.Action,
			}
			res := tx.Where(&row).Assign(map[string]any{"allowed": cell.Allowed}).FirstOrCreate(&row)
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	h.RBAC.Invalidate(claims.TenantID)
	h.Audit.Record(r, claims, audit.Entry{Module: "users", Action: "update", Entity: "role_permission"})
	httpx.Envelope(w, http.StatusOK, map[string]any{"count": len(req.Perfis)})
}

// MyPermissions returns the caller's effective "module:action" set, used by
// the client to hide what the server would deny anyway.
func (h *PermissionHandler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.Unauthenticated())
		return
	}
	perms, err := h.RBAC.Permissions(r.Context(), claims)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Envelope(w, http.StatusOK, map[string]any{
		"role":        claims.Role,
		"permissions": perms,
	})
}
