package rbac

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/auth"
	"github.com/festahub/backoffice/internal/metrics"
	"github.com/festahub/backoffice/internal/models"
)

// RoleAdmin is hard-coded to allow everything and is never represented in
// the matrix.
const RoleAdmin = "admin"

// Evaluator decides allow/deny against the stored permission matrix.
type Evaluator struct {
	db    *gorm.DB
	cache *permCache
}

func NewEvaluator(db *gorm.DB, cacheTTL time.Duration) *Evaluator {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Evaluator{db: db, cache: newPermCache(cacheTTL)}
}

// RequireTenant rejects any session without a positive tenant id. This is
// the single choke point preventing cross-tenant leakage and must run
// before any query is built.
func RequireTenant(c auth.Claims) error {
	if c.TenantID == 0 {
		return apperr.InvalidSession()
	}
	return nil
}

// Require evaluates (tenant, role, module, action). Fail-closed on every
// path: absent rows deny, storage failures become 500, never an allow.
func (e *Evaluator) Require(ctx context.Context, c auth.Claims, module Module, action Action) error {
	if c.Role == "" {
		return apperr.Unauthenticated()
	}
	if c.Role == RoleAdmin {
		return nil
	}
	if !ValidModule(module) || !ValidAction(action) {
		return apperr.RBACConfig("módulo ou ação fora da enumeração")
	}
	if err := RequireTenant(c); err != nil {
		return err
	}

	perms, err := e.resolve(ctx, c.TenantID, c.Role)
	if err != nil {
		return apperr.Internal(err)
	}
	if !perms[string(module)+":"+string(action)] {
		metrics.IncPermissionDenial(string(module))
		return apperr.Forbidden()
	}
	return nil
}

// RequireForMethod maps the HTTP method to its action and evaluates it.
func (e *Evaluator) RequireForMethod(ctx context.Context, c auth.Claims, module Module, method string) error {
	action, ok := ActionForMethod(method)
	if !ok {
		return apperr.RBACConfig("método HTTP sem ação mapeada: " + method)
	}
	return e.Require(ctx, c, module, action)
}

// Permissions returns the effective permission set of the caller's role,
// keyed "module:action". Admin gets the full matrix.
func (e *Evaluator) Permissions(ctx context.Context, c auth.Claims) (map[string]bool, error) {
	if err := RequireTenant(c); err != nil {
		return nil, err
	}
	if c.Role == RoleAdmin {
		all := make(map[string]bool, len(Modules)*len(Actions))
		for _, m := range Modules {
			for _, a := range Actions {
				all[string(m)+":"+string(a)] = true
			}
		}
		return all, nil
	}
	perms, err := e.resolve(ctx, c.TenantID, c.Role)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make(map[string]bool, len(perms))
	for k, v := range perms {
		out[k] = v
	}
	return out, nil
}

// Invalidate drops cached permissions for a tenant after a matrix write.
func (e *Evaluator) Invalidate(tenantID uint) {
	e.cache.invalidateTenant(tenantID)
}

func (e *Evaluator) resolve(ctx context.Context, tenantID uint, role string) (permSet, error) {
	if perms, ok := e.cache.get(tenantID, role); ok {
		return perms, nil
	}
	var rows []models.RolePermission
	if err := e.db.WithContext(ctx).
		Where("empresa_id = ? AND role = ?", tenantID, role).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	perms := make(permSet, len(rows))
	for _, row := range rows {
		if row.Allowed {
			perms[row.Module+":"+row.Action] = true
		}
	}
	e.cache.put(tenantID, role, perms)
	return perms, nil
}
