package rbac

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/auth"
	"github.com/festahub/backoffice/internal/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.RolePermission{}))
	return conn
}

func grant(t *testing.T, conn *gorm.DB, tenantID uint, role string, module Module, action Action) {
	t.Helper()
	require.NoError(t, conn.Create(&models.RolePermission{
		EmpresaID: tenantID,
		Role:      role,
		Module:    string(module),
		Action:    string(action),
		Allowed:   true,
	}).Error)
}

func claimsFor(tenantID uint, role string) auth.Claims {
	return auth.Claims{UserID: 1, Identity: "u@t.local", Role: role, TenantID: tenantID}
}

func TestRequireDeniesWithoutGrant(t *testing.T) {
	conn := setupDB(t)
	eval := NewEvaluator(conn, time.Minute)

	err := eval.Require(context.Background(), claimsFor(1, "vendas"), ModuleLeads, ActionRead)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, http.StatusForbidden, ae.Status)
}

func TestRequireAllowsGrantedCell(t *testing.T) {
	conn := setupDB(t)
	grant(t, conn, 1, "vendas", ModuleLeads, ActionRead)
	eval := NewEvaluator(conn, time.Minute)

	require.NoError(t, eval.Require(context.Background(), claimsFor(1, "vendas"), ModuleLeads, ActionRead))
	// Same role, different action: still denied.
	err := eval.Require(context.Background(), claimsFor(1, "vendas"), ModuleLeads, ActionDelete)
	require.Error(t, err)
}

func TestGrantsDoNotCrossTenants(t *testing.T) {
	conn := setupDB(t)
	grant(t, conn, 1, "vendas", ModuleLeads, ActionRead)
	eval := NewEvaluator(conn, time.Minute)

	err := eval.Require(context.Background(), claimsFor(2, "vendas"), ModuleLeads, ActionRead)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, http.StatusForbidden, ae.Status)
}

func TestAdminBypassesMatrix(t *testing.T) {
	conn := setupDB(t)
	eval := NewEvaluator(conn, time.Minute)

	for _, m := range Modules {
		for _, a := range Actions {
			require.NoError(t, eval.Require(context.Background(), claimsFor(1, RoleAdmin), m, a))
		}
	}
}

func TestRequireRejectsUnknownModule(t *testing.T) {
	conn := setupDB(t)
	eval := NewEvaluator(conn, time.Minute)

	err := eval.Require(context.Background(), claimsFor(1, "vendas"), Module("reports"), ActionRead)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, "RBAC_CONFIG", ae.Code)
}

func TestRequireRejectsMissingRole(t *testing.T) {
	conn := setupDB(t)
	eval := NewEvaluator(conn, time.Minute)

	err := eval.Require(context.Background(), claimsFor(1, ""), ModuleLeads, ActionRead)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, http.StatusUnauthorized, ae.Status)
}

func TestRequireTenant(t *testing.T) {
	require.Error(t, RequireTenant(auth.Claims{TenantID: 0}))
	require.NoError(t, RequireTenant(auth.Claims{TenantID: 7}))
}

func TestActionForMethod(t *testing.T) {
	cases := map[string]Action{
		http.MethodGet:    ActionRead,
		http.MethodHead:   ActionRead,
		http.MethodPost:   ActionCreate,
		http.MethodPut:    ActionUpdate,
		http.MethodPatch:  ActionUpdate,
		http.MethodDelete: ActionDelete,
	}
	for method, want := range cases {
		got, ok := ActionForMethod(method)
		require.True(t, ok, method)
		require.Equal(t, want, got)
	}
	_, ok := ActionForMethod("OPTIONS")
	require.False(t, ok)
}

func TestInvalidateDropsCachedGrants(t *testing.T) {
	conn := setupDB(t)
	grant(t, conn, 1, "vendas", ModuleLeads, ActionRead)
	eval := NewEvaluator(conn, time.Hour)

	ctx := context.Background()
	require.NoError(t, eval.Require(ctx, claimsFor(1, "vendas"), ModuleLeads, ActionRead))

	// Revoke in the DB; the long-TTL cache still answers the old way until
	// invalidated.
	require.NoError(t, conn.Model(&models.RolePermission{}).
		Where("empresa_id = ? AND role = ?", 1, "vendas").
		Update("allowed", false).Error)
	require.NoError(t, eval.Require(ctx, claimsFor(1, "vendas"), ModuleLeads, ActionRead))

	eval.Invalidate(1)
	require.Error(t, eval.Require(ctx, claimsFor(1, "vendas"), ModuleLeads, ActionRead))
}

func TestPermissionsReflectsMatrix(t *testing.T) {
	conn := setupDB(t)
	grant(t, conn, 1, "vendas", ModuleLeads, ActionRead)
	grant(t, conn, 1, "vendas", ModuleClients, ActionCreate)
	eval := NewEvaluator(conn, time.Minute)

	perms, err := eval.Permissions(context.Background(), claimsFor(1, "vendas"))
	require.NoError(t, err)
	require.True(t, perms["leads:read"])
	require.True(t, perms["clients:create"])
	require.False(t, perms["leads:delete"])

	all, err := eval.Permissions(context.Background(), claimsFor(1, RoleAdmin))
	require.NoError(t, err)
	require.Len(t, all, len(Modules)*len(Actions))
}
