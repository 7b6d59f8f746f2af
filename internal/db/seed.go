package db

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/models"
	"github.com/festahub/backoffice/internal/rbac"
)

// defaultRoleGrants is the permission matrix seeded for a fresh tenant.
// The admin role is intentionally absent: it bypasses the matrix.
var defaultRoleGrants = map[string][]struct {
	Module rbac.Module
	Action rbac.Action
}{
	"vendas": {
		{rbac.ModuleDashboard, rbac.ActionRead},
		{rbac.ModuleLeads, rbac.ActionRead},
		{rbac.ModuleLeads, rbac.ActionCreate},
		{rbac.ModuleLeads, rbac.ActionUpdate},
		{rbac.ModuleClients, rbac.ActionRead},
		{rbac.ModuleEvents, rbac.ActionRead},
		{rbac.ModuleProposals, rbac.ActionRead},
		{rbac.ModuleProposals, rbac.ActionCreate},
		{rbac.ModuleProposals, rbac.ActionUpdate},
	},
	"financeiro": {
		{rbac.ModuleDashboard, rbac.ActionRead},
		{rbac.ModuleEvents, rbac.ActionRead},
		{rbac.ModuleFinancial, rbac.ActionRead},
		{rbac.ModuleFinancial, rbac.ActionCreate},
		{rbac.ModuleFinancial, rbac.ActionUpdate},
		{rbac.ModuleFinancial, rbac.ActionDelete},
		{rbac.ModuleContracts, rbac.ActionRead},
	},
	"producao": {
		{rbac.ModuleDashboard, rbac.ActionRead},
		{rbac.ModuleEvents, rbac.ActionRead},
		{rbac.ModuleEvents, rbac.ActionUpdate},
		{rbac.ModuleStaffing, rbac.ActionRead},
		{rbac.ModuleStaffing, rbac.ActionCreate},
		{rbac.ModuleStaffing, rbac.ActionUpdate},
	},
}

// SeedTenantPermissions creates the default matrix rows for one tenant,
// skipping cells that already exist.
func SeedTenantPermissions(conn *gorm.DB, tenantID uint) error {
	for role, grants := range defaultRoleGrants {
		for _, g := range grants {
			row := models.RolePermission{
				EmpresaID: tenantID,
				Role:      role,
				Module:    string(g.Module),
				Action:    string(g.Action),
				Allowed:   true,
			}
			err := conn.Where("empresa_id = ? AND role = ? AND module = ? AND action = ?",
				tenantID, role, row.Module, row.Action).
				FirstOrCreate(&row).Error
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// SeedDev creates a development tenant with an admin account when the
// database is empty. Only called behind DB_SEED.
func SeedDev(conn *gorm.DB) error {
	var count int64
	if err := conn.Model(&models.Empresa{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	empresa := models.Empresa{Nome: "Empresa Demo", Ativo: true}
	if err := conn.Create(&empresa).Error; err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		EmpresaID: empresa.ID,
		Email:     "admin@demo.local",
		Password:  string(hash),
		Nome:      "Admin",
		Role:      rbac.RoleAdmin,
		Ativo:     true,
	}
	if err := conn.Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return SeedTenantPermissions(conn, empresa.ID)
}
