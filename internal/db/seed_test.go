package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Empresa{}, &models.User{}, &models.RolePermission{}))
	return conn
}

func TestSeedTenantPermissionsIsIdempotent(t *testing.T) {
	conn := openTestDB(t)

	require.NoError(t, SeedTenantPermissions(conn, 1))
	var first int64
	require.NoError(t, conn.Model(&models.RolePermission{}).Count(&first).Error)
	require.NotZero(t, first)

	require.NoError(t, SeedTenantPermissions(conn, 1))
	var second int64
	require.NoError(t, conn.Model(&models.RolePermission{}).Count(&second).Error)
	require.Equal(t, first, second)
}

func TestSeedTenantPermissionsNeverGrantsAdminRows(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, SeedTenantPermissions(conn, 1))

	var count int64
	require.NoError(t, conn.Model(&models.RolePermission{}).
		Where("role = ?", "admin").Count(&count).Error)
	require.Zero(t, count)
}

func TestSeedDevCreatesTenantAndAdminOnce(t *testing.T) {
	conn := openTestDB(t)

	require.NoError(t, SeedDev(conn))
	var admin models.User
	require.NoError(t, conn.Where("email = ?", "admin@demo.local").First(&admin).Error)
	require.Equal(t, "admin", admin.Role)
	require.NotZero(t, admin.EmpresaID)
	require.NotEqual(t, "admin123", admin.Password)

	// Second run is a no-op on a populated database.
	require.NoError(t, SeedDev(conn))
	var empresas int64
	require.NoError(t, conn.Model(&models.Empresa{}).Count(&empresas).Error)
	require.Equal(t, int64(1), empresas)
}
