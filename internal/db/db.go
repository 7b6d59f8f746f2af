// Package db owns the database connection and the versioned migration gate.
// The application declares the schema it requires and refuses to serve if
// migrations have not been applied; there is no per-request schema probing.
package db

import (
	"fmt"
	"time"

	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/festahub/backoffice/internal/models"
)

// Connect opens the postgres connection with a few retries so the server
// survives a database that is still booting.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db: empty DSN")
	}
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	var conn *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		conn, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("db: connect after retries: %w", err)
	}
	if pingErr := conn.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db: ping failed: %w", pingErr)
	}
	return conn, nil
}

// Migrate applies the versioned migrations.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	m := gormigrate.New(conn, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202601050001_init_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&models.Empresa{},
					&models.User{},
					&models.RolePermission{},
					&models.Lead{},
					&models.Client{},
					&models.Event{},
					&models.StaffingRole{},
					&models.EventStaffing{},
					&models.CashLedgerEntry{},
					&models.ReceivableTitle{},
					&models.Installment{},
					&models.Payable{},
					&models.Proposal{},
					&models.Contract{},
					&models.ContractVersion{},
					&models.AcceptanceToken{},
					&models.AuditLog{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"audit_logs", "acceptance_tokens", "contract_versions", "contracts",
					"proposals", "payables", "installments", "receivable_titles",
					"cash_ledger_entries", "event_staffings", "staffing_roles",
					"events", "clients", "leads", "role_permissions", "users", "empresas",
				)
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("db: migrations failed: %w", err)
	}
	return nil
}

// VerifySchema checks the core tables exist. Called at startup when
// auto-migrate is disabled, so a half-migrated database fails fast instead
// of degrading per request.
func VerifySchema(conn *gorm.DB) error {
	for _, table := range []string{"empresas", "users", "role_permissions", "events", "cash_ledger_entries"} {
		if !conn.Migrator().HasTable(table) {
			return fmt.Errorf("db: missing table %q, run migrations", table)
		}
	}
	return nil
}
