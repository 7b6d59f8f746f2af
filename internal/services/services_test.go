package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Empresa{}, &models.User{}, &models.RolePermission{},
		&models.Lead{}, &models.Client{}, &models.Event{},
		&models.StaffingRole{}, &models.EventStaffing{},
		&models.CashLedgerEntry{}, &models.ReceivableTitle{}, &models.Installment{}, &models.Payable{},
		&models.Proposal{}, &models.Contract{}, &models.ContractVersion{}, &models.AcceptanceToken{},
		&models.AuditLog{},
	))
	return conn
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createEvent(t *testing.T, conn *gorm.DB, tenantID uint, guests, children int, totalCents int64) models.Event {
	t.Helper()
	client := models.Client{EmpresaID: tenantID, Nome: "Cliente Teste", Ativo: true}
	require.NoError(t, conn.Create(&client).Error)
	when := time.Now().AddDate(0, 1, 0)
	event := models.Event{
		EmpresaID:  tenantID,
		ClientID:   client.ID,
		Titulo:     "Festa Teste",
		Data:       &when,
		Convidados: guests,
		Criancas:   children,
		TotalCents: totalCents,
		Status:     models.EventStatusConfirmed,
	}
	require.NoError(t, conn.Create(&event).Error)
	return event
}
