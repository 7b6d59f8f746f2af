package services

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/festahub/backoffice/internal/models"
)

func TestComputeQtyPerGuestCeil(t *testing.T) {
	role := models.StaffingRole{CalcMode: models.CalcModePerGuest, Divisor: 10, RoundMode: models.RoundCeil}

	require.Equal(t, 7, ComputeQty(role, 70, 0))
	require.Equal(t, 8, ComputeQty(role, 71, 0))
	require.Equal(t, 0, ComputeQty(role, 0, 0))
}

func TestComputeQtyRoundModes(t *testing.T) {
	base := models.StaffingRole{CalcMode: models.CalcModePerGuest, Divisor: 10}

	ceil := base
	ceil.RoundMode = models.RoundCeil
	floor := base
	floor.RoundMode = models.RoundFloor
	half := base
	half.RoundMode = models.RoundHalf

	require.Equal(t, 2, ComputeQty(ceil, 11, 0))
	require.Equal(t, 1, ComputeQty(floor, 19, 0))
	require.Equal(t, 1, ComputeQty(half, 14, 0))
	require.Equal(t, 2, ComputeQty(half, 15, 0))
}

func TestComputeQtyMinimumAfterRounding(t *testing.T) {
	role := models.StaffingRole{CalcMode: models.CalcModePerGuest, Divisor: 50, RoundMode: models.RoundFloor, Minimum: 2}

	require.Equal(t, 2, ComputeQty(role, 30, 0))
	require.Equal(t, 3, ComputeQty(role, 150, 0))
}

func TestComputeQtyPerChildAndFixed(t *testing.T) {
	perChild := models.StaffingRole{CalcMode: models.CalcModePerChild, Divisor: 5, RoundMode: models.RoundCeil}
	require.Equal(t, 3, ComputeQty(perChild, 100, 12))

	fixed := models.StaffingRole{CalcMode: models.CalcModeFixed, Minimum: 4}
	require.Equal(t, 4, ComputeQty(fixed, 0, 0))
}

func TestComputeQtyMonotonicInGuests(t *testing.T) {
	role := models.StaffingRole{CalcMode: models.CalcModePerGuest, Divisor: 12, RoundMode: models.RoundCeil, Minimum: 1}
	prev := 0
	for guests := 0; guests <= 240; guests += 12 {
		qty := ComputeQty(role, guests, 0)
		require.GreaterOrEqual(t, qty, prev, "guests=%d", guests)
		prev = qty
	}
}

func TestComputeQtyZeroDivisorFallsBackToOne(t *testing.T) {
	role := models.StaffingRole{CalcMode: models.CalcModePerGuest, Divisor: 0, RoundMode: models.RoundCeil}
	require.Equal(t, 7, ComputeQty(role, 7, 0))
}

func TestRecomputeReplacesAutoRowsKeepsManual(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStaffingService(conn, testLogger())
	ctx := context.Background()

	event := createEvent(t, conn, 1, 70, 0, 0)
	require.NoError(t, conn.Create(&models.StaffingRole{
		EmpresaID: 1, Nome: "Garçom", CalcMode: models.CalcModePerGuest,
		Divisor: 10, RoundMode: models.RoundCeil, DefaultCostCents: 15000, Ativo: true,
	}).Error)
	manual := models.EventStaffing{
		EmpresaID: 1, EventID: event.ID, RoleName: "DJ convidado",
		Quantity: 1, UnitCostCents: 80000, TotalCents: 80000, AutoComputed: false,
	}
	require.NoError(t, conn.Create(&manual).Error)

	count, err := svc.Recompute(ctx, 1, event.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// Run again: still exactly one auto row plus the manual one.
	_, err = svc.Recompute(ctx, 1, event.ID, nil)
	require.NoError(t, err)

	var rows []models.EventStaffing
	require.NoError(t, conn.Where("event_id = ?", event.ID).Order("id asc").Find(&rows).Error)
	require.Len(t, rows, 2)

	var auto, kept *models.EventStaffing
	for i := range rows {
		if rows[i].AutoComputed {
			auto = &rows[i]
		} else {
			kept = &rows[i]
		}
	}
	require.NotNil(t, auto)
	require.Equal(t, 7, auto.Quantity)
	require.Equal(t, int64(7*15000), auto.TotalCents)
	require.NotNil(t, kept)
	require.Equal(t, "DJ convidado", kept.RoleName)
}

func TestRecomputeHonorsGuestOverride(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStaffingService(conn, testLogger())

	event := createEvent(t, conn, 1, 50, 0, 0)
	require.NoError(t, conn.Create(&models.StaffingRole{
		EmpresaID: 1, Nome: "Garçom", CalcMode: models.CalcModePerGuest,
		Divisor: 10, RoundMode: models.RoundCeil, Ativo: true,
	}).Error)

	override := 120
	_, err := svc.Recompute(context.Background(), 1, event.ID, &override)
	require.NoError(t, err)

	var row models.EventStaffing
	require.NoError(t, conn.Where("event_id = ? AND auto_computed = ?", event.ID, true).First(&row).Error)
	require.Equal(t, 12, row.Quantity)
}

func TestRecomputeUnknownEvent(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStaffingService(conn, testLogger())

	_, err := svc.Recompute(context.Background(), 1, 999, nil)
	require.Error(t, err)
}

func TestRecomputeIgnoresInactiveRoles(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStaffingService(conn, testLogger())

	event := createEvent(t, conn, 1, 100, 0, 0)
	require.NoError(t, conn.Create(&models.StaffingRole{
		EmpresaID: 1, Nome: "Desativado", CalcMode: models.CalcModePerGuest,
		Divisor: 10, RoundMode: models.RoundCeil, Ativo: false,
	}).Error)

	// The flag must survive the insert; a column default would flip a
	// zero-value false back to active.
	var stored models.StaffingRole
	require.NoError(t, conn.First(&stored).Error)
	require.False(t, stored.Ativo)

	count, err := svc.Recompute(context.Background(), 1, event.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestSyncLedgerUpsertsByReference(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStaffingService(conn, testLogger())
	ctx := context.Background()

	event := createEvent(t, conn, 1, 70, 0, 0)
	role := models.StaffingRole{
		EmpresaID: 1, Nome: "Garçom", CalcMode: models.CalcModePerGuest,
		Divisor: 10, RoundMode: models.RoundCeil, DefaultCostCents: 15000, Ativo: true,
	}
	require.NoError(t, conn.Create(&role).Error)

	_, err := svc.RecomputeAndSync(ctx, 1, event.ID, nil)
	require.NoError(t, err)
	// Second sync must not duplicate the entry.
	require.NoError(t, svc.SyncLedger(ctx, 1, event.ID))

	ref := StaffingReference(event.ID, role.ID)
	var entries []models.CashLedgerEntry
	require.NoError(t, conn.Where("reference = ? AND ativo = ?", ref, true).Find(&entries).Error)
	require.Len(t, entries, 1)
	require.Equal(t, models.LedgerOut, entries[0].Kind)
	require.Equal(t, models.LedgerCategoryStaffing, entries[0].Category)
	require.Equal(t, int64(7*15000), entries[0].AmountCents)
}

func TestSyncLedgerDeactivatesStaleReference(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStaffingService(conn, testLogger())
	ctx := context.Background()

	event := createEvent(t, conn, 1, 70, 0, 0)
	role := models.StaffingRole{
		EmpresaID: 1, Nome: "Garçom", CalcMode: models.CalcModePerGuest,
		Divisor: 10, RoundMode: models.RoundCeil, DefaultCostCents: 15000, Ativo: true,
	}
	require.NoError(t, conn.Create(&role).Error)

	_, err := svc.RecomputeAndSync(ctx, 1, event.ID, nil)
	require.NoError(t, err)

	// Role retired: recompute drops the row, sync retires the ledger entry.
	require.NoError(t, conn.Model(&models.StaffingRole{}).
		Where("id = ?", role.ID).Update("ativo", false).Error)
	_, err = svc.RecomputeAndSync(ctx, 1, event.ID, nil)
	require.NoError(t, err)

	ref := StaffingReference(event.ID, role.ID)
	var entry models.CashLedgerEntry
	require.NoError(t, conn.Where("reference = ?", ref).First(&entry).Error)
	require.False(t, entry.Ativo)

	var active int64
	require.NoError(t, conn.Model(&models.CashLedgerEntry{}).
		Where("reference = ? AND ativo = ?", ref, true).Count(&active).Error)
	require.Zero(t, active)
}

func TestSyncLedgerFlagsPendingCost(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStaffingService(conn, testLogger())

	event := createEvent(t, conn, 1, 30, 0, 0)
	require.NoError(t, conn.Create(&models.StaffingRole{
		EmpresaID: 1, Nome: "Recepção", CalcMode: models.CalcModePerGuest,
		Divisor: 30, RoundMode: models.RoundCeil, DefaultCostCents: 0, Ativo: true,
	}).Error)

	_, err := svc.RecomputeAndSync(context.Background(), 1, event.ID, nil)
	require.NoError(t, err)

	var entry models.CashLedgerEntry
	require.NoError(t, conn.Where("event_id = ? AND category = ?", event.ID, models.LedgerCategoryStaffing).
		First(&entry).Error)
	require.Contains(t, entry.Description, "[COST PENDING]")
	require.Zero(t, entry.AmountCents)
}

func TestCascadeRecomputeLogsAndSkipsFailures(t *testing.T) {
	conn := newTestDB(t)
	var logs bytes.Buffer
	svc := NewStaffingService(conn, slog.New(slog.NewTextHandler(&logs, nil)))

	createEvent(t, conn, 1, 40, 0, 0)
	require.NoError(t, conn.Migrator().DropTable(&models.EventStaffing{}))

	// Per-event failures are logged, not returned, and do not count as
	// touched.
	touched, err := svc.CascadeRecompute(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, touched)
	require.Contains(t, logs.String(), "cascade recompute failed")
}

func TestCascadeRecomputeSkipsTerminalEvents(t *testing.T) {
	conn := newTestDB(t)
	svc := NewStaffingService(conn, testLogger())

	open := createEvent(t, conn, 1, 40, 0, 0)
	done := createEvent(t, conn, 1, 40, 0, 0)
	require.NoError(t, conn.Model(&models.Event{}).
		Where("id = ?", done.ID).Update("status", models.EventStatusFinished).Error)
	require.NoError(t, conn.Create(&models.StaffingRole{
		EmpresaID: 1, Nome: "Garçom", CalcMode: models.CalcModePerGuest,
		Divisor: 10, RoundMode: models.RoundCeil, Ativo: true,
	}).Error)

	touched, err := svc.CascadeRecompute(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, touched)

	var count int64
	require.NoError(t, conn.Model(&models.EventStaffing{}).
		Where("event_id = ?", open.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.NoError(t, conn.Model(&models.EventStaffing{}).
		Where("event_id = ?", done.ID).Count(&count).Error)
	require.Zero(t, count)
}
