package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/metrics"
	"github.com/festahub/backoffice/internal/models"
)

// cascadeEventLimit bounds how many events a staffing-role change may
// recompute in one request.
const cascadeEventLimit = 50

// StaffingService computes event staffing from role definitions and mirrors
// the resulting costs into the cash ledger.
type StaffingService struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewStaffingService(db *gorm.DB, log *slog.Logger) *StaffingService {
	return &StaffingService{db: db, log: log}
}

// ComputeQty derives the staff quantity for one role. Negative or
// non-finite intermediates clamp to zero; the configured minimum is
// enforced after rounding.
func ComputeQty(role models.StaffingRole, guests, children int) int {
	var raw float64
	switch role.CalcMode {
	case models.CalcModePerGuest:
		raw = float64(guests) / float64(effectiveDivisor(role.Divisor))
	case models.CalcModePerChild:
		raw = float64(children) / float64(effectiveDivisor(role.Divisor))
	default: // FIXED
		raw = float64(role.Minimum)
	}
	if math.IsNaN(raw) || raw < 0 {
		raw = 0
	}
	qty := applyRound(raw, role.RoundMode)
	if qty < role.Minimum {
		qty = role.Minimum
	}
	if qty < 0 {
		qty = 0
	}
	return qty
}

func effectiveDivisor(d int) int {
	if d <= 0 {
		return 1
	}
	return d
}

func applyRound(v float64, mode string) int {
	switch mode {
	case models.RoundFloor:
		return int(math.Floor(v))
	case models.RoundHalf:
		return int(math.Round(v))
	default: // CEIL is the default for unknown modes
		return int(math.Ceil(v))
	}
}

// Recompute replaces every auto-computed staffing row of the event with a
// fresh derivation. Manual rows survive. Delete-then-insert keeps the call
// idempotent and guarantees no stale rows linger.
func (s *StaffingService) Recompute(ctx context.Context, tenantID, eventID uint, guestOverride *int) (int, error) {
	var event models.Event
	err := s.db.WithContext(ctx).
		Where("empresa_id = ?", tenantID).
		First(&event, eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.NotFound("evento")
		}
		return 0, apperr.Internal(err)
	}

	guests := event.Convidados
	if guestOverride != nil {
		guests = *guestOverride
	}

	var roles []models.StaffingRole
	err = s.db.WithContext(ctx).
		Where("empresa_id = ? AND ativo = ?", tenantID, true).
		Order("display_order asc, id asc").
		Find(&roles).Error
	if err != nil {
		return 0, apperr.Internal(err)
	}

	inserted := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("empresa_id = ? AND event_id = ? AND auto_computed = ?",
			tenantID, eventID, true).
			Delete(&models.EventStaffing{}).Error; err != nil {
			return err
		}
		for _, role := range roles {
			qty := ComputeQty(role, guests, event.Criancas)
			if qty <= 0 {
				continue
			}
			row := models.EventStaffing{
				EmpresaID:     tenantID,
				EventID:       eventID,
				RoleID:        role.ID,
				RoleName:      role.Nome,
				Quantity:      qty,
				UnitCostCents: role.DefaultCostCents,
				TotalCents:    int64(qty) * role.DefaultCostCents,
				AutoComputed:  true,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Internal(err)
	}
	metrics.IncStaffingRecompute()
	return inserted, nil
}

// RecomputeAndSync runs Recompute and then mirrors the result into the cash
// ledger. A sync failure is logged but does not fail the recompute.
func (s *StaffingService) RecomputeAndSync(ctx context.Context, tenantID, eventID uint, guestOverride *int) (int, error) {
	count, err := s.Recompute(ctx, tenantID, eventID, guestOverride)
	if err != nil {
		return 0, err
	}
	if err := s.SyncLedger(ctx, tenantID, eventID); err != nil {
		s.log.Error("staffing ledger sync failed", "err", err, "event_id", eventID, "empresa_id", tenantID)
	}
	return count, nil
}

// CascadeRecompute re-derives staffing for the tenant's upcoming events
// after a role definition changed. Bounded by cascadeEventLimit. A failing
// event is logged and skipped so one bad row cannot block the rest.
func (s *StaffingService) CascadeRecompute(ctx context.Context, tenantID uint) (int, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Where("empresa_id = ? AND status NOT IN ?", tenantID,
			[]string{models.EventStatusFinished, models.EventStatusCancelled}).
		Order("id desc").
		Limit(cascadeEventLimit).
		Find(&events).Error
	if err != nil {
		return 0, apperr.Internal(err)
	}
	touched := 0
	for _, ev := range events {
		if _, err := s.RecomputeAndSync(ctx, tenantID, ev.ID, nil); err != nil {
			s.log.Error("staffing cascade recompute failed",
				"err", err, "event_id", ev.ID, "empresa_id", tenantID)
			continue
		}
		touched++
	}
	return touched, nil
}

// StaffingReference is the ledger idempotency key of one (event, role) pair.
func StaffingReference(eventID, roleID uint) string {
	return fmt.Sprintf("staffing:%d:%d", eventID, roleID)
}

// SyncLedger upserts one active outflow per auto-computed staffing row and
// deactivates entries whose source disappeared. Never deletes: retired rows
// stay in the ledger for the audit trail.
func (s *StaffingService) SyncLedger(ctx context.Context, tenantID, eventID uint) error {
	var event models.Event
	err := s.db.WithContext(ctx).
		Where("empresa_id = ?", tenantID).
		First(&event, eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("evento")
		}
		return apperr.Internal(err)
	}

	entryDate := time.Now()
	if event.Data != nil {
		entryDate = *event.Data
	}

	var rows []models.EventStaffing
	err = s.db.WithContext(ctx).
		Where("empresa_id = ? AND event_id = ? AND auto_computed = ? AND quantity > 0",
			tenantID, eventID, true).
		Find(&rows).Error
	if err != nil {
		return apperr.Internal(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wanted := make(map[string]bool, len(rows))
		for _, row := range rows {
			ref := StaffingReference(eventID, row.RoleID)
			wanted[ref] = true
			desc := fmt.Sprintf("Equipe: %s x%d", row.RoleName, row.Quantity)
			if row.UnitCostCents == 0 {
				desc += " [COST PENDING]"
			}
			if err := upsertLedgerEntry(tx, models.CashLedgerEntry{
				EmpresaID:   tenantID,
				EventID:     &row.EventID,
				Kind:        models.LedgerOut,
				Category:    models.LedgerCategoryStaffing,
				Date:        entryDate,
				AmountCents: row.TotalCents,
				Description: desc,
				Reference:   ref,
				Ativo:       true,
			}); err != nil {
				return err
			}
		}

		// Deactivate previously synced references this event no longer wants.
		var stale []models.CashLedgerEntry
		if err := tx.Where("empresa_id = ? AND event_id = ? AND category = ? AND ativo = ? AND reference <> ''",
			tenantID, eventID, models.LedgerCategoryStaffing, true).
			Find(&stale).Error; err != nil {
			return err
		}
		for _, entry := range stale {
			if wanted[entry.Reference] {
				continue
			}
			if err := tx.Model(&models.CashLedgerEntry{}).
				Where("id = ?", entry.ID).
				Update("ativo", false).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperr.Internal(err)
	}
	metrics.IncLedgerSync()
	return nil
}

// upsertLedgerEntry keeps at most one active ledger row per reference.
func upsertLedgerEntry(tx *gorm.DB, entry models.CashLedgerEntry) error {
	var existing models.CashLedgerEntry
	err := tx.Where("empresa_id = ? AND reference = ? AND ativo = ?",
		entry.EmpresaID, entry.Reference, true).
		First(&existing).Error
	if err == nil {
		return tx.Model(&models.CashLedgerEntry{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"amount_cents": entry.AmountCents,
				"description":  entry.Description,
				"date":         entry.Date,
				"event_id":     entry.EventID,
			}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return tx.Create(&entry).Error
}

// deactivateLedgerReference retires the active row of one reference, if any.
func deactivateLedgerReference(tx *gorm.DB, tenantID uint, reference string) error {
	return tx.Model(&models.CashLedgerEntry{}).
		Where("empresa_id = ? AND reference = ? AND ativo = ?", tenantID, reference, true).
		Update("ativo", false).Error
}
