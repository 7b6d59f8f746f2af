package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/models"
)

// FinanceService owns receivable titles, installments and the mirrored
// ledger entries of paid installments. All money math is integer cents.
type FinanceService struct {
	db  *gorm.DB
	log *slog.Logger

	// daysBeforeEvent is the lead time of the second installment in the
	// default 50/50 split when the event date is known.
	daysBeforeEvent int
}

func NewFinanceService(db *gorm.DB, log *slog.Logger, daysBeforeEvent int) *FinanceService {
	if daysBeforeEvent < 0 {
		daysBeforeEvent = 7
	}
	return &FinanceService{db: db, log: log, daysBeforeEvent: daysBeforeEvent}
}

// SplitHalf splits total cents into two amounts that sum exactly to total.
func SplitHalf(totalCents int64) (first, second int64) {
	first = totalCents / 2
	second = totalCents - first
	return first, second
}

// PaymentReference is the ledger idempotency key of a paid installment.
func PaymentReference(installmentID uint) string {
	return fmt.Sprintf("payment:%d", installmentID)
}

// InstallmentInput is one caller-supplied installment of an explicit list.
type InstallmentInput struct {
	AmountCents int64
	DueDate     time.Time
}

// GenerateDefault creates a receivable with the default 50/50 split: first
// installment due today, second due daysBeforeEvent before the event date
// when known, else 30 days from today.
func (s *FinanceService) GenerateDefault(ctx context.Context, tenantID, eventID uint, totalCents int64, description string) (*models.ReceivableTitle, error) {
	if totalCents <= 0 {
		return nil, apperr.Validation("valor total deve ser positivo")
	}
	var event models.Event
	err := s.db.WithContext(ctx).
		Where("empresa_id = ?", tenantID).
		First(&event, eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("evento")
		}
		return nil, apperr.Internal(err)
	}

	// First installment is always due today; only the second one moves
	// with the event date.
	today := truncateDay(time.Now())
	firstDue := today
	secondDue := today.AddDate(0, 0, 30)
	if event.Data != nil {
		secondDue = truncateDay(*event.Data).AddDate(0, 0, -s.daysBeforeEvent)
	}

	firstAmount, secondAmount := SplitHalf(totalCents)
	return s.CreateWithInstallments(ctx, tenantID, eventID, totalCents, description, []InstallmentInput{
		{AmountCents: firstAmount, DueDate: firstDue},
		{AmountCents: secondAmount, DueDate: secondDue},
	})
}

// CreateWithInstallments creates a title plus its installments atomically.
// The installment cents must sum exactly to the total; no silent rounding.
func (s *FinanceService) CreateWithInstallments(ctx context.Context, tenantID, eventID uint, totalCents int64, description string, installments []InstallmentInput) (*models.ReceivableTitle, error) {
	if totalCents <= 0 {
		return nil, apperr.Validation("valor total deve ser positivo")
	}
	if len(installments) == 0 {
		return nil, apperr.Validation("ao menos uma parcela é necessária")
	}
	var sum int64
	for _, in := range installments {
		if in.AmountCents <= 0 {
			return nil, apperr.Validation("parcela com valor não positivo")
		}
		sum += in.AmountCents
	}
	if sum != totalCents {
		return nil, apperr.Validation(fmt.Sprintf(
			"soma das parcelas (%d centavos) difere do total (%d centavos)", sum, totalCents))
	}

	title := models.ReceivableTitle{
		EmpresaID:   tenantID,
		EventID:     eventID,
		Description: description,
		TotalCents:  totalCents,
		Status:      models.TitleOpen,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&title).Error; err != nil {
			return err
		}
		for i, in := range installments {
			row := models.Installment{
				EmpresaID:         tenantID,
				ReceivableTitleID: title.ID,
				Number:            i + 1,
				AmountCents:       in.AmountCents,
				DueDate:           in.DueDate,
				Status:            models.InstallmentOpen,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			title.Installments = append(title.Installments, row)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &title, nil
}

// SetInstallmentStatus transitions an installment between open, paid and
// cancelled. Paying mirrors an inflow into the ledger keyed by
// payment:<id>; un-paying deactivates that entry. The owning title's
// settled state is recomputed afterwards in the same transaction.
func (s *FinanceService) SetInstallmentStatus(ctx context.Context, tenantID, installmentID uint, status, method string) (*models.Installment, error) {
	switch status {
	case models.InstallmentOpen, models.InstallmentPaid, models.InstallmentCancelled:
	default:
		return nil, apperr.Validation("status de parcela inválido: " + status)
	}

	var inst models.Installment
	err := s.db.WithContext(ctx).
		Where("empresa_id = ?", tenantID).
		First(&inst, installmentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("parcela")
		}
		return nil, apperr.Internal(err)
	}

	wasPaid := inst.Status == models.InstallmentPaid
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"status": status}
		if status == models.InstallmentPaid {
			now := time.Now()
			updates["paid_at"] = &now
			updates["payment_method"] = method
		} else if wasPaid {
			updates["paid_at"] = nil
			updates["payment_method"] = ""
		}
		if err := tx.Model(&models.Installment{}).
			Where("id = ?", inst.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		ref := PaymentReference(inst.ID)
		if status == models.InstallmentPaid {
			var title models.ReceivableTitle
			if err := tx.Where("empresa_id = ?", tenantID).
				First(&title, inst.ReceivableTitleID).Error; err != nil {
				return err
			}
			if err := upsertLedgerEntry(tx, models.CashLedgerEntry{
				EmpresaID:   tenantID,
				EventID:     &title.EventID,
				Kind:        models.LedgerIn,
				Category:    models.LedgerCategoryReceipt,
				Date:        time.Now(),
				AmountCents: inst.AmountCents,
				Description: fmt.Sprintf("Recebimento parcela %d", inst.Number),
				Reference:   ref,
				Ativo:       true,
			}); err != nil {
				return err
			}
		} else if wasPaid {
			if err := deactivateLedgerReference(tx, tenantID, ref); err != nil {
				return err
			}
		}

		return refreshTitleStatus(tx, tenantID, inst.ReceivableTitleID)
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	// Fresh struct: reloading into inst would keep the stale non-nil
	// PaidAt when the column went back to NULL.
	var updated models.Installment
	if err := s.db.WithContext(ctx).First(&updated, inst.ID).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return &updated, nil
}

// refreshTitleStatus marks the title settled iff all its active (non
// cancelled) installments are paid.
func refreshTitleStatus(tx *gorm.DB, tenantID, titleID uint) error {
	var open int64
	err := tx.Model(&models.Installment{}).
		Where("empresa_id = ? AND receivable_title_id = ? AND status = ?",
			tenantID, titleID, models.InstallmentOpen).
		Count(&open).Error
	if err != nil {
		return err
	}
	var paid int64
	err = tx.Model(&models.Installment{}).
		Where("empresa_id = ? AND receivable_title_id = ? AND status = ?",
			tenantID, titleID, models.InstallmentPaid).
		Count(&paid).Error
	if err != nil {
		return err
	}
	status := models.TitleOpen
	if open == 0 && paid > 0 {
		status = models.TitleSettled
	}
	return tx.Model(&models.ReceivableTitle{}).
		Where("id = ? AND empresa_id = ?", titleID, tenantID).
		Update("status", status).Error
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
