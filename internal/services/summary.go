package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/models"
)

// EventSummary aggregates the financial picture of one event.
type EventSummary struct {
	EventID           uint    `json:"event_id"`
	InflowCents       int64   `json:"inflow_cents"`
	OutflowCents      int64   `json:"outflow_cents"`
	StaffingCostCents int64   `json:"staffing_cost_cents"`
	OtherOutflowCents int64   `json:"other_outflow_cents"`
	ContractedCents   int64   `json:"contracted_cents"`
	RevenueBasis      string  `json:"revenue_basis"` // contracted | cash
	RevenueBasisCents int64   `json:"revenue_basis_cents"`
	ProfitCents       int64   `json:"profit_cents"`
	MarginPercent     float64 `json:"margin_percent"`
	ReceivedCents     int64   `json:"received_cents"`
	ReceivableCents   int64   `json:"receivable_cents"`
}

// EventSummary computes inflow/outflow totals, the staffing subtotal, a
// profit estimate (contracted value preferred over cash received) and the
// received vs. still-receivable amounts. Installment figures win when the
// event has receivable titles, else the ledger/contract estimate is used.
func (s *FinanceService) EventSummary(ctx context.Context, tenantID, eventID uint) (*EventSummary, error) {
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

	sum := &EventSummary{EventID: eventID, ContractedCents: event.TotalCents}

	type kindTotal struct {
		Kind     string
		Category string
		Total    int64
	}
	var totals []kindTotal
	err = s.db.WithContext(ctx).Model(&models.CashLedgerEntry{}).
		Select("kind, category, COALESCE(SUM(amount_cents),0) AS total").
		Where("empresa_id = ? AND event_id = ? AND ativo = ?", tenantID, eventID, true).
		Group("kind, category").
		Scan(&totals).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	for _, t := range totals {
		switch t.Kind {
		case models.LedgerIn:
			sum.InflowCents += t.Total
		case models.LedgerOut:
			sum.OutflowCents += t.Total
			if t.Category == models.LedgerCategoryStaffing {
				sum.StaffingCostCents += t.Total
			}
		}
	}
	sum.OtherOutflowCents = sum.OutflowCents - sum.StaffingCostCents

	sum.RevenueBasis = "cash"
	sum.RevenueBasisCents = sum.InflowCents
	if sum.ContractedCents > 0 {
		sum.RevenueBasis = "contracted"
		sum.RevenueBasisCents = sum.ContractedCents
	}
	sum.ProfitCents = sum.RevenueBasisCents - sum.OutflowCents
	if sum.RevenueBasisCents > 0 {
		sum.MarginPercent = float64(sum.ProfitCents) / float64(sum.RevenueBasisCents) * 100
	}

	// Prefer installment-based received/receivable figures when the event
	// has receivable titles.
	var titleCount int64
	err = s.db.WithContext(ctx).Model(&models.ReceivableTitle{}).
		Where("empresa_id = ? AND event_id = ?", tenantID, eventID).
		Count(&titleCount).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if titleCount > 0 {
		var paid, open int64
		err = s.db.WithContext(ctx).Model(&models.Installment{}).
			Select("COALESCE(SUM(amount_cents),0)").
			Where("empresa_id = ? AND status = ? AND receivable_title_id IN (?)",
				tenantID, models.InstallmentPaid,
				s.db.Model(&models.ReceivableTitle{}).Select("id").
					Where("empresa_id = ? AND event_id = ?", tenantID, eventID)).
			Scan(&paid).Error
		if err != nil {
			return nil, apperr.Internal(err)
		}
		err = s.db.WithContext(ctx).Model(&models.Installment{}).
			Select("COALESCE(SUM(amount_cents),0)").
			Where("empresa_id = ? AND status = ? AND receivable_title_id IN (?)",
				tenantID, models.InstallmentOpen,
				s.db.Model(&models.ReceivableTitle{}).Select("id").
					Where("empresa_id = ? AND event_id = ?", tenantID, eventID)).
			Scan(&open).Error
		if err != nil {
			return nil, apperr.Internal(err)
		}
		sum.ReceivedCents = paid
		sum.ReceivableCents = open
	} else {
		sum.ReceivedCents = sum.InflowCents
		if remaining := sum.ContractedCents - sum.InflowCents; remaining > 0 {
			sum.ReceivableCents = remaining
		}
	}

	return sum, nil
}

// TenantSummary is the tenant-wide cash position used by the financial
// dashboard.
type TenantSummary struct {
	InflowCents     int64 `json:"inflow_cents"`
	OutflowCents    int64 `json:"outflow_cents"`
	BalanceCents    int64 `json:"balance_cents"`
	OpenReceivable  int64 `json:"open_receivable_cents"`
	OpenPayable     int64 `json:"open_payable_cents"`
	SettledTitles   int64 `json:"settled_titles"`
	OpenTitlesCount int64 `json:"open_titles"`
}

func (s *FinanceService) Summary(ctx context.Context, tenantID uint) (*TenantSummary, error) {
	out := &TenantSummary{}
	err := s.db.WithContext(ctx).Model(&models.CashLedgerEntry{}).
		Select("COALESCE(SUM(amount_cents),0)").
		Where("empresa_id = ? AND kind = ? AND ativo = ?", tenantID, models.LedgerIn, true).
		Scan(&out.InflowCents).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	err = s.db.WithContext(ctx).Model(&models.CashLedgerEntry{}).
		Select("COALESCE(SUM(amount_cents),0)").
		Where("empresa_id = ? AND kind = ? AND ativo = ?", tenantID, models.LedgerOut, true).
		Scan(&out.OutflowCents).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out.BalanceCents = out.InflowCents - out.OutflowCents

	err = s.db.WithContext(ctx).Model(&models.Installment{}).
		Select("COALESCE(SUM(amount_cents),0)").
		Where("empresa_id = ? AND status = ?", tenantID, models.InstallmentOpen).
		Scan(&out.OpenReceivable).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	err = s.db.WithContext(ctx).Model(&models.Payable{}).
		Select("COALESCE(SUM(amount_cents),0)").
		Where("empresa_id = ? AND status = ?", tenantID, models.InstallmentOpen).
		Scan(&out.OpenPayable).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	err = s.db.WithContext(ctx).Model(&models.ReceivableTitle{}).
		Where("empresa_id = ? AND status = ?", tenantID, models.TitleSettled).
		Count(&out.SettledTitles).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	err = s.db.WithContext(ctx).Model(&models.ReceivableTitle{}).
		Where("empresa_id = ? AND status = ?", tenantID, models.TitleOpen).
		Count(&out.OpenTitlesCount).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}
