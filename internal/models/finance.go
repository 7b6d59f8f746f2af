package models

import "time"

// CashLedgerEntry (caixa) is the unified record of money in/out. Rows synced
// from other subsystems carry a Reference used as idempotency key; at most
// one active row exists per reference. Retired rows are deactivated, never
// deleted, to keep the audit trail.
type CashLedgerEntry struct {
	ID          uint   `gorm:"primaryKey"`
	EmpresaID   uint   `gorm:"not null;index"`
	EventID     *uint  `gorm:"index"`
	Kind        string `gorm:"not null;index"` // in, out
	Category    string `gorm:"not null;index"` // staffing, receipt, manual, ...
	Date        time.Time
	AmountCents int64  `gorm:"not null"`
	Description string
	Reference   string `gorm:"index"` // e.g. staffing:<eventId>:<roleId>, payment:<installmentId>
	Ativo       bool   `gorm:"not null;default:true;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	LedgerIn  = "in"
	LedgerOut = "out"

	LedgerCategoryStaffing = "staffing"
	LedgerCategoryReceipt  = "receipt"
	LedgerCategoryManual   = "manual"
)

// ReceivableTitle (A/R) groups installments; sum of installment cents must
// equal TotalCents. Settled iff every active installment is paid.
type ReceivableTitle struct {
	ID           uint `gorm:"primaryKey"`
	EmpresaID    uint `gorm:"not null;index"`
	EventID      uint `gorm:"not null;index"`
	Description  string
	TotalCents   int64  `gorm:"not null"`
	Status       string `gorm:"not null;default:'open';index"` // open, settled
	Installments []Installment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Installment struct {
	ID                uint      `gorm:"primaryKey"`
	EmpresaID         uint      `gorm:"not null;index"`
	ReceivableTitleID uint      `gorm:"not null;index"`
	Number            int       `gorm:"not null"`
	AmountCents       int64     `gorm:"not null"`
	DueDate           time.Time `gorm:"index"`
	Status            string    `gorm:"not null;default:'open';index"` // open, paid, cancelled
	PaidAt            *time.Time
	PaymentMethod     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const (
	InstallmentOpen      = "open"
	InstallmentPaid      = "paid"
	InstallmentCancelled = "cancelled"

	TitleOpen    = "open"
	TitleSettled = "settled"
)

// Payable (A/P): simple due-date/amount/status record tied to an event.
type Payable struct {
	ID          uint  `gorm:"primaryKey"`
	EmpresaID   uint  `gorm:"not null;index"`
	EventID     *uint `gorm:"index"`
	Description string
	AmountCents int64     `gorm:"not null"`
	DueDate     time.Time `gorm:"index"`
	Status      string    `gorm:"not null;default:'open';index"` // open, paid, cancelled
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
