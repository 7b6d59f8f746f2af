package models

import "time"

// StaffingRole (cargo) defines how many staff of a kind an event needs.
type StaffingRole struct {
	ID               uint   `gorm:"primaryKey"`
	EmpresaID        uint   `gorm:"not null;index"`
	Nome             string `gorm:"not null"`
	CalcMode         string `gorm:"not null;default:'FIXED'"` // FIXED, PER_GUEST, PER_CHILD
	Divisor          int    `gorm:"not null;default:1"`
	Minimum          int    `gorm:"not null;default:0"`
	RoundMode        string `gorm:"not null;default:'CEIL'"` // CEIL, FLOOR, ROUND
	DefaultCostCents int64  `gorm:"not null;default:0"`
	DisplayOrder     int    `gorm:"not null;default:0"`
	// No column default: gorm omits zero-value fields that carry one on
	// Create, which would silently store an inactive role as active.
	Ativo     bool `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	CalcModeFixed    = "FIXED"
	CalcModePerGuest = "PER_GUEST"
	CalcModePerChild = "PER_CHILD"

	RoundCeil  = "CEIL"
	RoundFloor = "FLOOR"
	RoundHalf  = "ROUND"
)

// EventStaffing is the per-event materialization of a staffing role.
// AutoComputed rows are fully replaced on every recompute; manual rows are
// never touched by it.
type EventStaffing struct {
	ID            uint   `gorm:"primaryKey"`
	EmpresaID     uint   `gorm:"not null;index"`
	EventID       uint   `gorm:"not null;index"`
	RoleID        uint   `gorm:"not null;index"`
	RoleName      string `gorm:"not null"`
	Quantity      int    `gorm:"not null"`
	UnitCostCents int64  `gorm:"not null;default:0"`
	TotalCents    int64  `gorm:"not null;default:0"`
	AutoComputed  bool   `gorm:"not null;default:false;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
