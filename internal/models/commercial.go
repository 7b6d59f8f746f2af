package models

import "time"

// Proposal is a versioned snapshot of commercial terms for an event.
// Version auto-increments per event; status only moves forward:
// draft -> sent -> {accepted, rejected}.
type Proposal struct {
	ID         uint   `gorm:"primaryKey"`
	EmpresaID  uint   `gorm:"not null;index"`
	EventID    uint   `gorm:"not null;index"`
	Version    int    `gorm:"not null"`
	Status     string `gorm:"not null;default:'draft';index"`
	TotalCents int64  `gorm:"not null;default:0"`
	Content    string // serialized commercial terms
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

const (
	ProposalDraft    = "draft"
	ProposalSent     = "sent"
	ProposalAccepted = "accepted"
	ProposalRejected = "rejected"
)

// Contract has one mutable header and N immutable, content-hashed versions.
type Contract struct {
	ID         uint   `gorm:"primaryKey"`
	EmpresaID  uint   `gorm:"not null;index"`
	EventID    uint   `gorm:"not null;index"`
	ProposalID *uint  `gorm:"index"`
	Number     string `gorm:"index"`
	Status     string `gorm:"not null;default:'draft';index"` // draft, sent, accepted, cancelled
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

const (
	ContractDraft     = "draft"
	ContractSent      = "sent"
	ContractAccepted  = "accepted"
	ContractCancelled = "cancelled"
)

// ContractVersion is an immutable snapshot; ContentHash is the SHA-256 of
// Content at generation time.
type ContractVersion struct {
	ID          uint   `gorm:"primaryKey"`
	EmpresaID   uint   `gorm:"not null;index"`
	ContractID  uint   `gorm:"not null;index"`
	Version     int    `gorm:"not null"`
	Content     string `gorm:"not null"`
	ContentHash string `gorm:"not null"`
	Status      string `gorm:"not null;default:'draft'"`
	CreatedAt   time.Time
}

// AcceptanceToken grants contract acceptance without a session. Single use:
// ConsumedAt is set exactly once.
type AcceptanceToken struct {
	ID         uint   `gorm:"primaryKey"`
	EmpresaID  uint   `gorm:"not null;index"`
	ContractID uint   `gorm:"not null;index"`
	VersionID  uint   `gorm:"not null"`
	Token      string `gorm:"uniqueIndex;not null"`
	ConsumedAt *time.Time
	AcceptedIP string
	CreatedAt  time.Time
}
