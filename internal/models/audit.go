package models

import "time"

// Audit logging: best-effort record of who-did-what-to-what.
type AuditLog struct {
	ID        uint   `gorm:"primaryKey"`
	EmpresaID uint   `gorm:"not null;index"`
	UserID    uint   `gorm:"index"`
	UserRole  string
	Module    string `gorm:"not null"`
	Action    string `gorm:"not null"`
	Entity    string
	EntityID  uint
	Route     string
	Method    string
	IP        string
	UserAgent string
	CreatedAt time.Time
}
