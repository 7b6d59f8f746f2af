package models

import "time"

// Empresa is the tenant. Every business row carries its id; nothing is
// shared across empresas.
type Empresa struct {
	ID        uint   `gorm:"primaryKey"`
	Nome      string `gorm:"not null"`
	Ativo     bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User & RBAC models
type User struct {
	ID        uint   `gorm:"primaryKey"`
	EmpresaID uint   `gorm:"not null;index"`
	Email     string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"` // bcrypt hash
	Nome      string `gorm:"index"`
	Role      string `gorm:"not null;default:'user';index"` // "admin" bypasses the matrix
	Ativo     bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RolePermission is one cell of the (tenant, role, module, action) matrix.
// Absence of a row means denied. The admin role is never stored here.
type RolePermission struct {
	ID        uint   `gorm:"primaryKey"`
	EmpresaID uint   `gorm:"not null;uniqueIndex:idx_perm_cell"`
	Role      string `gorm:"not null;uniqueIndex:idx_perm_cell"`
	Module    string `gorm:"not null;uniqueIndex:idx_perm_cell"`
	Action    string `gorm:"not null;uniqueIndex:idx_perm_cell"`
	Allowed   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
