package models

import "time"

// Lead, client and event chain. A lead converts (once) into a client and an
// event; the conversion closes the lead.
type Lead struct {
	ID         uint   `gorm:"primaryKey"`
	EmpresaID  uint   `gorm:"not null;index"`
	Nome       string `gorm:"not null"`
	Email      string `gorm:"index"`
	Telefone   string
	TipoFesta  string
	DataFesta  *time.Time
	Convidados int
	Origem     string
	Status     string `gorm:"not null;default:'new';index"` // new, contacted, closed, lost
	ClientID   *uint  `gorm:"index"`                        // set when linked/converted
	Notas      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusClosed    = "closed"
	LeadStatusLost      = "lost"
)

type Client struct {
	ID        uint   `gorm:"primaryKey"`
	EmpresaID uint   `gorm:"not null;index"`
	Nome      string `gorm:"not null;index"`
	Email     string `gorm:"index"`
	Telefone  string
	Documento string `gorm:"index"` // CPF/CNPJ
	Endereco  string
	Ativo     bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event (festa). Monetary values in integer cents.
type Event struct {
	ID             uint   `gorm:"primaryKey"`
	EmpresaID      uint   `gorm:"not null;index"`
	ClientID       uint   `gorm:"not null;index"`
	Titulo         string `gorm:"not null"`
	Local          string
	Data           *time.Time `gorm:"index"`
	Convidados     int
	Criancas       int
	TotalCents     int64
	Status         string `gorm:"not null;default:'quote';index"`
	PaymentMethod  string
	ContractNumber string `gorm:"index"` // auto-generated PREFIX-YEAR-00001 when absent
	Notas          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const (
	EventStatusQuote        = "quote"
	EventStatusConfirmed    = "confirmed"
	EventStatusClosed       = "closed"
	EventStatusInProduction = "in-production"
	EventStatusDone         = "done"
	EventStatusFinished     = "finished"
	EventStatusCancelled    = "cancelled"
)

// ValidEventStatus reports whether s is one of the closed status set.
func ValidEventStatus(s string) bool {
	switch s {
	case EventStatusQuote, EventStatusConfirmed, EventStatusClosed,
		EventStatusInProduction, EventStatusDone, EventStatusFinished,
		EventStatusCancelled:
		return true
	}
	return false
}
