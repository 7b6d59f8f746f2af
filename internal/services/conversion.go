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

// ConversionService turns a lead into a client plus an event in one
// irreversible, atomic transition.
type ConversionService struct {
	db             *gorm.DB
	log            *slog.Logger
	contractPrefix string
}

func NewConversionService(db *gorm.DB, log *slog.Logger, contractPrefix string) *ConversionService {
	if contractPrefix == "" {
		contractPrefix = "CT"
	}
	return &ConversionService{db: db, log: log, contractPrefix: contractPrefix}
}

// ConversionResult reports the rows created/reused by a conversion.
type ConversionResult struct {
	Lead   models.Lead   `json:"lead"`
	Client models.Client `json:"client"`
	Event  models.Event  `json:"event"`
	// ClientReused is true when the lead was already linked to a client.
	ClientReused bool `json:"client_reused"`
}

// ContractNumber formats the auto-generated contract number
// PREFIX-YEAR-00001, zero-padded from the event's own id.
func ContractNumber(prefix string, year int, eventID uint) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, eventID)
}

// Convert closes the lead and atomically creates the dependent client (or
// reuses a linked one) and event. A second conversion attempt returns
// CONFLICT without touching anything.
func (s *ConversionService) Convert(ctx context.Context, tenantID, leadID uint) (*ConversionResult, error) {
	var result ConversionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		err := tx.Where("empresa_id = ?", tenantID).First(&lead, leadID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("lead")
			}
			return err
		}
		if lead.Status == models.LeadStatusClosed {
			return apperr.Conflict("lead já convertido")
		}

		var client models.Client
		reused := false
		if lead.ClientID != nil {
			err = tx.Where("empresa_id = ?", tenantID).First(&client, *lead.ClientID).Error
			if err == nil {
				reused = true
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		if !reused {
			client = models.Client{
				EmpresaID: tenantID,
				Nome:      lead.Nome,
				Email:     lead.Email,
				Telefone:  lead.Telefone,
				Ativo:     true,
			}
			if err := tx.Create(&client).Error; err != nil {
				return err
			}
		}

		event := models.Event{
			EmpresaID:  tenantID,
			ClientID:   client.ID,
			Titulo:     eventTitle(lead),
			Data:       lead.DataFesta,
			Convidados: lead.Convidados,
			Status:     models.EventStatusQuote,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		// Contract number derives from the event's own id, so it is filled
		// right after the insert.
		year := time.Now().Year()
		if event.Data != nil {
			year = event.Data.Year()
		}
		event.ContractNumber = ContractNumber(s.contractPrefix, year, event.ID)
		if err := tx.Model(&models.Event{}).
			Where("id = ?", event.ID).
			Update("contract_number", event.ContractNumber).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Lead{}).
			Where("id = ?", lead.ID).
			Updates(map[string]any{
				"status":    models.LeadStatusClosed,
				"client_id": client.ID,
			}).Error; err != nil {
			return err
		}
		lead.Status = models.LeadStatusClosed
		lead.ClientID = &client.ID

		result = ConversionResult{Lead: lead, Client: client, Event: event, ClientReused: reused}
		return nil
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, apperr.Internal(err)
	}
	return &result, nil
}

func eventTitle(lead models.Lead) string {
	if lead.TipoFesta != "" {
		return lead.TipoFesta + " - " + lead.Nome
	}
	return "Festa - " + lead.Nome
}
