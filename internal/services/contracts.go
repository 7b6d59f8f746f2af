package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/models"
)

// ContractService manages contract headers, their immutable versions and
// single-use acceptance tokens.
type ContractService struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewContractService(db *gorm.DB, log *slog.Logger) *ContractService {
	return &ContractService{db: db, log: log}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func newAcceptanceToken() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Create builds a contract header plus its first version in one
// transaction, snapshotting the proposal content when one is given.
func (s *ContractService) Create(ctx context.Context, tenantID, eventID uint, proposalID *uint, content string) (*models.Contract, *models.ContractVersion, error) {
	var event models.Event
	err := s.db.WithContext(ctx).
		Where("empresa_id = ?", tenantID).
		First(&event, eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("evento")
		}
		return nil, nil, apperr.Internal(err)
	}

	if proposalID != nil {
		var proposal models.Proposal
		err := s.db.WithContext(ctx).
			Where("empresa_id = ? AND event_id = ?", tenantID, eventID).
			First(&proposal, *proposalID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, apperr.NotFound("proposta")
			}
			return nil, nil, apperr.Internal(err)
		}
		if proposal.Status != models.ProposalAccepted {
			return nil, nil, apperr.InvalidState("proposta ainda não aceita")
		}
		if content == "" {
			content = proposal.Content
		}
	}
	if content == "" {
		return nil, nil, apperr.Validation("conteúdo do contrato é obrigatório")
	}

	contract := models.Contract{
		EmpresaID:  tenantID,
		EventID:    eventID,
		ProposalID: proposalID,
		Number:     event.ContractNumber,
		Status:     models.ContractDraft,
	}
	version := models.ContractVersion{
		EmpresaID:   tenantID,
		Version:     1,
		Content:     content,
		ContentHash: contentHash(content),
		Status:      models.ContractDraft,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&contract).Error; err != nil {
			return err
		}
		version.ContractID = contract.ID
		return tx.Create(&version).Error
	})
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	return &contract, &version, nil
}

// AddVersion snapshots new content as the next immutable version.
func (s *ContractService) AddVersion(ctx context.Context, tenantID, contractID uint, content string) (*models.ContractVersion, error) {
	if content == "" {
		return nil, apperr.Validation("conteúdo da versão é obrigatório")
	}
	var contract models.Contract
	err := s.db.WithContext(ctx).
		Where("empresa_id = ?", tenantID).
		First(&contract, contractID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("contrato")
		}
		return nil, apperr.Internal(err)
	}
	if contract.Status == models.ContractAccepted {
		return nil, apperr.InvalidState("contrato já aceito")
	}

	var version models.ContractVersion
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		row := tx.Model(&models.ContractVersion{}).
			Select("COALESCE(MAX(version),0)").
			Where("empresa_id = ? AND contract_id = ?", tenantID, contractID)
		if err := row.Scan(&last).Error; err != nil {
			return err
		}
		version = models.ContractVersion{
			EmpresaID:   tenantID,
			ContractID:  contractID,
			Version:     last + 1,
			Content:     content,
			ContentHash: contentHash(content),
			Status:      models.ContractDraft,
		}
		return tx.Create(&version).Error
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &version, nil
}

// IssueToken creates a single-use acceptance token for the latest version
// and marks the contract sent.
func (s *ContractService) IssueToken(ctx context.Context, tenantID, contractID uint) (*models.AcceptanceToken, error) {
	var contract models.Contract
	err := s.db.WithContext(ctx).
		Where("empresa_id = ?", tenantID).
		First(&contract, contractID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("contrato")
		}
		return nil, apperr.Internal(err)
	}
	if contract.Status == models.ContractAccepted {
		return nil, apperr.InvalidState("contrato já aceito")
	}

	var version models.ContractVersion
	err = s.db.WithContext(ctx).
		Where("empresa_id = ? AND contract_id = ?", tenantID, contractID).
		Order("version desc").
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.InvalidState("contrato sem versões")
		}
		return nil, apperr.Internal(err)
	}

	token := models.AcceptanceToken{
		EmpresaID:  tenantID,
		ContractID: contractID,
		VersionID:  version.ID,
		Token:      newAcceptanceToken(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&token).Error; err != nil {
			return err
		}
		return tx.Model(&models.Contract{}).
			Where("id = ?", contractID).
			Update("status", models.ContractSent).Error
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &token, nil
}

// AcceptResult distinguishes a fresh acceptance from a repeat attempt.
type AcceptResult struct {
	Contract        models.Contract `json:"contract"`
	AlreadyAccepted bool            `json:"already_accepted"`
}

// Accept consumes an acceptance token. The token works exactly once: a
// second attempt returns AlreadyAccepted without mutating anything. This
// path trusts the token alone, no session required.
func (s *ContractService) Accept(ctx context.Context, token, clientIP string) (*AcceptResult, error) {
	var result AcceptResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var at models.AcceptanceToken
		err := tx.Where("token = ?", token).First(&at).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("token")
			}
			return err
		}

		var contract models.Contract
		if err := tx.First(&contract, at.ContractID).Error; err != nil {
			return err
		}

		if at.ConsumedAt != nil {
			result = AcceptResult{Contract: contract, AlreadyAccepted: true}
			return nil
		}

		now := time.Now()
		if err := tx.Model(&models.AcceptanceToken{}).
			Where("id = ? AND consumed_at IS NULL", at.ID).
			Updates(map[string]any{"consumed_at": &now, "accepted_ip": clientIP}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Contract{}).
			Where("id = ?", contract.ID).
			Update("status", models.ContractAccepted).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ContractVersion{}).
			Where("id = ?", at.VersionID).
			Update("status", models.ContractAccepted).Error; err != nil {
			return err
		}
		contract.Status = models.ContractAccepted
		result = AcceptResult{Contract: contract}
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

// TokenPreview returns the contract version a token points at, for the
// public acceptance page. Consumed tokens still render, flagged as such.
func (s *ContractService) TokenPreview(ctx context.Context, token string) (*models.ContractVersion, bool, error) {
	var at models.AcceptanceToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&at).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperr.NotFound("token")
		}
		return nil, false, apperr.Internal(err)
	}
	var version models.ContractVersion
	if err := s.db.WithContext(ctx).First(&version, at.VersionID).Error; err != nil {
		return nil, false, apperr.Internal(err)
	}
	return &version, at.ConsumedAt != nil, nil
}
