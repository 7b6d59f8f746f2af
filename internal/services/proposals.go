package services

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/models"
)

// ProposalService owns proposal versioning and the monotonic status machine
// draft -> sent -> {accepted, rejected}.
type ProposalService struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewProposalService(db *gorm.DB, log *slog.Logger) *ProposalService {
	return &ProposalService{db: db, log: log}
}

// allowedTransitions lists the only legal forward moves. Everything else is
// INVALID_STATE.
var allowedTransitions = map[string][]string{
	models.ProposalDraft: {models.ProposalSent},
	models.ProposalSent:  {models.ProposalAccepted, models.ProposalRejected},
}

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Create snapshots commercial terms as the next proposal version of the
// event (auto-incrementing integer per event).
func (s *ProposalService) Create(ctx context.Context, tenantID, eventID uint, totalCents int64, content string) (*models.Proposal, error) {
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

	var proposal models.Proposal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		q := tx.Model(&models.Proposal{}).
			Select("COALESCE(MAX(version),0)").
			Where("empresa_id = ? AND event_id = ?", tenantID, eventID)
		if err := q.Scan(&last).Error; err != nil {
			return err
		}
		proposal = models.Proposal{
			EmpresaID:  tenantID,
			EventID:    eventID,
			Version:    last + 1,
			Status:     models.ProposalDraft,
			TotalCents: totalCents,
			Content:    content,
		}
		return tx.Create(&proposal).Error
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &proposal, nil
}

// Transition moves a proposal along the status machine. No backward moves,
// no skipping sent.
func (s *ProposalService) Transition(ctx context.Context, tenantID, proposalID uint, to string) (*models.Proposal, error) {
	switch to {
	case models.ProposalSent, models.ProposalAccepted, models.ProposalRejected:
	default:
		return nil, apperr.Validation("status de proposta inválido: " + to)
	}

	var proposal models.Proposal
	err := s.db.WithContext(ctx).
		Where("empresa_id = ?", tenantID).
		First(&proposal, proposalID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("proposta")
		}
		return nil, apperr.Internal(err)
	}

	if !transitionAllowed(proposal.Status, to) {
		return nil, apperr.InvalidState("transição " + proposal.Status + " -> " + to + " não permitida")
	}
	if err := s.db.WithContext(ctx).Model(&models.Proposal{}).
		Where("id = ?", proposal.ID).
		Update("status", to).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	proposal.Status = to
	return &proposal, nil
}

// ListByEvent returns every proposal version of one event, newest first.
func (s *ProposalService) ListByEvent(ctx context.Context, tenantID, eventID uint) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := s.db.WithContext(ctx).
		Where("empresa_id = ? AND event_id = ?", tenantID, eventID).
		Order("version desc").
		Find(&proposals).Error
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return proposals, nil
}
