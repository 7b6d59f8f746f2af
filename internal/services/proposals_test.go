package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/models"
)

func TestProposalVersionsIncrementPerEvent(t *testing.T) {
	conn := newTestDB(t)
	svc := NewProposalService(conn, testLogger())
	ctx := context.Background()

	eventA := createEvent(t, conn, 1, 50, 0, 0)
	eventB := createEvent(t, conn, 1, 50, 0, 0)

	p1, err := svc.Create(ctx, 1, eventA.ID, 500000, "v1")
	require.NoError(t, err)
	p2, err := svc.Create(ctx, 1, eventA.ID, 550000, "v2")
	require.NoError(t, err)
	other, err := svc.Create(ctx, 1, eventB.ID, 100000, "b1")
	require.NoError(t, err)

	require.Equal(t, 1, p1.Version)
	require.Equal(t, 2, p2.Version)
	require.Equal(t, 1, other.Version)
	require.Equal(t, models.ProposalDraft, p1.Status)
}

func TestProposalTransitions(t *testing.T) {
	conn := newTestDB(t)
	svc := NewProposalService(conn, testLogger())
	ctx := context.Background()

	event := createEvent(t, conn, 1, 50, 0, 0)
	proposal, err := svc.Create(ctx, 1, event.ID, 500000, "v1")
	require.NoError(t, err)

	// draft -> accepted skips sent.
	_, err = svc.Transition(ctx, 1, proposal.ID, models.ProposalAccepted)
	require.Equal(t, apperr.CodeInvalidState, apperr.From(err).Code)

	sent, err := svc.Transition(ctx, 1, proposal.ID, models.ProposalSent)
	require.NoError(t, err)
	require.Equal(t, models.ProposalSent, sent.Status)

	accepted, err := svc.Transition(ctx, 1, proposal.ID, models.ProposalAccepted)
	require.NoError(t, err)
	require.Equal(t, models.ProposalAccepted, accepted.Status)

	// Terminal: nothing moves out of accepted.
	_, err = svc.Transition(ctx, 1, proposal.ID, models.ProposalRejected)
	require.Equal(t, apperr.CodeInvalidState, apperr.From(err).Code)
	_, err = svc.Transition(ctx, 1, proposal.ID, models.ProposalSent)
	require.Equal(t, apperr.CodeInvalidState, apperr.From(err).Code)
}

func TestProposalTransitionRejectsUnknownStatus(t *testing.T) {
	conn := newTestDB(t)
	svc := NewProposalService(conn, testLogger())

	event := createEvent(t, conn, 1, 50, 0, 0)
	proposal, err := svc.Create(context.Background(), 1, event.ID, 500000, "v1")
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), 1, proposal.ID, "archived")
	require.Equal(t, apperr.CodeValidation, apperr.From(err).Code)
}

func TestListByEventNewestFirst(t *testing.T) {
	conn := newTestDB(t)
	svc := NewProposalService(conn, testLogger())
	ctx := context.Background()

	event := createEvent(t, conn, 1, 50, 0, 0)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, 1, event.ID, 100000, "versão")
		require.NoError(t, err)
	}
	proposals, err := svc.ListByEvent(ctx, 1, event.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 3)
	require.Equal(t, 3, proposals[0].Version)
	require.Equal(t, 1, proposals[2].Version)
}
