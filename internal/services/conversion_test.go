package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/models"
)

func TestContractNumberFormat(t *testing.T) {
	require.Equal(t, "CT-2026-00042", ContractNumber("CT", 2026, 42))
	require.Equal(t, "FESTA-2025-12345", ContractNumber("FESTA", 2025, 12345))
}

func TestConvertCreatesClientAndEvent(t *testing.T) {
	conn := newTestDB(t)
	svc := NewConversionService(conn, testLogger(), "CT")

	when := time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	lead := models.Lead{
		EmpresaID: 1, Nome: "Maria", Email: "maria@demo.local", Telefone: "11999990000",
		TipoFesta: "Aniversário", DataFesta: &when, Convidados: 80,
		Status: models.LeadStatusContacted,
	}
	require.NoError(t, conn.Create(&lead).Error)

	result, err := svc.Convert(context.Background(), 1, lead.ID)
	require.NoError(t, err)
	require.False(t, result.ClientReused)
	require.Equal(t, models.LeadStatusClosed, result.Lead.Status)
	require.Equal(t, "Maria", result.Client.Nome)
	require.Equal(t, result.Client.ID, result.Event.ClientID)
	require.Equal(t, 80, result.Event.Convidados)
	require.Equal(t, models.EventStatusQuote, result.Event.Status)
	require.Equal(t, fmt.Sprintf("CT-2026-%05d", result.Event.ID), result.Event.ContractNumber)

	var stored models.Lead
	require.NoError(t, conn.First(&stored, lead.ID).Error)
	require.Equal(t, models.LeadStatusClosed, stored.Status)
	require.NotNil(t, stored.ClientID)
}

func TestConvertReusesLinkedClient(t *testing.T) {
	conn := newTestDB(t)
	svc := NewConversionService(conn, testLogger(), "CT")

	client := models.Client{EmpresaID: 1, Nome: "Cliente Antigo", Ativo: true}
	require.NoError(t, conn.Create(&client).Error)
	lead := models.Lead{EmpresaID: 1, Nome: "Maria", Status: models.LeadStatusNew, ClientID: &client.ID}
	require.NoError(t, conn.Create(&lead).Error)

	result, err := svc.Convert(context.Background(), 1, lead.ID)
	require.NoError(t, err)
	require.True(t, result.ClientReused)
	require.Equal(t, client.ID, result.Client.ID)

	var count int64
	require.NoError(t, conn.Model(&models.Client{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestConvertTwiceConflicts(t *testing.T) {
	conn := newTestDB(t)
	svc := NewConversionService(conn, testLogger(), "CT")

	lead := models.Lead{EmpresaID: 1, Nome: "Maria", Status: models.LeadStatusNew}
	require.NoError(t, conn.Create(&lead).Error)

	_, err := svc.Convert(context.Background(), 1, lead.ID)
	require.NoError(t, err)

	_, err = svc.Convert(context.Background(), 1, lead.ID)
	require.Error(t, err)
	require.Equal(t, apperr.CodeConflict, apperr.From(err).Code)

	// No second event appeared.
	var events int64
	require.NoError(t, conn.Model(&models.Event{}).Count(&events).Error)
	require.Equal(t, int64(1), events)
}

func TestConvertIsTenantScoped(t *testing.T) {
	conn := newTestDB(t)
	svc := NewConversionService(conn, testLogger(), "CT")

	lead := models.Lead{EmpresaID: 1, Nome: "Maria", Status: models.LeadStatusNew}
	require.NoError(t, conn.Create(&lead).Error)

	_, err := svc.Convert(context.Background(), 2, lead.ID)
	require.Error(t, err)
	require.Equal(t, apperr.CodeNotFound, apperr.From(err).Code)
}
