package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/festahub/backoffice/internal/models"
)

func TestSplitHalfSumsExactly(t *testing.T) {
	for _, total := range []int64{1, 2, 99, 100, 10000, 333333, 1000001} {
		first, second := SplitHalf(total)
		require.Equal(t, total, first+second, "total=%d", total)
		require.LessOrEqual(t, first, second)
	}
}

func TestSplitHalfHundredReais(t *testing.T) {
	first, second := SplitHalf(10000)
	require.Equal(t, int64(5000), first)
	require.Equal(t, int64(5000), second)
}

func TestGenerateDefaultUsesEventDate(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFinanceService(conn, testLogger(), 7)

	event := createEvent(t, conn, 1, 50, 0, 10000)
	title, err := svc.GenerateDefault(context.Background(), 1, event.ID, event.TotalCents, "Parcelamento")
	require.NoError(t, err)
	require.Len(t, title.Installments, 2)
	require.Equal(t, int64(5000), title.Installments[0].AmountCents)
	require.Equal(t, int64(5000), title.Installments[1].AmountCents)

	var stored models.Event
	require.NoError(t, conn.First(&stored, event.ID).Error)
	wantSecond := truncateDay(*stored.Data).AddDate(0, 0, -7)
	require.True(t, title.Installments[1].DueDate.Equal(wantSecond),
		"second due %v, want %v", title.Installments[1].DueDate, wantSecond)
}

func TestGenerateDefaultWithoutEventDate(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFinanceService(conn, testLogger(), 7)

	event := createEvent(t, conn, 1, 50, 0, 10000)
	require.NoError(t, conn.Model(&models.Event{}).
		Where("id = ?", event.ID).Update("data", nil).Error)

	title, err := svc.GenerateDefault(context.Background(), 1, event.ID, event.TotalCents, "Parcelamento")
	require.NoError(t, err)
	require.Len(t, title.Installments, 2)

	// First installment is due today even when the event has no date; the
	// second falls back to 30 days out.
	today := truncateDay(time.Now())
	require.True(t, title.Installments[0].DueDate.Equal(today),
		"first due %v, want today %v", title.Installments[0].DueDate, today)
	require.True(t, title.Installments[1].DueDate.Equal(today.AddDate(0, 0, 30)),
		"second due %v, want %v", title.Installments[1].DueDate, today.AddDate(0, 0, 30))
}

func TestGenerateDefaultRejectsNonPositiveTotal(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFinanceService(conn, testLogger(), 7)
	event := createEvent(t, conn, 1, 50, 0, 0)

	_, err := svc.GenerateDefault(context.Background(), 1, event.ID, 0, "x")
	require.Error(t, err)
}

func TestCreateWithInstallmentsRejectsSumMismatch(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFinanceService(conn, testLogger(), 7)
	event := createEvent(t, conn, 1, 50, 0, 0)

	_, err := svc.CreateWithInstallments(context.Background(), 1, event.ID, 10000, "x", []InstallmentInput{
		{AmountCents: 5000, DueDate: time.Now()},
		{AmountCents: 4999, DueDate: time.Now()},
	})
	require.Error(t, err)

	// Nothing persisted after the rejection.
	var count int64
	require.NoError(t, conn.Model(&models.ReceivableTitle{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateWithInstallmentsOddCents(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFinanceService(conn, testLogger(), 7)
	event := createEvent(t, conn, 1, 50, 0, 0)

	first, second := SplitHalf(10001)
	title, err := svc.CreateWithInstallments(context.Background(), 1, event.ID, 10001, "x", []InstallmentInput{
		{AmountCents: first, DueDate: time.Now()},
		{AmountCents: second, DueDate: time.Now()},
	})
	require.NoError(t, err)
	require.Equal(t, int64(10001), title.Installments[0].AmountCents+title.Installments[1].AmountCents)
}

func TestPayInstallmentBooksLedgerInflow(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFinanceService(conn, testLogger(), 7)
	ctx := context.Background()

	event := createEvent(t, conn, 1, 50, 0, 10000)
	title, err := svc.GenerateDefault(ctx, 1, event.ID, 10000, "Parcelamento")
	require.NoError(t, err)
	inst := title.Installments[0]

	paid, err := svc.SetInstallmentStatus(ctx, 1, inst.ID, models.InstallmentPaid, "pix")
	require.NoError(t, err)
	require.Equal(t, models.InstallmentPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	require.Equal(t, "pix", paid.PaymentMethod)

	var entry models.CashLedgerEntry
	require.NoError(t, conn.Where("reference = ? AND ativo = ?", PaymentReference(inst.ID), true).
		First(&entry).Error)
	require.Equal(t, models.LedgerIn, entry.Kind)
	require.Equal(t, models.LedgerCategoryReceipt, entry.Category)
	require.Equal(t, inst.AmountCents, entry.AmountCents)

	// Paying again is idempotent on the ledger.
	_, err = svc.SetInstallmentStatus(ctx, 1, inst.ID, models.InstallmentPaid, "pix")
	require.NoError(t, err)
	var active int64
	require.NoError(t, conn.Model(&models.CashLedgerEntry{}).
		Where("reference = ? AND ativo = ?", PaymentReference(inst.ID), true).
		Count(&active).Error)
	require.Equal(t, int64(1), active)
}

func TestUnpayInstallmentRetiresLedgerEntry(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFinanceService(conn, testLogger(), 7)
	ctx := context.Background()

	event := createEvent(t, conn, 1, 50, 0, 10000)
	title, err := svc.GenerateDefault(ctx, 1, event.ID, 10000, "Parcelamento")
	require.NoError(t, err)
	inst := title.Installments[0]

	_, err = svc.SetInstallmentStatus(ctx, 1, inst.ID, models.InstallmentPaid, "pix")
	require.NoError(t, err)
	reverted, err := svc.SetInstallmentStatus(ctx, 1, inst.ID, models.InstallmentOpen, "")
	require.NoError(t, err)
	require.Nil(t, reverted.PaidAt)

	var active int64
	require.NoError(t, conn.Model(&models.CashLedgerEntry{}).
		Where("reference = ? AND ativo = ?", PaymentReference(inst.ID), true).
		Count(&active).Error)
	require.Zero(t, active)
}

func TestTitleSettledOnlyWhenAllPaid(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFinanceService(conn, testLogger(), 7)
	ctx := context.Background()

	event := createEvent(t, conn, 1, 50, 0, 10000)
	title, err := svc.GenerateDefault(ctx, 1, event.ID, 10000, "Parcelamento")
	require.NoError(t, err)

	_, err = svc.SetInstallmentStatus(ctx, 1, title.Installments[0].ID, models.InstallmentPaid, "pix")
	require.NoError(t, err)
	var reloaded models.ReceivableTitle
	require.NoError(t, conn.First(&reloaded, title.ID).Error)
	require.Equal(t, models.TitleOpen, reloaded.Status)

	_, err = svc.SetInstallmentStatus(ctx, 1, title.Installments[1].ID, models.InstallmentPaid, "pix")
	require.NoError(t, err)
	require.NoError(t, conn.First(&reloaded, title.ID).Error)
	require.Equal(t, models.TitleSettled, reloaded.Status)

	// Reverting one reopens the title.
	_, err = svc.SetInstallmentStatus(ctx, 1, title.Installments[0].ID, models.InstallmentOpen, "")
	require.NoError(t, err)
	require.NoError(t, conn.First(&reloaded, title.ID).Error)
	require.Equal(t, models.TitleOpen, reloaded.Status)
}

func TestSetInstallmentStatusIsTenantScoped(t *testing.T) {
	conn := newTestDB(t)
	svc := NewFinanceService(conn, testLogger(), 7)
	ctx := context.Background()

	event := createEvent(t, conn, 1, 50, 0, 10000)
	title, err := svc.GenerateDefault(ctx, 1, event.ID, 10000, "Parcelamento")
	require.NoError(t, err)

	_, err = svc.SetInstallmentStatus(ctx, 2, title.Installments[0].ID, models.InstallmentPaid, "pix")
	require.Error(t, err)
}
