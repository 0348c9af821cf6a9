package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/models"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

func (f *fixture) payouts() *PayoutService {
	return NewPayoutService(memUsers{f.store}, memWallets{f.store}, memPayouts{f.store}, f.notifier, f.billing)
}

func TestPayoutService_CreatePayoutRequest(t *testing.T) {
	f := newFixture()
	freelancer := f.store.addUser(models.RoleFreelancer, models.PlanFree)
	f.store.setBalance(freelancer.ID, 245)

	req, err := f.payouts().CreatePayoutRequest(context.Background(), freelancer.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPending, req.Status)
	assert.Equal(t, 100.0, req.Amount)
	assert.Equal(t, 2.5, req.Fee)
	assert.Equal(t, 145.0, f.store.balance(freelancer.ID))

	txs := f.store.txsFor(freelancer.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TransactionTypeWithdrawal, txs[0].Type)
	assert.Equal(t, 100.0, txs[0].Amount)
	assert.Equal(t, models.TransactionTypeFee, txs[1].Type)
	assert.Equal(t, 2.5, txs[1].Amount)
	require.NotNil(t, txs[0].PayoutRequestID)
	assert.Equal(t, req.ID, *txs[0].PayoutRequestID)
}

func TestPayoutService_CreatePayoutRequest_WholeBalance(t *testing.T) {
	f := newFixture()
	freelancer := f.store.addUser(models.RoleFreelancer, models.PlanFree)
	f.store.setBalance(freelancer.ID, 145)

	_, err := f.payouts().CreatePayoutRequest(context.Background(), freelancer.ID, 145)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f.store.balance(freelancer.ID))
}

func TestPayoutService_CreatePayoutRequest_Rejections(t *testing.T) {
	f := newFixture()
	freelancer := f.store.addUser(models.RoleFreelancer, models.PlanFree)
	noWallet := f.store.addUser(models.RoleFreelancer, models.PlanFree)
	f.store.setBalance(freelancer.ID, 50)
	svc := f.payouts()
	ctx := context.Background()

	_, err := svc.CreatePayoutRequest(ctx, freelancer.ID, 0)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreatePayoutRequest(ctx, freelancer.ID, 50.01)
	assert.True(t, apperror.IsInvalidState(err))

	_, err = svc.CreatePayoutRequest(ctx, noWallet.ID, 10)
	assert.True(t, apperror.IsNotFound(err))

	assert.Equal(t, 50.0, f.store.balance(freelancer.ID))
	assert.Empty(t, f.store.txsFor(freelancer.ID))
}

func TestPayoutService_ProcessPayout(t *testing.T) {
	f := newFixture()
	freelancer := f.store.addUser(models.RoleFreelancer, models.PlanFree)
	admin := f.store.addUser(models.RoleAdmin, models.PlanFree)
	f.store.setBalance(freelancer.ID, 200)
	svc := f.payouts()
	ctx := context.Background()

	req, err := svc.CreatePayoutRequest(ctx, freelancer.ID, 120)
	require.NoError(t, err)

	_, err = svc.ProcessPayout(ctx, req.ID, freelancer.ID)
	assert.True(t, apperror.IsForbidden(err))

	processed, err := svc.ProcessPayout(ctx, req.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusProcessed, processed.Status)
	assert.NotNil(t, processed.ProcessedAt)
	assert.Len(t, f.notifier.pushesTo(freelancer.ID), 1)

	_, err = svc.ProcessPayout(ctx, req.ID, admin.ID)
	assert.True(t, apperror.IsInvalidState(err))

	_, err = svc.ProcessPayout(ctx, uuid.New(), admin.ID)
	assert.True(t, apperror.IsNotFound(err))

	assert.Equal(t, 80.0, f.store.balance(freelancer.ID))

	list, err := svc.ListMyPayouts(ctx, freelancer.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
