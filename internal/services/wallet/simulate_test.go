package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aurumpay/goldengine/internal/entity"
	"github.com/aurumpay/goldengine/internal/storage/walletstate"
)

func newTestLedger(t *testing.T) *SimulateLedger {
	t.Helper()
	ledger, err := NewSimulateLedger(zap.NewNop(), nil, nil, 48*time.Hour)
	require.NoError(t, err)
	return ledger
}

func TestSimulateLedger_OpeningBalance(t *testing.T) {
	ledger := newTestLedger(t)

	snapshot, err := ledger.Balance(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.Confirmed.Cash.Equal(decimal.NewFromInt(10000)))
	assert.True(t, snapshot.Confirmed.Grams(entity.MetalGold).IsZero())
	assert.True(t, snapshot.PendingCash.IsZero())
}

func TestSimulateLedger_CommitBuy(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	grams := decimal.NewFromInt(1)
	payable := decimal.RequireFromString("6432.865") // rate + GST, unrounded

	snapshot, err := ledger.CommitBuy(ctx, entity.MetalGold, grams, payable, "order-1")
	require.NoError(t, err)

	assert.True(t, snapshot.Confirmed.Cash.Equal(decimal.NewFromInt(10000).Sub(payable)))
	assert.True(t, snapshot.Confirmed.Grams(entity.MetalGold).Equal(grams))
}

func TestSimulateLedger_CommitBuyInsufficientCash(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.CommitBuy(context.Background(), entity.MetalGold,
		decimal.NewFromInt(10), decimal.NewFromInt(60000), "order-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientCash))

	// wallet untouched after rejection
	snapshot, err := ledger.Balance(context.Background())
	require.NoError(t, err)
	assert.True(t, snapshot.Confirmed.Cash.Equal(decimal.NewFromInt(10000)))
	assert.True(t, snapshot.Confirmed.Grams(entity.MetalGold).IsZero())
}

func TestSimulateLedger_DuplicateOrderRejected(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.CommitBuy(ctx, entity.MetalGold, decimal.NewFromInt(1), decimal.NewFromInt(6000), "order-1")
	require.NoError(t, err)

	_, err = ledger.CommitBuy(ctx, entity.MetalGold, decimal.NewFromInt(1), decimal.NewFromInt(6000), "order-1")
	assert.True(t, errors.Is(err, ErrDuplicateOrder))
}

func TestSimulateLedger_CommitSellDefersCash(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	ledger.SetNow(func() time.Time { return now })

	_, err := ledger.CommitBuy(ctx, entity.MetalGold, decimal.NewFromInt(1), decimal.NewFromInt(6000), "buy-1")
	require.NoError(t, err)

	receipt, err := ledger.CommitSell(ctx, entity.MetalGold, decimal.NewFromInt(1), decimal.NewFromInt(6100), "sell-1")
	require.NoError(t, err)
	assert.Equal(t, base.Add(48*time.Hour), receipt.SettlesAt)
	assert.True(t, receipt.PendingCash.Equal(decimal.NewFromInt(6100)))

	// grams gone immediately, cash still pending
	snapshot, err := ledger.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.Confirmed.Grams(entity.MetalGold).IsZero())
	assert.True(t, snapshot.Confirmed.Cash.Equal(decimal.NewFromInt(4000)))
	assert.True(t, snapshot.PendingCash.Equal(decimal.NewFromInt(6100)))

	// one minute before settlement nothing changes
	now = base.Add(48*time.Hour - time.Minute)
	snapshot, err = ledger.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.PendingCash.Equal(decimal.NewFromInt(6100)))

	// at settlement the credit lands in confirmed cash
	now = base.Add(48 * time.Hour)
	snapshot, err = ledger.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.PendingCash.IsZero())
	assert.True(t, snapshot.Confirmed.Cash.Equal(decimal.NewFromInt(10100)))
}

func TestSimulateLedger_CommitSellInsufficientMetal(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.CommitSell(context.Background(), entity.MetalGold,
		decimal.NewFromInt(1), decimal.NewFromInt(6100), "sell-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientMetal))
}

func TestSimulateLedger_StatePersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := walletstate.NewStore(dir)
	require.NoError(t, err)

	ledger, err := NewSimulateLedger(zap.NewNop(), store, nil, 48*time.Hour)
	require.NoError(t, err)

	_, err = ledger.CommitBuy(ctx, entity.MetalSilver, decimal.NewFromInt(50), decimal.NewFromInt(4760), "buy-1")
	require.NoError(t, err)
	_, err = ledger.CommitSell(ctx, entity.MetalSilver, decimal.NewFromInt(10), decimal.NewFromInt(930), "sell-1")
	require.NoError(t, err)

	// a fresh ledger over the same dir restores cash, grams and pendings
	store2, err := walletstate.NewStore(dir)
	require.NoError(t, err)
	restored, err := NewSimulateLedger(zap.NewNop(), store2, nil, 48*time.Hour)
	require.NoError(t, err)

	snapshot, err := restored.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot.Confirmed.Cash.Equal(decimal.NewFromInt(5240)))
	assert.True(t, snapshot.Confirmed.Grams(entity.MetalSilver).Equal(decimal.NewFromInt(40)))
	assert.True(t, snapshot.PendingCash.Equal(decimal.NewFromInt(930)))

	// restored order ids still block duplicates
	_, err = restored.CommitSell(ctx, entity.MetalSilver, decimal.NewFromInt(1), decimal.NewFromInt(93), "sell-1")
	assert.True(t, errors.Is(err, ErrDuplicateOrder))
}
