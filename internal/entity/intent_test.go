package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goldRate() Rate {
	return Rate{
		Buy:  decimal.RequireFromString("6245.50"),
		Sell: decimal.RequireFromString("6183.05"),
		AsOf: time.Now(),
	}
}

func TestTradeIntent_SetGramsDerivesRupees(t *testing.T) {
	intent := NewTradeIntent(MetalGold, ActionBuy)

	require.NoError(t, intent.SetGrams(decimal.NewFromInt(2), goldRate()))

	assert.Equal(t, FieldGrams, intent.LastEdited)
	assert.True(t, intent.Rupees.Equal(decimal.RequireFromString("12491.00")),
		"rupees = %s", intent.Rupees)
}

func TestTradeIntent_SetRupeesDerivesGrams(t *testing.T) {
	intent := NewTradeIntent(MetalGold, ActionBuy)

	require.NoError(t, intent.SetRupees(decimal.RequireFromString("6245.50"), goldRate()))

	assert.Equal(t, FieldRupees, intent.LastEdited)
	assert.True(t, intent.Grams.Equal(decimal.NewFromInt(1)),
		"grams = %s", intent.Grams)
}

func TestTradeIntent_SellUsesSellRate(t *testing.T) {
	intent := NewTradeIntent(MetalGold, ActionSell)

	require.NoError(t, intent.SetGrams(decimal.NewFromInt(1), goldRate()))

	assert.True(t, intent.Rupees.Equal(decimal.RequireFromString("6183.05")),
		"rupees = %s", intent.Rupees)
}

func TestTradeIntent_ApplyRateKeepsLastEditedField(t *testing.T) {
	intent := NewTradeIntent(MetalGold, ActionBuy)
	require.NoError(t, intent.SetRupees(decimal.NewFromInt(1000), goldRate()))
	gramsBefore := intent.Grams

	fresher := goldRate()
	fresher.Buy = decimal.RequireFromString("6300.00")
	intent.ApplyRate(fresher)

	// the rupee side the user typed is untouched, grams re-derive
	assert.True(t, intent.Rupees.Equal(decimal.NewFromInt(1000)))
	assert.False(t, intent.Grams.Equal(gramsBefore))
	assert.True(t, intent.Grams.Equal(decimal.NewFromInt(1000).Div(fresher.Buy)))
}

func TestTradeIntent_ZeroRateYieldsZeroGrams(t *testing.T) {
	intent := NewTradeIntent(MetalGold, ActionBuy)

	require.NoError(t, intent.SetRupees(decimal.NewFromInt(500), Rate{}))

	assert.True(t, intent.Grams.IsZero())
	assert.True(t, intent.Rupees.Equal(decimal.NewFromInt(500)))
}

func TestTradeIntent_RejectsNegativeInput(t *testing.T) {
	intent := NewTradeIntent(MetalGold, ActionBuy)

	assert.Error(t, intent.SetGrams(decimal.NewFromInt(-1), goldRate()))
	assert.Error(t, intent.SetRupees(decimal.NewFromInt(-100), goldRate()))
}

func TestRate_ForAndSpread(t *testing.T) {
	rate := goldRate()

	assert.True(t, rate.For(ActionBuy).Equal(rate.Buy))
	assert.True(t, rate.For(ActionSell).Equal(rate.Sell))
	assert.True(t, rate.Spread().Equal(decimal.RequireFromString("62.45")))
	assert.False(t, rate.IsZero())
	assert.True(t, Rate{}.IsZero())
}

func TestRate_InvertedSpreadPassesThrough(t *testing.T) {
	rate := Rate{
		Buy:  decimal.NewFromInt(100),
		Sell: decimal.NewFromInt(105),
	}

	assert.True(t, rate.Spread().IsNegative())
	assert.True(t, rate.For(ActionSell).Equal(decimal.NewFromInt(105)))
}
