package ratefeed

import (
	"context"
	"fmt"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"

	"github.com/aurumpay/goldengine/internal/entity"
)

// BybitSource quotes metals from Bybit spot tickers. Bybit only exposes the
// last traded price here, so the sell rate is derived by applying the
// configured spread below the buy rate.
type BybitSource struct {
	client        *bybit.Client
	symbols       map[entity.Metal]string
	spreadPercent decimal.Decimal
}

// NewBybitSource creates a source with the default proxy symbols.
func NewBybitSource(client *bybit.Client, spreadPercent decimal.Decimal) *BybitSource {
	return &BybitSource{
		client: client,
		symbols: map[entity.Metal]string{
			entity.MetalGold: "PAXGUSDT",
		},
		spreadPercent: spreadPercent,
	}
}

func (s *BybitSource) CurrentRate(_ context.Context, metal entity.Metal) (entity.Rate, error) {
	sym, ok := s.symbols[metal]
	if !ok {
		return entity.Rate{}, fmt.Errorf("no bybit symbol mapped for metal %s", metal)
	}
	symbol := bybit.SymbolV5(sym)

	result, err := s.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return entity.Rate{}, err
	}
	if len(result.Result.Spot.List) == 0 {
		return entity.Rate{}, fmt.Errorf("bybit API returned empty prices for %s", sym)
	}

	buy, err := decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
	if err != nil {
		return entity.Rate{}, err
	}

	discount := decimal.NewFromInt(1).Sub(s.spreadPercent.Div(decimal.NewFromInt(100)))
	return entity.Rate{Buy: buy, Sell: buy.Mul(discount), AsOf: time.Now()}, nil
}
