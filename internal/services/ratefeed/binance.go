package ratefeed

import (
	"context"
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/aurumpay/goldengine/internal/entity"
)

// BinanceSource quotes metals from Binance spot book tickers using
// tokenized-metal proxy symbols. The ask side becomes the buy rate and the
// bid side the sell rate, so the spread comes straight from the book.
type BinanceSource struct {
	client  *binance.Client
	symbols map[entity.Metal]string
}

// NewBinanceSource creates a source with the default proxy symbols.
func NewBinanceSource(client *binance.Client) *BinanceSource {
	return &BinanceSource{
		client: client,
		symbols: map[entity.Metal]string{
			entity.MetalGold: "PAXGUSDT",
		},
	}
}

func (s *BinanceSource) CurrentRate(ctx context.Context, metal entity.Metal) (entity.Rate, error) {
	symbol, ok := s.symbols[metal]
	if !ok {
		return entity.Rate{}, fmt.Errorf("no binance symbol mapped for metal %s", metal)
	}

	tickers, err := s.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return entity.Rate{}, err
	}
	if len(tickers) == 0 {
		return entity.Rate{}, fmt.Errorf("binance API returned empty book for %s", symbol)
	}

	buy, err := decimal.NewFromString(tickers[0].AskPrice)
	if err != nil {
		return entity.Rate{}, err
	}
	sell, err := decimal.NewFromString(tickers[0].BidPrice)
	if err != nil {
		return entity.Rate{}, err
	}

	return entity.Rate{Buy: buy, Sell: sell, AsOf: time.Now()}, nil
}
