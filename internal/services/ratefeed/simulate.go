package ratefeed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurumpay/goldengine/internal/entity"
)

// walkStepPercent bounds the per-tick random walk of the simulated rate.
const walkStepPercent = 0.15

// SimulateSource produces a random-walking rate around a base price with a
// fixed spread, for local development and tests.
type SimulateSource struct {
	mu            sync.Mutex
	buy           map[entity.Metal]decimal.Decimal
	spreadPercent decimal.Decimal
	rnd           *rand.Rand
	now           func() time.Time
}

// NewSimulateSource creates a source seeded with typical per-gram rupee
// prices.
func NewSimulateSource(spreadPercent decimal.Decimal) *SimulateSource {
	return &SimulateSource{
		buy: map[entity.Metal]decimal.Decimal{
			entity.MetalGold:   decimal.NewFromFloat(6245.50),
			entity.MetalSilver: decimal.NewFromFloat(95.20),
		},
		spreadPercent: spreadPercent,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		now:           time.Now,
	}
}

// CurrentRate advances the walk one step and returns the new snapshot.
func (s *SimulateSource) CurrentRate(_ context.Context, metal entity.Metal) (entity.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buy, ok := s.buy[metal]
	if !ok {
		buy = decimal.NewFromInt(100)
	}

	stepPct := (s.rnd.Float64()*2 - 1) * walkStepPercent
	step := buy.Mul(decimal.NewFromFloat(stepPct)).Div(decimal.NewFromInt(100))
	buy = buy.Add(step)
	s.buy[metal] = buy

	discount := decimal.NewFromInt(1).Sub(s.spreadPercent.Div(decimal.NewFromInt(100)))
	return entity.Rate{
		Buy:  buy,
		Sell: buy.Mul(discount),
		AsOf: s.now(),
	}, nil
}
