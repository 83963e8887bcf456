// Package ratefeed delivers live per-gram buy/sell rates. Consumers get a
// synchronous snapshot on connect (so nothing ever renders without a
// price), then live pushes layered on top. A provider outage keeps the last
// known rate in place: stale-but-present beats absent.
package ratefeed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aurumpay/goldengine/internal/entity"
	"github.com/aurumpay/goldengine/pkg/retrier"
)

const defaultSubscriberBuffer = 64

// Source is the external rate provider contract.
type Source interface {
	CurrentRate(ctx context.Context, metal entity.Metal) (entity.Rate, error)
}

// Feed polls a source and fans rate snapshots out to subscribers. Only the
// most recent rate matters; no history is buffered.
type Feed struct {
	mu       sync.RWMutex
	source   Source
	metals   []entity.Metal
	interval time.Duration
	logger   *zap.Logger
	latest   map[entity.Metal]entity.Rate
	subs     map[entity.Metal]map[chan entity.Rate]struct{}
}

// NewFeed creates a feed for the given metals polling at interval.
func NewFeed(source Source, metals []entity.Metal, interval time.Duration, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		source:   source,
		metals:   metals,
		interval: interval,
		logger:   logger,
		latest:   make(map[entity.Metal]entity.Rate),
		subs:     make(map[entity.Metal]map[chan entity.Rate]struct{}),
	}
}

// Start fetches one synchronous snapshot per metal, then spawns the push
// loop. A metal whose snapshot cannot be fetched starts without a rate;
// consumers see "rate unavailable" until the loop recovers it.
func (f *Feed) Start(ctx context.Context) {
	snapshot := retrier.New(3)
	for _, metal := range f.metals {
		m := metal
		err := snapshot.Do(ctx, func(ctx context.Context) error {
			rate, err := f.source.CurrentRate(ctx, m)
			if err != nil {
				return err
			}
			f.store(m, rate)
			return nil
		})
		if err != nil {
			f.logger.Warn("initial rate snapshot unavailable",
				zap.String("metal", m.String()),
				zap.Error(err))
		}
	}

	go f.loop(ctx)
}

// loop refreshes rates forever. Fetch failures are silent: the previous
// rate stays visible and the next tick retries.
func (f *Feed) loop(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, metal := range f.metals {
				rate, err := f.source.CurrentRate(ctx, metal)
				if err != nil {
					f.logger.Debug("rate fetch failed, keeping last known rate",
						zap.String("metal", metal.String()),
						zap.Error(err))
					continue
				}
				f.store(metal, rate)
			}
		}
	}
}

// Latest returns the most recent known rate for the metal. ok is false only
// when no rate has ever been received.
func (f *Feed) Latest(metal entity.Metal) (entity.Rate, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rate, ok := f.latest[metal]
	return rate, ok
}

// Subscribe returns a channel receiving every new rate snapshot for the
// metal until Unsubscribe is called. Slow consumers have pushes dropped
// rather than blocking the feed.
func (f *Feed) Subscribe(metal entity.Metal) chan entity.Rate {
	ch := make(chan entity.Rate, defaultSubscriberBuffer)
	f.mu.Lock()
	if f.subs[metal] == nil {
		f.subs[metal] = make(map[chan entity.Rate]struct{})
	}
	f.subs[metal][ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (f *Feed) Unsubscribe(metal entity.Metal, ch chan entity.Rate) {
	f.mu.Lock()
	if _, ok := f.subs[metal][ch]; ok {
		delete(f.subs[metal], ch)
		close(ch)
	}
	f.mu.Unlock()
}

func (f *Feed) store(metal entity.Metal, rate entity.Rate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.latest[metal]
	f.latest[metal] = rate
	if had && prev.Buy.Equal(rate.Buy) && prev.Sell.Equal(rate.Sell) {
		return
	}

	for ch := range f.subs[metal] {
		select {
		case ch <- rate:
		default:
			// drop slow consumer
		}
	}
}
