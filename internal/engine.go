package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aurumpay/goldengine/config"
	"github.com/aurumpay/goldengine/internal/entity"
	"github.com/aurumpay/goldengine/internal/services/checkout"
	"github.com/aurumpay/goldengine/internal/services/payment"
	"github.com/aurumpay/goldengine/internal/services/ratefeed"
	"github.com/aurumpay/goldengine/internal/services/session"
	"github.com/aurumpay/goldengine/internal/services/trade"
	"github.com/aurumpay/goldengine/internal/services/wallet"
	"github.com/aurumpay/goldengine/internal/storage/journal"
	"github.com/aurumpay/goldengine/internal/storage/sessionstore"
	"github.com/aurumpay/goldengine/internal/storage/walletstate"
	"github.com/aurumpay/goldengine/internal/web"
)

// Engine wires the rate feed, wallet ledger, session coordinator, basket
// checkout and web server into one runnable unit.
type Engine struct {
	conf        config.Config
	logger      *zap.Logger
	Feed        *ratefeed.Feed
	Ledger      *wallet.SimulateLedger
	Coordinator *session.Coordinator
	Basket      *entity.Basket
	Checkout    *checkout.Orchestrator
	Directory   payment.Directory
	Journal     *journal.WALStore
	Limits      trade.Limits
	web         *web.Server
}

// NewEngine assembles an engine from configuration. The rate provider is
// selected by conf.Platform; everything else is platform-independent.
func NewEngine(conf config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	source, err := newRateSource(conf)
	if err != nil {
		return nil, err
	}
	feed := ratefeed.NewFeed(source, conf.Metals, conf.PollRateInterval, logger)

	jrnl, err := journal.NewWALStore(filepath.Join(conf.DataDir, "journal"))
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal")
	}

	stateStore, err := walletstate.NewStore(conf.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "init wallet state store")
	}

	ledger, err := wallet.NewSimulateLedger(logger, stateStore, jrnl, conf.SettlementDelay)
	if err != nil {
		return nil, errors.Wrap(err, "init wallet ledger")
	}

	sessionStore, err := sessionstore.NewFileStore(conf.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "init session store")
	}
	coordinator := session.NewCoordinator(sessionStore, logger)

	basket := entity.NewBasket()
	directory := payment.NewStaticDirectory()
	orchestrator := checkout.New(basket, coordinator, directory, conf.UserToken,
		conf.GSTPercent, conf.DeliveryFee, logger)

	limits := trade.Limits{
		MinTradeRupees: conf.MinTradeRupees,
		MaxTradeRupees: conf.MaxTradeRupees,
		MinSellGrams:   conf.MinSellGrams,
		GSTPercent:     conf.GSTPercent,
		QuickAmounts:   conf.QuickAmounts,
	}

	server := web.NewServer(conf.ListenAddr, feed, conf.Metals, jrnl, ledger, logger)

	return &Engine{
		conf:        conf,
		logger:      logger,
		Feed:        feed,
		Ledger:      ledger,
		Coordinator: coordinator,
		Basket:      basket,
		Checkout:    orchestrator,
		Directory:   directory,
		Journal:     jrnl,
		Limits:      limits,
		web:         server,
	}, nil
}

// newRateSource builds the platform rate provider. Binance and Bybit quote
// gold through the PAXG proxy; simulate needs no credentials.
func newRateSource(conf config.Config) (ratefeed.Source, error) {
	switch conf.Platform {
	case "simulate":
		return ratefeed.NewSimulateSource(conf.SpreadPercent), nil
	case "binance":
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		return ratefeed.NewBinanceSource(binance.NewClient(apiKey, apiSecret)), nil
	case "bybit":
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		client := bybit.NewClient().WithAuth(apiKey, apiSecret)
		return ratefeed.NewBybitSource(client, conf.SpreadPercent), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", conf.Platform)
	}
}

// NewBuy creates a buy flow for the metal, guarded by the basket-checkout
// session so commits stop once the shared price lock expires.
func (e *Engine) NewBuy(ctx context.Context, metal entity.Metal) (*trade.BuyMachine, error) {
	e.Coordinator.EnsureStarted(session.PurposeBasketCheckout, e.conf.SessionDuration)
	expired := func() bool {
		return !e.Coordinator.Active(session.PurposeBasketCheckout)
	}
	return trade.NewBuyMachine(ctx, metal, e.Ledger, e.Feed, e.Limits, expired, e.logger)
}

// NewSell creates a sell flow for the metal with the same expiry guard.
func (e *Engine) NewSell(ctx context.Context, metal entity.Metal) (*trade.SellMachine, error) {
	e.Coordinator.EnsureStarted(session.PurposeBasketCheckout, e.conf.SessionDuration)
	expired := func() bool {
		return !e.Coordinator.Active(session.PurposeBasketCheckout)
	}
	return trade.NewSellMachine(ctx, metal, e.Ledger, e.Feed, e.Limits, expired, e.logger)
}

// StartCheckoutSession adopts a live basket deadline or starts a fresh one.
func (e *Engine) StartCheckoutSession() {
	e.Coordinator.EnsureStarted(session.PurposeBasketCheckout, e.conf.SessionDuration)
}

// Run starts the feed, the expiry watcher and the web server, and blocks
// until ctx is cancelled or a component fails.
func (e *Engine) Run(ctx context.Context) error {
	e.Feed.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.Checkout.Watcher().Run(ctx)
		return nil
	})
	g.Go(func() error {
		e.logger.Info("web server listening", zap.String("addr", e.conf.ListenAddr))
		return e.web.Start(ctx)
	})

	err := g.Wait()
	if closeErr := e.Journal.Close(); closeErr != nil {
		e.logger.Warn("trade journal close failed", zap.Error(closeErr))
	}
	return err
}
