// Command goldengine runs the retail gold/silver trade engine: a live rate
// feed, a simulated wallet ledger with deferred sell settlement and a web
// dashboard streaming rates and trades.
//
// Usage:
//
//	goldengine --config config.yaml
//	goldengine --setup (interactive wizard, writes config.gen.yaml)
//	goldengine (defaults: simulated rates, :8080)
//
// Required environment variables:
//
//	For Binance rates: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit rates: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/aurumpay/goldengine/config"
	"github.com/aurumpay/goldengine/internal"
	"github.com/aurumpay/goldengine/internal/setup"
)

func main() {
	runSetup := flag.Bool("setup", false, "run the interactive configuration wizard")

	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if *runSetup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		conf, err = config.FromFile("config.gen.yaml")
		if err != nil {
			log.Fatal(err)
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	engine, err := internal.NewEngine(conf, logger)
	if err != nil {
		logger.Fatal("failed to assemble engine", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx); err != nil {
		logger.Error("engine stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("engine stopped")
}
