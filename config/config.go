// Package config loads engine configuration from a YAML file or CLI flags.
// Monetary values are written as strings in YAML and parsed into decimals.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/aurumpay/goldengine/internal/entity"
)

// Config is the fully parsed engine configuration.
type Config struct {
	Platform         string
	Metals           []entity.Metal
	ListenAddr       string
	DataDir          string
	UserToken        string
	PollRateInterval time.Duration
	SpreadPercent    decimal.Decimal
	GSTPercent       decimal.Decimal
	DeliveryFee      decimal.Decimal
	MinTradeRupees   decimal.Decimal
	MaxTradeRupees   decimal.Decimal
	MinSellGrams     decimal.Decimal
	QuickAmounts     []decimal.Decimal
	SessionDuration  time.Duration
	SettlementDelay  time.Duration
}

// ConfigTmp is the YAML shape of the config file. Decimal fields are kept
// as strings until parsed.
type ConfigTmp struct {
	Platform         string   `yaml:"platform"`
	Metals           []string `yaml:"metals"`
	ListenAddr       string   `yaml:"listen_addr"`
	DataDir          string   `yaml:"data_dir"`
	UserToken        string   `yaml:"user_token"`
	PollRateInterval string   `yaml:"poll_rate_interval,omitempty"`
	SpreadPercent    string   `yaml:"spread_percent,omitempty"`
	GSTPercent       string   `yaml:"gst_percent,omitempty"`
	DeliveryFee      string   `yaml:"delivery_fee,omitempty"`
	MinTradeRupees   string   `yaml:"min_trade_rupees,omitempty"`
	MaxTradeRupees   string   `yaml:"max_trade_rupees,omitempty"`
	MinSellGrams     string   `yaml:"min_sell_grams,omitempty"`
	QuickAmounts     []string `yaml:"quick_amounts,omitempty"`
	SessionDuration  string   `yaml:"session_duration,omitempty"`
	SettlementDelay  string   `yaml:"settlement_delay,omitempty"`
}

// Default returns the configuration used when a field is omitted.
func Default() Config {
	return Config{
		Platform:         "simulate",
		Metals:           []entity.Metal{entity.MetalGold, entity.MetalSilver},
		ListenAddr:       ":8080",
		DataDir:          "./data",
		UserToken:        "demo-user",
		PollRateInterval: 3 * time.Second,
		SpreadPercent:    decimal.NewFromInt(1),
		GSTPercent:       decimal.NewFromInt(3),
		DeliveryFee:      decimal.NewFromInt(99),
		MinTradeRupees:   decimal.NewFromInt(10),
		MaxTradeRupees:   decimal.NewFromInt(500000),
		MinSellGrams:     decimal.NewFromFloat(0.1),
		QuickAmounts: []decimal.Decimal{
			decimal.NewFromInt(100),
			decimal.NewFromInt(500),
			decimal.NewFromInt(1000),
			decimal.NewFromInt(5000),
		},
		SessionDuration: 5 * time.Minute,
		SettlementDelay: 48 * time.Hour,
	}
}

// Get parses CLI flags and, when --config is set, overlays the YAML file on
// top of the defaults.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	platform := flag.String("platform", "", "rate provider: simulate, binance or bybit")
	listen := flag.String("listen", "", "web server listen address")
	metals := flag.String("metals", "", "comma-separated metals, example: gold,silver")
	flag.Parse()

	conf := Default()
	if *configPath != "" {
		loaded, err := fromYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
		conf = loaded
	}

	if *platform != "" {
		conf.Platform = *platform
	}
	if *listen != "" {
		conf.ListenAddr = *listen
	}
	if *metals != "" {
		parsed, err := parseMetals(strings.Split(*metals, ","))
		if err != nil {
			return Config{}, err
		}
		conf.Metals = parsed
	}

	if err := validate(conf); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// FromFile loads configuration from a YAML file without touching flags.
func FromFile(path string) (Config, error) {
	conf, err := fromYaml(path)
	if err != nil {
		return Config{}, err
	}
	if err := validate(conf); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func fromYaml(path string) (Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(payload, &tmp); err != nil {
		return Config{}, err
	}

	conf := Default()
	if tmp.Platform != "" {
		conf.Platform = tmp.Platform
	}
	if len(tmp.Metals) > 0 {
		metals, err := parseMetals(tmp.Metals)
		if err != nil {
			return Config{}, err
		}
		conf.Metals = metals
	}
	if tmp.ListenAddr != "" {
		conf.ListenAddr = tmp.ListenAddr
	}
	if tmp.DataDir != "" {
		conf.DataDir = tmp.DataDir
	}
	if tmp.UserToken != "" {
		conf.UserToken = tmp.UserToken
	}
	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{tmp.PollRateInterval, "poll_rate_interval", &conf.PollRateInterval},
		{tmp.SessionDuration, "session_duration", &conf.SessionDuration},
		{tmp.SettlementDelay, "settlement_delay", &conf.SettlementDelay},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a duration like 5m): %w", d.name, err)
		}
		*d.dst = parsed
	}

	decimals := []struct {
		raw  string
		name string
		dst  *decimal.Decimal
	}{
		{tmp.SpreadPercent, "spread_percent", &conf.SpreadPercent},
		{tmp.GSTPercent, "gst_percent", &conf.GSTPercent},
		{tmp.DeliveryFee, "delivery_fee", &conf.DeliveryFee},
		{tmp.MinTradeRupees, "min_trade_rupees", &conf.MinTradeRupees},
		{tmp.MaxTradeRupees, "max_trade_rupees", &conf.MaxTradeRupees},
		{tmp.MinSellGrams, "min_sell_grams", &conf.MinSellGrams},
	}
	for _, d := range decimals {
		if d.raw == "" {
			continue
		}
		parsed, err := decimal.NewFromString(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal): %w", d.name, err)
		}
		*d.dst = parsed
	}

	if len(tmp.QuickAmounts) > 0 {
		amounts := make([]decimal.Decimal, 0, len(tmp.QuickAmounts))
		for _, raw := range tmp.QuickAmounts {
			parsed, err := decimal.NewFromString(raw)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect 'quick_amounts' entry in yaml config: %w", err)
			}
			amounts = append(amounts, parsed)
		}
		conf.QuickAmounts = amounts
	}

	return conf, nil
}

func parseMetals(names []string) ([]entity.Metal, error) {
	metals := make([]entity.Metal, 0, len(names))
	for _, name := range names {
		metal, err := entity.ParseMetal(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		metals = append(metals, metal)
	}
	return metals, nil
}

func validate(conf Config) error {
	switch conf.Platform {
	case "simulate", "binance", "bybit":
	default:
		return fmt.Errorf("unsupported platform: %s", conf.Platform)
	}
	if len(conf.Metals) == 0 {
		return fmt.Errorf("at least one metal must be configured")
	}
	if conf.MinTradeRupees.IsNegative() {
		return fmt.Errorf("min_trade_rupees must not be negative")
	}
	if conf.MaxTradeRupees.IsPositive() && conf.MaxTradeRupees.LessThan(conf.MinTradeRupees) {
		return fmt.Errorf("max_trade_rupees must not be below min_trade_rupees")
	}
	if conf.SessionDuration <= 0 {
		return fmt.Errorf("session_duration must be positive")
	}
	return nil
}
