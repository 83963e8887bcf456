package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/aurumpay/goldengine/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#DAA520"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		platform        string
		metals          []string
		listenAddr      string
		pollIntervalStr string
		gstStr          string
		spreadStr       string
		sessionStr      string
		settlementStr   string
		confirm         bool
	)

	// defaults
	listenAddr = ":8080"
	pollIntervalStr = "3s"
	gstStr = "3"
	spreadStr = "1"
	sessionStr = "5m"
	settlementStr = "48h"

	// step 1: welcome + platform
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("GOLDENGINE CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set up your rate engine in a minute.\n"))

	fmt.Println(stepStyle.Render("STEP 1: RATE PROVIDER"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should live rates come from?").
				Options(
					huh.NewOption("Simulation (no credentials)", "simulate"),
					huh.NewOption("Binance (PAXG proxy)", "binance"),
					huh.NewOption("Bybit (PAXG proxy)", "bybit"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	// metals
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GOLDENGINE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: METALS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Which metals should be tradable?").
				Options(
					huh.NewOption("Gold", "gold").Selected(true),
					huh.NewOption("Silver", "silver").Selected(true),
				).
				Value(&metals).
				Validate(func(selected []string) error {
					if len(selected) == 0 {
						return fmt.Errorf("pick at least one metal")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// timing and pricing
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GOLDENGINE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: PRICING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Rate Poll Interval").
				Description("Duration string (e.g. 3s, 10s)").
				Value(&pollIntervalStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("GST %").
				Description("Tax applied on every buy (e.g. 3)").
				Value(&gstStr).
				Validate(validatePercent),
			huh.NewInput().
				Title("Spread %").
				Description("Buy/sell spread for the simulated provider").
				Value(&spreadStr).
				Validate(validatePercent),
		),
	).Run()
	if err != nil {
		return err
	}

	// sessions
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GOLDENGINE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: SESSIONS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Checkout Session Duration").
				Description("Price-lock window for the basket (e.g. 5m)").
				Value(&sessionStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Sell Settlement Delay").
				Description("How long a sell credit stays pending (e.g. 48h)").
				Value(&settlementStr).
				Validate(validateDuration),
			huh.NewInput().
				Title("Web Listen Address").
				Value(&listenAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GOLDENGINE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Provider: %s\nMetals: %v\nPoll: %s\nGST: %s%%\nSession: %s\nSettlement: %s\nListen: %s\n",
		platform, metals, pollIntervalStr, gstStr, sessionStr, settlementStr, listenAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	cfgTmp := config.ConfigTmp{
		Platform:         platform,
		Metals:           metals,
		ListenAddr:       listenAddr,
		PollRateInterval: pollIntervalStr,
		SpreadPercent:    spreadStr,
		GSTPercent:       gstStr,
		SessionDuration:  sessionStr,
		SettlementDelay:  settlementStr,
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting engine...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}

func validatePercent(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("must be between 0 and 100")
	}
	return nil
}
