package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/config"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
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

// RunTUI launches the terminal configuration wizard and writes
// config.gen.yaml on confirmation.
func RunTUI() error {
	var (
		watchlistStr     string
		feedMode         string
		csvDir           string
		fundamentalsFile string
		oracleURL        string
		oracleModel      string
		oracleKeyEnv     string
		hedgeTicker      string
		startingCashStr  string
		cronSpec         string
		confirm          bool
	)

	// defaults
	feedMode = "synthetic"
	csvDir = "data/klines"
	fundamentalsFile = "data/fundamentals.yaml"
	oracleURL = "https://api.openai.com/v1"
	oracleModel = "gpt-4o-mini"
	oracleKeyEnv = "FOLIO_ORACLE_KEY"
	hedgeTicker = "PSQ"
	startingCashStr = "100000"
	cronSpec = "*/15 9-16 * * 1-5"

	// step 1: watchlist
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's point the engine at a portfolio.\n"))

	fmt.Println(stepStyle.Render("STEP 1: WATCHLIST"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Watchlist").
				Description("Comma-separated tickers the engine may trade (e.g. AAPL,MSFT,NVDA)").
				Value(&watchlistStr).
				Validate(validateWatchlist),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 2: market data
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: MARKET DATA"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Candle source").
				Options(
					huh.NewOption("Synthetic walk (self-contained dry run)", "synthetic"),
					huh.NewOption("CSV kline files", "csv"),
				).
				Value(&feedMode),
		),
	).Run()
	if err != nil {
		return err
	}

	if feedMode == "csv" {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
		fmt.Println(stepStyle.Render("STEP 3: DATA FILES + ORACLE"))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Kline Directory").
					Description("One <TICKER>.csv per instrument, daily bars").
					Value(&csvDir),
				huh.NewInput().
					Title("Fundamentals File").
					Description("YAML with per-ticker fundamental assessments").
					Value(&fundamentalsFile),
				huh.NewInput().
					Title("Oracle Base URL").
					Description("OpenAI-compatible chat completions endpoint").
					Value(&oracleURL),
				huh.NewInput().
					Title("Oracle Model").
					Value(&oracleModel),
				huh.NewInput().
					Title("Oracle API Key Env").
					Description("Name of the environment variable holding the key").
					Value(&oracleKeyEnv),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// step 4: account
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: ACCOUNT"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Starting Cash").
				Description("Paper account opening balance in USD").
				Value(&startingCashStr).
				Validate(validateCash),
			huh.NewInput().
				Title("Hedge Ticker").
				Description("Inverse ETF bought when macro stress rises").
				Value(&hedgeTicker).
				Validate(func(s string) error {
					ticker := strings.ToUpper(strings.TrimSpace(s))
					if ticker == "" {
						return fmt.Errorf("hedge ticker cannot be empty")
					}
					for _, w := range splitTickers(watchlistStr) {
						if w == ticker {
							return fmt.Errorf("hedge ticker must not appear in the watchlist")
						}
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 5: timing
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cycle Cron").
				Description("Five-field cron, evaluated in New York time").
				Value(&cronSpec).
				Validate(func(s string) error {
					_, err := cron.ParseStandard(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	tickers := splitTickers(watchlistStr)
	summary := fmt.Sprintf(
		"Watchlist: %s\nFeed: %s\nHedge: %s\nCash: %s\nCron: %s\n",
		strings.Join(tickers, ", "), feedMode, strings.ToUpper(strings.TrimSpace(hedgeTicker)), startingCashStr, cronSpec,
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

	// generate config
	var tmp config.Tmp
	tmp.Watchlist = tickers
	tmp.HedgeTicker = strings.ToUpper(strings.TrimSpace(hedgeTicker))
	tmp.Schedule.Cron = cronSpec
	tmp.Feed.Mode = feedMode
	if feedMode == "csv" {
		tmp.Feed.CSVDir = csvDir
		tmp.Feed.FundamentalsFile = fundamentalsFile
		tmp.Oracle.BaseURL = oracleURL
		tmp.Oracle.Model = oracleModel
		tmp.Oracle.APIKeyEnv = oracleKeyEnv
	}
	tmp.Broker.StartingCash = startingCashStr

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	// write to config.gen.yaml
	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting engine...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func splitTickers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		ticker := strings.ToUpper(strings.TrimSpace(part))
		if ticker != "" {
			out = append(out, ticker)
		}
	}
	return out
}

func validateWatchlist(s string) error {
	tickers := splitTickers(s)
	if len(tickers) == 0 {
		return fmt.Errorf("watchlist cannot be empty")
	}
	for _, ticker := range tickers {
		for _, r := range ticker {
			if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' && r != '-' {
				return fmt.Errorf("invalid ticker %q", ticker)
			}
		}
	}
	return nil
}

func validateCash(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("must be positive")
	}
	return nil
}
