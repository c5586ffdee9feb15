package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeViewer = "viewer"
	ModeActive = "active"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Mode      string          `yaml:"mode"`
	Subgraph  SubgraphConfig  `yaml:"subgraph"`
	REST      RESTConfig      `yaml:"rest"`
	WS        WSConfig        `yaml:"ws"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Risk      RiskConfig      `yaml:"risk"`
	Reports   ReportsConfig   `yaml:"reports"`
	State     StateConfig     `yaml:"state"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type SubgraphConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetry   int           `yaml:"max_retry"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	PageSize   int           `yaml:"page_size"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WSConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

type StrategyConfig struct {
	Pair          string        `yaml:"pair"`
	BaseToken     string        `yaml:"base_token"`
	QuoteToken    string        `yaml:"quote_token"`
	PoolID        string        `yaml:"pool_id"`
	PerpAsset     string        `yaml:"perp_asset"`
	CycleInterval time.Duration `yaml:"cycle_interval"`
	VolLookback   int           `yaml:"vol_lookback"`
}

// RiskConfig holds the hedge guardrails. FundingAlertPct is compared
// against the annualized funding rate.
type RiskConfig struct {
	LeverageTarget    float64       `yaml:"leverage_target"`
	DeltaTolerancePct float64       `yaml:"delta_tolerance_pct"`
	MarginBufferPct   float64       `yaml:"margin_buffer_pct"`
	FundingAlertPct   float64       `yaml:"funding_alert_pct"`
	Cooldown          time.Duration `yaml:"cooldown"`
}

type ReportsConfig struct {
	DailyHour int    `yaml:"daily_hour"`
	WeeklyDOW int    `yaml:"weekly_dow"`
	Timezone  string `yaml:"timezone"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeViewer
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Subgraph.Timeout == 0 {
		cfg.Subgraph.Timeout = 10 * time.Second
	}
	if cfg.Subgraph.MaxRetry == 0 {
		cfg.Subgraph.MaxRetry = 3
	}
	if cfg.Subgraph.RetryDelay == 0 {
		cfg.Subgraph.RetryDelay = time.Second
	}
	if cfg.Subgraph.PageSize == 0 {
		cfg.Subgraph.PageSize = 100
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://api.hyperliquid.xyz"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.URL == "" {
		cfg.WS.URL = "wss://api.hyperliquid.xyz/ws"
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.PingInterval == 0 {
		cfg.WS.PingInterval = 30 * time.Second
	}
	if cfg.Strategy.Pair == "" {
		cfg.Strategy.Pair = "WETH/USDC"
	}
	if cfg.Strategy.BaseToken == "" || cfg.Strategy.QuoteToken == "" {
		if base, quote, ok := strings.Cut(cfg.Strategy.Pair, "/"); ok {
			if cfg.Strategy.BaseToken == "" {
				cfg.Strategy.BaseToken = base
			}
			if cfg.Strategy.QuoteToken == "" {
				cfg.Strategy.QuoteToken = quote
			}
		}
	}
	if cfg.Strategy.PerpAsset == "" {
		// wrapped tokens trade unwrapped on the perp venue
		base := cfg.Strategy.BaseToken
		if len(base) > 1 && strings.HasPrefix(base, "W") {
			base = base[1:]
		}
		cfg.Strategy.PerpAsset = base
	}
	if cfg.Strategy.CycleInterval == 0 {
		cfg.Strategy.CycleInterval = 5 * time.Second
	}
	if cfg.Strategy.VolLookback == 0 {
		cfg.Strategy.VolLookback = 60
	}
	if cfg.Risk.LeverageTarget == 0 {
		cfg.Risk.LeverageTarget = 2.0
	}
	if cfg.Risk.DeltaTolerancePct == 0 {
		cfg.Risk.DeltaTolerancePct = 0.005
	}
	if cfg.Risk.MarginBufferPct == 0 {
		cfg.Risk.MarginBufferPct = 0.25
	}
	if cfg.Risk.FundingAlertPct == 0 {
		cfg.Risk.FundingAlertPct = 0.15
	}
	if cfg.Risk.Cooldown == 0 {
		cfg.Risk.Cooldown = 15 * time.Second
	}
	if cfg.Reports.DailyHour == 0 {
		cfg.Reports.DailyHour = 20
	}
	if cfg.Reports.WeeklyDOW == 0 {
		cfg.Reports.WeeklyDOW = 7
	}
	if cfg.Reports.Timezone == "" {
		cfg.Reports.Timezone = "America/Sao_Paulo"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/lp-hedge-bot.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	}
	if cfg.Telegram.ChatID == "" {
		cfg.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
}

func validate(cfg *Config) error {
	if cfg.Mode != ModeViewer && cfg.Mode != ModeActive {
		return fmt.Errorf("mode must be %q or %q", ModeViewer, ModeActive)
	}
	if cfg.Subgraph.URL == "" {
		return errors.New("subgraph.url is required")
	}
	if cfg.Strategy.BaseToken == "" || cfg.Strategy.QuoteToken == "" {
		return errors.New("strategy.base_token and strategy.quote_token are required")
	}
	if cfg.Strategy.BaseToken == cfg.Strategy.QuoteToken {
		return errors.New("strategy.base_token and strategy.quote_token must differ")
	}
	if cfg.Risk.LeverageTarget <= 0 {
		return errors.New("risk.leverage_target must be > 0")
	}
	if cfg.Risk.DeltaTolerancePct < 0 {
		return errors.New("risk.delta_tolerance_pct must be >= 0")
	}
	if cfg.Reports.DailyHour < 0 || cfg.Reports.DailyHour > 23 {
		return errors.New("reports.daily_hour must be within 0-23")
	}
	if cfg.Reports.WeeklyDOW < 1 || cfg.Reports.WeeklyDOW > 7 {
		return errors.New("reports.weekly_dow must be within 1-7")
	}
	return nil
}
