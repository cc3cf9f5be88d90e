package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	SourceCSV    = "csv"
	SourceAlpaca = "alpaca"
)

// Config holds all configuration values
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Simulation SimulationConfig `yaml:"simulation"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Data       DataConfig       `yaml:"data"`
	Report     ReportConfig     `yaml:"report"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Store      StoreConfig      `yaml:"store"`
	Notify     NotifyConfig     `yaml:"notify"`
}

type SimulationConfig struct {
	StartDate   string  `yaml:"start_date"`
	EndDate     string  `yaml:"end_date"`
	OrdersFile  string  `yaml:"orders_file"`
	StartVal    float64 `yaml:"start_val"`
	MaxLeverage float64 `yaml:"max_leverage"`
}

type StrategyConfig struct {
	Symbols      []string `yaml:"symbols"`
	WindowLength int      `yaml:"window_length"`
	DevFactor    float64  `yaml:"dev_factor"`
	OrdersOut    string   `yaml:"orders_out"`
}

type DataConfig struct {
	Source         string `yaml:"source"`
	CSVDir         string `yaml:"csv_dir"`
	CalendarSymbol string `yaml:"calendar_symbol"`
	CachePath      string `yaml:"cache_path"`
	// CacheTTL expires cached price tables; zero keeps them forever
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Credentials only come from the environment
	AlpacaAPIKey    string `yaml:"-"`
	AlpacaSecretKey string `yaml:"-"`
}

type ReportConfig struct {
	Benchmark      string  `yaml:"benchmark"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	SamplesPerYear int     `yaml:"samples_per_year"`
	ChartPath      string  `yaml:"chart_path"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

type StoreConfig struct {
	DynamoDBRegion string `yaml:"dynamodb_region"`
	TableName      string `yaml:"table_name"`
}

type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Simulation: SimulationConfig{
			StartVal:    1000000,
			MaxLeverage: 2.0,
		},
		Strategy: StrategyConfig{
			WindowLength: 20,
			DevFactor:    2.0,
		},
		Data: DataConfig{
			Source:         SourceCSV,
			CSVDir:         "data",
			CalendarSymbol: "SPY",
			CacheTTL:       24 * time.Hour,
		},
		Report: ReportConfig{
			Benchmark:      "SPY",
			SamplesPerYear: 252,
		},
		Metrics: MetricsConfig{
			Job: "marketsim",
		},
		Store: StoreConfig{
			DynamoDBRegion: "us-east-1",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. Without envFiles a .env in the working directory is loaded if
// present.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		// Try to load .env file (ignore error if it doesn't exist)
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("MARKETSIM_LOG_LEVEL", c.LogLevel)
	c.Data.CSVDir = getEnv("MARKETSIM_DATA_DIR", c.Data.CSVDir)
	c.Data.AlpacaAPIKey = getEnv("ALPACA_API_KEY", c.Data.AlpacaAPIKey)
	c.Data.AlpacaSecretKey = getEnv("ALPACA_SECRET_KEY", c.Data.AlpacaSecretKey)
	c.Store.TableName = getEnv("MARKETSIM_TABLE_NAME", c.Store.TableName)
	c.Store.DynamoDBRegion = getEnv("DYNAMODB_REGION", c.Store.DynamoDBRegion)
	c.Notify.DiscordWebhookURL = getEnv("DISCORD_WEBHOOK_URL", c.Notify.DiscordWebhookURL)
	c.Metrics.PushgatewayURL = getEnv("PUSHGATEWAY_URL", c.Metrics.PushgatewayURL)
}

// Validate checks the values a run depends on
func (c *Config) Validate() error {
	var errs []error
	if c.Simulation.StartVal <= 0 {
		errs = append(errs, errors.New("simulation.start_val must be > 0"))
	}
	if c.Simulation.MaxLeverage <= 0 {
		errs = append(errs, errors.New("simulation.max_leverage must be > 0"))
	}
	if c.Strategy.WindowLength < 2 {
		errs = append(errs, errors.New("strategy.window_length must be >= 2"))
	}
	if c.Strategy.DevFactor <= 0 {
		errs = append(errs, errors.New("strategy.dev_factor must be > 0"))
	}
	switch c.Data.Source {
	case SourceCSV:
		if c.Data.CSVDir == "" {
			errs = append(errs, errors.New("data.csv_dir is required for the csv source"))
		}
	case SourceAlpaca:
	default:
		errs = append(errs, fmt.Errorf("data.source must be %q or %q, got %q", SourceCSV, SourceAlpaca, c.Data.Source))
	}
	if c.Data.CacheTTL < 0 {
		errs = append(errs, errors.New("data.cache_ttl must be >= 0"))
	}
	if c.Report.SamplesPerYear <= 0 {
		errs = append(errs, errors.New("report.samples_per_year must be > 0"))
	}
	return errors.Join(errs...)
}

// StartingCash is simulation.start_val as a decimal
func (c *Config) StartingCash() decimal.Decimal {
	return decimal.NewFromFloat(c.Simulation.StartVal)
}

// MaxLeverage is simulation.max_leverage as a decimal
func (c *Config) MaxLeverage() decimal.Decimal {
	return decimal.NewFromFloat(c.Simulation.MaxLeverage)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
