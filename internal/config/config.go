package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Env       string    `mapstructure:"env"`
	Debug     bool      `mapstructure:"debug"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Logger    Logger    `mapstructure:"logger"`
	Import    Import    `mapstructure:"import"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	Pricing   Pricing   `mapstructure:"pricing"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level string `mapstructure:"level"`
}

// Import tunes the CSV import pipeline.
type Import struct {
	PreviewRows       int `mapstructure:"preview_rows"`
	MaxReportedErrors int `mapstructure:"max_reported_errors"`
	DefaultYear       int `mapstructure:"default_year"`
}

// RateLimit holds per-client request budgets. Zero disables a limit.
type RateLimit struct {
	ImportPerMinute int `mapstructure:"import_per_minute"`
	WritePerMinute  int `mapstructure:"write_per_minute"`
}

// Pricing holds fixed stock marks used for unrealized P&L, keyed by ticker.
type Pricing struct {
	StockMarks map[string]string `mapstructure:"stock_marks"`
}

// IsProduction reports whether the process runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Marks parses the configured stock marks. Tickers are upper-cased.
func (p Pricing) Marks() (map[string]decimal.Decimal, error) {
	marks := make(map[string]decimal.Decimal, len(p.StockMarks))
	for ticker, raw := range p.StockMarks {
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid mark for %s: %w", ticker, err)
		}
		marks[strings.ToUpper(ticker)] = v
	}
	return marks, nil
}

// LoadConfig reads configuration from path/config.yml, a .env file and
// environment variables. A missing config file is not an error.
func LoadConfig(path string) (Config, error) {
	var config Config

	// Values already in the environment win over .env.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("env", "development")
	v.SetDefault("debug", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.dsn", "trades.db")
	v.SetDefault("logger.level", "info")
	v.SetDefault("import.preview_rows", 10)
	v.SetDefault("import.max_reported_errors", 0)
	v.SetDefault("import.default_year", 0)
	v.SetDefault("ratelimit.import_per_minute", 10)
	v.SetDefault("ratelimit.write_per_minute", 120)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}
	if _, err := config.Pricing.Marks(); err != nil {
		return config, err
	}
	return config, nil
}
