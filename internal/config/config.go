// Package config содержит логику чтения конфигурации сервиса биллинга.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultTaxRate    = "0.05"
	defaultRegionCode = "35"
)

// Config содержит параметры конфигурации сервиса биллинга.
type Config struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	DatabaseURI        string `env:"DATABASE_URI"`
	GatewayAddress     string `env:"FISCAL_GATEWAY_ADDRESS"`
	DefaultTaxRateText string `env:"DEFAULT_TAX_RATE"`
	DefaultRegionCode  string `env:"DEFAULT_REGION_CODE"`

	// DefaultTaxRate содержит разобранное значение DefaultTaxRateText.
	DefaultTaxRate decimal.Decimal `env:"-"`
}

// Parse считывает конфигурацию из файла .env (если он есть), флагов командной строки
// и переменных окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGatewayAddress := cfg.GatewayAddress
	envTaxRate := cfg.DefaultTaxRateText
	envRegionCode := cfg.DefaultRegionCode

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI (empty uses in-memory storage)")
	flag.StringVar(&cfg.GatewayAddress, "g", "", "production fiscal gateway address")
	flag.StringVar(&cfg.DefaultTaxRateText, "t", defaultTaxRate, "ICMS rate for new issuers")
	flag.StringVar(&cfg.DefaultRegionCode, "u", defaultRegionCode, "IBGE state code for new issuers")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGatewayAddress != "" {
		cfg.GatewayAddress = envGatewayAddress
	}
	if envTaxRate != "" {
		cfg.DefaultTaxRateText = envTaxRate
	}
	if envRegionCode != "" {
		cfg.DefaultRegionCode = envRegionCode
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.DefaultTaxRateText == "" {
		cfg.DefaultTaxRateText = defaultTaxRate
	}
	if cfg.DefaultRegionCode == "" {
		cfg.DefaultRegionCode = defaultRegionCode
	}

	rate, err := decimal.NewFromString(cfg.DefaultTaxRateText)
	if err != nil {
		return nil, fmt.Errorf("parse default tax rate %q: %w", cfg.DefaultTaxRateText, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("default tax rate %s must be in [0, 1)", rate)
	}
	cfg.DefaultTaxRate = rate

	return cfg, nil
}
