// Package config содержит логику чтения конфигурации сервиса витрины.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса витрины.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	APIAddress      string `env:"API_ADDRESS"`
	CheckoutAddress string `env:"CHECKOUT_ADDRESS"`
	StateDir        string `env:"STATE_DIR"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envAPIAddress := cfg.APIAddress
	envCheckoutAddress := cfg.CheckoutAddress
	envStateDir := cfg.StateDir

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for mock API server")
	flag.StringVar(&cfg.APIAddress, "b", "http://localhost:8080", "base address of the storefront backend")
	flag.StringVar(&cfg.CheckoutAddress, "c", "", "base address of the checkout service")
	flag.StringVar(&cfg.StateDir, "s", ".storefront", "directory for persisted client state")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envAPIAddress != "" {
		cfg.APIAddress = envAPIAddress
	}
	if envCheckoutAddress != "" {
		cfg.CheckoutAddress = envCheckoutAddress
	}
	if envStateDir != "" {
		cfg.StateDir = envStateDir
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.APIAddress == "" {
		cfg.APIAddress = "http://localhost:8080"
	}
	// Сервис оформления по умолчанию живёт на том же адресе, что и основной API.
	if cfg.CheckoutAddress == "" {
		cfg.CheckoutAddress = cfg.APIAddress
	}
	if cfg.StateDir == "" {
		cfg.StateDir = ".storefront"
	}

	return cfg, nil
}
