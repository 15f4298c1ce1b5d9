// Package config reads CARTLEDGER_* environment variables. Command-line
// flags are registered with these values as their defaults, so a flag
// overrides the environment, which overrides the built-in default.
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/cartledger/internal/invoice"
	"github.com/roach88/cartledger/internal/model"
	"github.com/roach88/cartledger/internal/store"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config holds the settings shared by every command.
type Config struct {
	Store          string `env:"CARTLEDGER_STORE"           envDefault:"sqlite"`
	DBPath         string `env:"CARTLEDGER_DB"`
	RedisAddr      string `env:"CARTLEDGER_REDIS_ADDR"      envDefault:"localhost:6379"`
	RedisNamespace string `env:"CARTLEDGER_REDIS_NAMESPACE" envDefault:"cartledger:"`
	Catalog        string `env:"CARTLEDGER_CATALOG"`
	Client         string `env:"CARTLEDGER_CLIENT"`
	Format         string `env:"CARTLEDGER_FORMAT"          envDefault:"text"`
	Lang           string `env:"CARTLEDGER_LANG"            envDefault:"fr"`
	Verbose        bool   `env:"CARTLEDGER_VERBOSE"`

	FreeShippingOver string `env:"CARTLEDGER_FREE_SHIPPING_OVER" envDefault:"20.00"`
	ShippingFee      string `env:"CARTLEDGER_SHIPPING_FEE"       envDefault:"5.00"`
	CheckoutURL      string `env:"CARTLEDGER_CHECKOUT_URL"`
	Currency         string `env:"CARTLEDGER_CURRENCY"           envDefault:"CAD"`
	OTelEndpoint     string `env:"CARTLEDGER_OTEL_ENDPOINT"`
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadFrom parses an explicit environment instead of the process's.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks values that flags and the environment can both set.
func (c Config) Validate() error {
	switch c.Store {
	case BackendSQLite, BackendRedis, BackendFile, BackendMemory:
	default:
		return fmt.Errorf("unknown store %q (want sqlite, redis, file or memory)", c.Store)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown format %q (want text or json)", c.Format)
	}
	if _, err := c.Pricing(); err != nil {
		return err
	}
	return nil
}

// StorePath returns the database or file path for the configured backend.
func (c Config) StorePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	if c.Store == BackendFile {
		return "cartledger.json"
	}
	return "cartledger.db"
}

// Pricing parses the shipping settings.
func (c Config) Pricing() (invoice.Pricing, error) {
	threshold, err := model.ParseMoney(strings.TrimSpace(c.FreeShippingOver))
	if err != nil {
		return invoice.Pricing{}, fmt.Errorf("free shipping threshold: %w", err)
	}
	fee, err := model.ParseMoney(strings.TrimSpace(c.ShippingFee))
	if err != nil {
		return invoice.Pricing{}, fmt.Errorf("shipping fee: %w", err)
	}
	return invoice.Pricing{FreeShippingThreshold: threshold, FlatShippingFee: fee}, nil
}

// OpenStore opens the configured backend. The caller closes it.
func (c Config) OpenStore(ctx context.Context) (store.KV, error) {
	switch c.Store {
	case BackendSQLite:
		return store.Open(c.StorePath())
	case BackendFile:
		return store.OpenFile(c.StorePath())
	case BackendRedis:
		return store.OpenRedis(ctx, c.RedisAddr, store.WithNamespace(c.RedisNamespace))
	case BackendMemory:
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", c.Store)
	}
}
