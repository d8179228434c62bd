package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// PayFast holds the merchant account and redirect URLs.
type PayFast struct {
	MerchantID   string `env:"MERCHANT_ID" validate:"required"`
	MerchantKey  string `env:"MERCHANT_KEY" validate:"required"`
	Passphrase   string `env:"PASSPHRASE"`
	ProcessURL   string `env:"PROCESS_URL" envDefault:"https://sandbox.payfast.co.za/eng/process" validate:"required,url"`
	ReturnURL    string `env:"RETURN_URL" validate:"omitempty,url"`
	CancelURL    string `env:"CANCEL_URL" validate:"omitempty,url"`
	NotifyURL    string `env:"NOTIFY_URL" validate:"omitempty,url"`
	PlusForSpace bool   `env:"PLUS_FOR_SPACE"`
}

type Pricing struct {
	FullReportPrice float64 `env:"FULL_REPORT" envDefault:"149.00" validate:"gt=0"`
	Currency        string  `env:"CURRENCY" envDefault:"ZAR" validate:"len=3"`
}

type Config struct {
	Addr          string        `env:"ARCHETYPES_ADDR" envDefault:":8080" validate:"required"`
	SQLitePath    string        `env:"ARCHETYPES_SQLITE_PATH"`
	MigrationsDir string        `env:"ARCHETYPES_MIGRATIONS_DIR"`
	SessionSecret string        `env:"ARCHETYPES_SESSION_SECRET" validate:"required,min=16"`
	SessionTTL    time.Duration `env:"ARCHETYPES_SESSION_TTL" envDefault:"72h" validate:"gt=0"`
	LogLevel      string        `env:"ARCHETYPES_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	PayFast PayFast `envPrefix:"PAYFAST_"`
	Pricing Pricing `envPrefix:"PRICING_"`
}

// Load reads an optional .env file, then the process environment. Variables
// already set in the environment win over the file.
func Load(dotenvFiles ...string) (*Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}
	return FromEnv()
}

// FromEnv parses and validates the process environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
