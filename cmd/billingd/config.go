package main

import (
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/billingsync/pkg/email"
	"github.com/dmitrymomot/billingsync/pkg/jwt"
	"github.com/dmitrymomot/billingsync/pkg/logger"
	"github.com/dmitrymomot/billingsync/pkg/requestid"
	"github.com/dmitrymomot/billingsync/pkg/subscription"
)

// Store and ledger backends selectable through the environment.
const (
	driverMongo    = "mongo"
	driverPostgres = "postgres"
	driverMemory   = "memory"
	driverRedis    = "redis"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	Name        string `env:"APP_NAME" envDefault:"billingd"`
	LogFormat   string `env:"LOG_FORMAT"`
	LogLevel    string `env:"LOG_LEVEL"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mongo"`
	EventLedger string `env:"EVENT_LEDGER" envDefault:"memory"`
}

func (c appConfig) validate() error {
	switch c.StoreDriver {
	case driverMongo, driverPostgres, driverMemory:
	default:
		return fmt.Errorf("%w: STORE_DRIVER=%q", errUnknownDriver, c.StoreDriver)
	}
	switch c.EventLedger {
	case driverRedis, driverMemory:
	default:
		return fmt.Errorf("%w: EVENT_LEDGER=%q", errUnknownDriver, c.EventLedger)
	}
	switch logger.Format(c.LogFormat) {
	case "", logger.FormatJSON, logger.FormatText:
	default:
		return fmt.Errorf("%w: LOG_FORMAT=%q", errInvalidConfig, c.LogFormat)
	}
	return nil
}

func (c appConfig) newLogger() *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(c.Env, c.Name),
		logger.WithContextExtractors(requestid.LoggerExtractor(), jwt.LoggerExtractor()),
	}
	if c.LogFormat != "" {
		opts = append(opts, logger.WithFormat(logger.Format(c.LogFormat)))
	}
	if c.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(c.LogLevel)))
	}
	return logger.New(opts...)
}

// settings bundles the parsed configuration needed to assemble the app.
type settings struct {
	app     appConfig
	billing subscription.Config
	stripe  subscription.StripeConfig
	email   email.Config

	stripeOptions []subscription.StripeOption
}
