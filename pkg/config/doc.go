// Package config loads service configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
//
//   - LoadEnv reads .env files into the process environment.
//   - Load parses the environment into a struct once per type and caches it.
//   - Parse decodes into a fresh value with an optional prefix or explicit
//     variable map, which keeps component configs testable.
//
// Fields are described with env tags:
//
//	type Config struct {
//		TrialDays int    `env:"BILLING_TRIAL_DAYS" envDefault:"14"`
//		PriceID   string `env:"STRIPE_MONTHLY_PRICE_ID,required"`
//	}
//
//	cfg, err := config.Parse[Config]()
package config
