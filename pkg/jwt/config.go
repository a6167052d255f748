package jwt

import "time"

// Config holds token service settings.
type Config struct {
	SigningKey string        `env:"JWT_SIGNING_KEY,required"`
	Issuer     string        `env:"JWT_ISSUER"`
	TTL        time.Duration `env:"JWT_TTL" envDefault:"1h"`
	Leeway     time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`
}

// NewFromConfig creates a Service from cfg.
func NewFromConfig(cfg Config) (*Service, error) {
	return NewFromString(cfg.SigningKey,
		WithIssuer(cfg.Issuer),
		WithTTL(cfg.TTL),
		WithLeeway(cfg.Leeway),
	)
}
