package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the exchange client configuration, read from EXCHANGE_*
// variables.
type Config struct {
	Domain   string        `env:"DOMAIN,required"`
	Login    string        `env:"LOGIN"`
	Password string        `env:"PASSWORD"`
	APIKey   string        `env:"API_KEY"`
	Proxy    string        `env:"PROXY"`
	Interval time.Duration `env:"INTERVAL" envDefault:"30s"`
	Confirm  bool          `env:"CONFIRM" envDefault:"false"`
	Debug    bool          `env:"DEBUG" envDefault:"false"`
	Cookies  bool          `env:"COOKIES" envDefault:"true"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "EXCHANGE_"}); err != nil {
		return Config{}, fmt.Errorf("error getting env configs: %w", err)
	}
	return cfg, nil
}
