package apiclient

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
)

// ConfigFromEnv loads a Config from environment variables named
// prefix + the field's env tag, e.g. "SHOP_API_TIMEOUT=30s" with prefix
// "SHOP_API_". Variables that are unset keep their DefaultConfig value.
//
// A zero value cannot be expressed through the environment, since zero
// fields are filled from the defaults.
func ConfigFromEnv(prefix string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("error getting env configs: %w", err)
	}

	if err := mergo.Merge(&cfg, DefaultConfig()); err != nil {
		return Config{}, fmt.Errorf("error merging configs: %w", err)
	}

	return cfg, nil
}
