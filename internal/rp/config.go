package rp

import (
	"time"

	"github.com/louisbranch/frbpasskey/internal/platform/config"
)

// Config controls relying-party client settings.
type Config struct {
	Domain  string        `env:"FRBPASSKEY_RP_DOMAIN"   envDefault:"frbpasskey.ymedia.in"`
	BaseURL string        `env:"FRBPASSKEY_RP_BASE_URL"`
	Timeout time.Duration `env:"FRBPASSKEY_RP_TIMEOUT"  envDefault:"30s"`
}

// LoadConfigFromEnv returns relying-party configuration with defaults. The
// base URL defaults to https://<domain>; FRBPASSKEY_RP_BASE_URL overrides it
// for test deployments.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Domain
	}
	return cfg, nil
}
