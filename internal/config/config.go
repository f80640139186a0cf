package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is parsed from OCPIHUB_-prefixed environment variables.
type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8081"`

	// Journal database. Empty disables journaling entirely.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	// Bearer token required on the OCPI subtree. Empty disables the check.
	APIToken string `envconfig:"API_TOKEN" default:""`

	// Bearer token presented on outbound result forwarding.
	UpstreamToken string `envconfig:"UPSTREAM_TOKEN" default:""`

	// System-wide downgrade default; the per-request query flag overrides it.
	AllowDowngrade bool `envconfig:"ALLOW_DOWNGRADE" default:"false"`

	ForwardTimeout time.Duration `envconfig:"FORWARD_TIMEOUT" default:"15s"`

	CommandTTL    time.Duration `envconfig:"COMMAND_TTL" default:"1h"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`

	// Per-caller token bucket for the OCPI subtree.
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"2"`
	RateBurst int     `envconfig:"RATE_BURST" default:"120"`
}

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("ocpihub", &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
