package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/tabwatch/fleetwatch/pkg/jwtx"
)

// Config is the process configuration, populated from the environment.
type Config struct {
	// Issuer is the iss claim stamped into every signed token.
	Issuer string `env:"AUTH_ISSUER" envDefault:"fleetwatch-authd"`

	// SigningSeedFile points at a 32-byte Ed25519 seed. When empty an
	// ephemeral keypair is generated and every outstanding token dies
	// with the process.
	SigningSeedFile string `env:"AUTH_SIGNING_SEED_FILE"`

	AccessTokenTTL  time.Duration `env:"AUTH_ACCESS_TTL"`
	RefreshTokenTTL time.Duration `env:"AUTH_REFRESH_TTL"`

	DatabaseFile string `env:"AUTH_DATABASE_FILE" envDefault:"fleetwatch-auth.db"`

	// BootstrapAdminUser and BootstrapAdminPassword seed the first admin
	// on an empty database. A blank password means one is generated and
	// logged once at startup.
	BootstrapAdminUser     string `env:"AUTH_BOOTSTRAP_ADMIN_USER" envDefault:"admin"`
	BootstrapAdminPassword string `env:"AUTH_BOOTSTRAP_ADMIN_PASSWORD"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = jwtx.DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = jwtx.DefaultRefreshTokenTTL
	}

	return cfg, nil
}
