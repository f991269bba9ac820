package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
)

// ErrHelpWanted is returned by Load after usage has been printed for --help.
var ErrHelpWanted = conf.ErrHelpWanted

// Config holds all configuration for the service.
type Config struct {
	// HTTP
	Port         string        `conf:"default:8080,env:LARDER_PORT"`
	CORSOrigins  string        `conf:"default:*,env:LARDER_CORS_ORIGINS"`
	MaxBodyBytes int64         `conf:"default:1048576,env:LARDER_MAX_BODY_BYTES"`
	ReadTimeout  time.Duration `conf:"default:5s,env:LARDER_READ_TIMEOUT"`
	WriteTimeout time.Duration `conf:"default:10s,env:LARDER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `conf:"default:120s,env:LARDER_IDLE_TIMEOUT"`

	// Database
	DBPath string `conf:"default:larder.db,env:LARDER_DB_PATH"`

	// Logging
	LogLevel  string `conf:"default:info,enum:debug|info|warn|error,env:LARDER_LOG_LEVEL"`
	LogFormat string `conf:"default:text,enum:text|json,env:LARDER_LOG_FORMAT"`

	// Sessions
	SessionTTL    time.Duration `conf:"default:720h,env:LARDER_SESSION_TTL"`
	PurgeInterval time.Duration `conf:"default:1h,env:LARDER_PURGE_INTERVAL"`
	SecureCookies bool          `conf:"default:false,env:LARDER_SECURE_COOKIES"`

	// LoginRate is the number of register/login attempts allowed per client
	// IP per minute.
	LoginRate int `conf:"default:10,env:LARDER_LOGIN_RATE"`
	// TrustProxy keys the login limiter on CF-Connecting-IP/X-Forwarded-For.
	// Enable only when a proxy that overwrites those headers sits in front.
	TrustProxy bool `conf:"default:false,env:LARDER_TRUST_PROXY"`
}

// Load reads configuration from the environment, after loading an optional
// .env file, with sensible defaults.
func Load() (*Config, error) {
	var cfg Config
	_ = godotenv.Load()
	help, err := conf.Parse("", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil, err
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values conf cannot check with tags.
func (c *Config) Validate() error {
	var errs []error
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("LARDER_SESSION_TTL must be positive (got %s)", c.SessionTTL))
	}
	if c.PurgeInterval <= 0 {
		errs = append(errs, fmt.Errorf("LARDER_PURGE_INTERVAL must be positive (got %s)", c.PurgeInterval))
	}
	if c.LoginRate <= 0 {
		errs = append(errs, fmt.Errorf("LARDER_LOGIN_RATE must be positive (got %d)", c.LoginRate))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("LARDER_MAX_BODY_BYTES must be positive (got %d)", c.MaxBodyBytes))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// String renders the configuration for startup logs.
func (c *Config) String() string {
	out, err := conf.String(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return out
}
