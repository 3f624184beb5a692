// Package config loads bridge settings from EDITOR_BRIDGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"editor-bridge/codec"
	"editor-bridge/logging"

	"github.com/caarlos0/env/v11"
)

// Config holds every knob of the bridge, the CLI and the editor stub.
type Config struct {
	// Addr of the editor endpoint. Ignored when EtcdEndpoints is set.
	Addr string `env:"ADDR" envDefault:"127.0.0.1:30020"`

	// Discovery: editors announce themselves under Project in etcd.
	Project       string   `env:"PROJECT" envDefault:"default"`
	EtcdEndpoints []string `env:"ETCD_ENDPOINTS" envSeparator:","`
	Balancer      string   `env:"BALANCER" envDefault:"round_robin"`
	AffinityKey   string   `env:"AFFINITY_KEY"`

	Codec       string        `env:"CODEC" envDefault:"json"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"500ms"`
	CallTimeout time.Duration `env:"CALL_TIMEOUT" envDefault:"30s"`
	Heartbeat   time.Duration `env:"HEARTBEAT" envDefault:"30s"` // 0 disables

	// RateLimit in calls per second; 0 disables limiting.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"RATE_BURST" envDefault:"1"`

	// Retries re-sends calls that timed out. Off by default: a timed out mutating call
	// may already have been applied by the editor.
	Retries    int           `env:"RETRIES" envDefault:"0"`
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"200ms"`

	// ContractsFile replaces the embedded method catalogue when set.
	ContractsFile   string `env:"CONTRACTS_FILE"`
	StrictContracts bool   `env:"STRICT_CONTRACTS" envDefault:"false"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`

	// OTLPEndpoint is the OTLP/HTTP collector base URL; empty disables export.
	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
}

const envPrefix = "EDITOR_BRIDGE_"

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: envPrefix})
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: envPrefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" && len(c.EtcdEndpoints) == 0 {
		errs = append(errs, errors.New("either ADDR or ETCD_ENDPOINTS is required"))
	}
	if _, err := codec.ParseCodecType(c.Codec); err != nil {
		errs = append(errs, err)
	}
	switch c.Balancer {
	case "round_robin", "weighted_random", "consistent_hash":
	default:
		errs = append(errs, fmt.Errorf("unknown balancer %q", c.Balancer))
	}
	if c.DialTimeout <= 0 {
		errs = append(errs, errors.New("DIAL_TIMEOUT must be positive"))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("CALL_TIMEOUT must be positive"))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, errors.New("HEARTBEAT must not be negative"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("RATE_LIMIT must not be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, errors.New("RATE_BURST must be at least 1"))
	}
	if c.Retries < 0 {
		errs = append(errs, errors.New("RETRIES must not be negative"))
	}
	if c.Retries > 0 && c.RetryDelay <= 0 {
		errs = append(errs, errors.New("RETRY_DELAY must be positive"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// UseDiscovery reports whether editors are found through etcd rather than Addr.
func (c Config) UseDiscovery() bool { return len(c.EtcdEndpoints) > 0 }
