// Package config loads the mesh hub's runtime configuration from
// environment variables and validates it with validator/v10 struct tags.
// Loading a .env file into the environment is done by cmd/hub, not here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meshhub/hub/pkg/database"
)

// Config is the mesh hub's full runtime configuration, assembled from
// environment variables by Load.
type Config struct {
	HTTPPort string `validate:"required"`

	Database database.Config

	RedisAddr string

	Federation FederationConfig
	A2A        A2AConfig
	Contract   ContractConfig
	Reputation ReputationConfig
}

// FederationConfig tunes C8's outbound signing and inbound verification
// (spec §4.8, §6).
type FederationConfig struct {
	LocalDomain   string        `validate:"required"`
	SharedSecret  string        `validate:"required"`
	HMACRequired  bool
	DefaultAllow  bool
	OutboundTimeout time.Duration `validate:"required,gt=0"`
}

// A2AConfig tunes C2's per-identity rate limits as enforced by C7 (spec §4.2,
// §4.7).
type A2AConfig struct {
	OrgLimitPerMin     int           `validate:"required,gt=0"`
	OrgWindow          time.Duration `validate:"required,gt=0"`
	APIKeyLimitPerMin  int           `validate:"required,gt=0"`
	APIKeyWindow       time.Duration `validate:"required,gt=0"`
}

// ContractConfig tunes C6's state machine timing (spec §4.6).
type ContractConfig struct {
	BiddingWindow      time.Duration `validate:"required,gt=0"`
	SweepInterval      time.Duration `validate:"required,gt=0"`
	ValidationPass     float64       `validate:"gte=0,lte=1"`
	MaxExecutionWindow time.Duration `validate:"required,gt=0"`
}

// ReputationConfig tunes C5's recalculation sweep (spec §4.5).
type ReputationConfig struct {
	RecalcInterval time.Duration `validate:"required,gt=0"`
}

// Load reads every setting from the environment, applying defaults for any
// that are unset, then validates the result with struct tags.
func Load() (*Config, error) {
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}

	orgWindow, err := envDuration("A2A_ORG_RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	apiKeyWindow, err := envDuration("A2A_API_KEY_RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	outboundTimeout, err := envDuration("FEDERATION_OUTBOUND_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	biddingWindow, err := envDuration("CONTRACT_BIDDING_WINDOW", 3*time.Second)
	if err != nil {
		return nil, err
	}
	sweepInterval, err := envDuration("CONTRACT_SWEEP_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}
	maxExecWindow, err := envDuration("CONTRACT_MAX_EXECUTION_WINDOW", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	recalcSeconds, err := envInt("TRUST_RECALC_INTERVAL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	validationPass, err := envFloat("CONTRACT_VALIDATION_PASS", 0.6)
	if err != nil {
		return nil, err
	}
	orgLimit, err := envInt("A2A_ORG_RATE_LIMIT_PER_MIN", 600)
	if err != nil {
		return nil, err
	}
	apiKeyLimit, err := envInt("A2A_API_KEY_RATE_LIMIT_PER_MIN", 100)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort: envString("HTTP_PORT", "8080"),
		Database: dbCfg,
		RedisAddr: envString("REDIS_ADDR", "localhost:6379"),
		Federation: FederationConfig{
			LocalDomain:     envString("FEDERATION_DOMAIN", ""),
			SharedSecret:    os.Getenv("FEDERATION_SHARED_SECRET"),
			HMACRequired:    envBool("FEDERATION_HMAC_REQUIRED", true),
			DefaultAllow:    envBool("FEDERATION_DEFAULT_ALLOW", false),
			OutboundTimeout: outboundTimeout,
		},
		A2A: A2AConfig{
			OrgLimitPerMin:    orgLimit,
			OrgWindow:         orgWindow,
			APIKeyLimitPerMin: apiKeyLimit,
			APIKeyWindow:      apiKeyWindow,
		},
		Contract: ContractConfig{
			BiddingWindow:      biddingWindow,
			SweepInterval:      sweepInterval,
			ValidationPass:     validationPass,
			MaxExecutionWindow: maxExecWindow,
		},
		Reputation: ReputationConfig{
			RecalcInterval: time.Duration(recalcSeconds) * time.Second,
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
