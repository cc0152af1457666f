// Package config loads chaincode settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration of the chaincode. MinStakeFloor,
// VotingDelay and PlatformFee only take effect through InitLedger, which
// persists them so every endorsing peer agrees.
type Config struct {
	// ChaincodeID and ServerAddress enable chaincode-as-a-service mode.
	ChaincodeID   string `env:"CHAINCODE_ID"`
	ServerAddress string `env:"CHAINCODE_SERVER_ADDRESS"`
	TLSDisabled   bool   `env:"CHAINCODE_TLS_DISABLED" envDefault:"true"`

	LogSpec string `env:"CITADEL_LOG_SPEC" envDefault:"info"`

	MinStakeFloor uint64        `env:"CITADEL_MIN_STAKE_FLOOR" envDefault:"100000"`
	VotingDelay   time.Duration `env:"CITADEL_VOTING_DELAY" envDefault:"0s"`
	PlatformFee   uint64        `env:"CITADEL_PLATFORM_FEE_BPS" envDefault:"1000"`

	AssetIssuerChaincode string `env:"CITADEL_ASSET_ISSUER_CHAINCODE" envDefault:"moderator_nft"`
	AssetIssuerChannel   string `env:"CITADEL_ASSET_ISSUER_CHANNEL"`
	PaymentTransientKey  string `env:"CITADEL_PAYMENT_TRANSIENT_KEY" envDefault:"payment"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.VotingDelay < 0 {
		return Config{}, fmt.Errorf("CITADEL_VOTING_DELAY must not be negative, got %s", cfg.VotingDelay)
	}
	if cfg.PlatformFee > 10000 {
		return Config{}, fmt.Errorf("CITADEL_PLATFORM_FEE_BPS must be at most 10000, got %d", cfg.PlatformFee)
	}
	return cfg, nil
}

// ExternalService reports whether the chaincode should run as a service
// instead of being launched by the peer.
func (c Config) ExternalService() bool {
	return c.ServerAddress != ""
}
