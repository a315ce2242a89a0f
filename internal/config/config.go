// Package config defines configuration for the feedtap diagnostic tool.
// Config is loaded from a YAML file (default: configs/feedtap.yaml) with
// sensitive fields overridable via POLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Wallet  WalletConfig  `mapstructure:"wallet"`
	API     APIConfig     `mapstructure:"api"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// WalletConfig holds the Ethereum wallet used for signing.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys.
// FunderAddress is the on-chain address that funds orders (leave empty
// to self-fund for EOA, or to derive it for proxy/safe wallets).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int64  `mapstructure:"chain_id"`
}

// APIConfig holds venue endpoints and optional pre-derived L2
// credentials. If ApiKey/Secret/Passphrase are empty, feedtap derives
// them via L1 auth on startup.
type APIConfig struct {
	CLOBBaseURL string `mapstructure:"clob_base_url"`
	WSBaseURL   string `mapstructure:"ws_base_url"`
	ApiKey      string `mapstructure:"api_key"`
	Secret      string `mapstructure:"secret"`
	Passphrase  string `mapstructure:"passphrase"`
}

// FeedConfig selects what feedtap subscribes to.
//
//   - AssetIDs: token ids to follow on the market channel.
//   - UserMarkets: condition ids to follow on the user channel
//     (empty = market data only, no authentication needed beyond L1).
//   - HeartbeatInterval: REST keepalive cadence once authenticated
//     (0 disables it).
type FeedConfig struct {
	AssetIDs          []string      `mapstructure:"asset_ids"`
	UserMarkets       []string      `mapstructure:"user_markets"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: POLY_PRIVATE_KEY, POLY_API_KEY,
// POLY_API_SECRET, POLY_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("POLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if key := os.Getenv("POLY_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("POLY_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("POLY_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("POLY_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set POLY_PRIVATE_KEY)")
	}
	switch c.Wallet.ChainID {
	case 137, 80002:
	default:
		return fmt.Errorf("wallet.chain_id must be 137 (Polygon) or 80002 (Amoy)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType == 0 && c.Wallet.FunderAddress != "" {
		return fmt.Errorf("wallet.funder_address must be empty when wallet.signature_type is 0 (the signer funds itself)")
	}
	if len(c.Feed.AssetIDs) == 0 && len(c.Feed.UserMarkets) == 0 {
		return fmt.Errorf("feed.asset_ids or feed.user_markets must name at least one subscription")
	}
	if c.Feed.HeartbeatInterval < 0 {
		return fmt.Errorf("feed.heartbeat_interval must not be negative")
	}
	return nil
}
