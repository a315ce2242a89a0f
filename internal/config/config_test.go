package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
wallet:
  private_key: "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
  chain_id: 80002
  signature_type: 0

api:
  clob_base_url: "https://clob.polymarket.com"
  ws_base_url: "wss://ws-subscriptions-clob.polymarket.com/ws"

feed:
  asset_ids:
    - "7132107"
  heartbeat_interval: 30s

logging:
  level: debug
  format: text
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedtap.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Wallet.ChainID != 80002 {
		t.Fatalf("chain_id = %d, want 80002", cfg.Wallet.ChainID)
	}
	if got := cfg.Feed.HeartbeatInterval.String(); got != "30s" {
		t.Fatalf("heartbeat_interval = %s, want 30s", got)
	}
	if len(cfg.Feed.AssetIDs) != 1 || cfg.Feed.AssetIDs[0] != "7132107" {
		t.Fatalf("asset_ids = %v", cfg.Feed.AssetIDs)
	}
}

func TestEnvOverridesSensitiveFields(t *testing.T) {
	t.Setenv("POLY_PRIVATE_KEY", "0xdeadbeef")
	t.Setenv("POLY_API_KEY", "key-from-env")
	t.Setenv("POLY_API_SECRET", "secret-from-env")
	t.Setenv("POLY_PASSPHRASE", "pass-from-env")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Wallet.PrivateKey != "0xdeadbeef" {
		t.Fatalf("private key not overridden: %q", cfg.Wallet.PrivateKey)
	}
	if cfg.API.ApiKey != "key-from-env" || cfg.API.Secret != "secret-from-env" || cfg.API.Passphrase != "pass-from-env" {
		t.Fatalf("credentials not overridden: %+v", cfg.API)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing private key", func(c *Config) { c.Wallet.PrivateKey = "" }},
		{"unsupported chain", func(c *Config) { c.Wallet.ChainID = 1 }},
		{"bad signature type", func(c *Config) { c.Wallet.SignatureType = 9 }},
		{"funder with EOA", func(c *Config) { c.Wallet.FunderAddress = "0x1234" }},
		{"no subscriptions", func(c *Config) { c.Feed.AssetIDs = nil; c.Feed.UserMarkets = nil }},
		{"negative heartbeat", func(c *Config) { c.Feed.HeartbeatInterval = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleYAML))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate accepted a broken config")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load should fail on a missing file")
	}
}
