package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	t.Setenv("BACKEND_URL", "http://backend.local")
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, []string{"https://api.mainnet-beta.solana.com"}, cfg.SolanaRPCURLs)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, "101", cfg.Profile.ChainID)
	assert.Equal(t, "txfeed-reconcile", cfg.TemporalTaskQueue)
	assert.Equal(t, 30*time.Second, cfg.DefaultPollInterval)
	assert.Equal(t, 10*time.Second, cfg.MinPollInterval)
	assert.Equal(t, 50, cfg.SignatureLimit)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SOLANA_RPC_URL", "")
	t.Setenv("BACKEND_URL", "")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL is required")
	assert.Contains(t, err.Error(), "BACKEND_URL is required")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad poll interval", "DEFAULT_POLL_INTERVAL", "invalid", "invalid duration"},
		{"min above default", "MIN_POLL_INTERVAL", "1m", "cannot be greater than"},
		{"bad cache ttl", "CACHE_TTL", "soon", "CACHE_TTL"},
		{"signature limit too large", "SIGNATURE_LIMIT", "5000", "SIGNATURE_LIMIT must be between"},
		{"signature limit not a number", "SIGNATURE_LIMIT", "lots", "invalid integer"},
		{"zero concurrency", "FETCH_CONCURRENCY", "0", "FETCH_CONCURRENCY must be positive"},
		{"unknown network", "NETWORK", "localnet", `NETWORK "localnet" has no network profile`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SOLANA_RPC_URL", "https://a.example, https://b.example,")
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("NETWORK", "devnet")
	t.Setenv("SIGNATURE_LIMIT", "100")
	t.Setenv("FETCH_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.SolanaRPCURLs)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "devnet", cfg.Profile.Name)
	assert.Equal(t, 100, cfg.SignatureLimit)
	assert.Equal(t, 8, cfg.FetchConcurrency)
}

func TestLoad_NetworksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
networks:
  - name: localnet
    chain_id: "900"
    explorer_url_template: "http://localhost:3000/tx/{signature}?cluster={cluster}"
    native_symbol: SOL
`), 0o600))

	setRequiredEnv(t)
	t.Setenv("NETWORKS_FILE", path)
	t.Setenv("NETWORK", "localnet")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "900", cfg.Profile.ChainID)

	cc := cfg.Profile.ClassifyContext("alice")
	assert.Equal(t, "localnet", cc.Network)
	assert.Equal(t, "alice", cc.SelectedAddress)
	assert.Equal(t, "SOL", cc.NativeSymbol)
}

func TestParseNetworks(t *testing.T) {
	t.Run("overrides builtin", func(t *testing.T) {
		networks, err := parseNetworks([]byte(`
networks:
  - name: mainnet
    chain_id: "101"
    explorer_url_template: "https://solscan.io/tx/{signature}"
    native_symbol: SOL
`), BuiltinNetworks())
		require.NoError(t, err)
		assert.Equal(t, "https://solscan.io/tx/{signature}", networks["mainnet"].ExplorerURLTemplate)
		assert.Contains(t, networks, "devnet")
	})

	t.Run("rejects incomplete profile", func(t *testing.T) {
		_, err := parseNetworks([]byte(`
networks:
  - name: broken
    explorer_url_template: "https://example.com/tx"
`), BuiltinNetworks())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chain_id")
		assert.Contains(t, err.Error(), "{signature}")
		assert.Contains(t, err.Error(), "native_symbol")
	})

	t.Run("rejects bad yaml", func(t *testing.T) {
		_, err := parseNetworks([]byte("networks: [:"), BuiltinNetworks())
		assert.Error(t, err)
	})
}

func TestLoadNetworks_MissingFile(t *testing.T) {
	_, err := LoadNetworks(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:         "postgres://localhost/test",
			SolanaRPCURLs:       []string{"https://api.mainnet-beta.solana.com"},
			BackendURL:          "http://backend.local",
			Profile:             BuiltinNetworks()["mainnet"],
			TemporalHost:        "localhost:7233",
			TemporalNamespace:   "default",
			TemporalTaskQueue:   "txfeed-reconcile",
			DefaultPollInterval: 30 * time.Second,
			MinPollInterval:     10 * time.Second,
			SignatureLimit:      50,
			FetchConcurrency:    4,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DatabaseURL is required"},
		{"missing backend", func(c *Config) { c.BackendURL = "" }, "BackendURL is required"},
		{"inverted intervals", func(c *Config) { c.MinPollInterval = time.Hour }, "cannot be greater than"},
		{"too short interval", func(c *Config) {
			c.DefaultPollInterval = 500 * time.Millisecond
			c.MinPollInterval = 100 * time.Millisecond
		}, "at least 1 second"},
		{"empty profile", func(c *Config) { c.Profile = NetworkProfile{} }, "network profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SOLANA_RPC_URL", "")
	assert.Panics(t, func() { MustLoad() })
}
