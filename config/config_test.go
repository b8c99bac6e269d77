package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// go test -v --run TestLoadDefaults
func TestLoadDefaults(t *testing.T) {
	t.Setenv("RPC_URL", "")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultRPCURL, cfg.Drift.RPCURL)
	assert.Equal(t, DefaultProgramID, cfg.Drift.ProgramID)
	assert.Equal(t, 100, cfg.Drift.ChunkSize)
	assert.Equal(t, 10, cfg.Drift.Concurrency)
	assert.Equal(t, "snapshots", cfg.Cache.Dir)
	assert.Equal(t, time.Hour, cfg.Cache.MaxAge)
	assert.False(t, cfg.Cache.ForceRefresh)
	assert.Equal(t, "01022006150405", cfg.Export.FilenameTimeFormat)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("RPC_URL", "")
	path := writeConfig(t, `
drift:
  rpc_url: https://rpc.example.com
  chunk_size: 50
cache:
  dir: /tmp/snapshots
  max_age: 30m
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.com", cfg.Drift.RPCURL)
	assert.Equal(t, 50, cfg.Drift.ChunkSize)
	assert.Equal(t, "/tmp/snapshots", cfg.Cache.Dir)
	assert.Equal(t, 30*time.Minute, cfg.Cache.MaxAge)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("DRIFTEXPORT_DRIFT_RPC_URL", "https://env.example.com")
	t.Setenv("DRIFTEXPORT_CACHE_MAX_AGE", "2h")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Drift.RPCURL)
	assert.Equal(t, 2*time.Hour, cfg.Cache.MaxAge)
}

func TestLoadLegacyRPCURL(t *testing.T) {
	t.Setenv("RPC_URL", "https://legacy.example.com")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "https://legacy.example.com", cfg.Drift.RPCURL)

	// An explicit config value wins over the legacy variable.
	path := writeConfig(t, "drift:\n  rpc_url: https://file.example.com\n")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.Drift.RPCURL)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Drift: DriftConfig{RPCURL: DefaultRPCURL, ChunkSize: 100, Concurrency: 10},
			Cache: CacheConfig{Dir: "snapshots", MaxAge: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero chunk", func(c *Config) { c.Drift.ChunkSize = 0 }, true},
		{"chunk above rpc limit", func(c *Config) { c.Drift.ChunkSize = 101 }, true},
		{"zero concurrency", func(c *Config) { c.Drift.Concurrency = 0 }, true},
		{"negative max age", func(c *Config) { c.Cache.MaxAge = -time.Second }, true},
		{"empty cache dir", func(c *Config) { c.Cache.Dir = "" }, true},
		{"no rpc at all", func(c *Config) { c.Drift.RPCURL = "" }, true},
		{"rpc from parameter", func(c *Config) {
			c.Drift.RPCURL = ""
			c.Drift.RPCURLParameter = "/drift/rpc"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "pw",
		DBName:   "driftexport",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=pw dbname=driftexport sslmode=disable TimeZone=UTC",
		cfg.DSN("dev"))
	assert.Contains(t, cfg.AdminDSN(), "dbname=postgres")
}

func stubParameterStore(t *testing.T, values map[string]string) {
	t.Helper()
	prev := parameterStore
	parameterStore = func(_ context.Context, name string, _ bool) (string, error) {
		v, ok := values[name]
		if !ok {
			return "", errors.New("parameter not found")
		}
		return v, nil
	}
	t.Cleanup(func() { parameterStore = prev })
}

func TestPostgresDSNProdUsesParameterStore(t *testing.T) {
	stubParameterStore(t, map[string]string{
		"/db/host":     "db.internal",
		"/db/password": "secret",
	})

	cfg := PostgresConfig{
		Host:              "localhost",
		Port:              5432,
		User:              "postgres",
		DBName:            "driftexport",
		SSLMode:           "require",
		HostParameter:     "/db/host",
		UserParameter:     "/db/missing",
		PasswordParameter: "/db/password",
	}

	dsn := cfg.DSN("prod")
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "user=postgres") // falls back when the parameter is absent
	assert.Contains(t, dsn, "password=secret")
}

func TestResolveRPCURL(t *testing.T) {
	stubParameterStore(t, map[string]string{"/drift/rpc": "https://secret.example.com/key"})
	ctx := context.Background()

	d := DriftConfig{RPCURL: "https://plain.example.com", RPCURLParameter: "/drift/rpc"}

	url, err := d.ResolveRPCURL(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, "https://plain.example.com", url)

	url, err = d.ResolveRPCURL(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, "https://secret.example.com/key", url)

	d.RPCURLParameter = "/drift/unknown"
	_, err = d.ResolveRPCURL(ctx, "prod")
	assert.Error(t, err)
}
