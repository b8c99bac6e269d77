package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultRPCURL is the public mainnet-beta endpoint used when nothing else is configured.
	DefaultRPCURL = "https://api.mainnet-beta.solana.com"

	// DefaultProgramID is the Drift v2 program on mainnet-beta.
	DefaultProgramID = "dRiftyHA39MWEi3m9aunc5MzRF1JYuBsbn6VPcn33UH"

	// EnvPrefix prefixes every environment override (e.g. DRIFTEXPORT_DRIFT_RPC_URL).
	EnvPrefix = "DRIFTEXPORT"
)

type Config struct {
	Env      string         `mapstructure:"env"` // "dev" or "prod"
	Drift    DriftConfig    `mapstructure:"drift"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Export   ExportConfig   `mapstructure:"export"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type DriftConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	WSURL           string        `mapstructure:"ws_url"`           // derived from rpc_url when empty
	RPCURLParameter string        `mapstructure:"rpc_url_parameter"` // SSM parameter holding the RPC URL (prod)
	ProgramID       string        `mapstructure:"program_id"`
	Commitment      string        `mapstructure:"commitment"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	Concurrency     int           `mapstructure:"concurrency"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

type CacheConfig struct {
	Dir          string        `mapstructure:"dir"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	ForceRefresh bool          `mapstructure:"force_refresh"`
}

type ExportConfig struct {
	OutputDir          string `mapstructure:"output_dir"`
	FilenameTimeFormat string `mapstructure:"filename_time_format"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load reads configuration from an optional .env file, an optional config.yaml
// and DRIFTEXPORT_* environment variables, in increasing order of precedence.
// path may point at a config file or a directory containing config.yaml.
func Load(path string) (*Config, error) {
	// .env is optional, exactly like the scripts this tool replaces.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			v.SetConfigFile(path)
		} else {
			v.AddConfigPath(path)
		}
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".driftexport"))
	}

	// Support environment variables with dot notation (e.g., DRIFTEXPORT_DRIFT_RPC_URL)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// RPC_URL is what every .env written for the old scripts contains.
	if legacy := os.Getenv("RPC_URL"); legacy != "" &&
		os.Getenv(EnvPrefix+"_DRIFT_RPC_URL") == "" && !v.InConfig("drift.rpc_url") {
		cfg.Drift.RPCURL = legacy
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("drift.rpc_url", DefaultRPCURL)
	v.SetDefault("drift.ws_url", "")
	v.SetDefault("drift.rpc_url_parameter", "")
	v.SetDefault("drift.program_id", DefaultProgramID)
	v.SetDefault("drift.commitment", "confirmed")
	v.SetDefault("drift.chunk_size", 100)
	v.SetDefault("drift.concurrency", 10)
	v.SetDefault("drift.request_timeout", 2*time.Minute)

	v.SetDefault("cache.dir", "snapshots")
	v.SetDefault("cache.max_age", time.Hour)
	v.SetDefault("cache.force_refresh", false)

	v.SetDefault("export.output_dir", ".")
	v.SetDefault("export.filename_time_format", "01022006150405")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")
	v.SetDefault("log.output_file", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "driftexport")

	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
}

// Validate rejects values that would make the fetch pipeline misbehave.
func (c *Config) Validate() error {
	if c.Drift.RPCURL == "" && c.Drift.RPCURLParameter == "" {
		return errors.New("drift.rpc_url is required")
	}
	if c.Drift.ChunkSize < 1 || c.Drift.ChunkSize > 100 {
		return fmt.Errorf("drift.chunk_size must be between 1 and 100, got %d", c.Drift.ChunkSize)
	}
	if c.Drift.Concurrency < 1 {
		return fmt.Errorf("drift.concurrency must be >= 1, got %d", c.Drift.Concurrency)
	}
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must be >= 0, got %s", c.Cache.MaxAge)
	}
	if c.Cache.Dir == "" {
		return errors.New("cache.dir is required")
	}
	return nil
}
