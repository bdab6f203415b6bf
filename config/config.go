package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Admin     AdminConfig     `mapstructure:"admin"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"` // debug, release, test
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"` // 0 = go-redis default
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ChainConfig configures the relief contract client used for settlement.
type ChainConfig struct {
	RPCURL                  string        `mapstructure:"rpc_url"`
	ContractAddress         string        `mapstructure:"contract_address"`
	RelayerKey              string        `mapstructure:"relayer_key"` // hex-encoded secp256k1 key
	ChainID                 int64         `mapstructure:"chain_id"`    // 0 = ask the node
	GasLimit                uint64        `mapstructure:"gas_limit"`   // 0 = estimate
	ConfirmTimeout          time.Duration `mapstructure:"confirm_timeout"`
	RequireVerifiedMerchant bool          `mapstructure:"require_verified_merchant"`
}

// Enabled reports whether enough is configured to talk to the contract.
func (c ChainConfig) Enabled() bool {
	return c.RPCURL != "" && c.ContractAddress != ""
}

// ReconcileConfig tunes the bulk reconciliation coordinator.
type ReconcileConfig struct {
	Mode          string        `mapstructure:"mode"`           // sync, async
	Concurrency   int           `mapstructure:"concurrency"`    // parallel settlement calls per batch
	FailurePolicy string        `mapstructure:"failure_policy"` // fail, revert, retain
	ItemTimeout   time.Duration `mapstructure:"item_timeout"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	ReportTTL     time.Duration `mapstructure:"report_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // 0 disables the background sweep
	SweepAge      time.Duration `mapstructure:"sweep_age"`
	SweepLimit    int           `mapstructure:"sweep_limit"`
}

type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // argon2id encoded
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// NotifyConfig configures the optional settlement event callback.
type NotifyConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: RLF_ (ReLief Fund).
// Nested keys use underscore: RLF_DATABASE_HOST, RLF_CHAIN_RPC_URL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "relief_offline")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("chain.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("chain.contract_address", "")
	v.SetDefault("chain.relayer_key", "")
	v.SetDefault("chain.chain_id", 0)
	v.SetDefault("chain.gas_limit", 0)
	v.SetDefault("chain.confirm_timeout", "2m")
	v.SetDefault("chain.require_verified_merchant", false)
	v.SetDefault("reconcile.mode", "sync")
	v.SetDefault("reconcile.concurrency", 4)
	v.SetDefault("reconcile.failure_policy", "fail")
	v.SetDefault("reconcile.item_timeout", "3m")
	v.SetDefault("reconcile.lock_ttl", "5m")
	v.SetDefault("reconcile.report_ttl", "24h")
	v.SetDefault("reconcile.sweep_interval", "0s")
	v.SetDefault("reconcile.sweep_age", "10m")
	v.SetDefault("reconcile.sweep_limit", 100)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "relief-offline-ledger")
	v.SetDefault("notify.url", "")
	v.SetDefault("notify.secret", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: RLF_DATABASE_HOST -> database.host
	v.SetEnvPrefix("RLF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required; env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects unknown enum values, nonsensical limits and a missing JWT secret.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	switch c.Reconcile.Mode {
	case "sync", "async":
	default:
		return fmt.Errorf("reconcile.mode: unknown mode %q", c.Reconcile.Mode)
	}
	switch c.Reconcile.FailurePolicy {
	case "fail", "revert", "retain":
	default:
		return fmt.Errorf("reconcile.failure_policy: unknown policy %q", c.Reconcile.FailurePolicy)
	}
	if c.Reconcile.Concurrency < 1 {
		return fmt.Errorf("reconcile.concurrency must be >= 1, got %d", c.Reconcile.Concurrency)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}
	return nil
}
