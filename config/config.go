package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Platform PlatformConfig `mapstructure:"platform"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Payouts  PayoutsConfig  `mapstructure:"payouts"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
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
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// PlatformConfig holds per-layer endpoints of the remote nominal-account platform.
type PlatformConfig struct {
	SandboxURL string `mapstructure:"sandbox_url"`
	LiveURL    string `mapstructure:"live_url"`
}

// GatewayConfig controls the request gateway's timing behavior.
//
// Timeout is fixed and short on purpose: the console derives "next allowed
// call" countdowns from it, so it must not float per request.
type GatewayConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`           // per-call transport timeout, default 8s
	ListTTL          time.Duration `mapstructure:"list_ttl"`          // cache TTL for list/read endpoints
	LookupTTL        time.Duration `mapstructure:"lookup_ttl"`        // cache TTL for lookup-by-id endpoints (0 = never cached)
	ReadInterval     time.Duration `mapstructure:"read_interval"`     // minimum interval between fresh read calls per key
	MutatingInterval time.Duration `mapstructure:"mutating_interval"` // minimum interval between mutating calls per key
}

// VaultConfig configures at-rest encryption of signing credentials.
// The AES key is derived from passphrase+salt with argon2id at startup.
type VaultConfig struct {
	Passphrase string `mapstructure:"passphrase"`
	Salt       string `mapstructure:"salt"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	Expiry    time.Duration `mapstructure:"expiry"`
}

type PayoutsConfig struct {
	DefaultCron string `mapstructure:"default_cron"` // used when no schedule row exists yet
	Layer       string `mapstructure:"layer"`        // credential layer money movement runs against
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: VPC_ (Vending Payout Console).
// Nested keys use underscore: VPC_DATABASE_HOST, VPC_GATEWAY_TIMEOUT, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payout_console")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("platform.sandbox_url", "https://pre.nominal-platform.example/api/v1/cyclops")
	v.SetDefault("platform.live_url", "https://nominal-platform.example/api/v1/cyclops")
	v.SetDefault("gateway.timeout", "8s")
	v.SetDefault("gateway.list_ttl", "5m")
	v.SetDefault("gateway.lookup_ttl", "0s")
	v.SetDefault("gateway.read_interval", "30s")
	v.SetDefault("gateway.mutating_interval", "5s")
	v.SetDefault("vault.passphrase", "")
	v.SetDefault("vault.salt", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "vending-payout-console")
	v.SetDefault("auth.expiry", "12h")
	v.SetDefault("payouts.default_cron", "0 6 1 * *")
	v.SetDefault("payouts.layer", "sandbox")
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

	// Environment variables: VPC_DATABASE_HOST -> database.host
	v.SetEnvPrefix("VPC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
