package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GoogleAPIConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// SyncConfig holds the calendar sync tunables. Zero values fall back to the
// defaults in core/constants.
type SyncConfig struct {
	TokenRefreshSkewMinutes int    `mapstructure:"token_refresh_skew_minutes"`
	RetryAttempts           int    `mapstructure:"retry_attempts"`
	MaxParallel             int    `mapstructure:"max_parallel"`
	Timezone                string `mapstructure:"timezone"`
	// EncryptionKey is the base64-encoded 32-byte key used to encrypt
	// provider tokens at rest.
	EncryptionKey string `mapstructure:"encryption_key"`
}

// TokenRefreshSkew converts the configured skew to a duration.
func (s SyncConfig) TokenRefreshSkew() time.Duration {
	return time.Duration(s.TokenRefreshSkewMinutes) * time.Minute
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	GoogleAPI GoogleAPIConfig `mapstructure:"google"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Sync      SyncConfig      `mapstructure:"sync"`
}

var (
	instance *Config
	mu       sync.RWMutex
)

// Load reads .env (if present) plus environment variables and builds the
// process configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_json", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "rosterhub")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("sync.token_refresh_skew_minutes", 5)
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("sync.max_parallel", 4)
	v.SetDefault("sync.timezone", "America/New_York")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	mu.Lock()
	instance = &cfg
	mu.Unlock()
	return &cfg, nil
}

// Get returns the loaded configuration; panics when Load was never called.
func Get() *Config {
	cfg, ok := GetSafe()
	if !ok {
		panic("config: Get called before Load")
	}
	return cfg
}

// GetSafe returns the loaded configuration without panicking.
func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}

// Set replaces the process configuration. Intended for tests.
func Set(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}
