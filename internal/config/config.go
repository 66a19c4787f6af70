package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Etcd      EtcdConfig      `mapstructure:"etcd"`
	DualWrite DualWriteConfig `mapstructure:"dualwrite"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`

	// Per-endpoint diff classification rules, keyed by api endpoint.
	Classifier map[string]ClassifierRuleConfig `mapstructure:"classifier"`
}

type ClassifierRuleConfig struct {
	Critical []string `mapstructure:"critical"`
	Volatile []string `mapstructure:"volatile"`
}

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
	Port        string `mapstructure:"port"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type DualWriteConfig struct {
	FlagCacheTTL   time.Duration `mapstructure:"flag_cache_ttl"`
	AsyncLifetime  time.Duration `mapstructure:"async_lifetime"`
	MaxComparisons int           `mapstructure:"max_comparisons"`
	MaxDiffDepth   int           `mapstructure:"max_diff_depth"`
}

type WorkersConfig struct {
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	RetentionDays     int           `mapstructure:"retention_days"`
	StreamBufferSize  int           `mapstructure:"stream_buffer_size"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

type AuthConfig struct {
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("HEARTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("dualwrite.flag_cache_ttl", 10*time.Second)
	viper.SetDefault("dualwrite.async_lifetime", 15*time.Second)
	viper.SetDefault("dualwrite.max_comparisons", 256)
	viper.SetDefault("dualwrite.max_diff_depth", 32)
	viper.SetDefault("workers.cleanup_interval", time.Hour)
	viper.SetDefault("workers.retention_days", 30)
	viper.SetDefault("workers.stream_buffer_size", 1000)
	viper.SetDefault("workers.heartbeat_interval", 15*time.Second)
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.port", ":8080")
	viper.SetDefault("auth.access_token_ttl", 15*time.Minute)
	viper.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	viper.SetDefault("ratelimit.requests_per_second", 10)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}
