package config

import (
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
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Economy   EconomyConfig   `mapstructure:"economy"`
	Odds      OddsConfig      `mapstructure:"odds"`
	Blackjack BlackjackConfig `mapstructure:"blackjack"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the ledger persistence backend.
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
	// StatementTimeout bounds every statement, including the row-lock wait
	// inside a settlement.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
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

	// Redis sits on the wager path (user lock, rate limit, idempotency),
	// so reads and writes use short timeouts.
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// EconomyConfig holds ledger and exchange parameters.
// Monetary values are minor units (1.00 = 100).
type EconomyConfig struct {
	StartingCash         int64         `mapstructure:"starting_cash"`
	StartingCredits      int64         `mapstructure:"starting_credits"`
	BaseExchangeRate     float64       `mapstructure:"base_exchange_rate"`
	FluctuationRange     float64       `mapstructure:"fluctuation_range"`
	RateMaxStep          float64       `mapstructure:"rate_max_step"`
	RateTickInterval     time.Duration `mapstructure:"rate_tick_interval"`
	ExchangePenaltyStep  float64       `mapstructure:"exchange_penalty_step"`
	ExchangePenaltyCap   float64       `mapstructure:"exchange_penalty_cap"`
	PenaltyHalfLife      time.Duration `mapstructure:"penalty_half_life"`
	DailyBonusAmount     int64         `mapstructure:"daily_bonus_amount"`
	DailyCashAmount      int64         `mapstructure:"daily_cash_amount"`
	DailyBonusCooldown   time.Duration `mapstructure:"daily_bonus_cooldown"`
	HouseCutPercent      float64       `mapstructure:"house_cut_percent"`
	HouseCutThreshold    int64         `mapstructure:"house_cut_threshold"`
	BigWinMultiplier     float64       `mapstructure:"big_win_multiplier"`
	RoundSigningKey      string        `mapstructure:"round_signing_key"`
	UserLockTTL          time.Duration `mapstructure:"user_lock_ttl"`
	IdempotencyTTL       time.Duration `mapstructure:"idempotency_ttl"`
	DistributedUserLocks bool          `mapstructure:"distributed_user_locks"`
}

// OddsConfig points at the odds file consumed by the registry.
type OddsConfig struct {
	Path  string `mapstructure:"path"` // empty = built-in defaults
	Watch bool   `mapstructure:"watch"`
}

type BlackjackConfig struct {
	HandTimeout   time.Duration `mapstructure:"hand_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type BroadcastConfig struct {
	SendBuffer     int           `mapstructure:"send_buffer"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	ChatHistory    int           `mapstructure:"chat_history"`
	ChatReplay     int           `mapstructure:"chat_replay"`
	ChatMaxLength  int           `mapstructure:"chat_max_length"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	WSMaxMessages  int           `mapstructure:"ws_max_messages"`
	WSWindow       time.Duration `mapstructure:"ws_window"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RateLimitConfig struct {
	GamesPerMinute int64 `mapstructure:"games_per_minute"`
	APIPerMinute   int64 `mapstructure:"api_per_minute"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CASINO_.
// Nested keys use underscore: CASINO_DATABASE_HOST, CASINO_ECONOMY_HOUSE_CUT_PERCENT, etc.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("CASINO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Not required; env vars can suffice.
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "casino")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.statement_timeout", "5s")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "500ms")
	v.SetDefault("redis.write_timeout", "500ms")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "casino-engine")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("economy.starting_cash", 10000)
	v.SetDefault("economy.starting_credits", 0)
	v.SetDefault("economy.base_exchange_rate", 10.0)
	v.SetDefault("economy.fluctuation_range", 0.05)
	v.SetDefault("economy.rate_max_step", 0.01)
	v.SetDefault("economy.rate_tick_interval", "1m")
	v.SetDefault("economy.exchange_penalty_step", 0.02)
	v.SetDefault("economy.exchange_penalty_cap", 0.20)
	v.SetDefault("economy.penalty_half_life", "1h")
	v.SetDefault("economy.daily_bonus_amount", 10000)
	v.SetDefault("economy.daily_cash_amount", 5000)
	v.SetDefault("economy.daily_bonus_cooldown", "24h")
	v.SetDefault("economy.house_cut_percent", 5.0)
	v.SetDefault("economy.house_cut_threshold", 0)
	v.SetDefault("economy.big_win_multiplier", 10.0)
	v.SetDefault("economy.round_signing_key", "")
	v.SetDefault("economy.user_lock_ttl", "10s")
	v.SetDefault("economy.idempotency_ttl", "24h")
	v.SetDefault("economy.distributed_user_locks", false)

	v.SetDefault("odds.path", "")
	v.SetDefault("odds.watch", true)
	v.SetDefault("blackjack.hand_timeout", "10m")
	v.SetDefault("blackjack.sweep_interval", "30s")
	v.SetDefault("broadcast.send_buffer", 64)
	v.SetDefault("broadcast.write_timeout", "10s")
	v.SetDefault("broadcast.chat_history", 100)
	v.SetDefault("broadcast.chat_replay", 50)
	v.SetDefault("broadcast.chat_max_length", 200)
	v.SetDefault("broadcast.allowed_origins", []string{})
	v.SetDefault("broadcast.ws_max_messages", 10)
	v.SetDefault("broadcast.ws_window", "1s")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "casino.rounds")
	v.SetDefault("rate_limit.games_per_minute", 30)
	v.SetDefault("rate_limit.api_per_minute", 120)
}
