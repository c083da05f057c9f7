package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-finance/internal/middleware"
	"github.com/jwalitptl/clinic-finance/internal/router"
	"github.com/jwalitptl/clinic-finance/internal/service/billing"
	"github.com/jwalitptl/clinic-finance/pkg/invoice"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
	"github.com/jwalitptl/clinic-finance/pkg/mailer"
	"github.com/jwalitptl/clinic-finance/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-finance/pkg/worker"
)

// EnvPrefix namespaces environment overrides, e.g. CLINIC_DATABASE_HOST.
const EnvPrefix = "clinic"

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" split_words:"true"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" split_words:"true"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" split_words:"true"`
	// HealthPort serves the worker's health and metrics endpoints.
	HealthPort int `mapstructure:"health_port" split_words:"true"`
}

type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
	// WriteRoles may call mutating routes; empty allows any valid token.
	WriteRoles []string `mapstructure:"write_roles" split_words:"true"`
}

type RedisConfig struct {
	URL           string        `mapstructure:"url"`
	ChannelPrefix string        `mapstructure:"channel_prefix" split_words:"true"`
	MaxRetries    int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize      int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns  int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval  time.Duration `mapstructure:"poll_interval" split_words:"true"`
	RetryAttempts int           `mapstructure:"retry_attempts" split_words:"true"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" split_words:"true"`
	// Retention is how long processed events are kept.
	Retention time.Duration `mapstructure:"retention"`
}

type InvoiceConfig struct {
	URL      string        `mapstructure:"url"`
	APIKey   string        `mapstructure:"api_key" split_words:"true"`
	Currency string        `mapstructure:"currency"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Subject  string `mapstructure:"subject"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int           `mapstructure:"burst"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl" split_words:"true"`
}

type SchedulerConfig struct {
	BalanceRefreshMinutes int `mapstructure:"balance_refresh_minutes" split_words:"true"`
	CleanupHours          int `mapstructure:"cleanup_hours" split_words:"true"`
	AuditRetentionDays    int `mapstructure:"audit_retention_days" split_words:"true"`
}

type BillingConfig struct {
	ClinicName string `mapstructure:"clinic_name" split_words:"true"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Invoice   InvoiceConfig   `mapstructure:"invoice"`
	Mail      MailConfig      `mapstructure:"mail"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" split_words:"true"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Log       LogConfig       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.health_port", 8081)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.channel_prefix", "finance")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 500*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	v.SetDefault("invoice.currency", "INR")
	v.SetDefault("invoice.timeout", 15*time.Second)

	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.subject", "Your treatment invoice")

	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)

	v.SetDefault("scheduler.balance_refresh_minutes", 15)
	v.SetDefault("scheduler.cleanup_hours", 24)
	v.SetDefault("scheduler.audit_retention_days", 365)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yml from the usual locations, or from path when it
// is set, then applies CLINIC_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.Host == "" {
		missing = append(missing, "database.host")
	}
	if c.Database.Name == "" {
		missing = append(missing, "database.name")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) Logger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(c.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    c.Log.Console,
	})
}

func (c *Config) RouterConfig() router.RouterConfig {
	cors := middleware.DefaultCORSConfig()
	if len(c.Server.AllowedOrigins) > 0 {
		cors.AllowOrigins = c.Server.AllowedOrigins
	}

	rc := router.RouterConfig{
		RequestTimeout: c.Server.RequestTimeout,
		MaxBodyBytes:   c.Server.MaxBodyBytes,
		CORSConfig:     cors,
		WriteRoles:     c.JWT.WriteRoles,
	}
	if c.RateLimit.Enabled {
		rc.RateLimit = rate.Limit(c.RateLimit.RequestsPerSecond)
		rc.RateBurst = c.RateLimit.Burst
		rc.RateIdleTTL = c.RateLimit.IdleTTL
	}
	return rc
}

func (c *Config) BillingConfig() billing.Config {
	return billing.Config{
		ClinicName:  c.Billing.ClinicName,
		MailSubject: c.Mail.Subject,
	}
}

func (c *InvoiceConfig) ToRendererConfig() invoice.Config {
	return invoice.Config{
		URL:      c.URL,
		APIKey:   c.APIKey,
		Currency: c.Currency,
		Timeout:  c.Timeout,
	}
}

func (c *MailConfig) ToMailerConfig() mailer.Config {
	return mailer.Config{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
	}
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:           c.URL,
		ChannelPrefix: c.ChannelPrefix,
		MaxRetries:    c.MaxRetries,
		RetryBackoff:  c.RetryBackoff,
		PoolSize:      c.PoolSize,
		MinIdleConns:  c.MinIdleConns,
	}
}
