package config

import (
	"fmt"
	"net"
	"time"
	_ "time/tzdata" // scheduler time zones must resolve on minimal images

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds all configuration for our application. Every key is a flat
// environment variable; sections are squashed so viper sees one namespace.
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Storage   StorageConfig   `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port            string `mapstructure:"SERVER_PORT"`
	Host            string `mapstructure:"SERVER_HOST"`
	Env             string `mapstructure:"ENV"`
	ReadTimeout     string `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout    string `mapstructure:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout string `mapstructure:"SERVER_SHUTDOWN_TIMEOUT"`
}

type StorageConfig struct {
	Driver string `mapstructure:"STORAGE_DRIVER"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime string `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	MigrationsDir   string `mapstructure:"DATABASE_MIGRATIONS_DIR"`
	AutoMigrate     bool   `mapstructure:"DATABASE_AUTO_MIGRATE"`
}

type RedisConfig struct {
	Enabled     bool   `mapstructure:"REDIS_ENABLED"`
	Host        string `mapstructure:"REDIS_HOST"`
	Port        string `mapstructure:"REDIS_PORT"`
	Password    string `mapstructure:"REDIS_PASSWORD"`
	DB          int    `mapstructure:"REDIS_DB"`
	ScheduleTTL string `mapstructure:"REDIS_SCHEDULE_TTL"`
}

// SchedulerConfig cron specs carry a leading seconds field
type SchedulerConfig struct {
	OverdueSpec         string `mapstructure:"SCHEDULER_OVERDUE_SPEC"`
	GraceExpirySpec     string `mapstructure:"SCHEDULER_GRACE_EXPIRY_SPEC"`
	OverdueReportSpec   string `mapstructure:"SCHEDULER_OVERDUE_REPORT_SPEC"`
	DefaultedReportSpec string `mapstructure:"SCHEDULER_DEFAULTED_REPORT_SPEC"`
	Timezone            string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	MaxLoanToValue          string `mapstructure:"MAX_LOAN_TO_VALUE"`
	OverdueGraceDays        int    `mapstructure:"OVERDUE_GRACE_DAYS"`
	DefaultLoanDurationDays int    `mapstructure:"DEFAULT_LOAN_DURATION_DAYS"`
	DefaultGracePeriodDays  int    `mapstructure:"DEFAULT_GRACE_PERIOD_DAYS"`
	UpcomingWindowDays      int    `mapstructure:"UPCOMING_WINDOW_DAYS"`
	DefaultPenaltyRate      string `mapstructure:"DEFAULT_MONTHLY_PENALTY_RATE"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var defaults = map[string]any{
	"SERVER_PORT":             "8080",
	"SERVER_HOST":             "0.0.0.0",
	"ENV":                     "development",
	"SERVER_READ_TIMEOUT":     "15s",
	"SERVER_WRITE_TIMEOUT":    "15s",
	"SERVER_SHUTDOWN_TIMEOUT": "30s",

	"STORAGE_DRIVER": StorageDriverPostgres,

	"DATABASE_URL":               "",
	"DATABASE_MAX_OPEN_CONNS":    25,
	"DATABASE_MAX_IDLE_CONNS":    5,
	"DATABASE_CONN_MAX_LIFETIME": "5m",
	"DATABASE_MIGRATIONS_DIR":    "file://migrations",
	"DATABASE_AUTO_MIGRATE":      true,

	"REDIS_ENABLED":      true,
	"REDIS_HOST":         "localhost",
	"REDIS_PORT":         "6379",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"REDIS_SCHEDULE_TTL": "24h",

	"SCHEDULER_OVERDUE_SPEC":          "0 0 1 * * *",
	"SCHEDULER_GRACE_EXPIRY_SPEC":     "0 30 1 * * *",
	"SCHEDULER_OVERDUE_REPORT_SPEC":   "0 0 8 * * MON",
	"SCHEDULER_DEFAULTED_REPORT_SPEC": "0 0 2 1 * *",
	"SCHEDULER_TIMEZONE":              "Asia/Jakarta",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"MAX_LOAN_TO_VALUE":            "0.70",
	"OVERDUE_GRACE_DAYS":           30,
	"DEFAULT_LOAN_DURATION_DAYS":   30,
	"DEFAULT_GRACE_PERIOD_DAYS":    7,
	"UPCOMING_WINDOW_DAYS":         7,
	"DEFAULT_MONTHLY_PENALTY_RATE": "1",

	"HEALTH_CHECK_TIMEOUT": "5s",
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// .env files only fill variables that are not already set
	_ = godotenv.Load(".env")
	_ = godotenv.Load("deployments/.env")

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, c.Storage.Driver)
	}

	durations := map[string]string{
		"SERVER_READ_TIMEOUT":        c.Server.ReadTimeout,
		"SERVER_WRITE_TIMEOUT":       c.Server.WriteTimeout,
		"SERVER_SHUTDOWN_TIMEOUT":    c.Server.ShutdownTimeout,
		"DATABASE_CONN_MAX_LIFETIME": c.Database.ConnMaxLifetime,
		"REDIS_SCHEDULE_TTL":         c.Redis.ScheduleTTL,
		"HEALTH_CHECK_TIMEOUT":       c.Health.Timeout,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", key, err)
		}
	}

	ltv, err := decimal.NewFromString(c.Business.MaxLoanToValue)
	if err != nil {
		return fmt.Errorf("MAX_LOAN_TO_VALUE must be a valid decimal: %w", err)
	}
	if !ltv.IsPositive() || ltv.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("MAX_LOAN_TO_VALUE must be in (0, 1]")
	}

	if _, err := decimal.NewFromString(c.Business.DefaultPenaltyRate); err != nil {
		return fmt.Errorf("DEFAULT_MONTHLY_PENALTY_RATE must be a valid decimal: %w", err)
	}

	if c.Business.OverdueGraceDays <= 0 {
		return fmt.Errorf("OVERDUE_GRACE_DAYS must be greater than 0")
	}
	if c.Business.DefaultLoanDurationDays <= 0 {
		return fmt.Errorf("DEFAULT_LOAN_DURATION_DAYS must be greater than 0")
	}
	if c.Business.DefaultGracePeriodDays < 0 {
		return fmt.Errorf("DEFAULT_GRACE_PERIOD_DAYS must not be negative")
	}
	if c.Business.UpcomingWindowDays <= 0 {
		return fmt.Errorf("UPCOMING_WINDOW_DAYS must be greater than 0")
	}

	specs := map[string]string{
		"SCHEDULER_OVERDUE_SPEC":          c.Scheduler.OverdueSpec,
		"SCHEDULER_GRACE_EXPIRY_SPEC":     c.Scheduler.GraceExpirySpec,
		"SCHEDULER_OVERDUE_REPORT_SPEC":   c.Scheduler.OverdueReportSpec,
		"SCHEDULER_DEFAULTED_REPORT_SPEC": c.Scheduler.DefaultedReportSpec,
	}
	for key, spec := range specs {
		if _, err := cronParser.Parse(spec); err != nil {
			return fmt.Errorf("%s must be a valid cron spec: %w", key, err)
		}
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

func (c *Config) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ReadTimeout)
	return d
}

func (c *Config) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.WriteTimeout)
	return d
}

func (c *Config) GetShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

func (c *Config) GetConnMaxLifetime() time.Duration {
	d, _ := time.ParseDuration(c.Database.ConnMaxLifetime)
	return d
}

func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetScheduleTTL() time.Duration {
	d, _ := time.ParseDuration(c.Redis.ScheduleTTL)
	return d
}

// GetMaxLoanToValue returns the loan-to-collateral ceiling as a fraction
func (c *Config) GetMaxLoanToValue() decimal.Decimal {
	v, _ := decimal.NewFromString(c.Business.MaxLoanToValue)
	return v
}

// GetDefaultPenaltyRate returns the monthly penalty percentage used when a loan has none
func (c *Config) GetDefaultPenaltyRate() decimal.Decimal {
	v, _ := decimal.NewFromString(c.Business.DefaultPenaltyRate)
	return v
}

// Location returns the scheduler's time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
