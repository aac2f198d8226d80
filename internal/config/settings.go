package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type ServerConfig struct {
	Port        string
	CORSOrigins string
	Production  bool
}

type DatabaseConfig struct {
	Host            string
	User            string
	Password        string
	Name            string
	Port            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type JWTConfig struct {
	Secret    string
	AccessTTL time.Duration
	Issuer    string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether enough is configured to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type OTPConfig struct {
	TTL         time.Duration
	SendTimeout time.Duration
	Store       string // memory or redis
}

type DistributionConfig struct {
	Timezone     string
	DailySpec    string
	MonthlySpec  string
	Workers      int
	DailyRate    decimal.Decimal
	MonthlyRate  decimal.Decimal
	RunOnStartup bool
}

// Config is the typed view of the process environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	SMTP         SMTPConfig
	OTP          OTPConfig
	Distribution DistributionConfig
}

// Load reads the environment (after LoadEnv) into a Config.
func Load() *Config {
	production := IsProduction()

	return &Config{
		Server: ServerConfig{
			Port:        GetEnv("PORT", "3000"),
			CORSOrigins: GetEnv("CORS_ORIGINS", "http://localhost:5173"),
			Production:  production,
		},
		Database: DatabaseConfig{
			Host:            GetEnv("DB_HOST", "localhost"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "yieldtree"),
			Port:            GetEnv("DB_PORT", "5432"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
			CacheTTL: GetDurationEnv("REDIS_CACHE_TTL", 24*time.Hour),
		},
		JWT: JWTConfig{
			Secret:    GetEnv("JWT_SECRET", ""),
			AccessTTL: GetDurationEnv("JWT_ACCESS_TTL", 24*time.Hour),
			Issuer:    GetEnv("JWT_ISSUER", "yieldtree-api"),
		},
		SMTP: SMTPConfig{
			Host:     GetEnv("SMTP_HOST", ""),
			Port:     GetIntEnv("SMTP_PORT", 587),
			User:     GetEnv("SMTP_USER", ""),
			Password: GetEnv("SMTP_PASSWORD", ""),
			From:     GetEnv("SMTP_FROM", ""),
		},
		OTP: OTPConfig{
			TTL:         GetDurationEnv("OTP_TTL", 10*time.Minute),
			SendTimeout: GetDurationEnv("OTP_SEND_TIMEOUT", 10*time.Second),
			Store:       GetEnv("OTP_STORE", "redis"),
		},
		Distribution: DistributionConfig{
			Timezone:     GetEnv("DISTRIBUTION_TIMEZONE", "UTC"),
			DailySpec:    GetEnv("DISTRIBUTION_DAILY_SPEC", "0 0 * * *"),
			MonthlySpec:  GetEnv("DISTRIBUTION_MONTHLY_SPEC", "0 2 1 * *"),
			Workers:      GetIntEnv("DISTRIBUTION_WORKERS", 8),
			DailyRate:    GetDecimalEnv("DISTRIBUTION_DAILY_RATE", decimal.NewFromFloat(0.10).Div(decimal.NewFromInt(30))),
			MonthlyRate:  GetDecimalEnv("DISTRIBUTION_MONTHLY_RATE", decimal.NewFromFloat(0.10)),
			RunOnStartup: GetBoolEnv("DISTRIBUTION_RUN_ON_STARTUP", !production),
		},
	}
}
