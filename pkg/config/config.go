package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Booking    BookingConfig
	SchoolYear SchoolYearConfig
	Mail       MailConfig
	Calendar   CalendarConfig
	Cache      CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BookingConfig tunes the booking transaction manager.
type BookingConfig struct {
	// LockTimeout bounds how long a mutating request waits on the global
	// booking lock before failing with a busy error.
	LockTimeout time.Duration
}

// SchoolYearConfig defines the observation-requirement window. The school
// year starts Aug 1; the deadline falls in the following calendar year.
type SchoolYearConfig struct {
	DeadlineMonth int
	DeadlineDay   int
}

// MailConfig holds SMTP settings for best-effort notifications.
type MailConfig struct {
	Enabled          bool
	Host             string
	Port             int
	Username         string
	Password         string
	From             string
	CoordinatorEmail string
}

// CalendarConfig holds Google Calendar settings for the confirmation side path.
type CalendarConfig struct {
	Enabled         bool
	CredentialsFile string
	CalendarID      string
}

// CacheConfig controls the read-path response cache.
type CacheConfig struct {
	Enabled         bool
	AvailabilityTTL time.Duration
	ScheduleTTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Booking = BookingConfig{
		LockTimeout: parseDuration(v.GetString("BOOKING_LOCK_TIMEOUT"), 30*time.Second),
	}

	deadlineMonth := v.GetInt("REQUIREMENT_DEADLINE_MONTH")
	if deadlineMonth < 1 || deadlineMonth > 12 {
		deadlineMonth = 5
	}
	deadlineDay := v.GetInt("REQUIREMENT_DEADLINE_DAY")
	if deadlineDay < 1 || deadlineDay > 31 {
		deadlineDay = 1
	}
	cfg.SchoolYear = SchoolYearConfig{
		DeadlineMonth: deadlineMonth,
		DeadlineDay:   deadlineDay,
	}

	cfg.Mail = MailConfig{
		Enabled:          v.GetBool("MAIL_ENABLED"),
		Host:             v.GetString("MAIL_HOST"),
		Port:             v.GetInt("MAIL_PORT"),
		Username:         v.GetString("MAIL_USERNAME"),
		Password:         v.GetString("MAIL_PASSWORD"),
		From:             v.GetString("MAIL_FROM"),
		CoordinatorEmail: v.GetString("MAIL_COORDINATOR_EMAIL"),
	}

	cfg.Calendar = CalendarConfig{
		Enabled:         v.GetBool("CALENDAR_ENABLED"),
		CredentialsFile: v.GetString("CALENDAR_CREDENTIALS_FILE"),
		CalendarID:      v.GetString("CALENDAR_ID"),
	}

	cfg.Cache = CacheConfig{
		Enabled:         v.GetBool("CACHE_ENABLED"),
		AvailabilityTTL: parseDuration(v.GetString("CACHE_AVAILABILITY_TTL"), 30*time.Second),
		ScheduleTTL:     parseDuration(v.GetString("CACHE_SCHEDULE_TTL"), time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "peer_observations")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "peerobs-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BOOKING_LOCK_TIMEOUT", "30s")

	v.SetDefault("REQUIREMENT_DEADLINE_MONTH", 5)
	v.SetDefault("REQUIREMENT_DEADLINE_DAY", 1)

	v.SetDefault("MAIL_ENABLED", false)
	v.SetDefault("MAIL_HOST", "localhost")
	v.SetDefault("MAIL_PORT", 587)
	v.SetDefault("MAIL_USERNAME", "")
	v.SetDefault("MAIL_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "observations@school.example")
	v.SetDefault("MAIL_COORDINATOR_EMAIL", "")

	v.SetDefault("CALENDAR_ENABLED", false)
	v.SetDefault("CALENDAR_CREDENTIALS_FILE", "")
	v.SetDefault("CALENDAR_ID", "primary")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_AVAILABILITY_TTL", "30s")
	v.SetDefault("CACHE_SCHEDULE_TTL", "1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
