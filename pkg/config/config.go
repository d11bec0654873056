package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Auth      AuthConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// DatabaseConfig holds the postgres settings. An empty URL selects the
// in-memory store, which is only meant for local development.
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	MaxLifetime time.Duration
	Migrate     bool
}

type RedisConfig struct {
	URL string
}

type NATSConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	OTPTTL          time.Duration
	ResetTokenTTL   time.Duration
}

// Email transports understood by the account service.
const (
	TransportDev        = "dev"
	TransportSMTP       = "smtp"
	TransportMailerSend = "mailersend"
	TransportNATS       = "nats"
)

type EmailConfig struct {
	Transport     string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	FromName      string
	FromEmail     string
	MailerSendKey string
}

type RateLimitConfig struct {
	OTPRequests int
	OTPWindow   time.Duration
}

type GatewayConfig struct {
	AuthServiceURL string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8081"),
			ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:    getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			MaxConns:    getInt("DB_MAX_CONNS", 10),
			MinConns:    getInt("DB_MIN_CONNS", 1),
			MaxLifetime: getDuration("DB_MAX_LIFETIME", time.Hour),
			Migrate:     getBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", "dev-only-secret-change-in-prod"),
			Issuer:          getEnv("JWT_ISSUER", "tourist-alert"),
			AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			OTPTTL:          getDuration("OTP_TTL", 10*time.Minute),
			ResetTokenTTL:   getDuration("RESET_TOKEN_TTL", 15*time.Minute),
		},
		Email: EmailConfig{
			Transport:     getEnv("EMAIL_TRANSPORT", TransportDev),
			SMTPHost:      getEnv("SMTP_HOST", "localhost"),
			SMTPPort:      getInt("SMTP_PORT", 1025),
			SMTPUser:      getEnv("SMTP_USER", ""),
			SMTPPass:      getEnv("SMTP_PASS", ""),
			FromName:      getEnv("EMAIL_FROM_NAME", "Tourist Alert System"),
			FromEmail:     getEnv("EMAIL_FROM", "noreply@touristalert.local"),
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			OTPRequests: getInt("OTP_RATE_LIMIT_REQUESTS", 5),
			OTPWindow:   getDuration("OTP_RATE_LIMIT_WINDOW", time.Minute),
		},
		Gateway: GatewayConfig{
			AuthServiceURL: getEnv("AUTH_SERVICE_URL", "http://localhost:8081"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
