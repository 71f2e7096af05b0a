package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"house-alert-api/database"
	"house-alert-api/services/email"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// ECPay publishes these sandbox credentials for its staging gateway.
const (
	SandboxMerchantID = "2000132"
	SandboxHashKey    = "5294y06JbISpM5x9"
	SandboxHashIV     = "v77hoKGq4kWxNNIS"

	DefaultBaseURL = "http://localhost:3000"
)

var ErrInsecureProduction = errors.New("insecure production configuration")

type Config struct {
	Environment string
	Database    database.DatabaseConfig
	ECPay       ECPayConfig
	Line        LineConfig
	Auth        AuthConfig
	Session     SessionConfig
	Email       email.Config
	Server      ServerConfig
	Redis       RedisConfig
}

type ECPayConfig struct {
	MerchantID string
	HashKey    string
	HashIV     string
}

type LineConfig struct {
	ChannelSecret string
	AccessToken   string
	APIBaseURL    string
}

type AuthConfig struct {
	JWTSecret      string
	Issuer         string
	InternalSecret string
}

type SessionConfig struct {
	Secret   string
	Domain   string
	MaxAge   int
	Secure   bool
	HttpOnly bool
}

type ServerConfig struct {
	Port    string
	BaseURL string
}

type RedisConfig struct {
	URL               string
	WorkerConcurrency int
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		Environment: getEnv("APP_ENV", EnvDevelopment),
		Database: database.DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		ECPay: ECPayConfig{
			MerchantID: getEnv("ECPAY_MERCHANT_ID", SandboxMerchantID),
			HashKey:    getEnv("ECPAY_HASH_KEY", SandboxHashKey),
			HashIV:     getEnv("ECPAY_HASH_IV", SandboxHashIV),
		},
		Line: LineConfig{
			ChannelSecret: os.Getenv("LINE_CHANNEL_SECRET"),
			AccessToken:   os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
			APIBaseURL:    getEnv("LINE_API_BASE_URL", "https://api.line.me"),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			Issuer:         getEnv("JWT_ISSUER", "house-alert-api"),
			InternalSecret: os.Getenv("INTERNAL_API_SECRET"),
		},
		Session: SessionConfig{
			Secret:   os.Getenv("SESSION_SECRET"),
			Domain:   os.Getenv("SESSION_DOMAIN"),
			MaxAge:   getEnvInt("SESSION_MAX_AGE", 7*24*3600),
			Secure:   getEnvBool("SESSION_SECURE", false),
			HttpOnly: getEnvBool("SESSION_HTTP_ONLY", true),
		},
		Email: email.Config{
			Provider:       getEnv("EMAIL_PROVIDER", email.ProviderSendGrid),
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			FromAddress:    getEnv("EMAIL_FROM", "no-reply@591alert.tw"),
			FromName:       getEnv("EMAIL_FROM_NAME", "591搶案神器"),
			SMTP: email.SMTPConfig{
				Host:     os.Getenv("SMTP_HOST"),
				Port:     getEnv("SMTP_PORT", "587"),
				Username: os.Getenv("SMTP_USER"),
				Password: os.Getenv("SMTP_PASSWORD"),
			},
		},
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8080"),
			BaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", DefaultBaseURL), "/"),
		},
		Redis: RedisConfig{
			URL:               os.Getenv("REDIS_URL"),
			WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		},
	}

	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
		log.Printf("Warning: REDIS_URL not set, using default: %s", cfg.Redis.URL)
	}

	if !cfg.IsProduction() {
		if cfg.Auth.JWTSecret == "" {
			cfg.Auth.JWTSecret = "dev-jwt-secret"
		}
		if cfg.Session.Secret == "" {
			cfg.Session.Secret = "dev-session-secret"
		}
		if cfg.Line.ChannelSecret == "" {
			log.Printf("Warning: LINE_CHANNEL_SECRET not set, webhook signatures are checked against an empty key")
		}
	}

	log.Printf("Config loaded: env=%s port=%s base_url=%s merchant=%s",
		cfg.Environment, cfg.Server.Port, cfg.Server.BaseURL, cfg.ECPay.MerchantID)

	return cfg
}

// Validate refuses to start production with sandbox or missing secrets.
func (c *Config) Validate() error {
	if !c.IsProduction() {
		return nil
	}

	var problems []string
	if c.ECPay.MerchantID == SandboxMerchantID {
		problems = append(problems, "ECPAY_MERCHANT_ID uses the sandbox default")
	}
	if c.ECPay.HashKey == SandboxHashKey {
		problems = append(problems, "ECPAY_HASH_KEY uses the sandbox default")
	}
	if c.ECPay.HashIV == SandboxHashIV {
		problems = append(problems, "ECPAY_HASH_IV uses the sandbox default")
	}
	if c.Line.ChannelSecret == "" {
		problems = append(problems, "LINE_CHANNEL_SECRET is empty")
	}
	if c.Line.AccessToken == "" {
		problems = append(problems, "LINE_CHANNEL_ACCESS_TOKEN is empty")
	}
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is empty")
	}
	if c.Auth.InternalSecret == "" {
		problems = append(problems, "INTERNAL_API_SECRET is empty")
	}
	if c.Session.Secret == "" {
		problems = append(problems, "SESSION_SECRET is empty")
	}
	if c.Server.BaseURL == DefaultBaseURL {
		problems = append(problems, "PUBLIC_BASE_URL uses the localhost default")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInsecureProduction, strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
