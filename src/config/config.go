package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	insecureJWTSecret    = "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes"
	insecureTokenSealKey = "a-very-secure-32-byte-long-key-used-to-seal-broker-tokens"
)

type AppConfig struct {
	Port     string
	LogLevel string

	DatabaseDriver string // "sqlite" or "pgx"
	DatabaseDSN    string
	StoreTimeout   time.Duration

	JWTSecret    string
	TokenSealKey string

	MaxUploadSizeBytes int64
	AllowedOrigins     []string
	RateLimitPerSecond float64
	RateLimitBurst     int

	LoginSessionTTL  time.Duration // pending OTP logins
	BrokerSessionTTL time.Duration // connected broker access tokens
	HoldingsCacheTTL time.Duration

	MemberMappingPath string

	BrokerTimeout  time.Duration
	HDFCBaseURL    string
	HDFCAPIKey     string
	HDFCAPISecret  string
	ZerodhaBaseURL string
	ZerodhaAPIKey  string
	ZerodhaSecret  string
}

var Cfg *AppConfig

// LoadConfig reads .env (if any) and the process environment into Cfg.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")
	Cfg = FromEnv()

	if Cfg.JWTSecret == insecureJWTSecret {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}
	if Cfg.TokenSealKey == insecureTokenSealKey {
		log.Println("WARNING: Using default insecure TOKEN_SEAL_KEY. Set TOKEN_SEAL_KEY environment variable for production.")
	}
	if len(Cfg.TokenSealKey) < 32 {
		log.Fatalf("FATAL: TOKEN_SEAL_KEY must be at least 32 bytes long. Current length: %d", len(Cfg.TokenSealKey))
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBDriver=%s, MemberMapping=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabaseDriver, Cfg.MemberMappingPath)
}

// FromEnv builds a configuration from the current environment without
// touching .env files or the global Cfg.
func FromEnv() *AppConfig {
	return &AppConfig{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabaseDSN:    getEnv("DATABASE_DSN", "./brokerbridge.db"),
		StoreTimeout:   getEnvAsDuration("STORE_TIMEOUT", 10*time.Second),

		JWTSecret:    getEnv("JWT_SECRET", insecureJWTSecret),
		TokenSealKey: getEnv("TOKEN_SEAL_KEY", insecureTokenSealKey),

		MaxUploadSizeBytes: getEnvAsInt64("MAX_UPLOAD_SIZE_BYTES", 5*1024*1024),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 30),

		LoginSessionTTL:  getEnvAsDuration("LOGIN_SESSION_TTL", 10*time.Minute),
		BrokerSessionTTL: getEnvAsDuration("BROKER_SESSION_TTL", 8*time.Hour),
		HoldingsCacheTTL: getEnvAsDuration("HOLDINGS_CACHE_TTL", 15*time.Minute),

		MemberMappingPath: getEnv("MEMBER_MAPPING_PATH", "members.yaml"),

		BrokerTimeout:  getEnvAsDuration("BROKER_TIMEOUT", 25*time.Second),
		HDFCBaseURL:    getEnv("HDFC_BASE_URL", "https://developer.hdfcsec.com/oapi/v1"),
		HDFCAPIKey:     getEnv("HDFC_API_KEY", ""),
		HDFCAPISecret:  getEnv("HDFC_API_SECRET", ""),
		ZerodhaBaseURL: getEnv("ZERODHA_BASE_URL", "https://api.kite.trade"),
		ZerodhaAPIKey:  getEnv("ZERODHA_API_KEY", ""),
		ZerodhaSecret:  getEnv("ZERODHA_API_SECRET", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
