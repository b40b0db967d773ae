package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/comptoir-labs/comptoir/pkg/db"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	Environment string
	LogLevel    string
	HTTPAddr    string

	JWTSecret     string
	JWTIssuer     string
	JWTAudience   string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Pending2FATTL time.Duration

	CredentialEncryptionKey string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	DB db.Config
}

// Load reads configuration from environment variables and an optional .env
// file. JWT_SECRET is mandatory in production; other environments get a
// random per-process secret so tokens do not survive restarts.
func Load() (Config, error) {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	secret := strings.TrimSpace(getenv("JWT_SECRET", ""))
	if secret == "" {
		if environment == "production" {
			return Config{}, fmt.Errorf("JWT_SECRET is required in production")
		}
		secret = randomSecret()
	}

	credKey := strings.TrimSpace(getenv("CREDENTIAL_ENCRYPTION_KEY", ""))
	if credKey == "" {
		if environment == "production" {
			return Config{}, fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY is required in production")
		}
		credKey = randomSecret()
	}

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "comptoir"),
		Environment: environment,
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		JWTSecret:     secret,
		JWTIssuer:     getenv("JWT_ISSUER", "comptoir"),
		JWTAudience:   getenv("JWT_AUDIENCE", "comptoir-api"),
		AccessTTL:     getenvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:    getenvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		Pending2FATTL: getenvDuration("PENDING_2FA_TTL", 5*time.Minute),

		CredentialEncryptionKey: credKey,

		RedisHost:     getenv("REDIS_HOST", ""),
		RedisPort:     getenv("REDIS_PORT", "6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		DB: db.Config{
			Type:        getenv("DATABASE_TYPE", "postgres"),
			Host:        getenv("DATABASE_HOST", "localhost"),
			Port:        getenv("DATABASE_PORT", "5432"),
			Name:        getenv("DATABASE_NAME", "comptoir"),
			User:        getenv("DATABASE_USER", "comptoir"),
			Password:    getenv("DATABASE_PASSWORD", ""),
			SSLMode:     getenv("DATABASE_SSLMODE", "disable"),
			MaxIdleConn: getenvInt("DATABASE_MAX_IDLE_CONN", 5),
			MaxOpenConn: getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		},
	}

	return cfg, nil
}

// RedisAddr returns host:port, or "" when no backend is configured.
func (c Config) RedisAddr() string {
	if strings.TrimSpace(c.RedisHost) == "" {
		return ""
	}
	return c.RedisHost + ":" + c.RedisPort
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
