package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingSecret = errors.New("JWT_SECRET must be set")

type Config struct {
	AppEnv string
	Port   string

	DBDriver     string
	SQLitePath   string
	DatabaseURL  string
	DBHost       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBPort       string
	DBLogQueries bool

	JWTSecret string
	JWTTTL    time.Duration

	SeedAdminUsername  string
	SeedAdminPassword  string
	SeedSampleProducts bool

	RedisAddr string
	CacheTTL  time.Duration

	ImportConcurrency int
	MaxPageSize       int
	MaxUploadMB       int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, relying on system env")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "3000"),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		SQLitePath:         getEnv("SQLITE_DB_PATH", "inventory.db"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBHost:             os.Getenv("DB_HOST"),
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBName:             os.Getenv("DB_NAME"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBLogQueries:       getBool("DB_LOG_QUERIES", false),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTTTL:             getDuration("JWT_TTL", time.Hour),
		SeedAdminUsername:  getEnv("SEED_ADMIN_USERNAME", "admin"),
		SeedAdminPassword:  os.Getenv("SEED_ADMIN_PASSWORD"),
		SeedSampleProducts: getBool("SEED_SAMPLE_PRODUCTS", true),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		CacheTTL:           getDuration("CACHE_TTL", 2*time.Minute),
		ImportConcurrency:  getInt("IMPORT_CONCURRENCY", 8),
		MaxPageSize:        getInt("MAX_PAGE_SIZE", 100),
		MaxUploadMB:        getInt("MAX_UPLOAD_MB", 10),
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.ImportConcurrency <= 0 {
		cfg.ImportConcurrency = 1
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// PostgresDSN prefers DATABASE_URL and falls back to the discrete DB_* variables.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
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

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
