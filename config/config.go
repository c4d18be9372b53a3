package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"rss-scraper/pkg/security"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	AppPort       string
	AppURL        string
	SessionSecret string
	CSRFSecret    string

	DatabaseDriver string
	DatabaseURL    string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	SQLitePath     string

	FetchTimeout     time.Duration
	FetchUserAgent   string
	MaxRetries       int
	RetryBackoffBase float64
	RetryBackoffUnit time.Duration
	RefreshWorkers   int
	RefreshInterval  time.Duration

	EmailProvider string
	EmailFrom     string
	ResendAPIKey  string
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string

	FollowRateLimit  int
	FollowRateWindow time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		if _, exists := os.Stat(".env"); exists == nil {
			log.Println("Warning: .env file exists but couldn't be loaded:", err)
		}
	}

	environment := getEnv("ENVIRONMENT", "development")
	sessionSecret := getEnv("SESSION_SECRET", "")
	csrfSecret := getEnv("CSRF_SECRET", "")

	if sessionSecret == "" {
		sessionSecret = generateRandomSecret("SESSION_SECRET")
	}
	if csrfSecret == "" {
		csrfSecret = generateRandomSecret("CSRF_SECRET")
	}

	appPort := getEnv("APP_PORT", "8080")
	appURL := getEnv("APP_URL", "")

	if appURL == "" {
		if environment == "production" {
			log.Println("Warning: APP_URL not set in production, notification links and CSRF origin validation may be wrong")
		}
		appURL = "http://localhost:" + appPort
	}

	cfg := &Config{
		Environment:   environment,
		AppPort:       appPort,
		AppURL:        strings.TrimRight(appURL, "/"),
		SessionSecret: sessionSecret,
		CSRFSecret:    csrfSecret,

		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "rss.db"),

		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		FetchUserAgent:   getEnv("FETCH_USER_AGENT", ""),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		RetryBackoffBase: getEnvFloat("RETRY_BACKOFF_BASE", 2),
		RetryBackoffUnit: getEnvDuration("RETRY_BACKOFF_UNIT", time.Second),
		RefreshWorkers:   getEnvInt("REFRESH_WORKERS", 4),
		RefreshInterval:  getEnvDuration("REFRESH_INTERVAL", 15*time.Minute),

		EmailProvider: getEnv("EMAIL_PROVIDER", "none"),
		EmailFrom:     getEnv("EMAIL_FROM", ""),
		ResendAPIKey:  getEnv("RESEND_API_KEY", ""),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),

		FollowRateLimit:  getEnvInt("FOLLOW_RATE_LIMIT", 20),
		FollowRateWindow: getEnvDuration("FOLLOW_RATE_WINDOW", time.Hour),
	}

	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", cfg.Environment)
	log.Printf("  APP_PORT: %s", cfg.AppPort)
	log.Printf("  APP_URL: %s", cfg.AppURL)
	log.Printf("  DATABASE_DRIVER: %s", cfg.DatabaseDriver)

	if cfg.DatabaseURL != "" && cfg.DatabaseDriver != "sqlite" {
		cfg.parseDBURL()
	} else {
		cfg.DBHost = getEnv("DB_HOST", "localhost")
		cfg.DBPort = getEnv("DB_PORT", defaultPort(cfg.DatabaseDriver))
		cfg.DBUser = getEnv("DB_USER", "postgres")
		cfg.DBPassword = getEnv("DB_PASSWORD", "password")
		cfg.DBName = getEnv("DB_NAME", "rss_scraper")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %g", key, value, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %s", key, value, fallback)
		return fallback
	}
	return d
}

func defaultPort(driver string) string {
	if driver == "mysql" {
		return "3306"
	}
	return "5432"
}

func (c *Config) parseDBURL() {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		log.Printf("Error parsing DATABASE_URL: %v", err)
		return
	}

	c.DBHost = u.Hostname()
	c.DBPort = u.Port()
	if c.DBPort == "" {
		c.DBPort = defaultPort(c.DatabaseDriver)
	}

	c.DBUser = u.User.Username()
	if password, ok := u.User.Password(); ok {
		c.DBPassword = password
	}

	c.DBName = strings.TrimPrefix(u.Path, "/")
}

func generateRandomSecret(name string) string {
	log.Printf("Warning: %s not set, generating random secret (will not persist across restarts)", name)

	secret, err := security.RandomSecret(security.DefaultSecretSize)
	if err != nil {
		log.Fatalf("Failed to generate random secret for %s: %v", name, err)
	}
	return secret
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
