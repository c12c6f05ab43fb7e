package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration. It is built once at process
// start and passed by value; identity and session code never reads
// ambient state.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	AuthCookieSecure bool
	LogLevel         string

	// Hostname namespaces. AdminLabel and APILabel are reserved
	// subdomains and can never resolve as tenant slugs.
	AdminLabel       string
	APILabel         string
	LocalRootDomains []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "waitline"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		AuthCookieSecure: authCookieSecure,
		LogLevel:         getenv("LOG_LEVEL", "info"),
		AdminLabel:       strings.ToLower(getenv("ADMIN_SUBDOMAIN", "admin")),
		APILabel:         strings.ToLower(getenv("API_SUBDOMAIN", "api")),
		LocalRootDomains: parseList(getenv("LOCAL_ROOT_DOMAINS", "lvh.me,localhost")),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getenv("REDIS_PASSWORD", ""),
		RedisDB:          int(getenvInt64("REDIS_DB", 0)),
		DBType:           getenv("DATABASE_TYPE", "postgres"),
		DBHost:           getenv("DATABASE_HOST", "localhost"),
		DBPort:           getenv("DATABASE_PORT", "5432"),
		DBName:           getenv("DATABASE_NAME", "postgres"),
		DBUser:           getenv("DATABASE_USER", "postgres"),
		DBPassword:       getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:        getenv("DATABASE_SSLMODE", "disable"),

		DBMaxIdleConn: int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn: int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		// seconds; zero leaves the driver default in place
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 0)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 0)),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
