package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var DefaultEnvConfig *envConfig

type envConfig struct {
	// http config
	APP_PORT string
	// database config
	DB_DRIVER            string
	DB_HOST              string
	DB_PORT              int
	DB_USER              string
	DB_PASSWORD          string
	DB_NAME              string
	DB_SSL_MODE          string
	DB_CONN_MAX_LIFETIME time.Duration
	DB_MAX_IDLE_CONNS    int
	DB_MAX_OPEN_CONNS    int
	SQLITE_PATH          string
	// document stores
	ELASTIC_URL       string
	ELASTIC_SCROLL    time.Duration
	DATASTORE_PROJECT string
	// export config
	JOBS_FILE         string
	EXPORT_TIMEZONE   string
	EXPORT_BATCH_SIZE int
	// logger config
	LOG_FILE_PATH string
	LOG_LEVEL     string
}

// LoadEnvConfig reads the given .env files (".env" when none) into the
// process environment and builds DefaultEnvConfig. Missing files are ignored.
func LoadEnvConfig(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	DefaultEnvConfig = &envConfig{
		APP_PORT:             getEnvString("APP_PORT", "8080"),
		DB_DRIVER:            getEnvString("DB_DRIVER", "postgres"),
		DB_HOST:              getEnvString("DB_HOST", "localhost"),
		DB_PORT:              getEnvInt("DB_PORT", 5432),
		DB_USER:              getEnvString("DB_USER", "postgres"),
		DB_PASSWORD:          getEnvString("DB_PASSWORD", "postgres"),
		DB_NAME:              getEnvString("DB_NAME", "postgres"),
		DB_SSL_MODE:          getEnvString("DB_SSL_MODE", "disable"),
		DB_CONN_MAX_LIFETIME: getEnvDuration("DB_CONN_MAX_LIFETIME", 20*time.Minute),
		DB_MAX_IDLE_CONNS:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
		DB_MAX_OPEN_CONNS:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
		SQLITE_PATH:          getEnvString("SQLITE_PATH", "export.db"),
		ELASTIC_URL:          getEnvString("ELASTIC_URL", ""),
		ELASTIC_SCROLL:       getEnvDuration("ELASTIC_SCROLL", 2*time.Minute),
		DATASTORE_PROJECT:    getEnvString("DATASTORE_PROJECT", ""),
		JOBS_FILE:            getEnvString("JOBS_FILE", "jobs.yaml"),
		EXPORT_TIMEZONE:      getEnvString("EXPORT_TIMEZONE", ""),
		EXPORT_BATCH_SIZE:    getEnvInt("EXPORT_BATCH_SIZE", 1000),
		LOG_FILE_PATH:        getEnvString("LOG_FILE_PATH", ""),
		LOG_LEVEL:            getEnvString("LOG_LEVEL", "info"),
	}
	return nil
}

// ExportLocation returns the EXPORT_TIMEZONE location, nil when unset.
func (c *envConfig) ExportLocation() (*time.Location, error) {
	if c.EXPORT_TIMEZONE == "" {
		return nil, nil
	}
	return time.LoadLocation(c.EXPORT_TIMEZONE)
}

func getEnvString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if i, err := strconv.Atoi(val); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
