package logger

import (
	"io"
	"os"
	"strconv"
)

// EnvConfig holds the logger settings read from the environment,
// including file rotation for deployed runs.
type EnvConfig struct {
	Level       string
	Format      string    // json or text
	Output      io.Writer // overrides all other output settings when set
	ServiceName string
	Environment string // local, dev, prod

	LogFile     string
	LogFileOnly bool // suppress stdout outside local

	// Rotation, passed through to lumberjack.
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// LoadFromEnv reads the LOG_* variables, filling in defaults for any
// that are unset.
func LoadFromEnv() *EnvConfig {
	return &EnvConfig{
		Level:       envStr("LOG_LEVEL", "info"),
		Format:      envStr("LOG_FORMAT", "json"),
		ServiceName: envStr("SERVICE_NAME", "imagehaul"),
		Environment: envStr("APP_ENV", "local"),

		LogFile:     envStr("LOG_FILE", "/var/log/imagehaul/app.log"),
		LogFileOnly: envBool("LOG_FILE_ONLY", false),

		MaxSize:    envInt("LOG_MAX_SIZE", 100),
		MaxBackups: envInt("LOG_MAX_BACKUPS", 7),
		MaxAge:     envInt("LOG_MAX_AGE", 30),
		Compress:   envBool("LOG_COMPRESS", true),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
