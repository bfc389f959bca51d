package logger

import (
	"io"
	"os"
	"strconv"
)

// EnvConfig holds logger configuration loaded from environment variables.
type EnvConfig struct {
	Level       string    // debug, info, warn, error
	Format      string    // json, text
	Output      io.Writer // overrides every other destination when set
	ServiceName string

	// Environment: local, dev, prod. Only non-local environments write to LogFile.
	Environment string

	LogFile     string
	LogFileOnly bool

	// Rotation settings passed to lumberjack
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *EnvConfig {
	return &EnvConfig{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: getEnv("SERVICE_NAME", "scribe"),
		Environment: getEnv("APP_ENV", "local"),

		LogFile:     getEnv("LOG_FILE", "./logs/server.log"),
		LogFileOnly: getEnvBool("LOG_FILE_ONLY", false),

		MaxSize:    getEnvInt("LOG_MAX_SIZE", 50),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
		Compress:   getEnvBool("LOG_COMPRESS", true),
	}
}

// ToConfig converts EnvConfig to the basic Config struct.
func (e *EnvConfig) ToConfig() *Config {
	return &Config{
		Level:       e.Level,
		Format:      e.Format,
		Output:      e.Output,
		ServiceName: e.ServiceName,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
