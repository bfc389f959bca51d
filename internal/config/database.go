package config

import (
	"fmt"
	"time"
)

// DatabaseConfig configures the transition event log.
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"` // "sqlite" or "postgres"

	// SQLite
	Path string `mapstructure:"path"`

	// PostgreSQL
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

// Validate checks that the database configuration is usable.
// A disabled database is always valid.
func (c *DatabaseConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Driver {
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("database: path is required for sqlite")
		}
	case "postgres":
		if c.Host == "" || c.DBName == "" {
			return fmt.Errorf("database: host and dbname are required for postgres")
		}
	default:
		return fmt.Errorf("database: unknown driver %q", c.Driver)
	}
	return nil
}
