// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Backend       BackendConfig      `mapstructure:"backend"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Session       SessionConfig      `mapstructure:"session"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name           string `mapstructure:"name"`
	Version        string `mapstructure:"version"`
	Environment    string `mapstructure:"environment"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// ServerConfig holds the HTTP action-surface settings.
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
}

// BackendConfig points at the remote lead/auth API this core consumes.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig controls wizard session and credential durability.
type SessionConfig struct {
	TTL      int `mapstructure:"ttl"`       // milliseconds; wizard snapshot expiry
	TokenTTL int `mapstructure:"token_ttl"` // milliseconds; persisted credential expiry
}

// NotificationConfig holds settings for submission confirmations.
type NotificationConfig struct {
	Email EmailNotificationConfig `mapstructure:"email"`
	SMS   SMSNotificationConfig   `mapstructure:"sms"`
	AWS   AWSNotificationConfig   `mapstructure:"aws"`
}

type EmailNotificationConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FromEmail string `mapstructure:"from_email"`
}

type SMSNotificationConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type AWSNotificationConfig struct {
	Region string `mapstructure:"region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
