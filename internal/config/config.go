// Package config loads till configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Remote drivers.
const (
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
	DriverNone     = "none"
)

// Config is the full runtime configuration.
type Config struct {
	Env      string
	LogLevel string
	Port     string
	DeviceID string
	ShopID   string

	LocalDBPath string

	RemoteDriver      string
	RemoteDatabaseURL string
	DynamoTable       string
	DynamoEndpoint    string
	AWSRegion         string

	RemoteTimeout time.Duration
	DrainInterval time.Duration
	ProbeInterval time.Duration

	Location          *time.Location
	EditWindow        time.Duration
	DisplayEditWindow time.Duration
	ManagerPINHash    string
	PhoneRegion       string

	JWTSecret  string
	SessionTTL time.Duration
}

// Development reports whether the till runs in development mode.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// Load reads .env (if present) and then the environment.
// Values already set in the environment win over .env.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Port:              getEnv("APP_PORT", "8080"),
		DeviceID:          getEnv("DEVICE_ID", hostname()),
		ShopID:            getEnv("SHOP_ID", "default"),
		LocalDBPath:       getEnv("LOCAL_DB_PATH", "tillsync.db"),
		RemoteDriver:      getEnv("REMOTE_DRIVER", DriverNone),
		RemoteDatabaseURL: os.Getenv("REMOTE_DATABASE_URL"),
		DynamoTable:       getEnv("DYNAMODB_TABLE_NAME", "tillsync"),
		DynamoEndpoint:    os.Getenv("DYNAMODB_ENDPOINT"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		ManagerPINHash:    os.Getenv("MANAGER_PIN_HASH"),
		PhoneRegion:       getEnv("PHONE_REGION", "US"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
	}

	var err error
	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"REMOTE_TIMEOUT", 10 * time.Second, &cfg.RemoteTimeout},
		{"DRAIN_INTERVAL", 30 * time.Second, &cfg.DrainInterval},
		{"PROBE_INTERVAL", 15 * time.Second, &cfg.ProbeInterval},
		{"EDIT_WINDOW", 2 * time.Hour, &cfg.EditWindow},
		{"DISPLAY_EDIT_WINDOW", 30 * time.Minute, &cfg.DisplayEditWindow},
		{"SESSION_TTL", 12 * time.Hour, &cfg.SessionTTL},
	}
	for _, d := range durations {
		if *d.dest, err = getEnvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	cfg.Location, err = time.LoadLocation(getEnv("SHOP_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("SHOP_TIMEZONE: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RemoteDriver {
	case DriverPostgres:
		if c.RemoteDatabaseURL == "" {
			return fmt.Errorf("REMOTE_DATABASE_URL is required for the %s driver", c.RemoteDriver)
		}
	case DriverDynamoDB:
		if c.DynamoTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE_NAME is required for the %s driver", c.RemoteDriver)
		}
	case DriverMemory, DriverNone:
	default:
		return fmt.Errorf("unknown REMOTE_DRIVER %q", c.RemoteDriver)
	}
	if c.JWTSecret == "" {
		if !c.Development() {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
		c.JWTSecret = "development-secret-change-me"
	}
	if c.EditWindow <= 0 {
		return fmt.Errorf("EDIT_WINDOW must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	// Bare numbers are seconds.
	secs, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return time.Duration(secs) * time.Second, nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "till"
	}
	return h
}
