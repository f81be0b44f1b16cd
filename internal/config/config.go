package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Ingestion    IngestionConfig
	BlobStore    BlobStoreConfig
	Notification NotificationConfig
	Keycloak     KeycloakConfig
	Monitoring   MonitoringConfig
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
}

type DatabaseConfig struct {
	Driver      string         `mapstructure:"driver"`
	TimescaleDB PostgresConfig `mapstructure:"timescaledb"`
	AppDB       PostgresConfig `mapstructure:"postgres_app"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	DevicePrefix      string        `mapstructure:"device_prefix"`
	DeviceMinLength   int           `mapstructure:"device_min_length"`
	DeviceBudget      int64         `mapstructure:"device_budget"`
	AdminPrefix       string        `mapstructure:"admin_prefix"`
	AdminMinLength    int           `mapstructure:"admin_min_length"`
	AdminBudget       int64         `mapstructure:"admin_budget"`
	Window            time.Duration `mapstructure:"window"`
	BootstrapAdminKey string        `mapstructure:"bootstrap_admin_key"`
}

type IngestionConfig struct {
	WeightThreshold   float64       `mapstructure:"weight_threshold"`
	LowBatteryFloor   int           `mapstructure:"low_battery_floor"`
	OperationTimeout  time.Duration `mapstructure:"operation_timeout"`
	CorrelationWindow time.Duration `mapstructure:"correlation_window"`
	MaxImageSize      int64         `mapstructure:"max_image_size"`
	OfflineAfter      time.Duration `mapstructure:"offline_after"`
	HealthRetention   time.Duration `mapstructure:"health_retention"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

type BlobStoreConfig struct {
	Driver   string `mapstructure:"driver"`
	BasePath string `mapstructure:"base_path"`
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Prefix   string `mapstructure:"prefix"`
}

type NotificationConfig struct {
	Transport        string            `mapstructure:"transport"`
	SMTPHost         string            `mapstructure:"smtp_host"`
	SMTPPort         int               `mapstructure:"smtp_port"`
	SMTPUsername     string            `mapstructure:"smtp_username"`
	SMTPPassword     string            `mapstructure:"smtp_password"`
	FromAddress      string            `mapstructure:"from_address"`
	FromName         string            `mapstructure:"from_name"`
	Workers          int               `mapstructure:"workers"`
	QueueSize        int               `mapstructure:"queue_size"`
	MaxAttempts      int               `mapstructure:"max_attempts"`
	Backoff          time.Duration     `mapstructure:"backoff"`
	ImageGrace       time.Duration     `mapstructure:"image_grace"`
	BreakerFailures  uint32            `mapstructure:"breaker_failures"`
	BreakerOpenFor   time.Duration     `mapstructure:"breaker_open_for"`
	StaticRecipients map[string]string `mapstructure:"static_recipients"`
}

type KeycloakConfig struct {
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type MonitoringConfig struct {
	LogLevel    string `mapstructure:"log_level"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetEnvPrefix("MAILGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Load config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("server.public_base_url", "http://localhost:8080")

	// Database defaults
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.timescaledb.port", 5432)
	viper.SetDefault("database.timescaledb.sslmode", "disable")
	viper.SetDefault("database.postgres_app.port", 5432)
	viper.SetDefault("database.postgres_app.sslmode", "disable")

	// Redis defaults
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	// Auth defaults
	viper.SetDefault("auth.device_prefix", "iot_")
	viper.SetDefault("auth.device_min_length", 68)
	viper.SetDefault("auth.device_budget", 100)
	viper.SetDefault("auth.admin_prefix", "admin_")
	viper.SetDefault("auth.admin_min_length", 134)
	viper.SetDefault("auth.admin_budget", 10000)
	viper.SetDefault("auth.window", "1h")

	// Ingestion defaults
	viper.SetDefault("ingestion.weight_threshold", 50.0)
	viper.SetDefault("ingestion.low_battery_floor", 20)
	viper.SetDefault("ingestion.operation_timeout", "5s")
	viper.SetDefault("ingestion.correlation_window", "5m")
	viper.SetDefault("ingestion.max_image_size", 10*1024*1024) // 10MB
	viper.SetDefault("ingestion.offline_after", "15m")
	viper.SetDefault("ingestion.health_retention", "2160h")
	viper.SetDefault("ingestion.sweep_interval", "1m")

	// BlobStore defaults
	viper.SetDefault("blobstore.driver", "filesystem")
	viper.SetDefault("blobstore.base_path", "./data/blobs")
	viper.SetDefault("blobstore.prefix", "iot-images")

	// Notification defaults
	viper.SetDefault("notification.transport", "log")
	viper.SetDefault("notification.smtp_port", 587)
	viper.SetDefault("notification.from_address", "notifications@mailguard.local")
	viper.SetDefault("notification.from_name", "MailGuard")
	viper.SetDefault("notification.workers", 4)
	viper.SetDefault("notification.queue_size", 256)
	viper.SetDefault("notification.max_attempts", 3)
	viper.SetDefault("notification.backoff", "2s")
	viper.SetDefault("notification.image_grace", "30s")
	viper.SetDefault("notification.breaker_failures", 5)
	viper.SetDefault("notification.breaker_open_for", "1m")

	// Monitoring defaults
	viper.SetDefault("monitoring.log_level", "info")
	viper.SetDefault("monitoring.metrics_path", "/metrics")
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "postgres":
		if config.Database.AppDB.Host == "" {
			return fmt.Errorf("postgres app host is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", config.Database.Driver)
	}

	switch config.BlobStore.Driver {
	case "filesystem":
		if config.BlobStore.BasePath == "" {
			return fmt.Errorf("blobstore base path is required")
		}
	case "s3":
		if config.BlobStore.Bucket == "" {
			return fmt.Errorf("blobstore bucket is required")
		}
	default:
		return fmt.Errorf("unknown blobstore driver %q", config.BlobStore.Driver)
	}

	switch config.Notification.Transport {
	case "smtp":
		if config.Notification.SMTPHost == "" {
			return fmt.Errorf("smtp host is required")
		}
	case "log":
	default:
		return fmt.Errorf("unknown notification transport %q", config.Notification.Transport)
	}

	if config.Auth.DeviceBudget <= 0 || config.Auth.AdminBudget <= 0 {
		return fmt.Errorf("rate budgets must be positive")
	}
	if config.Auth.Window <= 0 {
		return fmt.Errorf("rate window must be positive")
	}
	if config.Ingestion.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive")
	}
	if config.Notification.Workers <= 0 || config.Notification.QueueSize <= 0 {
		return fmt.Errorf("notification workers and queue size must be positive")
	}
	if config.Auth.BootstrapAdminKey != "" &&
		(!strings.HasPrefix(config.Auth.BootstrapAdminKey, config.Auth.AdminPrefix) ||
			len(config.Auth.BootstrapAdminKey) < config.Auth.AdminMinLength) {
		return fmt.Errorf("bootstrap admin key does not match the admin key format")
	}
	return nil
}
