package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ozzus/pm-tracker/internal/domain"
)

type Config struct {
	Env        string           `mapstructure:"env"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Report     ReportConfig     `mapstructure:"report"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Review     ReviewConfig     `mapstructure:"review"`
	Options    OptionsConfig    `mapstructure:"options"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Sessions   SessionsConfig   `mapstructure:"sessions"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	// PublicBaseURL prefixes relative photo references and local file URLs.
	PublicBaseURL string   `mapstructure:"public_base_url"`
	CORSOrigins   []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type StorageConfig struct {
	Driver  string             `mapstructure:"driver"`
	Timeout int                `mapstructure:"timeout"`
	Local   LocalStorageConfig `mapstructure:"local"`
	Azure   AzureStorageConfig `mapstructure:"azure"`
}

type LocalStorageConfig struct {
	Root string `mapstructure:"root"`
}

type AzureStorageConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountURL       string `mapstructure:"account_url"`
	Container        string `mapstructure:"container"`
	CreateContainer  bool   `mapstructure:"create_container"`
}

type KafkaConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Brokers []string    `mapstructure:"brokers"`
	GroupID string      `mapstructure:"group_id"`
	Topics  KafkaTopics `mapstructure:"topics"`
}

type KafkaTopics struct {
	Executions    string `mapstructure:"executions"`
	Status        string `mapstructure:"status"`
	ReportPending string `mapstructure:"report_pending"`
}

type ReportConfig struct {
	Concurrency  int    `mapstructure:"concurrency"`
	FetchTimeout int    `mapstructure:"fetch_timeout"`
	Timezone     string `mapstructure:"timezone"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
	Timeout  int   `mapstructure:"timeout"`
}

type ReviewConfig struct {
	Statuses []string `mapstructure:"statuses"`
}

type OptionsConfig struct {
	GLNames []string `mapstructure:"gl_names"`
	PMTypes []string `mapstructure:"pm_types"`
}

type ReconcilerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval int    `mapstructure:"interval"`
	Source   string `mapstructure:"source"`
}

type SessionsConfig struct {
	TTL int `mapstructure:"ttl"`
}

func Load() (*Config, error) {

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("local")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("env", "local")

	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.public_base_url", "http://localhost:8080")
	viper.SetDefault("server.cors_origins", []string{"*"})

	viper.SetDefault("database.dsn", "file:pm-tracker.db?_busy_timeout=5000")

	// Storage defaults
	viper.SetDefault("storage.driver", "local")
	viper.SetDefault("storage.timeout", 30)
	viper.SetDefault("storage.local.root", "./data/blobs")
	viper.SetDefault("storage.azure.connection_string", "")
	viper.SetDefault("storage.azure.account_url", "")
	viper.SetDefault("storage.azure.container", "pm-tracker")
	viper.SetDefault("storage.azure.create_container", true)

	// Kafka defaults
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "pm-tracker")
	viper.SetDefault("kafka.topics.executions", "pm-executions")
	viper.SetDefault("kafka.topics.status", "pm-status")
	viper.SetDefault("kafka.topics.report_pending", "pm-report-pending")

	viper.SetDefault("report.concurrency", 4)
	viper.SetDefault("report.fetch_timeout", 15)
	viper.SetDefault("report.timezone", "UTC")

	viper.SetDefault("upload.max_bytes", 10<<20)
	viper.SetDefault("upload.timeout", 30)

	viper.SetDefault("review.statuses", []string{"completed", "closed"})

	viper.SetDefault("options.gl_names", []string{})
	viper.SetDefault("options.pm_types", []string{"Mechanical", "Electrical", "Lubrication"})

	viper.SetDefault("reconciler.enabled", true)
	viper.SetDefault("reconciler.interval", 60)
	viper.SetDefault("reconciler.source", "sql")

	viper.SetDefault("sessions.ttl", 12*60*60)
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "local", "azure":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Reconciler.Source {
	case "sql", "kafka":
	default:
		return fmt.Errorf("unknown reconciler source %q", c.Reconciler.Source)
	}
	if c.Reconciler.Source == "kafka" && !c.Kafka.Enabled {
		return fmt.Errorf("reconciler source kafka requires kafka.enabled")
	}
	if _, err := c.GetReviewStatuses(); err != nil {
		return err
	}
	if _, err := c.GetLocation(); err != nil {
		return err
	}
	return nil
}

func (c *Config) GetStorageTimeout() time.Duration {
	return time.Duration(c.Storage.Timeout) * time.Second
}

func (c *Config) GetUploadTimeout() time.Duration {
	return time.Duration(c.Upload.Timeout) * time.Second
}

func (c *Config) GetFetchTimeout() time.Duration {
	return time.Duration(c.Report.FetchTimeout) * time.Second
}

func (c *Config) GetReconcileInterval() time.Duration {
	return time.Duration(c.Reconciler.Interval) * time.Second
}

func (c *Config) GetSessionTTL() time.Duration {
	return time.Duration(c.Sessions.TTL) * time.Second
}

func (c *Config) GetLocation() (*time.Location, error) {
	if c.Report.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid report.timezone: %w", err)
	}
	return loc, nil
}

// GetReviewStatuses parses review.statuses.
func (c *Config) GetReviewStatuses() ([]domain.PMStatus, error) {
	out := make([]domain.PMStatus, 0, len(c.Review.Statuses))
	for _, raw := range c.Review.Statuses {
		st, ok := domain.ParsePMStatus(raw)
		if !ok {
			return nil, fmt.Errorf("invalid review status %q", raw)
		}
		out = append(out, st)
	}
	return out, nil
}
