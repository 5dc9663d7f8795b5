package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Vendor    VendorConfig
	Ledger    LedgerConfig
	Archive   ArchiveConfig
	Redis     RedisConfig
	Sync      SyncConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// VendorConfig holds the hospitality back-office export API settings
type VendorConfig struct {
	BaseURL     string
	Token       string
	TokenHeader string        // header carrying the API token
	ExportPath  string        // path of the export endpoint, relative to BaseURL
	Timeout     time.Duration // per-request timeout
	MaxRetries  int           // retries after the first attempt on 5xx/transport errors
	RetryStep   time.Duration // linear backoff step: n-th retry waits n*RetryStep
}

// LedgerConfig holds the DynamoDB ledger settings
type LedgerConfig struct {
	Region              string
	Endpoint            string // empty uses the AWS default resolver
	Table               string
	SaleCentersTable    string
	SaleCenterPartition string // partition value holding the till-name rows
	AccessKey           string
	SecretKey           string
}

// ArchiveConfig holds the raw-feed archive settings (S3-compatible storage)
type ArchiveConfig struct {
	Enabled      bool
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	LocalDir     string // writes to a local directory instead of a bucket when set
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// SyncConfig holds orchestrator settings
type SyncConfig struct {
	DayDelay           time.Duration // pause between consecutive vendor days
	MaintenanceLimit   int           // default scan window of complete-fields
	LockTTL            time.Duration
	SaleCenterCacheTTL time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration // metric export interval
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CLOSEOUT_ prefix (e.g., CLOSEOUT_VENDOR_TOKEN)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CLOSEOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Vendor: VendorConfig{
			BaseURL:     v.GetString("vendor.base_url"),
			Token:       v.GetString("vendor.token"),
			TokenHeader: v.GetString("vendor.token_header"),
			ExportPath:  v.GetString("vendor.export_path"),
			Timeout:     v.GetDuration("vendor.timeout"),
			MaxRetries:  v.GetInt("vendor.max_retries"),
			RetryStep:   v.GetDuration("vendor.retry_step"),
		},
		Ledger: LedgerConfig{
			Region:              v.GetString("ledger.region"),
			Endpoint:            v.GetString("ledger.endpoint"),
			Table:               v.GetString("ledger.table"),
			SaleCentersTable:    v.GetString("ledger.sale_centers_table"),
			SaleCenterPartition: v.GetString("ledger.sale_center_partition"),
			AccessKey:           v.GetString("ledger.access_key"),
			SecretKey:           v.GetString("ledger.secret_key"),
		},
		Archive: ArchiveConfig{
			Enabled:      v.GetBool("archive.enabled"),
			Bucket:       v.GetString("archive.bucket"),
			Prefix:       v.GetString("archive.prefix"),
			Region:       v.GetString("archive.region"),
			Endpoint:     v.GetString("archive.endpoint"),
			AccessKey:    v.GetString("archive.access_key"),
			SecretKey:    v.GetString("archive.secret_key"),
			UseSSL:       v.GetBool("archive.use_ssl"),
			UsePathStyle: v.GetBool("archive.use_path_style"),
			LocalDir:     v.GetString("archive.local_dir"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Sync: SyncConfig{
			DayDelay:           v.GetDuration("sync.day_delay"),
			MaintenanceLimit:   v.GetInt("sync.maintenance_limit"),
			LockTTL:            v.GetDuration("sync.lock_ttl"),
			SaleCenterCacheTTL: v.GetDuration("sync.sale_center_cache_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
		},
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "closeout-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr" // stdout carries the command result
	}

	if cfg.Vendor.TokenHeader == "" {
		cfg.Vendor.TokenHeader = "Api-Token"
	}
	if cfg.Vendor.ExportPath == "" {
		cfg.Vendor.ExportPath = "/api/export/"
	}
	if cfg.Vendor.Timeout == 0 {
		cfg.Vendor.Timeout = 10 * time.Second
	}
	if cfg.Vendor.MaxRetries == 0 {
		cfg.Vendor.MaxRetries = 3
	}
	if cfg.Vendor.RetryStep == 0 {
		cfg.Vendor.RetryStep = 500 * time.Millisecond
	}

	if cfg.Ledger.Region == "" {
		cfg.Ledger.Region = "eu-west-1"
	}
	if cfg.Ledger.Table == "" {
		cfg.Ledger.Table = "SalesCloseouts"
	}
	if cfg.Ledger.SaleCentersTable == "" {
		cfg.Ledger.SaleCentersTable = "SaleCenters"
	}
	if cfg.Ledger.SaleCenterPartition == "" {
		cfg.Ledger.SaleCenterPartition = "SALE_CENTER"
	}

	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "vendor-feeds"
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = cfg.Ledger.Region
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Sync.DayDelay == 0 {
		cfg.Sync.DayDelay = 250 * time.Millisecond
	}
	if cfg.Sync.MaintenanceLimit == 0 {
		cfg.Sync.MaintenanceLimit = 200
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = 30 * time.Minute
	}
	if cfg.Sync.SaleCenterCacheTTL == 0 {
		cfg.Sync.SaleCenterCacheTTL = 10 * time.Minute
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 15 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Vendor.BaseURL != "" {
		u, err := url.Parse(c.Vendor.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("vendor.base_url must be an absolute URL, got %q", c.Vendor.BaseURL)
		}
	}
	if c.Vendor.MaxRetries < 0 {
		return fmt.Errorf("vendor.max_retries cannot be negative")
	}
	if c.Sync.MaintenanceLimit < 0 || c.Sync.MaintenanceLimit > 10000 {
		return fmt.Errorf("sync.maintenance_limit must be between 1 and 10000, got %d", c.Sync.MaintenanceLimit)
	}
	if c.Sync.DayDelay < 0 {
		return fmt.Errorf("sync.day_delay cannot be negative")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" && c.Archive.LocalDir == "" {
		return fmt.Errorf("archive.bucket or archive.local_dir is required when archive.enabled is true")
	}

	if c.App.Env == "production" {
		if c.Vendor.BaseURL == "" || c.Vendor.Token == "" {
			return fmt.Errorf("vendor.base_url and vendor.token are required in production")
		}
		if c.Ledger.Endpoint != "" && strings.HasPrefix(c.Ledger.Endpoint, "http://") {
			return fmt.Errorf("ledger.endpoint must not be a plain-HTTP endpoint in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
