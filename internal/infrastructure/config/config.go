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
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Source     SourceConfig
	Endorser   EndorserConfig
	Reconciler ReconcilerConfig
	Alert      AlertConfig
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
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// SourceConfig holds connection settings for the source ERP API
type SourceConfig struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	PageWait time.Duration // pause between paginated requests

	// InsecureSkipVerify disables TLS certificate verification. Some
	// homologation endpoints serve self-signed certificates.
	InsecureSkipVerify bool
}

// EndorserConfig holds connection and credential settings for the
// endorsement partner API
type EndorserConfig struct {
	BaseURL     string
	User        string
	Password    string
	PartnerCode string
	Timeout     time.Duration

	// InsecureSkipVerify disables TLS certificate verification for the
	// partner's homologation environment.
	InsecureSkipVerify bool
}

// ReconcilerConfig holds reconciliation loop settings
type ReconcilerConfig struct {
	Enabled      bool
	Interval     time.Duration
	CycleTimeout time.Duration
	LookbackDays int    // how many days back the ingest window starts
	SearchDate   string // fixed YYYY-MM-DD ingest date for backfills, empty = rolling window
	LockTTL      time.Duration
}

// AlertConfig holds SMTP settings for operator alerts
type AlertConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with AVB_ prefix (e.g., AVB_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("AVB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Source: SourceConfig{
			BaseURL:            v.GetString("source.base_url"),
			Token:              v.GetString("source.token"),
			Timeout:            v.GetDuration("source.timeout"),
			PageWait:           v.GetDuration("source.page_wait"),
			InsecureSkipVerify: v.GetBool("source.insecure_skip_verify"),
		},
		Endorser: EndorserConfig{
			BaseURL:            v.GetString("endorser.base_url"),
			User:               v.GetString("endorser.user"),
			Password:           v.GetString("endorser.password"),
			PartnerCode:        v.GetString("endorser.partner_code"),
			Timeout:            v.GetDuration("endorser.timeout"),
			InsecureSkipVerify: v.GetBool("endorser.insecure_skip_verify"),
		},
		Reconciler: ReconcilerConfig{
			Enabled:      v.GetBool("reconciler.enabled"),
			Interval:     v.GetDuration("reconciler.interval"),
			CycleTimeout: v.GetDuration("reconciler.cycle_timeout"),
			LookbackDays: v.GetInt("reconciler.lookback_days"),
			SearchDate:   v.GetString("reconciler.search_date"),
			LockTTL:      v.GetDuration("reconciler.lock_ttl"),
		},
		Alert: AlertConfig{
			Enabled:  v.GetBool("alert.enabled"),
			Host:     v.GetString("alert.host"),
			Port:     v.GetInt("alert.port"),
			User:     v.GetString("alert.user"),
			Password: v.GetString("alert.password"),
			From:     v.GetString("alert.from"),
			To:       v.GetStringSlice("alert.to"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "averbaflow-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "averbaflow"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 30 * time.Second
	}
	if cfg.Endorser.Timeout == 0 {
		cfg.Endorser.Timeout = 30 * time.Second
	}
	if cfg.Reconciler.Interval == 0 {
		cfg.Reconciler.Interval = 10 * time.Minute
	}
	if cfg.Reconciler.CycleTimeout == 0 {
		cfg.Reconciler.CycleTimeout = 8 * time.Minute
	}
	if cfg.Reconciler.LookbackDays == 0 {
		cfg.Reconciler.LookbackDays = 15
	}
	if cfg.Reconciler.LockTTL == 0 {
		cfg.Reconciler.LockTTL = cfg.Reconciler.CycleTimeout
	}
	if cfg.Alert.Port == 0 {
		cfg.Alert.Port = 587
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Reconciler.CycleTimeout > c.Reconciler.Interval {
		return fmt.Errorf("reconciler.cycle_timeout (%s) cannot exceed reconciler.interval (%s)",
			c.Reconciler.CycleTimeout, c.Reconciler.Interval)
	}
	if c.Reconciler.LookbackDays < 0 {
		return fmt.Errorf("reconciler.lookback_days cannot be negative")
	}
	if c.Reconciler.SearchDate != "" {
		if _, err := time.Parse("2006-01-02", c.Reconciler.SearchDate); err != nil {
			return fmt.Errorf("reconciler.search_date must be in YYYY-MM-DD format: %w", err)
		}
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required in production")
		}
		if c.Source.Token == "" {
			return fmt.Errorf("source.token is required in production")
		}
		if c.Endorser.BaseURL == "" {
			return fmt.Errorf("endorser.base_url is required in production")
		}
		if c.Endorser.User == "" || c.Endorser.Password == "" || c.Endorser.PartnerCode == "" {
			return fmt.Errorf("endorser.user, endorser.password and endorser.partner_code are required in production")
		}
		if c.Source.InsecureSkipVerify || c.Endorser.InsecureSkipVerify {
			return fmt.Errorf("insecure_skip_verify cannot be enabled in production")
		}
		// CORS must not use wildcard with credentials
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Alert.Enabled {
			if c.Alert.Host == "" || c.Alert.From == "" || len(c.Alert.To) == 0 {
				return fmt.Errorf("alert.host, alert.from and alert.to are required when alerting is enabled in production")
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
