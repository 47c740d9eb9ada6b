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
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Billing     BillingConfig
	Circulation CirculationConfig
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

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// BillingConfig holds invoice generation settings
type BillingConfig struct {
	ReadingBufferDays int     // tolerance for readings outside the period edges
	DueDays           int     // invoice due date offset from the period end
	WaterSupplyRate   float64 // EUR per m3 when no water tariff is configured
	WaterSewageRate   float64 // EUR per m3 when no water tariff is configured
	WaterFixedFee     float64 // EUR per month
	StrictZones       bool    // unknown time-of-use zones abort instead of skipping
}

// CirculationConfig holds the hot-water circulation calculation settings
type CirculationConfig struct {
	SummerMonths          []int   // months circulation is measured directly
	WaterSpecificHeat     float64 // kWh per m3 per degree C
	TemperatureDelta      float64 // assumed cold-to-hot rise in degrees C
	PeakMonths            []int
	ShoulderMonths        []int
	PeakAdjustment        float64
	ShoulderAdjustment    float64
	DefaultAdjustment     float64
	AverageValidityMonths int    // stored summer baseline shelf life
	CacheBackend          string // memory or redis
	CacheTTL              time.Duration
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with CFLOW_ prefix (e.g., CFLOW_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// config file not found is OK, defaults and env vars apply
	}

	v.SetEnvPrefix("CFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Billing: BillingConfig{
			ReadingBufferDays: v.GetInt("billing.reading_buffer_days"),
			DueDays:           v.GetInt("billing.due_days"),
			WaterSupplyRate:   v.GetFloat64("billing.water_supply_rate"),
			WaterSewageRate:   v.GetFloat64("billing.water_sewage_rate"),
			WaterFixedFee:     v.GetFloat64("billing.water_fixed_fee"),
			StrictZones:       v.GetBool("billing.strict_zones"),
		},
		Circulation: CirculationConfig{
			SummerMonths:          v.GetIntSlice("circulation.summer_months"),
			WaterSpecificHeat:     v.GetFloat64("circulation.water_specific_heat"),
			TemperatureDelta:      v.GetFloat64("circulation.temperature_delta"),
			PeakMonths:            v.GetIntSlice("circulation.peak_months"),
			ShoulderMonths:        v.GetIntSlice("circulation.shoulder_months"),
			PeakAdjustment:        v.GetFloat64("circulation.peak_adjustment"),
			ShoulderAdjustment:    v.GetFloat64("circulation.shoulder_adjustment"),
			DefaultAdjustment:     v.GetFloat64("circulation.default_adjustment"),
			AverageValidityMonths: v.GetInt("circulation.average_validity_months"),
			CacheBackend:          v.GetString("circulation.cache_backend"),
			CacheTTL:              v.GetDuration("circulation.cache_ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "cflow-backend"
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
		cfg.Database.DBName = "cflow"
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
	if cfg.Billing.ReadingBufferDays == 0 {
		cfg.Billing.ReadingBufferDays = 7
	}
	if cfg.Billing.DueDays == 0 {
		cfg.Billing.DueDays = 14
	}
	if cfg.Billing.WaterSupplyRate == 0 {
		cfg.Billing.WaterSupplyRate = 0.97
	}
	if cfg.Billing.WaterSewageRate == 0 {
		cfg.Billing.WaterSewageRate = 1.23
	}
	if cfg.Billing.WaterFixedFee == 0 {
		cfg.Billing.WaterFixedFee = 0.85
	}
	if len(cfg.Circulation.SummerMonths) == 0 {
		cfg.Circulation.SummerMonths = []int{5, 6, 7, 8, 9}
	}
	if cfg.Circulation.WaterSpecificHeat == 0 {
		cfg.Circulation.WaterSpecificHeat = 1.163
	}
	if cfg.Circulation.TemperatureDelta == 0 {
		cfg.Circulation.TemperatureDelta = 45
	}
	if len(cfg.Circulation.PeakMonths) == 0 {
		cfg.Circulation.PeakMonths = []int{12, 1, 2}
	}
	if len(cfg.Circulation.ShoulderMonths) == 0 {
		cfg.Circulation.ShoulderMonths = []int{10, 11, 3, 4}
	}
	if cfg.Circulation.PeakAdjustment == 0 {
		cfg.Circulation.PeakAdjustment = 1.3
	}
	if cfg.Circulation.ShoulderAdjustment == 0 {
		cfg.Circulation.ShoulderAdjustment = 1.15
	}
	if cfg.Circulation.DefaultAdjustment == 0 {
		cfg.Circulation.DefaultAdjustment = 1.2
	}
	if cfg.Circulation.AverageValidityMonths == 0 {
		cfg.Circulation.AverageValidityMonths = 12
	}
	if cfg.Circulation.CacheBackend == "" {
		cfg.Circulation.CacheBackend = "memory"
	}
	if cfg.Circulation.CacheTTL == 0 {
		cfg.Circulation.CacheTTL = 24 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
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

	if c.Billing.ReadingBufferDays < 0 || c.Billing.ReadingBufferDays > 31 {
		return fmt.Errorf("billing.reading_buffer_days must be between 0 and 31, got %d", c.Billing.ReadingBufferDays)
	}
	if c.Billing.DueDays < 1 {
		return fmt.Errorf("billing.due_days must be positive, got %d", c.Billing.DueDays)
	}
	if c.Billing.WaterSupplyRate < 0 || c.Billing.WaterSewageRate < 0 || c.Billing.WaterFixedFee < 0 {
		return fmt.Errorf("billing water rates cannot be negative")
	}

	if c.Circulation.WaterSpecificHeat < 0.5 || c.Circulation.WaterSpecificHeat > 2.0 {
		return fmt.Errorf("circulation.water_specific_heat must be between 0.5 and 2.0 kWh per m3 per degree C, got %g", c.Circulation.WaterSpecificHeat)
	}
	if c.Circulation.TemperatureDelta < 20 || c.Circulation.TemperatureDelta > 70 {
		return fmt.Errorf("circulation.temperature_delta must be between 20 and 70 degrees C, got %g", c.Circulation.TemperatureDelta)
	}
	for _, adj := range []struct {
		name  string
		value float64
	}{
		{"circulation.peak_adjustment", c.Circulation.PeakAdjustment},
		{"circulation.shoulder_adjustment", c.Circulation.ShoulderAdjustment},
		{"circulation.default_adjustment", c.Circulation.DefaultAdjustment},
	} {
		if adj.value < 1.0 || adj.value > 2.0 {
			return fmt.Errorf("%s must be between 1.0 and 2.0, got %g", adj.name, adj.value)
		}
	}
	for _, m := range c.Circulation.SummerMonths {
		if m < 1 || m > 12 {
			return fmt.Errorf("circulation.summer_months contains invalid month %d", m)
		}
	}
	if c.Circulation.CacheBackend != "memory" && c.Circulation.CacheBackend != "redis" {
		return fmt.Errorf("circulation.cache_backend must be memory or redis, got %q", c.Circulation.CacheBackend)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
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
		Path:   "/" + d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisAddr returns the host:port address for the Redis client
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
