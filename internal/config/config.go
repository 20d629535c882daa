package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Display  DisplayConfig  `mapstructure:"display"`
	Ranking  RankingConfig  `mapstructure:"ranking"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig holds the schedule backend settings
type APIConfig struct {
	BaseURL                 string `mapstructure:"base_url"`
	TimeoutSeconds          int    `mapstructure:"timeout_seconds"`
	ConfigRetryAttempts     int    `mapstructure:"config_retry_attempts"`
	ConfigTTLSeconds        int    `mapstructure:"config_ttl_seconds"`
	MetadataMaxFailures     int    `mapstructure:"metadata_max_failures"`
	MetadataCooldownSeconds int    `mapstructure:"metadata_cooldown_seconds"`
}

// DatabaseConfig holds the selection store connection settings
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ServerConfig holds web viewer settings
type ServerConfig struct {
	Port               int      `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	SessionIdleMinutes int      `mapstructure:"session_idle_minutes"`
	// SelectionRetentionDays drops per-browser selections not read for this long; 0 keeps them
	SelectionRetentionDays int `mapstructure:"selection_retention_days"`
}

// BreakpointConfig maps a minimum viewport width to a grid column count
type BreakpointConfig struct {
	MinWidth int `mapstructure:"min_width"`
	Columns  int `mapstructure:"columns"`
}

// DisplayConfig holds grid rendering settings
type DisplayConfig struct {
	Timezone            string             `mapstructure:"timezone"`
	Locale              string             `mapstructure:"locale"`
	DefaultWidth        int                `mapstructure:"default_width"`
	Breakpoints         []BreakpointConfig `mapstructure:"breakpoints"`
	PrefetchRows        int                `mapstructure:"prefetch_rows"`
	PrefetchConcurrency int                `mapstructure:"prefetch_concurrency"`
	CellWidthPx         int                `mapstructure:"cell_width_px"`
}

// RankingConfig selects the site ranking policy
type RankingConfig struct {
	Policy string `mapstructure:"policy"` // region or keyword
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`

	App      LogLevelConfig `mapstructure:"app"`
	Database LogLevelConfig `mapstructure:"database"`
}

// LogLevelConfig represents log level configuration for a specific component
type LogLevelConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

var (
	cfg        *Config
	configFile string
)

// SetConfigFile points Load at an explicit file instead of the search path
func SetConfigFile(path string) {
	configFile = path
}

// bindEnvWithAlternatives binds a viper key to environment variables with alternative names
// This allows supporting both HOUSOU_API_BASE_URL and API_BASE_URL for the same config key
func bindEnvWithAlternatives(key string, alternatives ...string) {
	viper.BindEnv(key)
	for _, alt := range alternatives {
		if value := os.Getenv(alt); value != "" {
			viper.Set(key, value)
			break
		}
	}
}

// Load reads configuration from file and environment variables
func Load() error {
	viper.Reset()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/housou")
	}

	setDefaults()

	viper.SetEnvPrefix("HOUSOU")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvWithAlternatives("api.base_url", "API_BASE_URL")
	viper.BindEnv("api.timeout_seconds")
	viper.BindEnv("api.config_retry_attempts")
	viper.BindEnv("api.config_ttl_seconds")
	viper.BindEnv("api.metadata_max_failures")
	viper.BindEnv("api.metadata_cooldown_seconds")

	bindEnvWithAlternatives("database.driver", "DB_DRIVER")
	bindEnvWithAlternatives("database.path", "DB_PATH")
	bindEnvWithAlternatives("database.url", "DATABASE_URL")
	bindEnvWithAlternatives("database.host", "DB_HOST")
	bindEnvWithAlternatives("database.port", "DB_PORT")
	bindEnvWithAlternatives("database.user", "DB_USER")
	bindEnvWithAlternatives("database.password", "DB_PASSWORD")
	bindEnvWithAlternatives("database.dbname", "DB_NAME")
	bindEnvWithAlternatives("database.sslmode", "DB_SSLMODE")

	bindEnvWithAlternatives("server.port", "SERVER_PORT")
	viper.BindEnv("server.session_idle_minutes")
	viper.BindEnv("server.selection_retention_days")

	bindEnvWithAlternatives("display.timezone", "TZ_DISPLAY")
	viper.BindEnv("display.locale")
	viper.BindEnv("display.default_width")
	viper.BindEnv("display.prefetch_rows")
	viper.BindEnv("display.prefetch_concurrency")
	viper.BindEnv("display.cell_width_px")

	viper.BindEnv("ranking.policy")

	bindEnvWithAlternatives("logging.level", "LOG_LEVEL")
	viper.BindEnv("logging.format")
	viper.BindEnv("logging.app.level")
	viper.BindEnv("logging.database.level")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	loaded := &Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(loaded); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg = loaded
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		return &Config{}
	}
	return cfg
}

// Set replaces the current configuration (primarily for testing)
func Set(c *Config) {
	cfg = c
}

func setDefaults() {
	// API defaults
	viper.SetDefault("api.base_url", "http://localhost:8787")
	viper.SetDefault("api.timeout_seconds", 10)
	viper.SetDefault("api.config_retry_attempts", 3)
	viper.SetDefault("api.config_ttl_seconds", 60)
	viper.SetDefault("api.metadata_max_failures", 5)
	viper.SetDefault("api.metadata_cooldown_seconds", 60)

	// Database defaults
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "~/.housou/housou.db")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_allowed_origins", []string{"*"})
	viper.SetDefault("server.session_idle_minutes", 30)
	viper.SetDefault("server.selection_retention_days", 365)

	// Display defaults
	viper.SetDefault("display.timezone", "Local")
	viper.SetDefault("display.locale", "ja")
	viper.SetDefault("display.default_width", 1280)
	viper.SetDefault("display.breakpoints", []map[string]interface{}{
		{"min_width": 1280, "columns": 4},
		{"min_width": 1024, "columns": 3},
		{"min_width": 0, "columns": 2},
	})
	viper.SetDefault("display.prefetch_rows", 2)
	viper.SetDefault("display.prefetch_concurrency", 4)
	viper.SetDefault("display.cell_width_px", 8)

	// Ranking defaults
	viper.SetDefault("ranking.policy", "region")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func validateConfig(c *Config) error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be positive")
	}

	if c.Server.SelectionRetentionDays < 0 {
		return fmt.Errorf("server.selection_retention_days must not be negative")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" && (c.Database.User == "" || c.Database.DBName == "") {
			return fmt.Errorf("database.user and database.dbname are required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be one of: sqlite, postgres")
	}

	if len(c.Display.Breakpoints) == 0 {
		return fmt.Errorf("display.breakpoints must not be empty")
	}
	hasFloor := false
	for _, bp := range c.Display.Breakpoints {
		if bp.Columns < 1 {
			return fmt.Errorf("display.breakpoints columns must be at least 1")
		}
		if bp.MinWidth == 0 {
			hasFloor = true
		}
	}
	if !hasFloor {
		return fmt.Errorf("display.breakpoints must include a min_width: 0 entry")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("display.timezone is invalid: %w", err)
	}

	if c.Ranking.Policy != "region" && c.Ranking.Policy != "keyword" {
		return fmt.Errorf("ranking.policy must be one of: region, keyword")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats := map[string]bool{"json": true, "console": true}

	if c.Logging.Format != "" && !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, console")
	}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.App.Level != "" && !validLevels[c.Logging.App.Level] {
		return fmt.Errorf("logging.app.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Database.Level != "" && !validLevels[c.Logging.Database.Level] {
		return fmt.Errorf("logging.database.level must be one of: debug, info, warn, error")
	}

	return nil
}

// GetAppLogLevel returns the log level for application logging
// Priority: logging.app.level → logging.level → "info"
func (c *Config) GetAppLogLevel() string {
	if c.Logging.App.Level != "" {
		return c.Logging.App.Level
	}
	if c.Logging.Level != "" {
		return c.Logging.Level
	}
	return "info"
}

// GetDatabaseLogLevel returns the log level for database logging
// Priority: logging.database.level → logging.level → "info"
func (c *Config) GetDatabaseLogLevel() string {
	if c.Logging.Database.Level != "" {
		return c.Logging.Database.Level
	}
	if c.Logging.Level != "" {
		return c.Logging.Level
	}
	return "info"
}

// Location returns the timezone used to decide the broadcast weekday
func (c *Config) Location() (*time.Location, error) {
	if c.Display.Timezone == "" || c.Display.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Display.Timezone)
}

// SortedBreakpoints returns the breakpoints ordered by descending minimum width
func (c *Config) SortedBreakpoints() []BreakpointConfig {
	out := make([]BreakpointConfig, len(c.Display.Breakpoints))
	copy(out, c.Display.Breakpoints)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinWidth > out[j].MinWidth
	})
	return out
}

// APITimeout returns the per-request timeout for backend calls
func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// DatabasePath returns the sqlite path with a leading ~ expanded
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path == ":memory:" {
		return c.Database.Path, nil
	}
	return homedir.Expand(c.Database.Path)
}

// PostgresDSN returns the connection string for the postgres driver
func (c *Config) PostgresDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}
