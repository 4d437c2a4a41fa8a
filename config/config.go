package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ByteMirror/survivalpong/log"
	"github.com/joho/godotenv"
)

const (
	ConfigFileName  = "config.json"
	ResultsFileName = "PongResults.txt"

	// EnvPrefix prefixes every environment override, e.g. SURVIVALPONG_MINIMUM_STOCK.
	EnvPrefix = "SURVIVALPONG_"
)

// GetConfigDir returns the path to the application's configuration directory
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".survivalpong"), nil
}

// WorkerConfig sizes one worker pool.
type WorkerConfig struct {
	// MinWorkers are kept alive even when idle.
	MinWorkers int `json:"min_workers"`
	// MaxWorkers caps the number of concurrently running workers.
	MaxWorkers int `json:"max_workers"`
	// KeepAliveMs is how long a worker above MinWorkers may sit idle before it exits.
	KeepAliveMs int `json:"keep_alive_ms"`
}

// KeepAlive returns KeepAliveMs as a duration.
func (w WorkerConfig) KeepAlive() time.Duration {
	return time.Duration(w.KeepAliveMs) * time.Millisecond
}

// Config represents the application configuration
type Config struct {
	// Width and Height are the simulation bounds.
	Width  int `json:"width"`
	Height int `json:"height"`
	// TickPeriodMs is the cadence of the simulation loop.
	TickPeriodMs int `json:"tick_period_ms"`
	// PaddleSpeed is how many units a paddle moves per tick.
	PaddleSpeed int `json:"paddle_speed"`
	// PaddleWidthFraction and PaddleHeightFraction size paddles relative to the bounds.
	PaddleWidthFraction  int `json:"paddle_width_fraction"`
	PaddleHeightFraction int `json:"paddle_height_fraction"`

	// LevelDurationSecs is the survival time between level advances.
	LevelDurationSecs int `json:"level_duration_secs"`
	// EasyLevels is the number of levels played before hard mode starts.
	EasyLevels int `json:"easy_levels"`

	// MinimumStock is the per-variant pool floor that triggers replenishment.
	MinimumStock int `json:"minimum_stock"`
	// BatchSize is the number of production tasks issued per replenishment.
	BatchSize int `json:"batch_size"`
	// PoolCapacity bounds production into a single pool. 0 means unbounded.
	PoolCapacity int `json:"pool_capacity"`
	// PollIntervalMs is how often a waiting request rechecks an empty pool.
	PollIntervalMs int `json:"poll_interval_ms"`
	// WaitTimeoutMs bounds how long a request waits for stock. 0 waits forever.
	WaitTimeoutMs int `json:"wait_timeout_ms"`

	Production WorkerConfig `json:"production"`
	Retrieval  WorkerConfig `json:"retrieval"`

	// ResultsFormat is "plain" or "dated".
	ResultsFormat string `json:"results_format"`
	// ResultsPath overrides the results file location.
	ResultsPath string `json:"results_path,omitempty"`
	// RedisURL, when set, also pushes results onto RedisKey.
	RedisURL string `json:"redis_url,omitempty"`
	RedisKey string `json:"redis_key,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Width:                960,
		Height:               540,
		TickPeriodMs:         17,
		PaddleSpeed:          8,
		PaddleWidthFraction:  50,
		PaddleHeightFraction: 4,
		LevelDurationSecs:    15,
		EasyLevels:           5,
		MinimumStock:         10,
		BatchSize:            5,
		PoolCapacity:         1000,
		PollIntervalMs:       1000,
		WaitTimeoutMs:        30000,
		Production:           WorkerConfig{MinWorkers: 4, MaxWorkers: 16, KeepAliveMs: 1000},
		Retrieval:            WorkerConfig{MinWorkers: 4, MaxWorkers: 16, KeepAliveMs: 1000},
		ResultsFormat:        "dated",
		RedisKey:             "survivalpong:results",
	}
}

// TickPeriod returns TickPeriodMs as a duration.
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.TickPeriodMs) * time.Millisecond
}

// PollInterval returns PollIntervalMs as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// WaitTimeout returns WaitTimeoutMs as a duration. Zero means no timeout.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutMs) * time.Millisecond
}

// ResultsFile returns where finished matches are appended.
func (c *Config) ResultsFile() (string, error) {
	if c.ResultsPath != "" {
		return c.ResultsPath, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ResultsFileName), nil
}

// Normalize replaces unusable values with their defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()

	positive := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	positive(&c.Width, d.Width)
	positive(&c.Height, d.Height)
	positive(&c.TickPeriodMs, d.TickPeriodMs)
	positive(&c.PaddleSpeed, d.PaddleSpeed)
	positive(&c.PaddleWidthFraction, d.PaddleWidthFraction)
	positive(&c.PaddleHeightFraction, d.PaddleHeightFraction)
	positive(&c.LevelDurationSecs, d.LevelDurationSecs)
	positive(&c.EasyLevels, d.EasyLevels)
	positive(&c.MinimumStock, d.MinimumStock)
	positive(&c.BatchSize, d.BatchSize)
	positive(&c.PollIntervalMs, d.PollIntervalMs)
	if c.PoolCapacity < 0 {
		c.PoolCapacity = 0
	}
	if c.WaitTimeoutMs < 0 {
		c.WaitTimeoutMs = 0
	}

	c.Production = normalizeWorkers(c.Production, d.Production)
	c.Retrieval = normalizeWorkers(c.Retrieval, d.Retrieval)

	if c.ResultsFormat != "plain" && c.ResultsFormat != "dated" {
		c.ResultsFormat = d.ResultsFormat
	}
	if c.RedisKey == "" {
		c.RedisKey = d.RedisKey
	}
}

func normalizeWorkers(w, def WorkerConfig) WorkerConfig {
	if w == (WorkerConfig{}) {
		return def
	}
	if w.MaxWorkers <= 0 {
		w.MaxWorkers = def.MaxWorkers
	}
	if w.MinWorkers < 0 {
		w.MinWorkers = 0
	}
	if w.MinWorkers > w.MaxWorkers {
		w.MinWorkers = w.MaxWorkers
	}
	if w.KeepAliveMs <= 0 {
		w.KeepAliveMs = def.KeepAliveMs
	}
	return w
}

// LoadConfig loads the configuration from disk and applies environment overrides.
// If the file cannot be used, we start from the default configuration.
func LoadConfig() *Config {
	cfg := loadConfigFile()
	ApplyEnv(cfg)
	cfg.Normalize()
	return cfg
}

func loadConfigFile() *Config {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return DefaultConfig()
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			defaultCfg := DefaultConfig()
			if saveErr := saveConfig(defaultCfg); saveErr != nil {
				log.WarningLog.Printf("failed to save default config: %v", saveErr)
			}
			return defaultCfg
		}

		log.WarningLog.Printf("failed to get config file: %v", err)
		return DefaultConfig()
	}

	// Start from defaults so fields missing from older files keep sane values.
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		log.ErrorLog.Printf("failed to parse config file: %v", err)
		return DefaultConfig()
	}

	return config
}

// ApplyEnv overlays SURVIVALPONG_* variables, reading a .env file in the working
// directory first if one exists.
func ApplyEnv(cfg *Config) {
	if err := godotenv.Load(); err == nil {
		log.InfoLog.Printf("loaded overrides from .env")
	}

	envInt(&cfg.Width, "WIDTH")
	envInt(&cfg.Height, "HEIGHT")
	envInt(&cfg.TickPeriodMs, "TICK_PERIOD_MS")
	envInt(&cfg.LevelDurationSecs, "LEVEL_DURATION_SECS")
	envInt(&cfg.EasyLevels, "EASY_LEVELS")
	envInt(&cfg.MinimumStock, "MINIMUM_STOCK")
	envInt(&cfg.BatchSize, "BATCH_SIZE")
	envInt(&cfg.PoolCapacity, "POOL_CAPACITY")
	envInt(&cfg.PollIntervalMs, "POLL_INTERVAL_MS")
	envInt(&cfg.WaitTimeoutMs, "WAIT_TIMEOUT_MS")
	envInt(&cfg.Production.MinWorkers, "PRODUCTION_MIN_WORKERS")
	envInt(&cfg.Production.MaxWorkers, "PRODUCTION_MAX_WORKERS")
	envInt(&cfg.Retrieval.MinWorkers, "RETRIEVAL_MIN_WORKERS")
	envInt(&cfg.Retrieval.MaxWorkers, "RETRIEVAL_MAX_WORKERS")
	envString(&cfg.ResultsFormat, "RESULTS_FORMAT")
	envString(&cfg.ResultsPath, "RESULTS_PATH")
	envString(&cfg.RedisURL, "REDIS_URL")
	envString(&cfg.RedisKey, "REDIS_KEY")
}

func envString(dst *string, key string) {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		*dst = value
	}
}

func envInt(dst *int, key string) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		log.WarningLog.Printf("ignoring %s%s=%q: %v", EnvPrefix, key, value, err)
		return
	}
	*dst = intVal
}

// saveConfig saves the configuration to disk
func saveConfig(config *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write beside the real file and rename so a crash never leaves it truncated.
	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// SaveConfig exports the saveConfig function for use by other packages
func SaveConfig(config *Config) error {
	return saveConfig(config)
}
