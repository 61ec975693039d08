// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/codr1/Ensaios/internal/bands"
)

const (
	StoreDriverSQLite = "sqlite"
	StoreDriverCSV    = "csv"
	StoreDriverMemory = "memory"
)

type StoreConfig struct {
	Driver   string        `yaml:"driver"`
	Filename string        `yaml:"filename"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Config struct {
	App struct {
		Name         string `yaml:"name"`
		Environment  string `yaml:"environment"`
		Port         int    `yaml:"port"`
		BaseURL      string `yaml:"base_url"`
		SecretKey    string `yaml:"-"` // Loaded from environment
		PasswordHash string `yaml:"-"` // Loaded from environment
		TrustProxy   bool   `yaml:"trust_proxy"`
	} `yaml:"app"`

	Store StoreConfig `yaml:"store"`

	Agenda struct {
		ConflictPolicy    string `yaml:"conflict_policy"`
		AllowUnknownBands bool   `yaml:"allow_unknown_bands"`
		AllowPastDates    bool   `yaml:"allow_past_dates"`
		DefaultTime       string `yaml:"default_time"`
		MinYear           int    `yaml:"min_year"`
		MaxYear           int    `yaml:"max_year"`
	} `yaml:"agenda"`

	Bands []bands.Band `yaml:"bands"`

	Scheduler struct {
		FlushSchedule  string `yaml:"flush_schedule"`
		BackupSchedule string `yaml:"backup_schedule"`
		BackupDir      string `yaml:"backup_dir"`
	} `yaml:"scheduler"`

	Notifications struct {
		Recipient string `yaml:"recipient"`
		Sender    string `yaml:"sender"`
		Region    string `yaml:"region"`
		// Credentials are loaded from environment
		AccessKeyID     string `yaml:"-"`
		SecretAccessKey string `yaml:"-"`
	} `yaml:"notifications"`

	Features struct {
		EnableDebug bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Load sensitive values from environment
	cfg.App.SecretKey = os.Getenv("APP_SECRET_KEY")
	cfg.App.PasswordHash = os.Getenv("APP_PASSWORD_HASH")
	cfg.Notifications.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.Notifications.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and fills defaults. It does not read the environment or validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.Store.Timeout == 0 {
		c.Store.Timeout = 10 * time.Second
	}
	if c.Agenda.ConflictPolicy == "" {
		c.Agenda.ConflictPolicy = "date_time"
	}
	if c.Agenda.DefaultTime == "" {
		c.Agenda.DefaultTime = "19:00"
	}
	if c.Agenda.MinYear == 0 {
		c.Agenda.MinYear = 2023
	}
	if c.Agenda.MaxYear == 0 {
		c.Agenda.MaxYear = 2030
	}
	if len(c.Bands) == 0 {
		c.Bands = bands.Defaults()
	}
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// NotificationsEnabled reports whether booking notices should be mailed.
func (c *Config) NotificationsEnabled() bool {
	return strings.TrimSpace(c.Notifications.Recipient) != ""
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.App.SecretKey == "" {
		return fmt.Errorf("APP_SECRET_KEY is required")
	}
	if len(c.App.SecretKey) < 32 {
		return fmt.Errorf("APP_SECRET_KEY must be at least 32 characters")
	}
	if c.App.PasswordHash == "" {
		return fmt.Errorf("APP_PASSWORD_HASH is required")
	}
	if c.Store.Driver == "" {
		return fmt.Errorf("store driver is required")
	}

	switch c.Store.Driver {
	case StoreDriverSQLite, StoreDriverCSV:
		if c.Store.Filename == "" {
			return fmt.Errorf("store filename is required for %s", c.Store.Driver)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if c.Store.Timeout < 0 {
		return fmt.Errorf("store timeout must not be negative")
	}

	switch c.Agenda.ConflictPolicy {
	case "date_time", "date":
	default:
		return fmt.Errorf("unsupported conflict policy: %s", c.Agenda.ConflictPolicy)
	}
	if c.Agenda.MinYear > c.Agenda.MaxYear {
		return fmt.Errorf("agenda min_year must not be after max_year")
	}
	if _, err := bands.NewRegistry(c.Bands); err != nil {
		return err
	}

	if err := validateSchedule("flush_schedule", c.Scheduler.FlushSchedule); err != nil {
		return err
	}
	if err := validateSchedule("backup_schedule", c.Scheduler.BackupSchedule); err != nil {
		return err
	}
	if c.Scheduler.BackupSchedule != "" && c.Scheduler.BackupDir == "" {
		return fmt.Errorf("scheduler backup_dir is required when backup_schedule is set")
	}

	if c.NotificationsEnabled() {
		if c.Notifications.Sender == "" || c.Notifications.Region == "" {
			return fmt.Errorf("notifications sender and region are required when recipient is set")
		}
		if c.Notifications.AccessKeyID == "" || c.Notifications.SecretAccessKey == "" {
			return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are required for notifications")
		}
	}

	return nil
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func validateSchedule(name, expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("scheduler %s %q is not a valid cron expression: %w", name, expr, err)
	}
	return nil
}
