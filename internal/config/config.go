package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Governor      GovernorConfig      `toml:"governor"`
	Night         NightConfig         `toml:"night"`
	Agent         AgentConfig         `toml:"agent"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	DatabasePath string `toml:"database_path"`
	BacklogDir   string `toml:"backlog_dir"`
	AccountID    string `toml:"account_id"`
}

// GovernorConfig holds spending policy settings
type GovernorConfig struct {
	CreditCapPercent      int   `toml:"credit_cap_percent"`
	MaxBudgetPerTaskCents int64 `toml:"max_budget_per_task_cents"`
	HardStopMinutes       int   `toml:"hard_stop_minutes"`
	WindowResetHour       int   `toml:"window_reset_hour"`
}

// NightConfig holds the nightly execution window
type NightConfig struct {
	StartHour int `toml:"start_hour"`
	EndHour   int `toml:"end_hour"`
	MaxRisk   int `toml:"max_risk"`
}

// AgentConfig holds coding agent settings
type AgentConfig struct {
	Binary         string `toml:"binary"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxOutputKB    int    `toml:"max_output_kb"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			DatabasePath: filepath.Join(home, ".nightmode", "nightmode.db"),
			BacklogDir:   filepath.Join(home, ".nightmode", "backlog"),
			AccountID:    "self",
		},
		Governor: GovernorConfig{
			CreditCapPercent:      75,
			MaxBudgetPerTaskCents: 50,
			HardStopMinutes:       30,
			WindowResetHour:       3,
		},
		Night: NightConfig{
			StartHour: 23,
			EndHour:   6,
			MaxRisk:   3,
		},
		Agent: AgentConfig{
			Binary:         "claude",
			TimeoutSeconds: 300,
			MaxOutputKB:    64,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.General.BacklogDir = ExpandPath(cfg.General.BacklogDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as TOML, creating parent directories
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if c.Governor.CreditCapPercent < 0 || c.Governor.CreditCapPercent > 100 {
		return fmt.Errorf("governor.credit_cap_percent %d out of range 0-100", c.Governor.CreditCapPercent)
	}
	if c.Governor.MaxBudgetPerTaskCents <= 0 {
		return fmt.Errorf("governor.max_budget_per_task_cents must be positive")
	}
	if c.Governor.WindowResetHour < 0 || c.Governor.WindowResetHour > 23 {
		return fmt.Errorf("governor.window_reset_hour %d out of range 0-23", c.Governor.WindowResetHour)
	}
	if c.Night.StartHour < 0 || c.Night.StartHour > 23 || c.Night.EndHour < 0 || c.Night.EndHour > 23 {
		return fmt.Errorf("night window %d-%d out of range 0-23", c.Night.StartHour, c.Night.EndHour)
	}
	if c.Night.MaxRisk < 1 || c.Night.MaxRisk > 5 {
		return fmt.Errorf("night.max_risk %d out of range 1-5", c.Night.MaxRisk)
	}
	if c.Agent.TimeoutSeconds <= 0 {
		return fmt.Errorf("agent.timeout_seconds must be positive")
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "nightmode", "config.toml")
}
