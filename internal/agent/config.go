// Package agent assembles the PowerDock device agent: telemetry ingestion,
// update orchestration, and the local control surface.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the device-level configuration, loaded from the unit's config
// file. Command-line flags cover the process-level concerns (logging, HTTP,
// MQTT); everything describing the hardware and the release channel lives
// here.
type Config struct {
	// DeviceID identifies this unit in MQTT topics. Defaults to the
	// hostname when empty.
	DeviceID string `mapstructure:"device-id"`

	// Release channel.
	RepoOwner      string `mapstructure:"repo-owner"`
	RepoName       string `mapstructure:"repo-name"`
	CurrentVersion string `mapstructure:"current-version"`
	APIBaseURL     string `mapstructure:"api-base-url"`
	TokenFile      string `mapstructure:"token-file"`

	// InsecureSkipVerify disables TLS certificate verification for release
	// checks. Never enable outside a lab.
	InsecureSkipVerify bool `mapstructure:"insecure-skip-verify"`

	// UpdateChecksEnabled gates the automatic check on startup. Manual
	// checks through the control API always work.
	UpdateChecksEnabled bool `mapstructure:"update-checks-enabled"`

	// InstallCommand is the argv prefix of the updater; owner, repo and
	// version are appended at launch time.
	InstallCommand []string `mapstructure:"install-command"`

	// Telemetry inputs.
	FeedFile      string        `mapstructure:"feed-file"`
	StatsFile     string        `mapstructure:"stats-file"`
	ModuleCount   int           `mapstructure:"module-count"`
	VMin          float64       `mapstructure:"v-min"`
	VMax          float64       `mapstructure:"v-max"`
	PollInterval  time.Duration `mapstructure:"poll-interval"`
	StatsInterval time.Duration `mapstructure:"stats-interval"`

	// WirelessInterface is the interface the connectivity probe inspects.
	WirelessInterface string `mapstructure:"wireless-interface"`
}

// LoadConfig reads the device configuration. An empty path loads defaults
// plus POWERDOCK_* environment overrides, which is enough for bench testing.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("api-base-url", "https://api.github.com")
	v.SetDefault("update-checks-enabled", true)
	v.SetDefault("install-command", []string{"python3", "/opt/powerdock/ota_install.py"})
	v.SetDefault("feed-file", "/run/powerdock/telemetry.json")
	v.SetDefault("stats-file", "/var/lib/powerdock/battery_stats.json")
	v.SetDefault("module-count", 8)
	v.SetDefault("v-min", 18.0)
	v.SetDefault("v-max", 21.0)
	v.SetDefault("poll-interval", 500*time.Millisecond)
	v.SetDefault("stats-interval", 2*time.Second)
	v.SetDefault("wireless-interface", "wlan0")

	v.SetEnvPrefix("POWERDOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RepoOwner == "" || c.RepoName == "" {
		return fmt.Errorf("repo-owner and repo-name are required")
	}
	if c.CurrentVersion == "" {
		return fmt.Errorf("current-version is required")
	}
	if c.ModuleCount <= 0 {
		return fmt.Errorf("module-count must be positive, got %d", c.ModuleCount)
	}
	if c.VMax <= c.VMin {
		return fmt.Errorf("v-max (%.2f) must exceed v-min (%.2f)", c.VMax, c.VMin)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if len(c.InstallCommand) == 0 {
		return fmt.Errorf("install-command must not be empty")
	}
	return nil
}
