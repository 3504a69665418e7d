// Package config loads the runtime's bootstrap configuration: the authority
// identities, the audit sink, and the release the lifecycle manager is
// initialized with. Runtime key/value settings live in core/configstore, not
// here — this package only covers what must be known before the components
// are constructed.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AuthoritiesConfig names the three principals governing the core.
type AuthoritiesConfig struct {
	Executor       string `mapstructure:"executor"`
	Admin          string `mapstructure:"admin"`
	EmergencyAdmin string `mapstructure:"emergency_admin"`
}

// AuditConfig configures the JSON-lines audit sink.
type AuditConfig struct {
	Path      string `mapstructure:"path"`
	MaxEvents int    `mapstructure:"max_events"`
}

// ReleaseConfig is the deployment the lifecycle manager is initialized with.
type ReleaseConfig struct {
	Version uint64 `mapstructure:"version"`
	Ref     string `mapstructure:"ref"`
}

// Config holds the runtime's bootstrap settings.
type Config struct {
	Environment string            `mapstructure:"environment"`
	Authorities AuthoritiesConfig `mapstructure:"authorities"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Release     ReleaseConfig     `mapstructure:"release"`
	SeedFile    string            `mapstructure:"seed_file"`
	MetricsAddr string            `mapstructure:"metrics_addr"`
}

// configChangeHooks stores functions to be called when the config changes.
var configChangeHooks []func(*Config)

// AddConfigChangeHook registers a function to be called when the
// configuration file changes on disk.
func (c *Config) AddConfigChangeHook(hook func(*Config)) {
	configChangeHooks = append(configChangeHooks, hook)
}

// LoadConfig loads the bootstrap configuration from the default search paths
// and the environment.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/banyan")

	return load(v)
}

// LoadConfigFromFile loads the bootstrap configuration from an explicit file.
func LoadConfigFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvPrefix("BANYAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("environment", "development")
	v.SetDefault("authorities.executor", "executor")
	v.SetDefault("authorities.admin", "admin")
	v.SetDefault("authorities.emergency_admin", "emergency-admin")
	v.SetDefault("audit.path", "data/audit.log")
	v.SetDefault("audit.max_events", 10000)
	v.SetDefault("release.version", 1)
	v.SetDefault("metrics_addr", ":9109")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; proceed with defaults and environment.
			fmt.Fprintln(os.Stderr, "Config file not found, using defaults and environment variables.")
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Println(fmt.Errorf("failed to re-unmarshal config: %w", err))
			return
		}
		for _, hook := range configChangeHooks {
			hook(&cfg)
		}
	})

	return &cfg, nil
}

// Validate rejects configurations that would leave a component ungoverned.
func (c *Config) Validate() error {
	if c.Authorities.Executor == "" {
		return fmt.Errorf("authorities.executor must not be empty")
	}
	if c.Authorities.Admin == "" {
		return fmt.Errorf("authorities.admin must not be empty")
	}
	if c.Authorities.EmergencyAdmin == "" {
		return fmt.Errorf("authorities.emergency_admin must not be empty")
	}
	if c.Authorities.EmergencyAdmin == c.Authorities.Admin {
		return fmt.Errorf("emergency admin must be distinct from admin")
	}
	if c.Release.Version == 0 {
		return fmt.Errorf("release.version must be at least 1")
	}
	return nil
}
