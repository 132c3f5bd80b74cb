package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all evoinfra settings.
const envPrefix = "EVOINFRA"

// envKeys lists every scalar config key so that environment variables are
// visible to Unmarshal even when no config file supplies the key. Viper only
// consults the environment for keys it already knows about. Map-valued keys
// (events.cloud.labels, metrics.const_labels) are file-only and stay out of
// this list. Extend it when a section gains a field.
var envKeys = []string{
	"identity.app_name",
	"identity.logger_name",
	"identity.environment",

	"log.level",
	"log.format",
	"log.output_paths",
	"log.error_output_paths",

	"events.engine",
	"events.min_severity",
	"events.cloud.project_id",
	"events.cloud.credentials_file",
	"events.archive.host",
	"events.archive.port",
	"events.archive.database",
	"events.archive.username",
	"events.archive.password",
	"events.archive.ssl_mode",
	"events.archive.table",
	"events.archive.max_conns",

	"storage.project_id",
	"storage.app_name",
	"storage.credentials_file",
	"storage.location",
	"storage.storage_class",
	"storage.bulk_tool",
	"storage.temp_dir",

	"database.uri",
	"database.database",
	"database.app_name",
	"database.connect_timeout",

	"metrics.namespace",
	"metrics.subsystem",
	"metrics.enable_process_metrics",
	"metrics.enable_go_metrics",
}

// newViper builds a pre-configured Viper instance with the module's standard
// settings: YAML file type, EVOINFRA_ env prefix, automatic env binding, and
// a key replacer that maps "." to "_" so that nested keys like "database.uri"
// resolve to "EVOINFRA_DATABASE_URI".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the YAML file at configPath, merges any EVOINFRA_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result. It returns a fully-populated *Config or a descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from EVOINFRA_* environment variables,
// with no config file required. This is the preferred loading strategy for
// containerised deployments.
//
// Environment variable naming convention:
//
//	EVOINFRA_<SECTION>_<FIELD>   e.g.  EVOINFRA_DATABASE_URI, EVOINFRA_EVENTS_ENGINE
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file. Env vars and defaults only.
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk. It is intended for
// hot-reloading settings that are safe to change at runtime, such as the log
// level or the event delivery floor; callers decide which subset to apply.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse or validate, onChange is not called.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read. Errors are ignored here; callers should call Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			// The change produced an invalid config; keep the last good one.
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
