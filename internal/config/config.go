// Package config defines the configuration structures for the evoinfra
// facades. No I/O or parsing logic lives here, only plain data types and
// validation; loading is the loader's job.
package config

import (
	"fmt"

	"github.com/evolvehq/evoinfra/pkg/database/mongo"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/eventlog/gcl"
	"github.com/evolvehq/evoinfra/pkg/eventlog/pgarchive"
	"github.com/evolvehq/evoinfra/pkg/logging"
	"github.com/evolvehq/evoinfra/pkg/metrics"
	"github.com/evolvehq/evoinfra/pkg/storage/gcs"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// IdentityConfig names the application the facades act for. The app name
// prefixes bucket names and labels every event; the logger name is the event
// stream the recorder writes to.
type IdentityConfig struct {
	AppName     string `mapstructure:"app_name"`
	LoggerName  string `mapstructure:"logger_name"`
	Environment string `mapstructure:"environment"` // "TEST" | "DEV" | "STAGING" | "PROD" | "INFRA"
}

// EventsConfig selects and configures the event delivery engine.
//
// Engine picks the sink recorder events are delivered to: "local" writes
// them to the process logger, "cloud" to Google Cloud Logging, "archive" to
// a relational archive table. Only the sub-section matching the selected
// engine is required.
type EventsConfig struct {
	Engine string `mapstructure:"engine"`

	// MinSeverity is the delivery floor for the local engine. Events below
	// it are dropped before they reach the logger.
	MinSeverity string `mapstructure:"min_severity"`

	Cloud   gcl.Config       `mapstructure:"cloud"`
	Archive pgarchive.Config `mapstructure:"archive"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration for an evoinfra deployment.
//
// The Storage, Database, and Metrics sections reuse the component packages'
// own config types, so a section decoded here can be handed to the matching
// constructor unchanged. Component-owned defaults (bucket location, connect
// timeouts, archive pool size) are applied by those constructors, not here.
type Config struct {
	Identity IdentityConfig          `mapstructure:"identity"`
	Log      logging.LogConfig       `mapstructure:"log"`
	Events   EventsConfig            `mapstructure:"events"`
	Storage  gcs.Config              `mapstructure:"storage"`
	Database mongo.Config            `mapstructure:"database"`
	Metrics  metrics.CollectorConfig `mapstructure:"metrics"`
}

// Validate checks the identity and events sections, which every deployment
// needs before any facade can be constructed. The storage and database
// sections are validated by their own constructors so that a deployment
// using only the logging facade does not have to configure GCS or MongoDB.
func (c *Config) Validate() error {
	if c.Identity.AppName == "" {
		return fmt.Errorf("config: identity.app_name must not be empty")
	}
	if c.Identity.LoggerName == "" {
		return fmt.Errorf("config: identity.logger_name must not be empty")
	}
	if _, err := common.ParseEnvironment(c.Identity.Environment); err != nil {
		return fmt.Errorf("config: identity.environment: %w", err)
	}

	switch c.Events.Engine {
	case eventlog.EngineLocal:
		if _, err := common.ParseSeverity(c.Events.MinSeverity); err != nil {
			return fmt.Errorf("config: events.min_severity: %w", err)
		}
	case eventlog.EngineCloud:
		if err := c.Events.Cloud.Validate(); err != nil {
			return fmt.Errorf("config: events.cloud: %w", err)
		}
	case eventlog.EngineArchive:
		if err := c.Events.Archive.Validate(); err != nil {
			return fmt.Errorf("config: events.archive: %w", err)
		}
	default:
		return fmt.Errorf("config: events.engine must be one of %q, %q, %q, got %q",
			eventlog.EngineLocal, eventlog.EngineCloud, eventlog.EngineArchive, c.Events.Engine)
	}

	return nil
}

// Env returns the parsed deployment environment. Call Validate first;
// unparseable values fall back to DEV.
func (c *Config) Env() common.Environment {
	env, err := common.ParseEnvironment(c.Identity.Environment)
	if err != nil {
		return common.EnvDev
	}
	return env
}
