package config

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultAppName     = "evolve"
	DefaultLoggerName  = "infra"
	DefaultEnvironment = "DEV"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultEventsEngine = "local"
	DefaultMinSeverity  = "DEBUG"

	DefaultMongoURI      = "mongodb://localhost:27017"
	DefaultMongoDatabase = "evolve"

	DefaultMetricsNamespace = "evoinfra"
)

// ApplyDefaults fills every zero-value field in cfg with its default. Fields
// already set by the caller are left unchanged so that explicit configuration
// always wins. Component-owned defaults (bucket location, storage class,
// connect timeouts, archive table) stay with the component constructors.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Identity ──────────────────────────────────────────────────────────────
	if cfg.Identity.AppName == "" {
		cfg.Identity.AppName = DefaultAppName
	}
	if cfg.Identity.LoggerName == "" {
		cfg.Identity.LoggerName = DefaultLoggerName
	}
	if cfg.Identity.Environment == "" {
		cfg.Identity.Environment = DefaultEnvironment
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Events ────────────────────────────────────────────────────────────────
	if cfg.Events.Engine == "" {
		cfg.Events.Engine = DefaultEventsEngine
	}
	if cfg.Events.MinSeverity == "" {
		cfg.Events.MinSeverity = DefaultMinSeverity
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	// The bucket prefix follows the deployment identity unless set explicitly.
	if cfg.Storage.AppName == "" {
		cfg.Storage.AppName = cfg.Identity.AppName
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.URI == "" {
		cfg.Database.URI = DefaultMongoURI
	}
	if cfg.Database.Database == "" {
		cfg.Database.Database = DefaultMongoDatabase
	}
	if cfg.Database.AppName == "" {
		cfg.Database.AppName = cfg.Identity.AppName
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
