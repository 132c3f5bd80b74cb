package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultAppName, cfg.Identity.AppName)
	assert.Equal(t, DefaultLoggerName, cfg.Identity.LoggerName)
	assert.Equal(t, DefaultEnvironment, cfg.Identity.Environment)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	assert.Equal(t, DefaultEventsEngine, cfg.Events.Engine)
	assert.Equal(t, DefaultMinSeverity, cfg.Events.MinSeverity)
	assert.Equal(t, DefaultMongoURI, cfg.Database.URI)
	assert.Equal(t, DefaultMongoDatabase, cfg.Database.Database)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Namespace)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Log.Level = "error"
	cfg.Database.URI = "mongodb://db0:27017"
	ApplyDefaults(cfg)

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "mongodb://db0:27017", cfg.Database.URI)
}

func TestApplyDefaults_PropagatesIdentity(t *testing.T) {
	cfg := &Config{}
	cfg.Identity.AppName = "atlas"
	ApplyDefaults(cfg)

	assert.Equal(t, "atlas", cfg.Storage.AppName)
	assert.Equal(t, "atlas", cfg.Database.AppName)

	// An explicit section value beats the propagated identity.
	cfg = &Config{}
	cfg.Identity.AppName = "atlas"
	cfg.Storage.AppName = "shared"
	ApplyDefaults(cfg)
	assert.Equal(t, "shared", cfg.Storage.AppName)
}

func TestApplyDefaults_NilConfig(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
