package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity_KnownTokens(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"DEBUG", SeverityDebug},
		{"info", SeverityInfo},
		{"Warning", SeverityWarning},
		{" error ", SeverityError},
		{"CRITICAL", SeverityCritical},
	}

	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseSeverity_UnknownToken(t *testing.T) {
	_, err := ParseSeverity("FATAL")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown severity")
}

func TestSeverity_Validate(t *testing.T) {
	for _, sev := range Severities() {
		assert.NoError(t, sev.Validate())
	}
	assert.Error(t, Severity("TRACE").Validate())
	assert.Error(t, Severity("").Validate())
}

func TestSeverity_AtLeast_Ordering(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityDebug))
	assert.True(t, SeverityWarning.AtLeast(SeverityWarning))
	assert.False(t, SeverityInfo.AtLeast(SeverityError))
}

func TestSeverity_AtLeast_UnknownNeverPasses(t *testing.T) {
	assert.False(t, Severity("bogus").AtLeast(SeverityDebug))
	assert.False(t, SeverityCritical.AtLeast(Severity("bogus")))
}

func TestSeverities_OrderedLeastToMostUrgent(t *testing.T) {
	sevs := Severities()
	require.Len(t, sevs, 5)
	for i := 1; i < len(sevs); i++ {
		assert.True(t, sevs[i].AtLeast(sevs[i-1]), "%s should outrank %s", sevs[i], sevs[i-1])
		assert.False(t, sevs[i-1].AtLeast(sevs[i]))
	}
}

func TestParseEnvironment_KnownTokens(t *testing.T) {
	tests := []struct {
		in   string
		want Environment
	}{
		{"TEST", EnvTest},
		{"dev", EnvDev},
		{"Staging", EnvStaging},
		{"prod", EnvProd},
		{"INFRA", EnvInfra},
	}

	for _, tt := range tests {
		got, err := ParseEnvironment(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseEnvironment_UnknownToken(t *testing.T) {
	_, err := ParseEnvironment("qa")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown environment")
}

func TestEnvironment_Validate(t *testing.T) {
	for _, env := range Environments() {
		assert.NoError(t, env.Validate())
	}
	assert.Error(t, Environment("LOCAL").Validate())
}

func TestStorageClass_Validate(t *testing.T) {
	assert.NoError(t, StorageStandard.Validate())
	assert.NoError(t, StorageNearline.Validate())
	assert.NoError(t, StorageColdline.Validate())
	assert.NoError(t, StorageArchive.Validate())
	assert.Error(t, StorageClass("GLACIER").Validate())
}

func TestWireTokens_AreUpperCase(t *testing.T) {
	assert.Equal(t, "WARNING", SeverityWarning.String())
	assert.Equal(t, "INFRA", EnvInfra.String())
	assert.Equal(t, "STANDARD", StorageStandard.String())
}
