// Package common holds the shared vocabulary of the facade packages:
// event severities, deployment environments and storage tiers. The
// constants carry the exact wire tokens the backends expect, so callers
// can persist or transmit them without translation.
package common

import (
	"fmt"
	"strings"
)

// Severity grades a reported event. The tokens match the grading used
// by the cloud logging backend, from least to most urgent.
type Severity string

const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// severityRank orders severities for threshold comparisons.
var severityRank = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// Severities lists the known severities from least to most urgent.
func Severities() []Severity {
	return []Severity{SeverityDebug, SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}
}

// ParseSeverity maps a token to its Severity, ignoring case.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Validate reports whether the severity is one of the known grades.
func (s Severity) Validate() error {
	if _, ok := severityRank[s]; !ok {
		return fmt.Errorf("unknown severity %q", string(s))
	}
	return nil
}

// AtLeast reports whether s is as urgent as min. Unknown severities
// never satisfy a threshold.
func (s Severity) AtLeast(min Severity) bool {
	sr, ok := severityRank[s]
	if !ok {
		return false
	}
	mr, ok := severityRank[min]
	if !ok {
		return false
	}
	return sr >= mr
}

func (s Severity) String() string {
	return string(s)
}

// Environment names the deployment tier an event originates from.
type Environment string

const (
	EnvTest    Environment = "TEST"
	EnvDev     Environment = "DEV"
	EnvStaging Environment = "STAGING"
	EnvProd    Environment = "PROD"
	// EnvInfra marks events emitted by shared infrastructure jobs
	// rather than a deployed application tier.
	EnvInfra Environment = "INFRA"
)

var knownEnvironments = map[Environment]struct{}{
	EnvTest:    {},
	EnvDev:     {},
	EnvStaging: {},
	EnvProd:    {},
	EnvInfra:   {},
}

// Environments lists the known deployment tiers.
func Environments() []Environment {
	return []Environment{EnvTest, EnvDev, EnvStaging, EnvProd, EnvInfra}
}

// ParseEnvironment maps a token to its Environment, ignoring case.
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownEnvironments[env]; !ok {
		return "", fmt.Errorf("unknown environment %q", s)
	}
	return env, nil
}

// Validate reports whether the environment is one of the known tiers.
func (e Environment) Validate() error {
	if _, ok := knownEnvironments[e]; !ok {
		return fmt.Errorf("unknown environment %q", string(e))
	}
	return nil
}

func (e Environment) String() string {
	return string(e)
}

// StorageClass selects the storage tier applied to newly created
// buckets. Tokens are passed to the object store verbatim.
type StorageClass string

const (
	StorageStandard StorageClass = "STANDARD"
	StorageNearline StorageClass = "NEARLINE"
	StorageColdline StorageClass = "COLDLINE"
	StorageArchive  StorageClass = "ARCHIVE"
)

var knownStorageClasses = map[StorageClass]struct{}{
	StorageStandard: {},
	StorageNearline: {},
	StorageColdline: {},
	StorageArchive:  {},
}

// Validate reports whether the storage class is one of the known tiers.
func (c StorageClass) Validate() error {
	if _, ok := knownStorageClasses[c]; !ok {
		return fmt.Errorf("unknown storage class %q", string(c))
	}
	return nil
}

func (c StorageClass) String() string {
	return string(c)
}
