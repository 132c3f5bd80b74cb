package errors

import (
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// ErrorCode is a string representation of a specific failure classification.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel codes.
const (
	// CodeOK marks the absence of failure; GetCode(nil) returns it.
	CodeOK ErrorCode = "OK"
	// CodeUnknown is returned for errors that carry no classification.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Failure classifications shared by all facades. The codes surface in
// returned errors and in the "reason" field of failure events, so their
// tokens are stable wire values.
const (
	// CodeAlreadyExists reports a create that collided with an existing
	// resource (bucket, collection). Facades absorb it into a false
	// result plus a warning event.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeNotFound reports an operation against a resource that does not
	// exist (bucket, object, collection, database, log stream).
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeConnectionFailure reports that a backend could not be reached
	// or the connection was lost mid-operation.
	CodeConnectionFailure ErrorCode = "CONNECTION_FAILURE"

	// CodeValidationFailure reports input the facade rejected before
	// touching a backend, or input the backend rejected as malformed.
	CodeValidationFailure ErrorCode = "VALIDATION_FAILURE"

	// CodeLocalIOFailure reports a local filesystem fault (temp files,
	// download targets, bulk-copy staging directories).
	CodeLocalIOFailure ErrorCode = "LOCAL_IO_FAILURE"

	// CodeTransient is the catch-all for backend faults that carry no
	// more specific classification; retrying is usually reasonable.
	CodeTransient ErrorCode = "TRANSIENT"

	// CodeInternal reports a fault in this library itself.
	CodeInternal ErrorCode = "INTERNAL"
)

// Event pipeline classifications.
const (
	// CodeEngineUnknown reports a sink registry lookup for an engine
	// name that was never registered.
	CodeEngineUnknown ErrorCode = "ENGINE_UNKNOWN"

	// CodePurgeUnsupported reports a purge request against a sink that
	// cannot delete its own history (local console, archive tables).
	CodePurgeUnsupported ErrorCode = "PURGE_UNSUPPORTED"
)

// ErrorCodeSeverity maps failure classifications to the severity of the
// event a facade emits when absorbing them. Codes absent from the map
// grade as SeverityError.
var ErrorCodeSeverity = map[ErrorCode]common.Severity{
	CodeAlreadyExists:     common.SeverityWarning,
	CodeNotFound:          common.SeverityWarning,
	CodeConnectionFailure: common.SeverityCritical,
	CodeValidationFailure: common.SeverityError,
	CodeLocalIOFailure:    common.SeverityError,
	CodeTransient:         common.SeverityError,
	CodeInternal:          common.SeverityError,
	CodeEngineUnknown:     common.SeverityError,
	CodePurgeUnsupported:  common.SeverityWarning,
}

// ErrorCodeMessage maps failure classifications to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	CodeAlreadyExists:     "resource already exists",
	CodeNotFound:          "resource not found",
	CodeConnectionFailure: "backend connection failed",
	CodeValidationFailure: "validation failed",
	CodeLocalIOFailure:    "local I/O failed",
	CodeTransient:         "transient backend failure",
	CodeInternal:          "internal error",
	CodeEngineUnknown:     "unknown event engine",
	CodePurgeUnsupported:  "purge not supported by this engine",
}

// SeverityForCode returns the event severity for a failure classification.
func SeverityForCode(code ErrorCode) common.Severity {
	if sev, ok := ErrorCodeSeverity[code]; ok {
		return sev
	}
	return common.SeverityError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsRetryable reports whether the classification describes a fault that
// may clear on retry: connectivity loss or an unclassified transient
// backend failure.
func IsRetryable(code ErrorCode) bool {
	return code == CodeConnectionFailure || code == CodeTransient
}

// IsRecoverable reports whether the classification describes an expected
// domain condition the facades absorb into a false result rather than a
// fault: duplicate creates and missing resources.
func IsRecoverable(code ErrorCode) bool {
	return code == CodeAlreadyExists || code == CodeNotFound
}
