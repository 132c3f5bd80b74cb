package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evolvehq/evoinfra/pkg/types/common"
)

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "ALREADY_EXISTS", CodeAlreadyExists.String())
	assert.Equal(t, "CONNECTION_FAILURE", CodeConnectionFailure.String())
}

func TestSeverityForCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected common.Severity
	}{
		{CodeAlreadyExists, common.SeverityWarning},
		{CodeNotFound, common.SeverityWarning},
		{CodeConnectionFailure, common.SeverityCritical},
		{CodeValidationFailure, common.SeverityError},
		{CodeLocalIOFailure, common.SeverityError},
		{CodeTransient, common.SeverityError},
		{CodePurgeUnsupported, common.SeverityWarning},
		{ErrorCode("SOMETHING_NEW"), common.SeverityError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, SeverityForCode(tt.code), "code %s", tt.code)
	}
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "resource already exists", DefaultMessageForCode(CodeAlreadyExists))
	assert.Equal(t, "unknown error", DefaultMessageForCode(ErrorCode("NEVER_MAPPED")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(CodeConnectionFailure))
	assert.True(t, IsRetryable(CodeTransient))
	assert.False(t, IsRetryable(CodeNotFound))
	assert.False(t, IsRetryable(CodeValidationFailure))
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(CodeAlreadyExists))
	assert.True(t, IsRecoverable(CodeNotFound))
	assert.False(t, IsRecoverable(CodeConnectionFailure))
	assert.False(t, IsRecoverable(CodeLocalIOFailure))
}

func TestErrorCodeFormat_Convention(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]+(_[A-Z]+)*$`)
	allCodes := []ErrorCode{
		CodeAlreadyExists, CodeNotFound, CodeConnectionFailure,
		CodeValidationFailure, CodeLocalIOFailure, CodeTransient,
		CodeInternal, CodeEngineUnknown, CodePurgeUnsupported,
	}
	for _, code := range allCodes {
		assert.Regexp(t, re, string(code))
	}
}

func TestErrorCodeMappings_Completeness(t *testing.T) {
	allCodes := []ErrorCode{
		CodeAlreadyExists, CodeNotFound, CodeConnectionFailure,
		CodeValidationFailure, CodeLocalIOFailure, CodeTransient,
		CodeInternal, CodeEngineUnknown, CodePurgeUnsupported,
	}
	for _, code := range allCodes {
		_, hasSeverity := ErrorCodeSeverity[code]
		_, hasMessage := ErrorCodeMessage[code]
		assert.True(t, hasSeverity, "missing severity for %s", code)
		assert.True(t, hasMessage, "missing message for %s", code)
	}
}
