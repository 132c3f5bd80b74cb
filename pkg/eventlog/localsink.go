package eventlog

import (
	"context"
	"strings"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/logging"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// LocalSink delivers events to the process-local structured logger. It is
// the engine behind EngineLocal: the same events that would reach the cloud
// stream land on stdout (or whatever output paths the logger carries), which
// keeps development and INFRA jobs observable without cloud credentials.
type LocalSink struct {
	log logging.Logger
	min common.Severity
}

// NewLocalSink wraps the given logger. Events grading below min are
// dropped; pass SeverityDebug to keep everything.
func NewLocalSink(log logging.Logger, min common.Severity) (*LocalSink, error) {
	if log == nil {
		return nil, errors.ValidationFailure("logger must not be nil")
	}
	if err := min.Validate(); err != nil {
		return nil, errors.ValidationFailure(err.Error()).WithDetail("field=min_severity")
	}
	return &LocalSink{log: log, min: min}, nil
}

// Emit writes the event through the logger at the level matching its
// severity. CRITICAL maps to the logger's error level; the severity field
// keeps the finer grade visible.
func (s *LocalSink) Emit(_ context.Context, ev Event) error {
	if !ev.Severity.AtLeast(s.min) {
		return nil
	}

	fields := []logging.Field{
		logging.String("event", ev.Name),
		logging.String(keySeverity, ev.Severity.String()),
		logging.String(keyEnvironment, strings.ToLower(ev.Environment.String())),
		logging.String("app", ev.App),
		logging.String("stream", ev.Logger),
	}
	if ev.Description != "" {
		fields = append(fields, logging.String(keyDescription, ev.Description))
	}
	for k, v := range ev.Fields.Normalize() {
		fields = append(fields, logging.Any(k, v))
	}

	switch ev.Severity {
	case common.SeverityDebug:
		s.log.Debug(ev.Message, fields...)
	case common.SeverityInfo:
		s.log.Info(ev.Message, fields...)
	case common.SeverityWarning:
		s.log.Warn(ev.Message, fields...)
	default:
		s.log.Error(ev.Message, fields...)
	}
	return nil
}

// Purge always fails: console history is not deletable from here.
func (s *LocalSink) Purge(_ context.Context, loggerName string) error {
	return errors.New(errors.CodePurgeUnsupported, "local sink keeps no deletable history").
		WithDetail("logger=" + loggerName)
}

// Close flushes the underlying logger.
func (s *LocalSink) Close() error {
	return s.log.Sync()
}
