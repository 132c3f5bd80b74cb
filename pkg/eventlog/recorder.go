package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/logging"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// RecorderConfig carries the identity a Recorder stamps onto every event.
type RecorderConfig struct {
	// LoggerName is the event stream name, e.g. "infra". Required.
	LoggerName string `yaml:"logger_name" json:"logger_name"`

	// AppName is the emitting application's name, e.g. "Evolve". Required.
	AppName string `yaml:"app_name" json:"app_name"`

	// Environment is the default tier stamped onto events that do not
	// carry their own. Required and must be a known tier.
	Environment common.Environment `yaml:"environment" json:"environment"`
}

// Validate checks the recorder identity.
func (c RecorderConfig) Validate() error {
	if c.LoggerName == "" {
		return errors.ValidationFailure("logger name must not be empty")
	}
	if c.AppName == "" {
		return errors.ValidationFailure("app name must not be empty")
	}
	if err := c.Environment.Validate(); err != nil {
		return errors.ValidationFailure(err.Error()).WithDetail("field=environment")
	}
	return nil
}

// Recorder binds a sink to one application identity. It validates events,
// stamps stream name, app, environment, timestamp and insert ID, and
// delivers through the sink. Recorders are cheap; create one per facade.
type Recorder struct {
	cfg  RecorderConfig
	sink Sink
	log  logging.Logger

	now   func() time.Time
	newID func() string
}

// RecorderOption customises a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the timestamp source. Test seam.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDSource overrides the insert-ID mint. Test seam.
func WithIDSource(newID func() string) RecorderOption {
	return func(r *Recorder) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// NewRecorder constructs a Recorder over the given sink. The ambient
// logger carries the recorder's own operational complaints (delivery
// failures inside Timed); pass nil to discard them.
func NewRecorder(cfg RecorderConfig, sink Sink, log logging.Logger, opts ...RecorderOption) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.ValidationFailure("sink must not be nil")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	r := &Recorder{
		cfg:   cfg,
		sink:  sink,
		log:   log.Named("eventlog"),
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// LoggerName returns the stream name events are stamped with.
func (r *Recorder) LoggerName() string { return r.cfg.LoggerName }

// stamp fills the identity attributes and defaults the caller left unset.
func (r *Recorder) stamp(ev Event) Event {
	ev.Logger = r.cfg.LoggerName
	ev.App = r.cfg.AppName
	if ev.Environment == "" {
		ev.Environment = r.cfg.Environment
	}
	if ev.Severity == "" {
		ev.Severity = common.SeverityInfo
	}
	if ev.Time.IsZero() {
		ev.Time = r.now()
	}
	if ev.InsertID == "" {
		ev.InsertID = r.newID()
	}
	return ev
}

// Log validates, stamps and synchronously delivers one event. The returned
// error is nil exactly when the backend accepted the event; validation
// failures classify as CodeValidationFailure and delivery failures keep the
// sink's classification.
func (r *Recorder) Log(ctx context.Context, ev Event) error {
	ev = r.stamp(ev)
	if err := ev.Validate(); err != nil {
		return err
	}
	if err := r.sink.Emit(ctx, ev); err != nil {
		return errors.Wrap(err, errors.CodeUnknown, "event delivery failed")
	}
	return nil
}

// PurgeStream deletes the recorder's event stream from the sink's backend.
// Sinks without deletable history fail with CodePurgeUnsupported.
func (r *Recorder) PurgeStream(ctx context.Context) error {
	return r.sink.Purge(ctx, r.cfg.LoggerName)
}

// Timed measures fn and reports its outcome as a single event named name:
// SeverityInfo with the elapsed time on success, SeverityError with the
// error text on failure. fn's error is returned unchanged; a delivery
// failure is reported through the ambient logger instead of masking it.
func (r *Recorder) Timed(ctx context.Context, name string, fn func(context.Context) error) error {
	start := r.now()
	err := fn(ctx)
	elapsed := r.now().Sub(start)

	ev := Event{
		Name:     name,
		Severity: common.SeverityInfo,
		Message:  fmt.Sprintf("%s completed in %s", name, elapsed),
		Fields: Fields{
			"elapsed_ms": elapsed.Milliseconds(),
			"success":    err == nil,
		},
	}
	if err != nil {
		ev.Severity = common.SeverityError
		ev.Message = fmt.Sprintf("%s failed after %s", name, elapsed)
		ev.Fields["error"] = err
	}

	if emitErr := r.Log(ctx, ev); emitErr != nil {
		r.log.Error("timed event delivery failed",
			logging.String("event", name),
			logging.Err(emitErr),
		)
	}
	return err
}
