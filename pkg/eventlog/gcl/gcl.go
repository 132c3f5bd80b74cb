// Package gcl delivers event streams to Google Cloud Logging. It is the
// production engine behind eventlog.EngineCloud: every event becomes one
// structured entry written synchronously to the stream named by the event's
// logger, and whole streams are deletable through the logging admin API.
package gcl

import (
	"context"
	"sync"

	cloudlogging "cloud.google.com/go/logging"
	"cloud.google.com/go/logging/logadmin"
	"google.golang.org/api/option"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/logging"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// EntryWriter matches the subset of *cloudlogging.Logger the sink writes
// through. One writer serves one log stream.
type EntryWriter interface {
	LogSync(ctx context.Context, e cloudlogging.Entry) error
}

// LogAdmin matches the subset of *logadmin.Client the sink deletes through.
type LogAdmin interface {
	DeleteLog(ctx context.Context, logID string) error
	Close() error
}

// Config holds the connection settings for the cloud sink.
type Config struct {
	// ProjectID is the Google Cloud project that owns the log streams.
	// Required.
	ProjectID string `mapstructure:"project_id"`

	// CredentialsFile points at a service-account key file. Empty uses the
	// ambient application-default credentials.
	CredentialsFile string `mapstructure:"credentials_file"`

	// Labels are attached to every entry in addition to the per-event
	// app and environment labels.
	Labels map[string]string `mapstructure:"labels"`
}

// Validate checks the connection settings.
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return errors.ValidationFailure("project id must not be empty")
	}
	return nil
}

// ErrSinkClosed is returned by operations on a closed sink.
var ErrSinkClosed = errors.New(errors.CodeInternal, "cloud logging sink is closed")

// CloudSink writes events to Google Cloud Logging.
type CloudSink struct {
	cfg       Config
	log       logging.Logger
	client    *cloudlogging.Client
	admin     LogAdmin
	newWriter func(logID string) EntryWriter

	mu      sync.RWMutex
	writers map[string]EntryWriter
	closed  bool
}

// NewCloudSink dials Cloud Logging and its admin API for the configured
// project and verifies write access before returning. Connection problems
// classify as CONNECTION_FAILURE.
func NewCloudSink(ctx context.Context, cfg Config, log logging.Logger) (*CloudSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("gcl")

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := cloudlogging.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, classify(err, "dial cloud logging")
	}
	client.OnError = func(err error) {
		log.Error("cloud logging background error", logging.Err(err))
	}

	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, classify(err, "verify cloud logging access")
	}

	admin, err := logadmin.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		_ = client.Close()
		return nil, classify(err, "dial cloud logging admin")
	}

	s := newCloudSink(cfg, log, func(logID string) EntryWriter {
		var lopts []cloudlogging.LoggerOption
		if len(cfg.Labels) > 0 {
			lopts = append(lopts, cloudlogging.CommonLabels(cfg.Labels))
		}
		return client.Logger(logID, lopts...)
	}, admin)
	s.client = client

	log.Info("connected to cloud logging", logging.String("project", cfg.ProjectID))
	return s, nil
}

// newCloudSink wires a sink over explicit writer and admin seams.
func newCloudSink(cfg Config, log logging.Logger, newWriter func(string) EntryWriter, admin LogAdmin) *CloudSink {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CloudSink{
		cfg:       cfg,
		log:       log,
		admin:     admin,
		newWriter: newWriter,
		writers:   make(map[string]EntryWriter),
	}
}

// severityMap translates event severities onto cloud logging's scale.
var severityMap = map[common.Severity]cloudlogging.Severity{
	common.SeverityDebug:    cloudlogging.Debug,
	common.SeverityInfo:     cloudlogging.Info,
	common.SeverityWarning:  cloudlogging.Warning,
	common.SeverityError:    cloudlogging.Error,
	common.SeverityCritical: cloudlogging.Critical,
}

func toCloudSeverity(s common.Severity) cloudlogging.Severity {
	if v, ok := severityMap[s]; ok {
		return v
	}
	return cloudlogging.Default
}

// Emit writes one entry to the stream named by the event's logger. The
// entry's payload is the event's structured payload; severity rides on the
// entry itself, app and environment double as labels for stream filtering.
func (s *CloudSink) Emit(ctx context.Context, ev eventlog.Event) error {
	w, err := s.writerFor(ev.Logger)
	if err != nil {
		return err
	}

	labels := map[string]string{
		"environment": ev.Environment.String(),
	}
	if ev.App != "" {
		labels["app"] = ev.App
	}

	entry := cloudlogging.Entry{
		Timestamp: ev.Time,
		Severity:  toCloudSeverity(ev.Severity),
		Payload:   ev.Payload(),
		InsertID:  ev.InsertID,
		Labels:    labels,
	}
	if err := w.LogSync(ctx, entry); err != nil {
		return classify(err, "write entry to "+ev.Logger)
	}
	return nil
}

// writerFor returns the cached writer for a stream, creating it on first use.
func (s *CloudSink) writerFor(logID string) (EntryWriter, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrSinkClosed
	}
	if w, ok := s.writers[logID]; ok {
		s.mu.RUnlock()
		return w, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSinkClosed
	}
	if w, ok := s.writers[logID]; ok {
		return w, nil
	}
	w := s.newWriter(logID)
	s.writers[logID] = w
	return w, nil
}

// Purge deletes the named log stream and all its stored entries. Deleting a
// stream that does not exist classifies as NOT_FOUND.
func (s *CloudSink) Purge(ctx context.Context, loggerName string) error {
	if loggerName == "" {
		return errors.ValidationFailure("logger name must not be empty")
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSinkClosed
	}

	if err := s.admin.DeleteLog(ctx, loggerName); err != nil {
		return classify(err, "delete log "+loggerName)
	}
	s.log.Info("deleted cloud log stream", logging.String("logger", loggerName))
	return nil
}

// Close releases both clients. The sink is unusable afterwards.
func (s *CloudSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.writers = make(map[string]EntryWriter)
	s.mu.Unlock()

	var first error
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			first = classify(err, "close cloud logging client")
		}
	}
	if s.admin != nil {
		if err := s.admin.Close(); err != nil && first == nil {
			first = classify(err, "close cloud logging admin")
		}
	}
	return first
}
