// Package gcs is the object storage facade. It wraps Google Cloud Storage
// behind boolean-result operations that report every outcome as exactly one
// event: create a bucket, save and download single artifacts, pull a whole
// prefix with the bulk copy tool, spill tabular data as CSV.
//
// Recoverable refusals (bucket already exists, artifact missing) come back
// as (false, nil) with a WARNING event; real failures come back classified
// on the error taxonomy with an event graded by the failure's code.
package gcs

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/logging"
	"github.com/evolvehq/evoinfra/pkg/metrics"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

const component = "storage"

// Config holds the storage facade settings.
type Config struct {
	// ProjectID is the Google Cloud project that owns the buckets. Required.
	ProjectID string `mapstructure:"project_id"`

	// AppName prefixes every bucket name, keeping one application's buckets
	// apart from another's. Required.
	AppName string `mapstructure:"app_name"`

	// CredentialsFile points at a service-account key file. Empty uses the
	// ambient application-default credentials.
	CredentialsFile string `mapstructure:"credentials_file"`

	// Location is where new buckets are placed.
	Location string `mapstructure:"location"`

	// StorageClass is the class new buckets are created with.
	StorageClass common.StorageClass `mapstructure:"storage_class"`

	// TempDir receives CSV spill files. Empty uses the system default.
	TempDir string `mapstructure:"temp_dir"`

	// BulkTool is the external copy tool for bunch downloads.
	BulkTool string `mapstructure:"bulk_tool"`
}

func applyDefaults(cfg *Config) {
	if cfg.Location == "" {
		cfg.Location = "US"
	}
	if cfg.StorageClass == "" {
		cfg.StorageClass = common.StorageStandard
	}
	if cfg.BulkTool == "" {
		cfg.BulkTool = "gsutil"
	}
}

// Validate checks the facade settings.
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return errors.ValidationFailure("project id must not be empty")
	}
	if c.AppName == "" {
		return errors.ValidationFailure("app name must not be empty")
	}
	if err := c.StorageClass.Validate(); err != nil {
		return errors.ValidationFailure(err.Error()).WithDetail("field=storage_class")
	}
	return nil
}

// Client is the storage facade.
type Client struct {
	cfg    Config
	api    gcsAPI
	rec    *eventlog.Recorder
	log    logging.Logger
	met    *metrics.FacadeMetrics
	runner Runner
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithMetrics wires the facade instrument set.
func WithMetrics(m *metrics.FacadeMetrics) ClientOption {
	return func(c *Client) { c.met = m }
}

// WithRunner overrides the bulk copy tool runner. Test seam.
func WithRunner(r Runner) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.runner = r
		}
	}
}

// NewClient dials Cloud Storage and verifies the connection. Every
// operation reports through rec; the ambient logger carries the facade's
// own operational complaints.
func NewClient(ctx context.Context, cfg Config, rec *eventlog.Recorder, log logging.Logger, opts ...ClientOption) (*Client, error) {
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.ValidationFailure("recorder must not be nil")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	var copts []option.ClientOption
	if cfg.CredentialsFile != "" {
		copts = append(copts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	sdk, err := storage.NewClient(ctx, copts...)
	if err != nil {
		return nil, classify(err, "dial cloud storage")
	}

	c := newClient(cfg, &sdkAPI{client: sdk}, rec, log, opts...)

	if err := c.api.Ping(ctx, cfg.ProjectID); err != nil {
		_ = c.api.Close()
		metrics.SetBackendUp(c.met, "gcs", false)
		return nil, classify(err, "verify cloud storage access")
	}
	metrics.SetBackendUp(c.met, "gcs", true)

	c.log.Info("connected to cloud storage",
		logging.String("project", cfg.ProjectID),
		logging.String("app", cfg.AppName),
	)
	return c, nil
}

// newClient wires a facade over an explicit API seam.
func newClient(cfg Config, api gcsAPI, rec *eventlog.Recorder, log logging.Logger, opts ...ClientOption) *Client {
	applyDefaults(&cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &Client{
		cfg:    cfg,
		api:    api,
		rec:    rec,
		log:    log.Named("gcs"),
		runner: execRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BucketName resolves a short bucket name to its application-unique form:
// the app name, an underscore, then the given name, lower-cased to satisfy
// the backend's naming rules.
func (c *Client) BucketName(name string) string {
	return strings.ToLower(c.cfg.AppName + "_" + name)
}

// ObjectURL builds the gs:// form of an object path: gs://bucket[/path].
func ObjectURL(bucket, path string) string {
	u := "gs://" + bucket
	if p := strings.Trim(path, "/"); p != "" {
		u += "/" + p
	}
	return u
}

// report delivers an operation's event. Delivery failure never disturbs the
// operation's own result; it surfaces on the ambient logger and the
// emit_error outcome instead.
func (c *Client) report(ctx context.Context, ev eventlog.Event) {
	if err := c.rec.Log(ctx, ev); err != nil {
		metrics.RecordOp(c.met, component, ev.Name, metrics.OutcomeEmitError, 0)
		c.log.Error("event delivery failed",
			logging.String("event", ev.Name),
			logging.Err(err),
		)
	}
}

// eventSeverity grades a failure event by its error's classification.
func eventSeverity(err error) common.Severity {
	return errors.SeverityForCode(errors.GetCode(err))
}

// CreateBucket creates the application-unique bucket for name. A bucket
// that already exists is absorbed as (false, nil) with a WARNING event;
// any other refusal returns the classified error.
func (c *Client) CreateBucket(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	op := "create_bucket"

	if name == "" {
		return false, errors.ValidationFailure("bucket name must not be empty")
	}
	bucket := c.BucketName(name)

	attrs := &storage.BucketAttrs{
		Location:     c.cfg.Location,
		StorageClass: c.cfg.StorageClass.String(),
	}
	err := c.api.CreateBucket(ctx, bucket, c.cfg.ProjectID, attrs)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		metrics.RecordOp(c.met, component, op, metrics.OutcomeOK, elapsed)
		c.report(ctx, eventlog.Event{
			Name:    op,
			Message: "bucket " + bucket + " created",
			Fields: eventlog.Fields{
				"bucket":        bucket,
				"location":      c.cfg.Location,
				"storage_class": c.cfg.StorageClass.String(),
			},
		})
		return true, nil

	case isConflict(err):
		metrics.RecordOp(c.met, component, op, metrics.OutcomeRecovered, elapsed)
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: common.SeverityWarning,
			Message:  "bucket " + bucket + " already exists",
			Fields:   eventlog.Fields{"bucket": bucket},
		})
		return false, nil

	default:
		cerr := classify(err, "create bucket "+bucket)
		metrics.RecordOp(c.met, component, op, metrics.OutcomeError, elapsed)
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "bucket " + bucket + " creation failed",
			Fields:   eventlog.Fields{"bucket": bucket, "error": cerr},
		})
		return false, cerr
	}
}

// BucketExists probes the application-unique bucket for name.
func (c *Client) BucketExists(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, errors.ValidationFailure("bucket name must not be empty")
	}
	bucket := c.BucketName(name)

	_, err := c.api.BucketAttrs(ctx, bucket)
	switch {
	case err == nil:
		return true, nil
	case isBucketMissing(err):
		return false, nil
	default:
		return false, classify(err, "probe bucket "+bucket)
	}
}

// Close releases the SDK client.
func (c *Client) Close() error {
	metrics.SetBackendUp(c.met, "gcs", false)
	return c.api.Close()
}
