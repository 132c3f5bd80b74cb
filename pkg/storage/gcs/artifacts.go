package gcs

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/metrics"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// SaveOption customises an artifact upload.
type SaveOption func(*saveSettings)

type saveSettings struct {
	metadata map[string]string
}

// WithObjectMetadata stores custom key/value metadata on the object.
func WithObjectMetadata(md map[string]string) SaveOption {
	return func(s *saveSettings) { s.metadata = md }
}

// DownloadOption customises a single-artifact download.
type DownloadOption func(*downloadSettings)

type downloadSettings struct {
	generation int64
}

// WithGeneration pins the download to one object generation instead of the
// latest.
func WithGeneration(gen int64) DownloadOption {
	return func(s *downloadSettings) { s.generation = gen }
}

// SaveArtifact uploads a local file into the application-unique bucket for
// bucketName. A missing bucket and a missing local file are both absorbed
// as (false, nil) with a WARNING event.
func (c *Client) SaveArtifact(ctx context.Context, bucketName, objectName, filePath string, opts ...SaveOption) (bool, error) {
	var s saveSettings
	for _, opt := range opts {
		opt(&s)
	}
	return c.saveFromFile(ctx, "save_artifact", bucketName, objectName, filePath, s.metadata, nil)
}

// saveFromFile is the upload path shared by SaveArtifact and SaveTable; op
// names the reported event.
func (c *Client) saveFromFile(ctx context.Context, op, bucketName, objectName, filePath string, md map[string]string, extra eventlog.Fields) (bool, error) {
	start := time.Now()

	if bucketName == "" || objectName == "" || filePath == "" {
		return false, errors.ValidationFailure("bucket, object and file path must not be empty")
	}
	bucket := c.BucketName(bucketName)

	// Probing first keeps a missing destination bucket recoverable instead
	// of surfacing as an upload failure.
	if _, err := c.api.BucketAttrs(ctx, bucket); err != nil {
		if isBucketMissing(err) {
			metrics.RecordOp(c.met, component, op, metrics.OutcomeRecovered, time.Since(start))
			c.report(ctx, eventlog.Event{
				Name:     op,
				Severity: common.SeverityWarning,
				Message:  "bucket " + bucket + " does not exist",
				Fields:   fieldsWith(extra, eventlog.Fields{"bucket": bucket, "object": objectName}),
			})
			return false, nil
		}
		cerr := classify(err, "probe bucket "+bucket)
		metrics.RecordOp(c.met, component, op, metrics.OutcomeError, time.Since(start))
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "bucket " + bucket + " probe failed",
			Fields:   fieldsWith(extra, eventlog.Fields{"bucket": bucket, "object": objectName, "error": cerr}),
		})
		return false, cerr
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.RecordOp(c.met, component, op, metrics.OutcomeRecovered, time.Since(start))
			c.report(ctx, eventlog.Event{
				Name:     op,
				Severity: common.SeverityWarning,
				Message:  "local file " + filePath + " does not exist",
				Fields:   fieldsWith(extra, eventlog.Fields{"bucket": bucket, "object": objectName, "source_path": filePath}),
			})
			return false, nil
		}
		cerr := errors.Wrap(err, errors.CodeLocalIOFailure, "open "+filePath)
		metrics.RecordOp(c.met, component, op, metrics.OutcomeError, time.Since(start))
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "local file " + filePath + " is not readable",
			Fields:   fieldsWith(extra, eventlog.Fields{"bucket": bucket, "object": objectName, "source_path": filePath, "error": cerr}),
		})
		return false, cerr
	}
	defer f.Close()

	n, err := c.api.Upload(ctx, bucket, objectName, f, md)
	elapsed := time.Since(start)
	if err != nil {
		cerr := classify(err, "upload "+objectName+" to "+bucket)
		metrics.RecordOp(c.met, component, op, metrics.OutcomeError, elapsed)
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "artifact " + objectName + " upload to " + bucket + " failed",
			Fields:   fieldsWith(extra, eventlog.Fields{"bucket": bucket, "object": objectName, "error": cerr}),
		})
		return false, cerr
	}

	metrics.RecordOp(c.met, component, op, metrics.OutcomeOK, elapsed)
	metrics.RecordBytes(c.met, component, "upload", n)
	c.report(ctx, eventlog.Event{
		Name:    op,
		Message: "artifact " + objectName + " saved to " + bucket,
		Fields: fieldsWith(extra, eventlog.Fields{
			"bucket":      bucket,
			"object":      objectName,
			"bytes":       n,
			"source_path": filePath,
		}),
	})
	return true, nil
}

// DownloadArtifact fetches an artifact into destPath. A missing artifact is
// reported as (false, nil) with a WARNING event, never as an error; local
// write problems classify as LOCAL_IO_FAILURE.
func (c *Client) DownloadArtifact(ctx context.Context, bucketName, objectName, destPath string, opts ...DownloadOption) (bool, error) {
	start := time.Now()
	op := "download_artifact"

	if bucketName == "" || objectName == "" || destPath == "" {
		return false, errors.ValidationFailure("bucket, object and destination path must not be empty")
	}
	var s downloadSettings
	for _, opt := range opts {
		opt(&s)
	}
	bucket := c.BucketName(bucketName)

	attrs, err := c.api.ObjectAttrs(ctx, bucket, objectName, s.generation)
	if err != nil {
		if isObjectMissing(err) {
			metrics.RecordOp(c.met, component, op, metrics.OutcomeRecovered, time.Since(start))
			c.report(ctx, eventlog.Event{
				Name:     op,
				Severity: common.SeverityWarning,
				Message:  "artifact " + objectName + " not found in " + bucket,
				Fields: eventlog.Fields{
					"bucket":     bucket,
					"object":     objectName,
					"generation": s.generation,
				},
			})
			return false, nil
		}
		cerr := classify(err, "probe artifact "+objectName)
		metrics.RecordOp(c.met, component, op, metrics.OutcomeError, time.Since(start))
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "artifact " + objectName + " probe failed",
			Fields:   eventlog.Fields{"bucket": bucket, "object": objectName, "error": cerr},
		})
		return false, cerr
	}

	rdr, err := c.api.NewReader(ctx, bucket, objectName, s.generation)
	if err != nil {
		cerr := classify(err, "open artifact "+objectName)
		metrics.RecordOp(c.met, component, op, metrics.OutcomeError, time.Since(start))
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "artifact " + objectName + " open failed",
			Fields:   eventlog.Fields{"bucket": bucket, "object": objectName, "error": cerr},
		})
		return false, cerr
	}
	defer rdr.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		cerr := errors.Wrap(err, errors.CodeLocalIOFailure, "create "+destPath)
		metrics.RecordOp(c.met, component, op, metrics.OutcomeError, time.Since(start))
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "destination " + destPath + " is not writable",
			Fields:   eventlog.Fields{"bucket": bucket, "object": objectName, "dest_path": destPath, "error": cerr},
		})
		return false, cerr
	}

	n, err := io.Copy(dst, rdr)
	if err != nil {
		_ = dst.Close()
		_ = os.Remove(destPath)
		cerr := classify(err, "download "+objectName+" from "+bucket)
		metrics.RecordOp(c.met, component, op, metrics.OutcomeError, time.Since(start))
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "artifact " + objectName + " download failed",
			Fields:   eventlog.Fields{"bucket": bucket, "object": objectName, "error": cerr},
		})
		return false, cerr
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(destPath)
		cerr := errors.Wrap(err, errors.CodeLocalIOFailure, "flush "+destPath)
		metrics.RecordOp(c.met, component, op, metrics.OutcomeError, time.Since(start))
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "destination " + destPath + " flush failed",
			Fields:   eventlog.Fields{"bucket": bucket, "object": objectName, "dest_path": destPath, "error": cerr},
		})
		return false, cerr
	}

	host, ip := hostIdentity()
	metrics.RecordOp(c.met, component, op, metrics.OutcomeOK, time.Since(start))
	metrics.RecordBytes(c.met, component, "download", n)
	c.report(ctx, eventlog.Event{
		Name:    op,
		Message: "artifact " + objectName + " downloaded from " + bucket,
		Fields: eventlog.Fields{
			"bucket":     bucket,
			"object":     objectName,
			"generation": attrs.Generation,
			"bytes":      n,
			"dest_path":  destPath,
			"local_host": host,
			"local_ip":   ip,
		},
	})
	return true, nil
}

// fieldsWith merges op-specific extras into the base field set.
func fieldsWith(extra, base eventlog.Fields) eventlog.Fields {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// hostIdentity names the machine an artifact landed on.
func hostIdentity() (host, ip string) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return host, ""
	}
	for _, addr := range addrs {
		if ipn, ok := addr.(*net.IPNet); ok && !ipn.IP.IsLoopback() && ipn.IP.To4() != nil {
			return host, ipn.IP.String()
		}
	}
	return host, ""
}
