package gcs

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/metrics"
)

// stderrTailBytes caps how much tool output rides along in events and
// error details.
const stderrTailBytes = 512

// Runner executes the external bulk copy tool.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err := cmd.Run()
	return out.Bytes(), errOut.Bytes(), err
}

// BunchOption customises a bunch download.
type BunchOption func(*bunchSettings)

type bunchSettings struct {
	parallel  bool
	recursive bool
}

// WithParallel copies objects concurrently.
func WithParallel() BunchOption {
	return func(s *bunchSettings) { s.parallel = true }
}

// WithRecursive descends into the remote path instead of copying a single
// level.
func WithRecursive() BunchOption {
	return func(s *bunchSettings) { s.recursive = true }
}

// bulkCopyArgs builds the tool's argument list:
//
//	[-m] cp [-r] gs://bucket[/path] localDir
func bulkCopyArgs(bucket, remotePath, localDir string, parallel, recursive bool) []string {
	args := make([]string, 0, 5)
	if parallel {
		args = append(args, "-m")
	}
	args = append(args, "cp")
	if recursive {
		args = append(args, "-r")
	}
	return append(args, ObjectURL(bucket, remotePath), localDir)
}

// DownloadArtifactsBunch copies everything under remotePath into localDir
// through the configured bulk tool. A missing localDir is created and the
// copy proceeds.
func (c *Client) DownloadArtifactsBunch(ctx context.Context, bucketName, remotePath, localDir string, opts ...BunchOption) (bool, error) {
	start := time.Now()
	op := "download_artifacts_bunch"

	if bucketName == "" || localDir == "" {
		return false, errors.ValidationFailure("bucket and local directory must not be empty")
	}
	var s bunchSettings
	for _, opt := range opts {
		opt(&s)
	}
	bucket := c.BucketName(bucketName)

	dirCreated := false
	if _, err := os.Stat(localDir); err != nil {
		if !os.IsNotExist(err) {
			cerr := errors.Wrap(err, errors.CodeLocalIOFailure, "probe "+localDir)
			metrics.RecordOp(c.met, component, op, metrics.OutcomeError, time.Since(start))
			c.report(ctx, eventlog.Event{
				Name:     op,
				Severity: eventSeverity(cerr),
				Message:  "local directory " + localDir + " is not usable",
				Fields:   eventlog.Fields{"bucket": bucket, "local_dir": localDir, "error": cerr},
			})
			return false, cerr
		}
		if err := os.MkdirAll(localDir, 0o755); err != nil {
			cerr := errors.Wrap(err, errors.CodeLocalIOFailure, "create "+localDir)
			metrics.RecordOp(c.met, component, op, metrics.OutcomeError, time.Since(start))
			c.report(ctx, eventlog.Event{
				Name:     op,
				Severity: eventSeverity(cerr),
				Message:  "local directory " + localDir + " could not be created",
				Fields:   eventlog.Fields{"bucket": bucket, "local_dir": localDir, "error": cerr},
			})
			return false, cerr
		}
		dirCreated = true
	}

	args := bulkCopyArgs(bucket, remotePath, localDir, s.parallel, s.recursive)
	_, stderr, err := c.runner.Run(ctx, c.cfg.BulkTool, args...)
	elapsed := time.Since(start)
	if err != nil {
		cerr := errors.Wrap(err, errors.CodeTransient, c.cfg.BulkTool+" copy from "+bucket+" failed").
			WithDetail(tailOf(stderr, stderrTailBytes))
		metrics.RecordOp(c.met, component, op, metrics.OutcomeError, elapsed)
		c.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "bunch download from " + bucket + " failed",
			Fields: eventlog.Fields{
				"bucket":      bucket,
				"remote_path": remotePath,
				"local_dir":   localDir,
				"tool":        c.cfg.BulkTool,
				"stderr":      tailOf(stderr, stderrTailBytes),
				"error":       cerr,
			},
		})
		return false, cerr
	}

	metrics.RecordOp(c.met, component, op, metrics.OutcomeOK, elapsed)
	c.report(ctx, eventlog.Event{
		Name:    op,
		Message: "bunch download from " + bucket + " completed",
		Fields: eventlog.Fields{
			"bucket":      bucket,
			"remote_path": remotePath,
			"local_dir":   localDir,
			"tool":        c.cfg.BulkTool,
			"parallel":    s.parallel,
			"recursive":   s.recursive,
			"dir_created": dirCreated,
		},
	})
	return true, nil
}

// tailOf keeps the last n bytes of tool output.
func tailOf(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
