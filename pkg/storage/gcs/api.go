package gcs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// gcsAPI matches the slice of the storage SDK the facade uses. The
// production implementation sits on *storage.Client; tests substitute an
// in-memory fake.
type gcsAPI interface {
	// Ping verifies the client can reach the backend at all.
	Ping(ctx context.Context, projectID string) error

	// CreateBucket creates a bucket with the given attributes.
	CreateBucket(ctx context.Context, bucket, projectID string, attrs *storage.BucketAttrs) error

	// BucketAttrs probes a bucket. Missing buckets surface
	// storage.ErrBucketNotExist.
	BucketAttrs(ctx context.Context, bucket string) (*storage.BucketAttrs, error)

	// ObjectAttrs probes an object, pinned to a generation when gen > 0.
	// Missing objects surface storage.ErrObjectNotExist.
	ObjectAttrs(ctx context.Context, bucket, object string, gen int64) (*storage.ObjectAttrs, error)

	// NewReader opens an object for reading, pinned to a generation when
	// gen > 0.
	NewReader(ctx context.Context, bucket, object string, gen int64) (io.ReadCloser, error)

	// Upload streams src into an object, attaching md as object metadata
	// when non-empty, and reports the bytes written.
	Upload(ctx context.Context, bucket, object string, src io.Reader, md map[string]string) (int64, error)

	Close() error
}

// sdkAPI implements gcsAPI over the real storage client.
type sdkAPI struct {
	client *storage.Client
}

func (a *sdkAPI) Ping(ctx context.Context, projectID string) error {
	it := a.client.Buckets(ctx, projectID)
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return err
	}
	return nil
}

func (a *sdkAPI) CreateBucket(ctx context.Context, bucket, projectID string, attrs *storage.BucketAttrs) error {
	return a.client.Bucket(bucket).Create(ctx, projectID, attrs)
}

func (a *sdkAPI) BucketAttrs(ctx context.Context, bucket string) (*storage.BucketAttrs, error) {
	return a.client.Bucket(bucket).Attrs(ctx)
}

func (a *sdkAPI) ObjectAttrs(ctx context.Context, bucket, object string, gen int64) (*storage.ObjectAttrs, error) {
	obj := a.client.Bucket(bucket).Object(object)
	if gen > 0 {
		obj = obj.Generation(gen)
	}
	return obj.Attrs(ctx)
}

func (a *sdkAPI) NewReader(ctx context.Context, bucket, object string, gen int64) (io.ReadCloser, error) {
	obj := a.client.Bucket(bucket).Object(object)
	if gen > 0 {
		obj = obj.Generation(gen)
	}
	return obj.NewReader(ctx)
}

func (a *sdkAPI) Upload(ctx context.Context, bucket, object string, src io.Reader, md map[string]string) (int64, error) {
	w := a.client.Bucket(bucket).Object(object).NewWriter(ctx)
	if len(md) > 0 {
		w.Metadata = md
	}
	n, err := io.Copy(w, src)
	if err != nil {
		_ = w.Close()
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, err
	}
	return n, nil
}

func (a *sdkAPI) Close() error {
	return a.client.Close()
}
