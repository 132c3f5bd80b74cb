//go:build integration

package integration

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/logging"
	"github.com/evolvehq/evoinfra/pkg/storage/gcs"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// newStorageClient dials the emulator through the SDK's own emulator
// convention, so the production dial path stays untouched.
func newStorageClient(t *testing.T) (*gcs.Client, *eventlog.MemSink) {
	t.Helper()
	t.Setenv("STORAGE_EMULATOR_HOST", gcsBackend(t))

	rec, sink := newMemRecorder(t)
	cl, err := gcs.NewClient(context.Background(), gcs.Config{
		ProjectID: "evo-it",
		AppName:   "evolve",
	}, rec, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })
	return cl, sink
}

func TestStorageFacade_BucketLifecycle(t *testing.T) {
	cl, sink := newStorageClient(t)
	ctx := context.Background()

	exists, err := cl.BucketExists(ctx, "lifecycle")
	require.NoError(t, err)
	assert.False(t, exists)

	ok, err := cl.CreateBucket(ctx, "lifecycle")
	require.NoError(t, err)
	assert.True(t, ok)

	ev, found := sink.Last()
	require.True(t, found)
	assert.Equal(t, "create_bucket", ev.Name)
	assert.Equal(t, "evolve_lifecycle", ev.Fields["bucket"])

	// Creating the same bucket again is absorbed, not failed.
	ok, err = cl.CreateBucket(ctx, "lifecycle")
	require.NoError(t, err)
	assert.False(t, ok)

	ev, found = sink.Last()
	require.True(t, found)
	assert.Equal(t, common.SeverityWarning, ev.Severity)

	exists, err = cl.BucketExists(ctx, "lifecycle")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStorageFacade_ArtifactRoundTrip(t *testing.T) {
	cl, sink := newStorageClient(t)
	ctx := context.Background()

	ok, err := cl.CreateBucket(ctx, "artifacts")
	require.NoError(t, err)
	require.True(t, ok)

	content := []byte("epoch-7 weights\x00\x01\x02")
	src := filepath.Join(t.TempDir(), "weights.bin")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	ok, err = cl.SaveArtifact(ctx, "artifacts", "models/weights.bin", src,
		gcs.WithObjectMetadata(map[string]string{"trained_by": "atlas"}))
	require.NoError(t, err)
	assert.True(t, ok)

	dest := filepath.Join(t.TempDir(), "weights-copy.bin")
	ok, err = cl.DownloadArtifact(ctx, "artifacts", "models/weights.bin", dest)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got, "downloaded bytes match the upload")

	ev, found := sink.Last()
	require.True(t, found)
	assert.Equal(t, "download_artifact", ev.Name)
	assert.NotEmpty(t, ev.Fields["local_host"])

	// A missing object is absorbed with exactly one warning event.
	sink.Reset()
	ok, err = cl.DownloadArtifact(ctx, "artifacts", "models/ghost.bin",
		filepath.Join(t.TempDir(), "ghost.bin"))
	require.NoError(t, err)
	assert.False(t, ok)

	evs := sink.ByName("download_artifact")
	require.Len(t, evs, 1)
	assert.Equal(t, common.SeverityWarning, evs[0].Severity)
}

func TestStorageFacade_TableRoundTrip(t *testing.T) {
	cl, _ := newStorageClient(t)
	ctx := context.Background()

	ok, err := cl.CreateBucket(ctx, "tables")
	require.NoError(t, err)
	require.True(t, ok)

	header := []string{"epoch", "loss"}
	rows := [][]string{{"1", "0.50"}, {"2", "0.25"}}
	ok, err = cl.SaveTable(ctx, "tables", "runs/metrics.csv", header, rows)
	require.NoError(t, err)
	assert.True(t, ok)

	dest := filepath.Join(t.TempDir(), "metrics.csv")
	ok, err = cl.DownloadArtifact(ctx, "tables", "runs/metrics.csv", dest)
	require.NoError(t, err)
	require.True(t, ok)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"epoch", "loss"}, {"1", "0.50"}, {"2", "0.25"}}, records)
}
