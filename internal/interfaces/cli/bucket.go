package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evolvehq/evoinfra/pkg/storage/gcs"
)

// withStorage builds the storage facade for one command invocation and tears
// it down afterwards. Construction dials GCS, so commands only pay for the
// backend they actually use.
func withStorage(cmd *cobra.Command, fn func(ctx context.Context, cl *gcs.Client) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := cliCtx.opCtx(cmd)
	defer cancel()

	cl, err := gcs.NewClient(ctx, cliCtx.Config.Storage, cliCtx.Recorder, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer cl.Close()

	return fn(ctx, cl)
}

// newBucketCmd creates the bucket command group.
func newBucketCmd() *cobra.Command {
	bucketCmd := &cobra.Command{
		Use:   "bucket",
		Short: "Manage application buckets",
	}

	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a bucket owned by the application",
		Long: "Create a bucket. The short name is prefixed with the application name,\n" +
			"so \"models\" becomes \"<app>_models\". Creating a bucket that already\n" +
			"exists is reported and skipped, not failed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBucketCreate(cmd, args[0])
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check NAME",
		Short: "Check whether a bucket exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBucketCheck(cmd, args[0])
		},
	}

	bucketCmd.AddCommand(createCmd, checkCmd)
	return bucketCmd
}

func runBucketCreate(cmd *cobra.Command, name string) error {
	return withStorage(cmd, func(ctx context.Context, cl *gcs.Client) error {
		ok, err := cl.CreateBucket(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			PrintSkipped(cmd, fmt.Sprintf("bucket %s already exists", cl.BucketName(name)))
			return nil
		}
		PrintSuccess(cmd, fmt.Sprintf("bucket %s created", cl.BucketName(name)))
		return nil
	})
}

func runBucketCheck(cmd *cobra.Command, name string) error {
	return withStorage(cmd, func(ctx context.Context, cl *gcs.Client) error {
		exists, err := cl.BucketExists(ctx, name)
		if err != nil {
			return err
		}
		return PrintResult(cmd, bucketStatus{Bucket: cl.BucketName(name), Exists: exists})
	})
}

// bucketStatus is the result payload of bucket check.
type bucketStatus struct {
	Bucket string `json:"bucket"`
	Exists bool   `json:"exists"`
}

func (s bucketStatus) TableHeaders() []string { return []string{"Bucket", "Exists"} }

func (s bucketStatus) TableRows() [][]string {
	return [][]string{{s.Bucket, fmt.Sprintf("%t", s.Exists)}}
}

func (s bucketStatus) String() string {
	return fmt.Sprintf("bucket %s exists: %t", s.Bucket, s.Exists)
}
