package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/storage/gcs"
)

var (
	artifactGeneration int64
	artifactParallel   bool
	artifactRecursive  bool
	artifactMeta       []string
)

// newArtifactCmd creates the artifact command group.
func newArtifactCmd() *cobra.Command {
	artifactCmd := &cobra.Command{
		Use:   "artifact",
		Short: "Move artifacts between local disk and application buckets",
	}

	putCmd := &cobra.Command{
		Use:   "put BUCKET OBJECT FILE",
		Short: "Upload a local file as a bucket object",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifactPut(cmd, args[0], args[1], args[2])
		},
	}
	putCmd.Flags().StringArrayVar(&artifactMeta, "meta", nil, "object metadata as key=value (repeatable)")

	getCmd := &cobra.Command{
		Use:   "get BUCKET OBJECT DEST",
		Short: "Download a bucket object to a local file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifactGet(cmd, args[0], args[1], args[2])
		},
	}
	getCmd.Flags().Int64Var(&artifactGeneration, "generation", 0, "pin a specific object generation (0 = latest)")

	syncCmd := &cobra.Command{
		Use:   "sync BUCKET REMOTE_PATH LOCAL_DIR",
		Short: "Bulk-download a bucket subtree with the external copy tool",
		Long: "Copy everything under REMOTE_PATH into LOCAL_DIR using the configured\n" +
			"bulk tool (gsutil by default). The local directory is created when it\n" +
			"does not exist yet.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifactSync(cmd, args[0], args[1], args[2])
		},
	}
	syncCmd.Flags().BoolVar(&artifactParallel, "parallel", false, "run the copy with parallel workers (-m)")
	syncCmd.Flags().BoolVar(&artifactRecursive, "recursive", true, "copy directories recursively (-r)")

	tableCmd := &cobra.Command{
		Use:   "table BUCKET OBJECT CSVFILE",
		Short: "Upload a local CSV file as a tabular object",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifactTable(cmd, args[0], args[1], args[2])
		},
	}

	artifactCmd.AddCommand(putCmd, getCmd, syncCmd, tableCmd)
	return artifactCmd
}

func runArtifactPut(cmd *cobra.Command, bucket, object, file string) error {
	md, err := metadataFromFlags(artifactMeta)
	if err != nil {
		return err
	}
	var opts []gcs.SaveOption
	if len(md) > 0 {
		opts = append(opts, gcs.WithObjectMetadata(md))
	}

	return withStorage(cmd, func(ctx context.Context, cl *gcs.Client) error {
		ok, err := cl.SaveArtifact(ctx, bucket, object, file, opts...)
		if err != nil {
			return err
		}
		if !ok {
			PrintSkipped(cmd, fmt.Sprintf("upload of %s to %s", file, gcs.ObjectURL(cl.BucketName(bucket), object)))
			return nil
		}
		PrintSuccess(cmd, fmt.Sprintf("%s uploaded to %s", file, gcs.ObjectURL(cl.BucketName(bucket), object)))
		return nil
	})
}

func runArtifactGet(cmd *cobra.Command, bucket, object, dest string) error {
	return withStorage(cmd, func(ctx context.Context, cl *gcs.Client) error {
		var opts []gcs.DownloadOption
		if artifactGeneration > 0 {
			opts = append(opts, gcs.WithGeneration(artifactGeneration))
		}

		ok, err := cl.DownloadArtifact(ctx, bucket, object, dest, opts...)
		if err != nil {
			return err
		}
		if !ok {
			PrintSkipped(cmd, fmt.Sprintf("%s not found", gcs.ObjectURL(cl.BucketName(bucket), object)))
			return nil
		}
		PrintSuccess(cmd, fmt.Sprintf("%s downloaded to %s", gcs.ObjectURL(cl.BucketName(bucket), object), dest))
		return nil
	})
}

func runArtifactSync(cmd *cobra.Command, bucket, remotePath, localDir string) error {
	return withStorage(cmd, func(ctx context.Context, cl *gcs.Client) error {
		var opts []gcs.BunchOption
		if artifactParallel {
			opts = append(opts, gcs.WithParallel())
		}
		if artifactRecursive {
			opts = append(opts, gcs.WithRecursive())
		}

		ok, err := cl.DownloadArtifactsBunch(ctx, bucket, remotePath, localDir, opts...)
		if err != nil {
			return err
		}
		if !ok {
			PrintSkipped(cmd, fmt.Sprintf("sync of %s", gcs.ObjectURL(cl.BucketName(bucket), remotePath)))
			return nil
		}
		PrintSuccess(cmd, fmt.Sprintf("%s synced to %s", gcs.ObjectURL(cl.BucketName(bucket), remotePath), localDir))
		return nil
	})
}

func runArtifactTable(cmd *cobra.Command, bucket, object, csvFile string) error {
	header, rows, err := readCSVTable(csvFile)
	if err != nil {
		return err
	}

	return withStorage(cmd, func(ctx context.Context, cl *gcs.Client) error {
		ok, err := cl.SaveTable(ctx, bucket, object, header, rows)
		if err != nil {
			return err
		}
		if !ok {
			PrintSkipped(cmd, fmt.Sprintf("upload of table %s", csvFile))
			return nil
		}
		PrintSuccess(cmd, fmt.Sprintf("table %s (%d rows) uploaded to %s",
			csvFile, len(rows), gcs.ObjectURL(cl.BucketName(bucket), object)))
		return nil
	})
}

// metadataFromFlags turns repeated key=value flags into object metadata.
func metadataFromFlags(kvs []string) (map[string]string, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	fields, err := parseFields(kvs)
	if err != nil {
		return nil, err
	}
	md := make(map[string]string, len(fields))
	for k, v := range fields {
		md[k] = fmt.Sprint(v)
	}
	return md, nil
}

// readCSVTable splits a local CSV file into its header and data rows.
func readCSVTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeLocalIOFailure, "open csv "+path)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeLocalIOFailure, "parse csv "+path)
	}
	if len(records) == 0 {
		return nil, nil, errors.ValidationFailure("csv file is empty").WithDetail(path)
	}
	return records[0], records[1:], nil
}
