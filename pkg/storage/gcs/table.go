package gcs

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
)

// SaveTable spills header and rows into a temporary CSV file and saves it
// as an artifact named objectName. The spill file is removed afterwards.
func (c *Client) SaveTable(ctx context.Context, bucketName, objectName string, header []string, rows [][]string, opts ...SaveOption) (bool, error) {
	if bucketName == "" || objectName == "" {
		return false, errors.ValidationFailure("bucket and object must not be empty")
	}
	if len(header) == 0 && len(rows) == 0 {
		return false, errors.ValidationFailure("table must have a header or at least one row")
	}

	tmp, err := os.CreateTemp(c.cfg.TempDir, "evoinfra-table-*.csv")
	if err != nil {
		return false, errors.Wrap(err, errors.CodeLocalIOFailure, "create table spill file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			_ = tmp.Close()
			return false, errors.Wrap(err, errors.CodeLocalIOFailure, "write table header")
		}
	}
	if err := w.WriteAll(rows); err != nil {
		_ = tmp.Close()
		return false, errors.Wrap(err, errors.CodeLocalIOFailure, "write table rows")
	}
	if err := tmp.Close(); err != nil {
		return false, errors.Wrap(err, errors.CodeLocalIOFailure, "flush table spill file")
	}

	var s saveSettings
	for _, opt := range opts {
		opt(&s)
	}
	return c.saveFromFile(ctx, "save_table", bucketName, objectName, tmpPath, s.metadata, eventlog.Fields{
		"rows":    len(rows),
		"columns": len(header),
	})
}
