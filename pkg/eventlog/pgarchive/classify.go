package pgarchive

import (
	"context"
	stderrors "errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/evolvehq/evoinfra/pkg/errors"
)

// classify maps a postgres driver error onto the failure taxonomy. Already
// classified errors pass through; the rest land in the TRANSIENT catch-all.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.GetCode(err) != errors.CodeUnknown {
		return err
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.CodeConnectionFailure, op+" interrupted")
	}
	var nerr net.Error
	if stderrors.As(err, &nerr) {
		return errors.Wrap(err, errors.CodeConnectionFailure, op+" failed")
	}

	var perr *pgconn.PgError
	if stderrors.As(err, &perr) {
		switch {
		case perr.Code == "23505": // unique_violation
			return errors.Wrap(err, errors.CodeAlreadyExists, op+" failed")
		case perr.Code == "42P01": // undefined_table
			return errors.Wrap(err, errors.CodeInternal, op+" failed").
				WithDetail("archive table missing")
		case strings.HasPrefix(perr.Code, "08"): // connection exception class
			return errors.Wrap(err, errors.CodeConnectionFailure, op+" failed")
		case strings.HasPrefix(perr.Code, "22"), strings.HasPrefix(perr.Code, "23"):
			return errors.Wrap(err, errors.CodeValidationFailure, op+" rejected")
		case strings.HasPrefix(perr.Code, "28"): // invalid authorization
			return errors.Wrap(err, errors.CodeConnectionFailure, op+" denied")
		}
	}
	return errors.Wrap(err, errors.CodeTransient, op+" failed")
}
