package gcl

import (
	"context"
	stderrors "errors"
	"net"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/evolvehq/evoinfra/pkg/errors"
)

// classify maps a vendor transport error onto the failure taxonomy. Errors
// that already carry a classification pass through unchanged; anything the
// mapping does not recognise lands in the TRANSIENT catch-all.
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
	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) {
		return errors.Wrap(err, codeForHTTPStatus(gerr.Code), op+" rejected")
	}

	switch status.Code(err) {
	case codes.NotFound:
		return errors.Wrap(err, errors.CodeNotFound, op+" failed")
	case codes.AlreadyExists:
		return errors.Wrap(err, errors.CodeAlreadyExists, op+" failed")
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return errors.Wrap(err, errors.CodeValidationFailure, op+" rejected")
	case codes.Unauthenticated, codes.PermissionDenied:
		return errors.Wrap(err, errors.CodeConnectionFailure, op+" denied")
	case codes.Unavailable, codes.DeadlineExceeded:
		return errors.Wrap(err, errors.CodeConnectionFailure, op+" failed")
	}
	return errors.Wrap(err, errors.CodeTransient, op+" failed")
}

// codeForHTTPStatus covers the admin API's REST transport.
func codeForHTTPStatus(httpStatus int) errors.ErrorCode {
	switch httpStatus {
	case 404:
		return errors.CodeNotFound
	case 409:
		return errors.CodeAlreadyExists
	case 400, 412:
		return errors.CodeValidationFailure
	case 401, 403, 408:
		return errors.CodeConnectionFailure
	default:
		return errors.CodeTransient
	}
}
