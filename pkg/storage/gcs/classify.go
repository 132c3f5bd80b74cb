package gcs

import (
	"context"
	stderrors "errors"
	"net"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/evolvehq/evoinfra/pkg/errors"
)

// isBucketMissing reports the SDK's missing-bucket sentinel.
func isBucketMissing(err error) bool {
	return stderrors.Is(err, storage.ErrBucketNotExist)
}

// isObjectMissing reports a missing object or its missing bucket; both mean
// the artifact is not there to fetch.
func isObjectMissing(err error) bool {
	return stderrors.Is(err, storage.ErrObjectNotExist) || stderrors.Is(err, storage.ErrBucketNotExist)
}

// isConflict reports the backend refusing a create because the name is
// already taken.
func isConflict(err error) bool {
	var gerr *googleapi.Error
	return stderrors.As(err, &gerr) && gerr.Code == 409
}

// classify maps a storage SDK error onto the failure taxonomy. Already
// classified errors pass through; the rest land in the TRANSIENT catch-all.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.GetCode(err) != errors.CodeUnknown {
		return err
	}

	switch {
	case isObjectMissing(err):
		return errors.Wrap(err, errors.CodeNotFound, op+" failed")
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.CodeConnectionFailure, op+" interrupted")
	}

	var nerr net.Error
	if stderrors.As(err, &nerr) {
		return errors.Wrap(err, errors.CodeConnectionFailure, op+" failed")
	}

	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) {
		switch gerr.Code {
		case 404:
			return errors.Wrap(err, errors.CodeNotFound, op+" failed")
		case 409:
			return errors.Wrap(err, errors.CodeAlreadyExists, op+" failed")
		case 400, 412:
			return errors.Wrap(err, errors.CodeValidationFailure, op+" rejected")
		case 401, 403, 408:
			return errors.Wrap(err, errors.CodeConnectionFailure, op+" denied")
		default:
			return errors.Wrap(err, errors.CodeTransient, op+" failed")
		}
	}
	return errors.Wrap(err, errors.CodeTransient, op+" failed")
}
