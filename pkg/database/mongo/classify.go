package mongo

import (
	"context"
	stderrors "errors"
	"net"
	"strings"

	driver "go.mongodb.org/mongo-driver/mongo"

	"github.com/evolvehq/evoinfra/pkg/errors"
)

// Server command codes the facade branches on.
const (
	codeNamespaceExists   = 48
	codeNamespaceNotFound = 26
)

// classify maps a driver failure onto the failure taxonomy. Errors already
// carrying a classification pass through untouched; anything the mapping
// does not recognise becomes TRANSIENT.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.GetCode(err) != errors.CodeUnknown {
		return err
	}

	var ce driver.CommandError
	if stderrors.As(err, &ce) {
		if ce.HasErrorLabel("NetworkError") {
			return errors.Wrap(err, errors.CodeConnectionFailure, op)
		}
		switch ce.Code {
		case codeNamespaceExists:
			return errors.Wrap(err, errors.CodeAlreadyExists, op)
		case codeNamespaceNotFound:
			return errors.Wrap(err, errors.CodeNotFound, op)
		case 9, 14, 72, 121:
			// FailedToParse, TypeMismatch, InvalidOptions,
			// DocumentValidationFailure: the server refused the input.
			return errors.Wrap(err, errors.CodeValidationFailure, op)
		case 13, 18:
			// Unauthorized, AuthenticationFailed.
			return errors.Wrap(err, errors.CodeConnectionFailure, op)
		}
		// Older servers report a dropped missing namespace by message only.
		if strings.Contains(ce.Message, "ns not found") {
			return errors.Wrap(err, errors.CodeNotFound, op)
		}
		return errors.Wrap(err, errors.CodeTransient, op)
	}

	switch {
	case driver.IsTimeout(err), driver.IsNetworkError(err):
		return errors.Wrap(err, errors.CodeConnectionFailure, op)
	case stderrors.Is(err, driver.ErrClientDisconnected):
		return errors.Wrap(err, errors.CodeConnectionFailure, op)
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.CodeConnectionFailure, op)
	}
	var ne net.Error
	if stderrors.As(err, &ne) {
		return errors.Wrap(err, errors.CodeConnectionFailure, op)
	}
	return errors.Wrap(err, errors.CodeTransient, op)
}
