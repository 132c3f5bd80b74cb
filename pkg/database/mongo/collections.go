package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/metrics"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// CreateOption customises collection creation.
type CreateOption func(*options.CreateCollectionOptions)

// WithValidator creates the collection with a validation schema attached.
func WithValidator(schema bson.M) CreateOption {
	return func(o *options.CreateCollectionOptions) { o.SetValidator(schema) }
}

// WithCapped creates a capped collection of sizeBytes, optionally bounded
// to maxDocs documents.
func WithCapped(sizeBytes, maxDocs int64) CreateOption {
	return func(o *options.CreateCollectionOptions) {
		o.SetCapped(true).SetSizeInBytes(sizeBytes)
		if maxDocs > 0 {
			o.SetMaxDocuments(maxDocs)
		}
	}
}

// CreateCollection creates a collection in the current database. An
// existing collection of the same name is absorbed as (false, nil) with a
// WARNING event; other refusals return the classified error.
func (h *Handler) CreateCollection(ctx context.Context, name string, opts ...CreateOption) (bool, error) {
	start := time.Now()
	op := "create_collection"

	if name == "" {
		return false, errors.ValidationFailure("collection name must not be empty")
	}
	db := h.currentDB()

	copts := options.CreateCollection()
	for _, opt := range opts {
		opt(copts)
	}

	err := h.api.CreateCollection(ctx, db, name, copts)
	elapsed := time.Since(start)

	switch cerr := classify(err, "create collection "+name); {
	case err == nil:
		metrics.RecordOp(h.met, component, op, metrics.OutcomeOK, elapsed)
		h.report(ctx, eventlog.Event{
			Name:    op,
			Message: "collection " + name + " created",
			Fields:  eventlog.Fields{"database": db, "collection": name},
		})
		return true, nil

	case errors.IsCode(cerr, errors.CodeAlreadyExists):
		metrics.RecordOp(h.met, component, op, metrics.OutcomeRecovered, elapsed)
		h.report(ctx, eventlog.Event{
			Name:     op,
			Severity: common.SeverityWarning,
			Message:  "collection " + name + " already exists",
			Fields:   eventlog.Fields{"database": db, "collection": name},
		})
		return false, nil

	default:
		metrics.RecordOp(h.met, component, op, metrics.OutcomeError, elapsed)
		h.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "collection " + name + " creation failed",
			Fields:   eventlog.Fields{"database": db, "collection": name, "error": cerr},
		})
		return false, cerr
	}
}

// DropCollection drops a collection from the current database through a
// raw drop command, so a missing namespace stays observable. Dropping a
// collection that does not exist is absorbed as (false, nil) with a
// WARNING event.
func (h *Handler) DropCollection(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	op := "delete_collection"

	if name == "" {
		return false, errors.ValidationFailure("collection name must not be empty")
	}
	db := h.currentDB()

	_, err := h.api.RunCommand(ctx, db, bson.D{{Key: "drop", Value: name}})
	elapsed := time.Since(start)

	switch cerr := classify(err, "drop collection "+name); {
	case err == nil:
		metrics.RecordOp(h.met, component, op, metrics.OutcomeOK, elapsed)
		h.report(ctx, eventlog.Event{
			Name:    op,
			Message: "collection " + name + " deleted",
			Fields:  eventlog.Fields{"database": db, "collection": name},
		})
		return true, nil

	case errors.IsCode(cerr, errors.CodeNotFound):
		metrics.RecordOp(h.met, component, op, metrics.OutcomeRecovered, elapsed)
		h.report(ctx, eventlog.Event{
			Name:     op,
			Severity: common.SeverityWarning,
			Message:  "collection " + name + " does not exist",
			Fields:   eventlog.Fields{"database": db, "collection": name},
		})
		return false, nil

	default:
		metrics.RecordOp(h.met, component, op, metrics.OutcomeError, elapsed)
		h.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "collection " + name + " deletion failed",
			Fields:   eventlog.Fields{"database": db, "collection": name, "error": cerr},
		})
		return false, cerr
	}
}

// SchemaOption customises a schema update.
type SchemaOption func(*schemaSettings)

type schemaSettings struct {
	level  string
	action string
}

// WithValidationLevel sets how strictly existing documents are validated
// during updates. Default "strict".
func WithValidationLevel(level string) SchemaOption {
	return func(s *schemaSettings) { s.level = level }
}

// WithValidationAction sets whether invalid documents are rejected or only
// warned about. Default "error".
func WithValidationAction(action string) SchemaOption {
	return func(s *schemaSettings) { s.action = action }
}

// UpdateCollectionSchema applies a validation schema to a collection with
// collMod. A schema the server rejects is absorbed as (false, nil) with an
// ERROR event carrying the server's complaint; the existing validator
// stays untouched in that case. A missing collection is absorbed as
// (false, nil) with a WARNING event.
func (h *Handler) UpdateCollectionSchema(ctx context.Context, name string, schema bson.M, opts ...SchemaOption) (bool, error) {
	start := time.Now()
	op := "update_collection_schema"

	if name == "" {
		return false, errors.ValidationFailure("collection name must not be empty")
	}
	if len(schema) == 0 {
		return false, errors.ValidationFailure("schema must not be empty")
	}
	s := schemaSettings{level: "strict", action: "error"}
	for _, opt := range opts {
		opt(&s)
	}
	db := h.currentDB()

	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: s.level},
		{Key: "validationAction", Value: s.action},
	}
	_, err := h.api.RunCommand(ctx, db, cmd)
	elapsed := time.Since(start)

	switch cerr := classify(err, "update schema of "+name); {
	case err == nil:
		metrics.RecordOp(h.met, component, op, metrics.OutcomeOK, elapsed)
		h.report(ctx, eventlog.Event{
			Name:    op,
			Message: "collection " + name + " schema updated",
			Fields: eventlog.Fields{
				"database":          db,
				"collection":        name,
				"validation_level":  s.level,
				"validation_action": s.action,
				"validator":         schema,
			},
		})
		return true, nil

	case errors.IsCode(cerr, errors.CodeNotFound):
		metrics.RecordOp(h.met, component, op, metrics.OutcomeRecovered, elapsed)
		h.report(ctx, eventlog.Event{
			Name:     op,
			Severity: common.SeverityWarning,
			Message:  "collection " + name + " does not exist",
			Fields:   eventlog.Fields{"database": db, "collection": name},
		})
		return false, nil

	case errors.IsCode(cerr, errors.CodeValidationFailure):
		metrics.RecordOp(h.met, component, op, metrics.OutcomeRecovered, elapsed)
		h.report(ctx, eventlog.Event{
			Name:        op,
			Severity:    common.SeverityError,
			Message:     "collection " + name + " schema rejected",
			Description: err.Error(),
			Fields:      eventlog.Fields{"database": db, "collection": name},
		})
		return false, nil

	default:
		metrics.RecordOp(h.met, component, op, metrics.OutcomeError, elapsed)
		h.report(ctx, eventlog.Event{
			Name:     op,
			Severity: eventSeverity(cerr),
			Message:  "collection " + name + " schema update failed",
			Fields:   eventlog.Fields{"database": db, "collection": name, "error": cerr},
		})
		return false, cerr
	}
}
