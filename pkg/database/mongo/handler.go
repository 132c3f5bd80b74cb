// Package mongo is the database facade. It owns one driver client and one
// current-database pointer, and wraps collection lifecycle operations
// behind boolean results that report every outcome as exactly one event:
// switch the active database, fetch a collection handle, create and drop
// collections, apply a validation schema with collMod.
//
// Recoverable refusals (collection already exists, collection missing,
// schema rejected by the server) come back as (false, nil) with an event;
// connection loss and unclassified faults come back as (false, error)
// classified on the failure taxonomy.
package mongo

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/logging"
	"github.com/evolvehq/evoinfra/pkg/metrics"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

const component = "database"

// Config holds the database facade settings.
type Config struct {
	// URI is the connection string. Required.
	URI string `mapstructure:"uri"`

	// Database is the initially selected database. Required.
	Database string `mapstructure:"database"`

	// AppName is advertised to the server as the connecting application.
	AppName string `mapstructure:"app_name"`

	// ConnectTimeout bounds dialing and the connect-time ping.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

func applyDefaults(cfg *Config) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
}

// Validate checks the facade settings.
func (c Config) Validate() error {
	if c.URI == "" {
		return errors.ValidationFailure("connection uri must not be empty")
	}
	if c.Database == "" {
		return errors.ValidationFailure("database name must not be empty")
	}
	return nil
}

// mongoAPI matches the slice of the driver the facade uses. The production
// implementation sits on *driver.Client; tests substitute a fake.
type mongoAPI interface {
	Ping(ctx context.Context) error

	// RunCommand runs a database command and decodes the server reply.
	// Server-side failures surface as driver.CommandError.
	RunCommand(ctx context.Context, db string, cmd bson.D) (bson.M, error)

	CreateCollection(ctx context.Context, db, name string, opts *options.CreateCollectionOptions) error
	ListCollectionNames(ctx context.Context, db string) ([]string, error)
	Collection(db, name string) *driver.Collection

	// Client exposes the underlying driver client for tooling that needs
	// it directly (migrations). Fakes return nil.
	Client() *driver.Client

	Disconnect(ctx context.Context) error
}

// driverAPI implements mongoAPI over the real driver client.
type driverAPI struct {
	client *driver.Client
}

func (a *driverAPI) Ping(ctx context.Context) error {
	return a.client.Ping(ctx, readpref.Primary())
}

func (a *driverAPI) RunCommand(ctx context.Context, db string, cmd bson.D) (bson.M, error) {
	res := a.client.Database(db).RunCommand(ctx, cmd)
	if err := res.Err(); err != nil {
		return nil, err
	}
	var reply bson.M
	if err := res.Decode(&reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (a *driverAPI) CreateCollection(ctx context.Context, db, name string, opts *options.CreateCollectionOptions) error {
	return a.client.Database(db).CreateCollection(ctx, name, opts)
}

func (a *driverAPI) ListCollectionNames(ctx context.Context, db string) ([]string, error) {
	return a.client.Database(db).ListCollectionNames(ctx, bson.D{})
}

func (a *driverAPI) Collection(db, name string) *driver.Collection {
	return a.client.Database(db).Collection(name)
}

func (a *driverAPI) Client() *driver.Client { return a.client }

func (a *driverAPI) Disconnect(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

// Handler is the database facade. It holds at most one open connection;
// the current-database pointer is guarded, but callers serialize mutating
// calls like ChangeDatabase against their other uses of the same Handler.
type Handler struct {
	cfg Config
	api mongoAPI
	rec *eventlog.Recorder
	log logging.Logger
	met *metrics.FacadeMetrics

	mu     sync.RWMutex
	dbName string
	closed bool
}

// HandlerOption customises a Handler.
type HandlerOption func(*Handler)

// WithMetrics wires the facade instrument set.
func WithMetrics(m *metrics.FacadeMetrics) HandlerOption {
	return func(h *Handler) { h.met = m }
}

// Connect dials the server, verifies it with a ping and selects the
// configured database. Every operation reports through rec.
func Connect(ctx context.Context, cfg Config, rec *eventlog.Recorder, log logging.Logger, opts ...HandlerOption) (*Handler, error) {
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.ValidationFailure("recorder must not be nil")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	copts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.AppName != "" {
		copts = copts.SetAppName(cfg.AppName)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := driver.Connect(dialCtx, copts)
	if err != nil {
		return nil, classify(err, "dial mongodb")
	}

	h := newHandler(cfg, &driverAPI{client: client}, rec, log, opts...)

	if err := h.api.Ping(dialCtx); err != nil {
		_ = h.api.Disconnect(ctx)
		metrics.SetBackendUp(h.met, "mongo", false)
		return nil, classify(err, "verify mongodb connection")
	}
	metrics.SetBackendUp(h.met, "mongo", true)

	h.log.Info("connected to mongodb",
		logging.String("database", cfg.Database),
		logging.String("app", cfg.AppName),
	)
	return h, nil
}

// newHandler wires a facade over an explicit API seam.
func newHandler(cfg Config, api mongoAPI, rec *eventlog.Recorder, log logging.Logger, opts ...HandlerOption) *Handler {
	applyDefaults(&cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}
	h := &Handler{
		cfg:    cfg,
		api:    api,
		rec:    rec,
		log:    log.Named("mongo"),
		dbName: cfg.Database,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DBName reports the currently selected database.
func (h *Handler) DBName() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dbName
}

// AppName reports the application name advertised to the server.
func (h *Handler) AppName() string { return h.cfg.AppName }

// currentDB snapshots the selected database for one operation.
func (h *Handler) currentDB() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dbName
}

// report delivers an operation's event. Delivery failure never disturbs
// the operation's own result.
func (h *Handler) report(ctx context.Context, ev eventlog.Event) {
	if err := h.rec.Log(ctx, ev); err != nil {
		metrics.RecordOp(h.met, component, ev.Name, metrics.OutcomeEmitError, 0)
		h.log.Error("event delivery failed",
			logging.String("event", ev.Name),
			logging.Err(err),
		)
	}
}

// eventSeverity grades a failure event by its error's classification.
func eventSeverity(err error) common.Severity {
	return errors.SeverityForCode(errors.GetCode(err))
}

// ChangeDatabase swaps the active database. The event carries the old name
// captured before the swap alongside the new one.
func (h *Handler) ChangeDatabase(ctx context.Context, name string) error {
	if name == "" {
		return errors.ValidationFailure("database name must not be empty")
	}

	h.mu.Lock()
	old := h.dbName
	h.dbName = name
	h.mu.Unlock()

	metrics.RecordOp(h.met, component, "change_database", metrics.OutcomeOK, 0)
	h.report(ctx, eventlog.Event{
		Name:    "change_database",
		Message: "active database changed",
		Fields:  eventlog.Fields{"old_db": old, "new_db": name},
	})
	return nil
}

// Collection returns a handle scoped to the current database and reports
// the request at DEBUG.
func (h *Handler) Collection(ctx context.Context, name string) *driver.Collection {
	db := h.currentDB()
	col := h.api.Collection(db, name)

	h.report(ctx, eventlog.Event{
		Name:     "get_collection",
		Severity: common.SeverityDebug,
		Message:  "collection " + name + " requested",
		Fields:   eventlog.Fields{"database": db, "collection": name},
	})
	return col
}

// CollectionNames lists the collections of the current database.
func (h *Handler) CollectionNames(ctx context.Context) ([]string, error) {
	db := h.currentDB()
	names, err := h.api.ListCollectionNames(ctx, db)
	if err != nil {
		return nil, classify(err, "list collections of "+db)
	}
	return names, nil
}

// Close disconnects from the server. Safe to call more than once.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	metrics.SetBackendUp(h.met, "mongo", false)
	if err := h.api.Disconnect(ctx); err != nil {
		return classify(err, "disconnect from mongodb")
	}
	h.log.Info("disconnected from mongodb")
	return nil
}
