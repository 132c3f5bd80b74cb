package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/logging"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// ── Fake driver API ───────────────────────────────────────────────────────

type commandCall struct {
	db  string
	cmd bson.D
}

type createCollCall struct {
	db   string
	name string
	opts *options.CreateCollectionOptions
}

type fakeMongoAPI struct {
	pingErr       error
	cmdErr        error
	cmdReply      bson.M
	createErr     error
	listNames     []string
	listErr       error
	disconnectErr error

	commands    []commandCall
	creates     []createCollCall
	requested   []string
	disconnects int
}

func newFakeMongoAPI() *fakeMongoAPI {
	return &fakeMongoAPI{cmdReply: bson.M{"ok": 1}}
}

func (f *fakeMongoAPI) Ping(context.Context) error { return f.pingErr }

func (f *fakeMongoAPI) RunCommand(_ context.Context, db string, cmd bson.D) (bson.M, error) {
	f.commands = append(f.commands, commandCall{db: db, cmd: cmd})
	if f.cmdErr != nil {
		return nil, f.cmdErr
	}
	return f.cmdReply, nil
}

func (f *fakeMongoAPI) CreateCollection(_ context.Context, db, name string, opts *options.CreateCollectionOptions) error {
	f.creates = append(f.creates, createCollCall{db: db, name: name, opts: opts})
	return f.createErr
}

func (f *fakeMongoAPI) ListCollectionNames(_ context.Context, db string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listNames, nil
}

func (f *fakeMongoAPI) Collection(db, name string) *driver.Collection {
	f.requested = append(f.requested, db+"/"+name)
	return nil
}

func (f *fakeMongoAPI) Client() *driver.Client { return nil }

func (f *fakeMongoAPI) Disconnect(context.Context) error {
	f.disconnects++
	return f.disconnectErr
}

// ── Shared fixture ────────────────────────────────────────────────────────

type handlerFixture struct {
	api  *fakeMongoAPI
	sink *eventlog.MemSink
	h    *Handler
}

func newHandlerFixture(t *testing.T, opts ...HandlerOption) *handlerFixture {
	t.Helper()
	api := newFakeMongoAPI()
	sink := eventlog.NewMemSink()
	rec, err := eventlog.NewRecorder(eventlog.RecorderConfig{
		LoggerName:  "infra",
		AppName:     "Evolve",
		Environment: common.EnvTest,
	}, sink, logging.NewNopLogger())
	require.NoError(t, err)
	cfg := Config{URI: "mongodb://localhost:27017", Database: "evolve_db", AppName: "Evolve"}
	return &handlerFixture{
		api:  api,
		sink: sink,
		h:    newHandler(cfg, api, rec, logging.NewNopLogger(), opts...),
	}
}

func (fx *handlerFixture) lastEvent(t *testing.T) eventlog.Event {
	t.Helper()
	events := fx.sink.Events()
	require.Len(t, events, 1, "expected exactly one reported event")
	return events[0]
}

// ── Handler suite ─────────────────────────────────────────────────────────

type HandlerSuite struct {
	suite.Suite
	fx *handlerFixture
}

func (s *HandlerSuite) SetupTest() {
	s.fx = newHandlerFixture(s.T())
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) TestApplyDefaults() {
	cfg := &Config{}
	applyDefaults(cfg)
	assert.Equal(s.T(), 10*time.Second, cfg.ConnectTimeout)
}

func (s *HandlerSuite) TestConfigValidate() {
	assert.NoError(s.T(), Config{URI: "mongodb://h", Database: "d"}.Validate())

	err := Config{Database: "d"}.Validate()
	assert.Equal(s.T(), errors.CodeValidationFailure, errors.GetCode(err))

	err = Config{URI: "mongodb://h"}.Validate()
	assert.Equal(s.T(), errors.CodeValidationFailure, errors.GetCode(err))
}

func (s *HandlerSuite) TestChangeDatabase() {
	err := s.fx.h.ChangeDatabase(context.Background(), "analytics")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "analytics", s.fx.h.DBName())

	ev := s.fx.lastEvent(s.T())
	assert.Equal(s.T(), "change_database", ev.Name)
	assert.Equal(s.T(), "evolve_db", ev.Fields["old_db"])
	assert.Equal(s.T(), "analytics", ev.Fields["new_db"])
}

func (s *HandlerSuite) TestChangeDatabaseEmptyName() {
	err := s.fx.h.ChangeDatabase(context.Background(), "")
	assert.Equal(s.T(), errors.CodeValidationFailure, errors.GetCode(err))
	assert.Equal(s.T(), "evolve_db", s.fx.h.DBName())
	assert.Empty(s.T(), s.fx.sink.Events())
}

func (s *HandlerSuite) TestCollection() {
	s.fx.h.Collection(context.Background(), "samples")

	assert.Equal(s.T(), []string{"evolve_db/samples"}, s.fx.api.requested)
	ev := s.fx.lastEvent(s.T())
	assert.Equal(s.T(), "get_collection", ev.Name)
	assert.Equal(s.T(), common.SeverityDebug, ev.Severity)
	assert.Equal(s.T(), "samples", ev.Fields["collection"])
}

func (s *HandlerSuite) TestCollectionFollowsDatabaseChange() {
	require.NoError(s.T(), s.fx.h.ChangeDatabase(context.Background(), "analytics"))
	s.fx.h.Collection(context.Background(), "samples")

	assert.Equal(s.T(), []string{"analytics/samples"}, s.fx.api.requested)
}

func (s *HandlerSuite) TestCollectionNames() {
	s.fx.api.listNames = []string{"samples", "runs"}

	names, err := s.fx.h.CollectionNames(context.Background())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"samples", "runs"}, names)

	s.fx.api.listErr = context.DeadlineExceeded
	_, err = s.fx.h.CollectionNames(context.Background())
	assert.Equal(s.T(), errors.CodeConnectionFailure, errors.GetCode(err))
}

func (s *HandlerSuite) TestCloseIsIdempotent() {
	require.NoError(s.T(), s.fx.h.Close(context.Background()))
	require.NoError(s.T(), s.fx.h.Close(context.Background()))
	assert.Equal(s.T(), 1, s.fx.api.disconnects)
}

func (s *HandlerSuite) TestNewMigratorNeedsDriverClient() {
	_, err := NewMigrator(s.fx.h, logging.NewNopLogger())
	assert.Equal(s.T(), errors.CodeValidationFailure, errors.GetCode(err))

	_, err = NewMigrator(nil, nil)
	assert.Equal(s.T(), errors.CodeValidationFailure, errors.GetCode(err))
}
