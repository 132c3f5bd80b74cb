package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

type CollectionsSuite struct {
	suite.Suite
	fx *handlerFixture
}

func (s *CollectionsSuite) SetupTest() {
	s.fx = newHandlerFixture(s.T())
}

func TestCollectionsSuite(t *testing.T) {
	suite.Run(t, new(CollectionsSuite))
}

func (s *CollectionsSuite) TestCreateCollection() {
	ok, err := s.fx.h.CreateCollection(context.Background(), "samples")
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	require.Len(s.T(), s.fx.api.creates, 1)
	call := s.fx.api.creates[0]
	assert.Equal(s.T(), "evolve_db", call.db)
	assert.Equal(s.T(), "samples", call.name)

	ev := s.fx.lastEvent(s.T())
	assert.Equal(s.T(), "create_collection", ev.Name)
	assert.Equal(s.T(), common.SeverityInfo, ev.Severity)
	assert.Equal(s.T(), "samples", ev.Fields["collection"])
}

func (s *CollectionsSuite) TestCreateCollectionWithOptions() {
	schema := bson.M{"$jsonSchema": bson.M{"required": []string{"name"}}}

	ok, err := s.fx.h.CreateCollection(context.Background(), "samples",
		WithValidator(schema), WithCapped(1<<20, 500))
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	opts := s.fx.api.creates[0].opts
	assert.NotNil(s.T(), opts.Validator)
	require.NotNil(s.T(), opts.Capped)
	assert.True(s.T(), *opts.Capped)
	assert.Equal(s.T(), int64(1<<20), *opts.SizeInBytes)
	assert.Equal(s.T(), int64(500), *opts.MaxDocuments)
}

func (s *CollectionsSuite) TestCreateCollectionAlreadyExists() {
	s.fx.api.createErr = driver.CommandError{Code: 48, Name: "NamespaceExists", Message: "Collection evolve_db.samples already exists."}

	ok, err := s.fx.h.CreateCollection(context.Background(), "samples")
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)

	ev := s.fx.lastEvent(s.T())
	assert.Equal(s.T(), common.SeverityWarning, ev.Severity)
	assert.Contains(s.T(), ev.Message, "already exists")
}

func (s *CollectionsSuite) TestCreateCollectionConnectionFailure() {
	s.fx.api.createErr = context.DeadlineExceeded

	ok, err := s.fx.h.CreateCollection(context.Background(), "samples")
	require.Error(s.T(), err)
	assert.False(s.T(), ok)
	assert.Equal(s.T(), errors.CodeConnectionFailure, errors.GetCode(err))

	ev := s.fx.lastEvent(s.T())
	assert.Equal(s.T(), common.SeverityCritical, ev.Severity)
}

func (s *CollectionsSuite) TestCreateCollectionEmptyName() {
	ok, err := s.fx.h.CreateCollection(context.Background(), "")
	assert.False(s.T(), ok)
	assert.Equal(s.T(), errors.CodeValidationFailure, errors.GetCode(err))
	assert.Empty(s.T(), s.fx.api.creates)
	assert.Empty(s.T(), s.fx.sink.Events())
}

func (s *CollectionsSuite) TestDropCollection() {
	ok, err := s.fx.h.DropCollection(context.Background(), "samples")
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	require.Len(s.T(), s.fx.api.commands, 1)
	cmd := s.fx.api.commands[0]
	assert.Equal(s.T(), "evolve_db", cmd.db)
	assert.Equal(s.T(), bson.D{{Key: "drop", Value: "samples"}}, cmd.cmd)

	ev := s.fx.lastEvent(s.T())
	assert.Equal(s.T(), "delete_collection", ev.Name)
	assert.Equal(s.T(), common.SeverityInfo, ev.Severity)
}

func (s *CollectionsSuite) TestDropCollectionMissing() {
	s.fx.api.cmdErr = driver.CommandError{Code: 26, Name: "NamespaceNotFound", Message: "ns not found"}

	ok, err := s.fx.h.DropCollection(context.Background(), "samples")
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)

	ev := s.fx.lastEvent(s.T())
	assert.Equal(s.T(), common.SeverityWarning, ev.Severity)
	assert.Contains(s.T(), ev.Message, "does not exist")
}

func (s *CollectionsSuite) TestDropCollectionFailure() {
	s.fx.api.cmdErr = driver.CommandError{Code: 96, Name: "OperationFailed", Message: "boom"}

	ok, err := s.fx.h.DropCollection(context.Background(), "samples")
	require.Error(s.T(), err)
	assert.False(s.T(), ok)
	assert.Equal(s.T(), errors.CodeTransient, errors.GetCode(err))

	ev := s.fx.lastEvent(s.T())
	assert.Equal(s.T(), common.SeverityError, ev.Severity)
}

func (s *CollectionsSuite) TestUpdateCollectionSchema() {
	schema := bson.M{"$jsonSchema": bson.M{"required": []string{"name"}}}

	ok, err := s.fx.h.UpdateCollectionSchema(context.Background(), "samples", schema)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	require.Len(s.T(), s.fx.api.commands, 1)
	expected := bson.D{
		{Key: "collMod", Value: "samples"},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "strict"},
		{Key: "validationAction", Value: "error"},
	}
	assert.Equal(s.T(), expected, s.fx.api.commands[0].cmd)

	ev := s.fx.lastEvent(s.T())
	assert.Equal(s.T(), "update_collection_schema", ev.Name)
	assert.Equal(s.T(), "strict", ev.Fields["validation_level"])
	assert.Equal(s.T(), "error", ev.Fields["validation_action"])
}

func (s *CollectionsSuite) TestUpdateCollectionSchemaCustomSettings() {
	schema := bson.M{"$jsonSchema": bson.M{}}

	_, err := s.fx.h.UpdateCollectionSchema(context.Background(), "samples", schema,
		WithValidationLevel("moderate"), WithValidationAction("warn"))
	require.NoError(s.T(), err)

	cmd := s.fx.api.commands[0].cmd
	assert.Equal(s.T(), "moderate", cmd[2].Value)
	assert.Equal(s.T(), "warn", cmd[3].Value)
}

func (s *CollectionsSuite) TestUpdateCollectionSchemaRejected() {
	s.fx.api.cmdErr = driver.CommandError{Code: 9, Name: "FailedToParse", Message: "unknown top level operator: $foo"}
	schema := bson.M{"$foo": 1}

	ok, err := s.fx.h.UpdateCollectionSchema(context.Background(), "samples", schema)
	require.NoError(s.T(), err, "a rejected schema is reported, not returned")
	assert.False(s.T(), ok)

	ev := s.fx.lastEvent(s.T())
	assert.Equal(s.T(), common.SeverityError, ev.Severity)
	assert.Contains(s.T(), ev.Message, "schema rejected")
	assert.Contains(s.T(), ev.Description, "unknown top level operator")
}

func (s *CollectionsSuite) TestUpdateCollectionSchemaMissingCollection() {
	s.fx.api.cmdErr = driver.CommandError{Code: 26, Name: "NamespaceNotFound", Message: "ns does not exist"}

	ok, err := s.fx.h.UpdateCollectionSchema(context.Background(), "samples", bson.M{"a": 1})
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
	assert.Equal(s.T(), common.SeverityWarning, s.fx.lastEvent(s.T()).Severity)
}

func (s *CollectionsSuite) TestUpdateCollectionSchemaConnectionFailure() {
	s.fx.api.cmdErr = context.DeadlineExceeded

	ok, err := s.fx.h.UpdateCollectionSchema(context.Background(), "samples", bson.M{"a": 1})
	require.Error(s.T(), err)
	assert.False(s.T(), ok)
	assert.Equal(s.T(), errors.CodeConnectionFailure, errors.GetCode(err))
	assert.Equal(s.T(), common.SeverityCritical, s.fx.lastEvent(s.T()).Severity)
}

func (s *CollectionsSuite) TestUpdateCollectionSchemaEmptySchema() {
	ok, err := s.fx.h.UpdateCollectionSchema(context.Background(), "samples", nil)
	assert.False(s.T(), ok)
	assert.Equal(s.T(), errors.CodeValidationFailure, errors.GetCode(err))
	assert.Empty(s.T(), s.fx.api.commands)
	assert.Empty(s.T(), s.fx.sink.Events())
}
