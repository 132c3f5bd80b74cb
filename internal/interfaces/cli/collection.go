package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/evolvehq/evoinfra/pkg/database/mongo"
	"github.com/evolvehq/evoinfra/pkg/errors"
)

var (
	collectionDatabase   string
	collectionValidator  string
	collectionCappedSize int64
	collectionCappedDocs int64
	collectionSchemaFile string
	collectionLevel      string
	collectionAction     string
	collectionMigrations string
)

// withMongo builds the database facade for one command invocation and tears
// it down afterwards. The --database flag switches the handler off the
// configured database before the operation runs.
func withMongo(cmd *cobra.Command, fn func(ctx context.Context, h *mongo.Handler, cliCtx *CLIContext) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := cliCtx.opCtx(cmd)
	defer cancel()

	h, err := mongo.Connect(ctx, cliCtx.Config.Database, cliCtx.Recorder, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = h.Close(closeCtx)
	}()

	if collectionDatabase != "" && collectionDatabase != h.DBName() {
		if err := h.ChangeDatabase(ctx, collectionDatabase); err != nil {
			return err
		}
	}

	return fn(ctx, h, cliCtx)
}

// newCollectionCmd creates the collection command group.
func newCollectionCmd() *cobra.Command {
	collectionCmd := &cobra.Command{
		Use:   "collection",
		Short: "Administer MongoDB collections and their schemas",
	}
	collectionCmd.PersistentFlags().StringVar(&collectionDatabase, "database", "",
		"operate on this database instead of the configured one")

	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionCreate(cmd, args[0])
		},
	}
	createCmd.Flags().StringVar(&collectionValidator, "validator", "", "JSON file with a $jsonSchema validator document")
	createCmd.Flags().Int64Var(&collectionCappedSize, "capped-size", 0, "create capped at this many bytes")
	createCmd.Flags().Int64Var(&collectionCappedDocs, "capped-docs", 0, "cap the document count (needs --capped-size)")

	dropCmd := &cobra.Command{
		Use:   "drop NAME",
		Short: "Drop a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionDrop(cmd, args[0])
		},
	}

	schemaCmd := &cobra.Command{
		Use:   "schema NAME",
		Short: "Replace a collection's schema validator",
		Long: "Replace the JSON-schema validator on an existing collection via collMod.\n" +
			"A validator the server rejects is reported and skipped; the collection\n" +
			"keeps its previous schema.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionSchema(cmd, args[0])
		},
	}
	schemaCmd.Flags().StringVar(&collectionSchemaFile, "file", "", "JSON file with the $jsonSchema document (required)")
	schemaCmd.Flags().StringVar(&collectionLevel, "level", "", "validation level (strict, moderate)")
	schemaCmd.Flags().StringVar(&collectionAction, "action", "", "validation action (error, warn)")
	_ = schemaCmd.MarkFlagRequired("file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the collections in the current database",
		Args:  cobra.NoArgs,
		RunE:  runCollectionList,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE:  runCollectionMigrate,
	}
	migrateCmd.Flags().StringVar(&collectionMigrations, "dir", "./migrations", "directory holding migration files")

	collectionCmd.AddCommand(createCmd, dropCmd, schemaCmd, listCmd, migrateCmd)
	return collectionCmd
}

func runCollectionCreate(cmd *cobra.Command, name string) error {
	var opts []mongo.CreateOption

	if collectionValidator != "" {
		schema, err := readJSONDoc(collectionValidator)
		if err != nil {
			return err
		}
		opts = append(opts, mongo.WithValidator(schema))
	}
	if collectionCappedDocs > 0 && collectionCappedSize <= 0 {
		return errors.ValidationFailure("--capped-docs needs --capped-size")
	}
	if collectionCappedSize > 0 {
		opts = append(opts, mongo.WithCapped(collectionCappedSize, collectionCappedDocs))
	}

	return withMongo(cmd, func(ctx context.Context, h *mongo.Handler, _ *CLIContext) error {
		ok, err := h.CreateCollection(ctx, name, opts...)
		if err != nil {
			return err
		}
		if !ok {
			PrintSkipped(cmd, fmt.Sprintf("collection %s.%s already exists", h.DBName(), name))
			return nil
		}
		PrintSuccess(cmd, fmt.Sprintf("collection %s.%s created", h.DBName(), name))
		return nil
	})
}

func runCollectionDrop(cmd *cobra.Command, name string) error {
	return withMongo(cmd, func(ctx context.Context, h *mongo.Handler, _ *CLIContext) error {
		ok, err := h.DropCollection(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			PrintSkipped(cmd, fmt.Sprintf("collection %s.%s does not exist", h.DBName(), name))
			return nil
		}
		PrintSuccess(cmd, fmt.Sprintf("collection %s.%s dropped", h.DBName(), name))
		return nil
	})
}

func runCollectionSchema(cmd *cobra.Command, name string) error {
	schema, err := readJSONDoc(collectionSchemaFile)
	if err != nil {
		return err
	}

	var opts []mongo.SchemaOption
	if collectionLevel != "" {
		opts = append(opts, mongo.WithValidationLevel(collectionLevel))
	}
	if collectionAction != "" {
		opts = append(opts, mongo.WithValidationAction(collectionAction))
	}

	return withMongo(cmd, func(ctx context.Context, h *mongo.Handler, _ *CLIContext) error {
		ok, err := h.UpdateCollectionSchema(ctx, name, schema, opts...)
		if err != nil {
			return err
		}
		if !ok {
			PrintSkipped(cmd, fmt.Sprintf("schema update on %s.%s", h.DBName(), name))
			return nil
		}
		PrintSuccess(cmd, fmt.Sprintf("schema on %s.%s updated", h.DBName(), name))
		return nil
	})
}

func runCollectionList(cmd *cobra.Command, _ []string) error {
	return withMongo(cmd, func(ctx context.Context, h *mongo.Handler, _ *CLIContext) error {
		names, err := h.CollectionNames(ctx)
		if err != nil {
			return err
		}
		return PrintResult(cmd, collectionList{Database: h.DBName(), Collections: names})
	})
}

func runCollectionMigrate(cmd *cobra.Command, _ []string) error {
	return withMongo(cmd, func(ctx context.Context, h *mongo.Handler, cliCtx *CLIContext) error {
		migrator, err := mongo.NewMigrator(h, cliCtx.Logger)
		if err != nil {
			return err
		}
		if err := migrator.Up(collectionMigrations); err != nil {
			return err
		}
		PrintSuccess(cmd, fmt.Sprintf("migrations from %s applied to %s", collectionMigrations, h.DBName()))
		return nil
	})
}

// collectionList is the result payload of collection list.
type collectionList struct {
	Database    string   `json:"database"`
	Collections []string `json:"collections"`
}

func (l collectionList) TableHeaders() []string { return []string{"Database", "Collection"} }

func (l collectionList) TableRows() [][]string {
	rows := make([][]string, 0, len(l.Collections))
	for _, name := range l.Collections {
		rows = append(rows, []string{l.Database, name})
	}
	return rows
}

func (l collectionList) String() string {
	if len(l.Collections) == 0 {
		return fmt.Sprintf("database %s has no collections", l.Database)
	}
	out := fmt.Sprintf("collections in %s:", l.Database)
	for _, name := range l.Collections {
		out += "\n  " + name
	}
	return out
}

// readJSONDoc loads a JSON document from disk into a bson map.
func readJSONDoc(path string) (bson.M, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLocalIOFailure, "read "+path)
	}
	doc := bson.M{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationFailure, "parse "+path)
	}
	return doc, nil
}
