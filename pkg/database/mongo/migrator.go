package mongo

import (
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemongo "github.com/golang-migrate/migrate/v4/database/mongodb"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/logging"
)

// Migrator applies versioned collection and schema bootstrap scripts from
// a local directory against the handler's current database.
type Migrator struct {
	h   *Handler
	log logging.Logger
}

// NewMigrator wires a migrator over a driver-backed handler.
func NewMigrator(h *Handler, log logging.Logger) (*Migrator, error) {
	if h == nil {
		return nil, errors.ValidationFailure("handler must not be nil")
	}
	if h.api.Client() == nil {
		return nil, errors.ValidationFailure("migrations need a driver-backed handler")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Migrator{h: h, log: log.Named("migrate")}, nil
}

// Up applies every pending migration. A source with nothing new to apply
// is not an error.
func (m *Migrator) Up(migrationsDir string) error {
	db := m.h.DBName()

	drv, err := migratemongo.WithInstance(m.h.api.Client(), &migratemongo.Config{DatabaseName: db})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create migration driver")
	}

	mig, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, db, drv)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "open migration source "+migrationsDir)
	}

	if err := mig.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := mig.Version()
		return errors.Wrap(err, errors.CodeInternal, fmt.Sprintf("apply migrations (current version: %d)", version))
	}

	version, dirty, err := mig.Version()
	if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
		m.log.Warn("migration version unavailable", logging.Err(err))
	}

	m.log.Info("database migrations completed",
		logging.String("database", db),
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}
