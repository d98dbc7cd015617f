// Package migrate applies versioned SQL schema migrations to a database/sql
// handle inside transactions and records the applied version.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents a single schema step
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Execer is satisfied by both *sql.DB and *sql.Tx
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// Source supplies migrations and tracks the applied version
type Source interface {
	Migrations() ([]Migration, error)
	EnsureVersionTable(db *sql.DB) error
	CurrentVersion(db *sql.DB) (int, error)
	SetVersion(db Execer, version int) error
}

// Migrator runs migrations from a Source against a database
type Migrator struct {
	db     *sql.DB
	source Source
	logger *zap.SugaredLogger
}

// NewMigrator creates a new migrator. logger may be nil.
func NewMigrator(db *sql.DB, source Source, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{db: db, source: source, logger: logger}
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.To(-1)
}

// To migrates up or down to targetVersion. -1 means the latest version.
func (m *Migrator) To(targetVersion int) error {
	current, err := m.Version()
	if err != nil {
		return err
	}

	migrations, err := m.source.Migrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	if targetVersion == -1 {
		targetVersion = 0
		if len(migrations) > 0 {
			targetVersion = migrations[len(migrations)-1].Version
		}
	}

	if targetVersion < current {
		for i := len(migrations) - 1; i >= 0; i-- {
			mg := migrations[i]
			if mg.Version > targetVersion && mg.Version <= current {
				if err := m.apply(mg, false); err != nil {
					return fmt.Errorf("failed to roll back migration %d: %w", mg.Version, err)
				}
			}
		}
		return nil
	}

	for _, mg := range migrations {
		if mg.Version > current && mg.Version <= targetVersion {
			if err := m.apply(mg, true); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", mg.Version, err)
			}
		}
	}
	return nil
}

// Version returns the applied schema version, creating the version table if
// it does not exist yet
func (m *Migrator) Version() (int, error) {
	if err := m.source.EnsureVersionTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	v, err := m.source.CurrentVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return v, nil
}

// Pending returns the migrations above the applied version, in order
func (m *Migrator) Pending() ([]Migration, error) {
	current, err := m.Version()
	if err != nil {
		return nil, err
	}
	migrations, err := m.source.Migrations()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mg := range migrations {
		if mg.Version > current {
			pending = append(pending, mg)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})
	return pending, nil
}

func (m *Migrator) apply(mg Migration, up bool) error {
	stmt, direction, newVersion := mg.Up, "up", mg.Version
	if !up {
		stmt, direction, newVersion = mg.Down, "down", mg.Version-1
	}
	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", mg.Version, direction)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if err := m.source.SetVersion(tx, newVersion); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("applied migration", "version", mg.Version, "name", mg.Name, "direction", direction)
	return nil
}
