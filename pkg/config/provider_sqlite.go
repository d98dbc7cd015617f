package config

import (
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS configs (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS slope_sources (
	config_id INTEGER NOT NULL REFERENCES configs(id),
	file      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS storage_configs (
	config_id                   INTEGER NOT NULL REFERENCES configs(id),
	backend_type                TEXT NOT NULL,
	enabled                     BOOLEAN NOT NULL DEFAULT 1,
	sqlite_path                 TEXT,
	timescale_connection_string TEXT
);
CREATE TABLE IF NOT EXISTS listeners (
	config_id   INTEGER NOT NULL REFERENCES configs(id),
	kind        TEXT NOT NULL,
	listen_addr TEXT,
	port        INTEGER,
	cert        TEXT,
	key         TEXT,
	multicore   BOOLEAN NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS tuning (
	config_id INTEGER NOT NULL REFERENCES configs(id),
	name      TEXT NOT NULL,
	value     REAL NOT NULL,
	UNIQUE (config_id, name)
);
INSERT OR IGNORE INTO configs (name) VALUES ('default');
`

const defaultConfigID = `(SELECT id FROM configs WHERE name = 'default')`

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider, creating
// the schema if the database is new
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	slopes, err := s.GetSlopesConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load slope config: %w", err)
	}
	config.Slopes = *slopes

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	config.Ingest, err = s.GetIngestConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ingest config: %w", err)
	}

	config.REST, err = s.GetRESTConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load REST config: %w", err)
	}

	tuning, err := s.GetTuning()
	if err != nil {
		return nil, fmt.Errorf("failed to load tuning: %w", err)
	}
	config.Tuning = *tuning

	return config, nil
}

// GetSlopesConfig returns the slope database location
func (s *SQLiteProvider) GetSlopesConfig() (*SlopesData, error) {
	var file sql.NullString
	err := s.db.QueryRow(`SELECT file FROM slope_sources WHERE config_id = ` + defaultConfigID + ` LIMIT 1`).Scan(&file)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query slope source: %w", err)
	}
	return &SlopesData{File: file.String}, nil
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `
		SELECT backend_type, sqlite_path, timescale_connection_string
		FROM storage_configs
		WHERE config_id = ` + defaultConfigID + ` AND enabled = 1
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}
	for rows.Next() {
		var backendType string
		var sqlitePath, connectionString sql.NullString

		if err := rows.Scan(&backendType, &sqlitePath, &connectionString); err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backendType {
		case "sqlite":
			if sqlitePath.Valid {
				storage.SQLite = &SQLiteData{Path: sqlitePath.String}
			}
		case "timescaledb":
			if connectionString.Valid {
				storage.TimescaleDB = &TimescaleDBData{ConnectionString: connectionString.String}
			}
		case "log":
			storage.Log = &LogData{Enabled: true}
		}
	}
	return storage, rows.Err()
}

func (s *SQLiteProvider) listener(kind string) (listenAddr sql.NullString, port sql.NullInt64, cert, key sql.NullString, multicore bool, found bool, err error) {
	err = s.db.QueryRow(`
		SELECT listen_addr, port, cert, key, multicore
		FROM listeners
		WHERE config_id = `+defaultConfigID+` AND kind = ?
		LIMIT 1`, kind).Scan(&listenAddr, &port, &cert, &key, &multicore)
	if err == sql.ErrNoRows {
		return listenAddr, port, cert, key, false, false, nil
	}
	if err != nil {
		return listenAddr, port, cert, key, false, false, fmt.Errorf("failed to query %s listener: %w", kind, err)
	}
	return listenAddr, port, cert, key, multicore, true, nil
}

// GetIngestConfig returns the ingest listener configuration, nil if absent
func (s *SQLiteProvider) GetIngestConfig() (*IngestData, error) {
	addr, port, _, _, multicore, found, err := s.listener("ingest")
	if err != nil || !found {
		return nil, err
	}
	return &IngestData{ListenAddr: addr.String, Port: int(port.Int64), Multicore: multicore}, nil
}

// GetRESTConfig returns the REST server configuration, nil if absent
func (s *SQLiteProvider) GetRESTConfig() (*RESTServerData, error) {
	addr, port, cert, key, _, found, err := s.listener("rest")
	if err != nil || !found {
		return nil, err
	}
	return &RESTServerData{ListenAddr: addr.String, Port: int(port.Int64), Cert: cert.String, Key: key.String}, nil
}

// GetTuning returns the threshold overrides. Unknown names are ignored so
// an older binary can read a newer database.
func (s *SQLiteProvider) GetTuning() (*TuningData, error) {
	rows, err := s.db.Query(`SELECT name, value FROM tuning WHERE config_id = ` + defaultConfigID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tuning: %w", err)
	}
	defer rows.Close()

	tuning := &TuningData{}
	knobs := tuning.knobs()
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan tuning row: %w", err)
		}
		if field, ok := knobs[name]; ok {
			*field = value
		}
	}
	return tuning, rows.Err()
}

// SaveConfig replaces the default configuration with cfg in one transaction
func (s *SQLiteProvider) SaveConfig(cfg *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"slope_sources", "storage_configs", "listeners", "tuning"} {
		if _, err := tx.Exec(`DELETE FROM ` + table + ` WHERE config_id = ` + defaultConfigID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if cfg.Slopes.File != "" {
		if _, err := tx.Exec(`INSERT INTO slope_sources (config_id, file) VALUES (`+defaultConfigID+`, ?)`, cfg.Slopes.File); err != nil {
			return fmt.Errorf("failed to insert slope source: %w", err)
		}
	}

	insertStorage := `INSERT INTO storage_configs (config_id, backend_type, sqlite_path, timescale_connection_string) VALUES (` + defaultConfigID + `, ?, ?, ?)`
	if cfg.Storage.SQLite != nil {
		if _, err := tx.Exec(insertStorage, "sqlite", cfg.Storage.SQLite.Path, nil); err != nil {
			return fmt.Errorf("failed to insert sqlite storage: %w", err)
		}
	}
	if cfg.Storage.TimescaleDB != nil {
		if _, err := tx.Exec(insertStorage, "timescaledb", nil, cfg.Storage.TimescaleDB.ConnectionString); err != nil {
			return fmt.Errorf("failed to insert timescaledb storage: %w", err)
		}
	}
	if cfg.Storage.Log != nil && cfg.Storage.Log.Enabled {
		if _, err := tx.Exec(insertStorage, "log", nil, nil); err != nil {
			return fmt.Errorf("failed to insert log storage: %w", err)
		}
	}

	insertListener := `INSERT INTO listeners (config_id, kind, listen_addr, port, cert, key, multicore) VALUES (` + defaultConfigID + `, ?, ?, ?, ?, ?, ?)`
	if cfg.Ingest != nil {
		if _, err := tx.Exec(insertListener, "ingest", cfg.Ingest.ListenAddr, cfg.Ingest.Port, nil, nil, cfg.Ingest.Multicore); err != nil {
			return fmt.Errorf("failed to insert ingest listener: %w", err)
		}
	}
	if cfg.REST != nil {
		if _, err := tx.Exec(insertListener, "rest", cfg.REST.ListenAddr, cfg.REST.Port, cfg.REST.Cert, cfg.REST.Key, false); err != nil {
			return fmt.Errorf("failed to insert REST listener: %w", err)
		}
	}

	tuning := cfg.Tuning
	knobs := tuning.knobs()
	names := make([]string, 0, len(knobs))
	for name := range knobs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := *knobs[name]; v != 0 {
			if _, err := tx.Exec(`INSERT INTO tuning (config_id, name, value) VALUES (`+defaultConfigID+`, ?, ?)`, name, v); err != nil {
				return fmt.Errorf("failed to insert tuning %s: %w", name, err)
			}
		}
	}

	return tx.Commit()
}

// IsReadOnly returns false since the SQLite provider can be written
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
