// Package timescaledb records runs and route points in TimescaleDB through gorm.
package timescaledb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/snowrecorder/internal/database"
	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE`

const createHypertableSQL = `SELECT create_hypertable('route_points', 'time', chunk_time_interval => INTERVAL '7 days', if_not_exists => TRUE, migrate_data => TRUE)`

// routeBatchSize bounds the rows per INSERT statement
const routeBatchSize = 500

// Storage holds the configuration for a TimescaleDB recorder
type Storage struct {
	TimescaleDBConn *gorm.DB
	logger          *zap.SugaredLogger
}

// New sets up a new TimescaleDB recorder and migrates its schema
func New(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*Storage, error) {
	db, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}
	t := &Storage{TimescaleDBConn: db, logger: logger}

	logger.Info("creating TimescaleDB extension...")
	if err := db.WithContext(ctx).Exec(createExtensionSQL).Error; err != nil {
		return nil, fmt.Errorf("could not create TimescaleDB extension: %w", err)
	}

	logger.Info("migrating recorder tables...")
	if err := db.WithContext(ctx).AutoMigrate(&database.SessionRecord{}, &database.RunRecord{}, &database.RoutePointRecord{}); err != nil {
		return nil, fmt.Errorf("could not migrate recorder tables: %w", err)
	}

	logger.Info("creating route_points hypertable...")
	if err := db.WithContext(ctx).Exec(createHypertableSQL).Error; err != nil {
		return nil, fmt.Errorf("could not create hypertable: %w", err)
	}

	return t, nil
}

// StartStorageEngine creates a goroutine loop to receive session events and
// send them off to TimescaleDB
func (t *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- session.Event {
	t.logger.Info("starting TimescaleDB run recorder...")
	eventChan := make(chan session.Event, 10)
	wg.Add(1)
	go storage.ProcessEvents(ctx, wg, eventChan, t.StoreEvent, "timescaledb", t.logger)
	return eventChan
}

// StoreEvent stores one session event in TimescaleDB
func (t *Storage) StoreEvent(e session.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db := t.TimescaleDBConn.WithContext(ctx)

	switch e.Kind {
	case session.RunClosed:
		if e.Run == nil {
			return nil
		}
		return db.Transaction(func(tx *gorm.DB) error {
			run := database.NewRunRecord(e.SessionID, *e.Run)
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&run).Error; err != nil {
				return fmt.Errorf("could not store run %d: %w", run.Number, err)
			}
			points := database.NewRoutePointRecords(e.SessionID, e.Run.Number, e.RoutePoints)
			if len(points) == 0 {
				return nil
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(points, routeBatchSize).Error; err != nil {
				return fmt.Errorf("could not store route of run %d: %w", run.Number, err)
			}
			return nil
		})

	case session.SessionEnded:
		if e.Summary == nil {
			return nil
		}
		rec := database.NewSessionRecord(*e.Summary)
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
			return fmt.Errorf("could not store session %s: %w", rec.ID, err)
		}
	}
	return nil
}

// CheckHealth pings the database
func (t *Storage) CheckHealth(ctx context.Context) *storage.HealthData {
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "TimescaleDB handle unavailable", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return storage.CreateHealthData(storage.StatusUnhealthy, "TimescaleDB ping failed", err)
	}
	return storage.CreateHealthData(storage.StatusHealthy, "TimescaleDB reachable", nil)
}
