package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/storage"
	"github.com/chrissnell/snowrecorder/internal/storage/logrecorder"
	"github.com/chrissnell/snowrecorder/internal/storage/sqlite"
	"github.com/chrissnell/snowrecorder/internal/storage/timescaledb"
	"github.com/chrissnell/snowrecorder/pkg/config"
	"go.uber.org/zap"
)

const healthCheckInterval = time.Minute

// StorageManager holds our active run recorders
type StorageManager struct {
	Engines          []StorageEngine
	EventDistributor chan session.Event
	Health           *storage.HealthManager

	// History is the SQLite recorder when one is configured, for reads of
	// sessions no longer held in memory.
	History *sqlite.Storage

	logger    *zap.SugaredLogger
	done      chan struct{}
	closeOnce sync.Once
}

// StorageEngine holds a recorder's interface as well as a channel for
// passing events to it
type StorageEngine struct {
	Name   string
	Engine storage.StorageEngineInterface
	C      chan<- session.Event
}

// NewStorageManager creates a StorageManager object, populated with all configured recorders
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, logger *zap.SugaredLogger) (*StorageManager, error) {
	storageConfig, err := configProvider.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading storage configuration: %w", err)
	}

	s := &StorageManager{
		EventDistributor: make(chan session.Event, 20),
		Health:           storage.NewHealthManager(),
		logger:           logger,
		done:             make(chan struct{}),
	}

	// Check the configuration for the supported recorders and enable them if found
	if storageConfig.SQLite != nil && storageConfig.SQLite.Path != "" {
		if err := s.AddEngine(ctx, wg, "sqlite", storageConfig); err != nil {
			return nil, fmt.Errorf("could not add SQLite recorder: %w", err)
		}
	}

	if storageConfig.TimescaleDB != nil && storageConfig.TimescaleDB.ConnectionString != "" {
		if err := s.AddEngine(ctx, wg, "timescaledb", storageConfig); err != nil {
			return nil, fmt.Errorf("could not add TimescaleDB recorder: %w", err)
		}
	}

	if storageConfig.Log != nil && storageConfig.Log.Enabled {
		if err := s.AddEngine(ctx, wg, "log", storageConfig); err != nil {
			return nil, fmt.Errorf("could not add log recorder: %w", err)
		}
	}

	// Start our event distributor to fan events out to the recorders
	wg.Add(1)
	go s.startEventDistributor(ctx, wg)

	return s, nil
}

// AddEngine adds a new recorder of name engineName
func (s *StorageManager) AddEngine(ctx context.Context, wg *sync.WaitGroup, engineName string, c *config.StorageData) error {
	se := StorageEngine{Name: engineName}

	switch engineName {
	case "sqlite":
		engine, err := sqlite.New(c.SQLite.Path, s.logger.Named("sqlite"))
		if err != nil {
			return err
		}
		s.History = engine
		se.Engine = engine
		storage.StartHealthMonitor(ctx, wg, s.Health, engineName, engine, healthCheckInterval, s.logger)
	case "timescaledb":
		engine, err := timescaledb.New(ctx, c.TimescaleDB.ConnectionString, s.logger.Named("timescaledb"))
		if err != nil {
			return err
		}
		se.Engine = engine
		storage.StartHealthMonitor(ctx, wg, s.Health, engineName, engine, healthCheckInterval, s.logger)
	case "log":
		se.Engine = logrecorder.New(s.logger.Named("recorder"))
	default:
		return fmt.Errorf("unknown recorder: %s", engineName)
	}

	se.C = se.Engine.StartStorageEngine(ctx, wg)
	s.Engines = append(s.Engines, se)
	s.logger.Infof("run recorder [%s] enabled", engineName)
	return nil
}

// Close stops accepting events. Events already queued are delivered to the
// recorders before their channels are closed. Close blocks until the
// distributor has finished or ctx is cancelled.
func (s *StorageManager) Close(ctx context.Context) {
	s.closeOnce.Do(func() { close(s.EventDistributor) })
	select {
	case <-s.done:
	case <-ctx.Done():
	}
}

// startEventDistributor receives events from sessions and fans them out to
// the recorders
func (s *StorageManager) startEventDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(s.done)

	for {
		select {
		case e, ok := <-s.EventDistributor:
			if !ok {
				for _, engine := range s.Engines {
					close(engine.C)
				}
				return
			}
			// With no recorders configured the event is discarded silently
			for _, engine := range s.Engines {
				select {
				case engine.C <- e:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
