package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chrissnell/snowrecorder/internal/managers"
	"github.com/chrissnell/snowrecorder/internal/session"
	"github.com/chrissnell/snowrecorder/internal/slope"
	"github.com/chrissnell/snowrecorder/pkg/config"
	"go.uber.org/zap"
)

// shutdownTimeout bounds the graceful drain of sessions and recorders
const shutdownTimeout = 15 * time.Second

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// LoadPipeline builds the session parameters and the slope database from
// the configuration
func LoadPipeline(configProvider config.ConfigProvider) (session.Params, *slope.Index, error) {
	params := session.DefaultParams()

	tuning, err := configProvider.GetTuning()
	if err != nil {
		return params, nil, fmt.Errorf("error loading tuning: %w", err)
	}
	params = session.ApplyTuning(params, *tuning)

	slopesConfig, err := configProvider.GetSlopesConfig()
	if err != nil {
		return params, nil, fmt.Errorf("error loading slope configuration: %w", err)
	}
	if slopesConfig.File == "" {
		return params, nil, nil
	}
	idx, err := slope.LoadFile(slopesConfig.File)
	if err != nil {
		return params, nil, fmt.Errorf("error loading slopes from %s: %w", slopesConfig.File, err)
	}
	return params, idx, nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	params, slopes, err := LoadPipeline(a.configProvider)
	if err != nil {
		return err
	}
	if slopes.Len() == 0 {
		a.logger.Warn("no slope database configured; runs will not be attributed to slopes")
	} else {
		a.logger.Infof("loaded %d slopes", slopes.Len())
	}

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, a.configProvider, a.logger)
	if err != nil {
		return err
	}

	// Initialize the session manager
	sessionManager := managers.NewSessionManager(ctx, params, slopes, storageManager.EventDistributor, a.logger.Named("session"))

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, &wg, a.configProvider, sessionManager, storageManager, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	a.logger.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Stop the feeds, close every open session so its last run and summary
	// are recorded, then let the recorders drain
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	cm.StopIngest(shutdownCtx)
	sessionManager.StopAll(shutdownCtx, time.Now())
	storageManager.Close(shutdownCtx)

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
