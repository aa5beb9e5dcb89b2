// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the jobs, closes the Discord session and disconnects
// MongoDB. Running batches are cancelled and awaited first.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	var errs []error

	if svc := deps.Services; svc != nil {
		if svc.Runner != nil {
			svc.Runner.Stop()
		}
		if svc.removeInteractionHandler != nil {
			svc.removeInteractionHandler()
		}
	}

	if deps.Guild != nil {
		logger.Info("closing Discord session")
		if err := deps.Guild.Close(); err != nil {
			logger.Error("Discord close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
