// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/promohub/internal/app/platform/discord"
	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/app/system/indexes"
	"github.com/dalemusser/promohub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the record store for the configured backend and creates
// the Discord session.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts configured from environment", zap.Int("count", n))
	}

	deps := DBDeps{Services: &Services{}}
	clock := clockwork.NewRealClock()

	switch appCfg.StoreBackend {
	case BackendMongo:
		client, err := connectMongo(ctx, appCfg)
		if err != nil {
			logger.Error("MongoDB connect failed", zap.Error(err))
			return DBDeps{}, err
		}
		deps.MongoClient = client
		deps.MongoDatabase = client.Database(appCfg.MongoDatabase)
		deps.Records = resource.NewMongo(deps.MongoDatabase, clock)
		logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	case BackendAPI:
		rc, err := resource.NewREST(resource.RESTConfig{
			BaseURL:      appCfg.APIBaseURL,
			ClientID:     appCfg.APIClientID,
			ClientSecret: appCfg.APIClientSecret,
			TokenURL:     appCfg.APITokenURL,
			Logger:       logger.Named("records"),
		})
		if err != nil {
			return DBDeps{}, err
		}
		deps.Records = rc
		logger.Info("using records API", zap.String("base_url", appCfg.APIBaseURL))

	default:
		return DBDeps{}, fmt.Errorf("unknown store backend %q", appCfg.StoreBackend)
	}

	guild, err := discord.New(discord.Config{
		Token:   appCfg.DiscordToken,
		GuildID: appCfg.DiscordGuildID,
		Logger:  logger.Named("discord"),
	})
	if err != nil {
		if deps.MongoClient != nil {
			_ = deps.MongoClient.Disconnect(ctx)
		}
		return DBDeps{}, err
	}
	deps.Guild = guild

	return deps, nil
}

func connectMongo(ctx context.Context, appCfg AppConfig) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureSchema creates the collection indexes. Nothing to do for the API
// backend, which owns its own schema.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}
