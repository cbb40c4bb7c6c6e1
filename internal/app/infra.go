package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yashgoel75/cleit-cdc/internal/config"
	"github.com/yashgoel75/cleit-cdc/internal/db"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
	"github.com/yashgoel75/cleit-cdc/internal/profile"
	"github.com/yashgoel75/cleit-cdc/internal/redis"
)

// Infra holds the external connections the service owns.
type Infra struct {
	DB       *db.DB
	Redis    *redis.Client
	Profiles profile.Store

	closers []func(context.Context) error
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	database, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	infra.DB = database
	infra.onClose(func(context.Context) error { return database.Close() })

	if err := database.Migrate(ctx); err != nil {
		_ = infra.Close(ctx)
		return nil, err
	}
	logger.Info("database ready", nil)

	rc, err := redis.New(ctx, redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		_ = infra.Close(ctx)
		return nil, err
	}
	infra.Redis = rc
	infra.onClose(func(context.Context) error { return rc.Close() })
	logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr, "db": cfg.RedisDB})

	switch cfg.ProfileStore {
	case "mongo":
		ms, err := profile.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			_ = infra.Close(ctx)
			return nil, err
		}
		infra.onClose(ms.Close)
		if err := ms.EnsureIndexes(ctx); err != nil {
			_ = infra.Close(ctx)
			return nil, err
		}
		infra.Profiles = ms
	case "", "postgres":
		infra.Profiles = profile.NewPostgresStore(database.DB)
	default:
		_ = infra.Close(ctx)
		return nil, fmt.Errorf("unknown PROFILE_STORE %q", cfg.ProfileStore)
	}
	logger.Info("profile store ready", map[string]any{"store": cfg.ProfileStore})

	return infra, nil
}

func (i *Infra) onClose(fn func(context.Context) error) {
	i.closers = append(i.closers, fn)
}

// Close releases connections in reverse order of opening.
func (i *Infra) Close(ctx context.Context) error {
	var errs []error
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}
