package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/yashgoel75/cleit-cdc/internal/config"
	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

type App struct {
	httpServer *http.Server
	infra      *Infra
	svc        *services

	ctx  context.Context
	stop context.CancelFunc
	bg   sync.WaitGroup
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := setupHTTP(ctx, cfg, infra)
	if err != nil {
		_ = infra.Close(context.Background())
		return nil, err
	}

	a := &App{
		httpServer: &http.Server{
			Addr:              ":" + cfg.AppPort,
			Handler:           svc.router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		infra: infra,
		svc:   svc,
	}
	a.ctx, a.stop = context.WithCancel(context.Background())
	return a, nil
}

// Run starts the session event consumer and serves HTTP until Shutdown.
func (a *App) Run() error {
	a.bg.Add(1)
	a.svc.events.start(a.ctx, a.bg.Done)

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes every open surface, stops the
// event consumer and releases the infrastructure.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.httpServer.Shutdown(ctx)
	a.svc.host.Shutdown()

	a.stop()
	a.bg.Wait()

	if a.svc.events.close != nil {
		err = errors.Join(err, a.svc.events.close(ctx))
	}
	err = errors.Join(err, a.infra.Close(ctx))
	logger.Info("app stopped", map[string]any{"open_surfaces": a.svc.host.Active()})
	return err
}
