package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pricewatch/internal/config"
	"pricewatch/internal/engine"
	"pricewatch/internal/gateway/notifier"
	"pricewatch/internal/logger"
	"pricewatch/internal/presentation"
	statushttp "pricewatch/internal/transport/http/status"
)

// App wires the polling engine to its collaborators and runs them together.
type App struct {
	store      *config.Store
	engine     *engine.Engine
	dispatcher *presentation.Dispatcher
	board      *presentation.Board
	alarms     *notifier.Queue
	http       *statushttp.Server
	Summary    *StartupSummary
}

// NewApp builds the application from an opened configuration store.
func NewApp(store *config.Store) (*App, error) {
	if store == nil {
		return nil, fmt.Errorf("nil config store")
	}
	logger.SetLevel(store.Snapshot().Config.App.LogLevel)
	return buildAppWithWire(store)
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.engine == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.store.Path() != "" {
		a.store.Watch()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.dispatcher.Run(ctx)
	})
	group.Go(func() error {
		return a.alarms.Run(ctx)
	})
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("status http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.engine.Run(ctx)
	})
	return group.Wait()
}

// Board exposes the in-memory presentation state.
func (a *App) Board() *presentation.Board {
	if a == nil {
		return nil
	}
	return a.board
}
