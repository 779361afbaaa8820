//go:build wireinject

package app

import (
	"github.com/google/wire"

	"pricewatch/internal/config"
)

func buildAppWithWire(store *config.Store) (*App, error) {
	wire.Build(
		provideAppBuilder,
		wire.Bind(new(appBuilderDeps), new(*AppBuilder)),
		provideAppFromBuilder,
	)
	return nil, nil
}
