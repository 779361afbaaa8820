package app

import "pricewatch/internal/config"

type appBuilderDeps interface {
	Build() (*App, error)
}

func provideAppFromBuilder(b appBuilderDeps) (*App, error) {
	return b.Build()
}

func provideAppBuilder(store *config.Store) *AppBuilder {
	return NewAppBuilder(store)
}
