package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/config"
	"pricewatch/internal/gateway"
	"pricewatch/internal/gateway/mock"
	"pricewatch/internal/market"
)

func mockRegistry(config.Config) *gateway.Registry {
	reg := gateway.NewRegistry(nil, config.BackfillConfig{})
	reg.Register("mock", func(config.SourceConfig, config.BackfillConfig) (market.Provider, error) {
		return mock.New(mock.Config{AvgPrice: 4000}), nil
	}, true)
	return reg
}

func TestBuildRequiresStore(t *testing.T) {
	_, err := NewAppBuilder(nil).Build()
	assert.Error(t, err)
}

func TestAppPublishesMockPrices(t *testing.T) {
	store := config.NewStore(*config.Default())
	a, err := NewAppBuilder(store, WithRegistry(mockRegistry), WithoutHTTP()).Build()
	require.NoError(t, err)
	a.Summary = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	id := market.NewMarketID("mock", "BTCUSD")
	require.Eventually(t, func() bool {
		e, ok := a.Board().Entry(id)
		return ok && e.Price == "4000.00" && len(e.Graph) > 0
	}, 3*time.Second, 10*time.Millisecond)
	h, ok := a.Board().Headline()
	require.True(t, ok)
	assert.Equal(t, "4000.00", h.Price)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestStartupSummaryListsMarkets(t *testing.T) {
	cfg := *config.Default()
	s := newStartupSummary(cfg, []string{"bitstamp.net"}, nil)
	assert.Equal(t, []string{"mock:BTCUSD [ticker,graph,title]"}, s.Markets)
	assert.Equal(t, "10s", s.UpdateInterval)
	assert.Empty(t, s.HTTPAddr)
}
