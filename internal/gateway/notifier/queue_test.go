package notifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/market"
)

type collectingNotifier struct {
	mu   sync.Mutex
	got  []string
	done chan struct{}
}

func (c *collectingNotifier) NotifyAlarm(_ context.Context, a market.Alarm, _ float64) error {
	c.mu.Lock()
	c.got = append(c.got, a.ID)
	n := len(c.got)
	c.mu.Unlock()
	if n == 3 {
		close(c.done)
	}
	return nil
}

func TestQueueDeliversInOrder(t *testing.T) {
	sink := &collectingNotifier{done: make(chan struct{})}
	q := NewQueue(sink, 8)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.NotifyAlarm(context.Background(), market.Alarm{ID: id}, 1))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("alarms not delivered")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, sink.got)
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(&collectingNotifier{done: make(chan struct{})}, 1)
	require.NoError(t, q.NotifyAlarm(context.Background(), market.Alarm{ID: "a"}, 1))
	assert.ErrorIs(t, q.NotifyAlarm(context.Background(), market.Alarm{ID: "b"}, 1), ErrQueueFull)
}
