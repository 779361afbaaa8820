package notifier

import (
	"context"
	"errors"
	"time"

	"pricewatch/internal/logger"
	"pricewatch/internal/market"
)

// ErrQueueFull is returned when the delivery queue cannot take another alarm.
var ErrQueueFull = errors.New("notification queue full")

type AlarmNotifier interface {
	NotifyAlarm(ctx context.Context, a market.Alarm, price float64) error
}

type alarmJob struct {
	alarm market.Alarm
	price float64
}

// Queue decouples alarm delivery from the fetch that triggered it. A single
// worker delivers in order.
type Queue struct {
	next    AlarmNotifier
	jobs    chan alarmJob
	timeout time.Duration
}

func NewQueue(next AlarmNotifier, size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{next: next, jobs: make(chan alarmJob, size), timeout: time.Minute}
}

func (q *Queue) NotifyAlarm(_ context.Context, a market.Alarm, price float64) error {
	select {
	case q.jobs <- alarmJob{alarm: a, price: price}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued alarms until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-q.jobs:
			q.deliver(ctx, job)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, job alarmJob) {
	sendCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	if err := q.next.NotifyAlarm(sendCtx, job.alarm, job.price); err != nil {
		logger.Warnf("alarm %s: delivery failed: %v", job.alarm.ID, err)
	}
}
