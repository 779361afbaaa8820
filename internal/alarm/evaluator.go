// Package alarm fires one-shot price threshold alarms.
package alarm

import (
	"context"

	"pricewatch/internal/logger"
	"pricewatch/internal/market"
)

// Store is the alarm list owner. RemoveAlarm must report true to exactly one
// caller per alarm id.
type Store interface {
	AlarmsFor(id market.MarketID) []market.Alarm
	RemoveAlarm(id string) (bool, error)
}

type Notifier interface {
	NotifyAlarm(ctx context.Context, a market.Alarm, price float64) error
}

type Evaluator struct {
	store    Store
	notifier Notifier
}

func NewEvaluator(store Store, notifier Notifier) *Evaluator {
	return &Evaluator{store: store, notifier: notifier}
}

// Evaluate checks every alarm of the market against price and returns the
// alarms this call fired. An alarm is claimed by removing it from the store
// before the notifier runs, so concurrent evaluations can never fire it
// twice.
func (e *Evaluator) Evaluate(ctx context.Context, id market.MarketID, price float64) []market.Alarm {
	var fired []market.Alarm
	for _, a := range e.store.AlarmsFor(id) {
		if !a.Triggered(price) {
			continue
		}
		removed, err := e.store.RemoveAlarm(a.ID)
		if err != nil {
			// a removal that only failed to persist still claims the alarm
			logger.Errorf("alarm %s: remove failed: %v", a.ID, err)
		}
		if !removed {
			continue
		}
		logger.Infof("alarm %s fired: %s %s %.8g (price %.8g)", a.ID, id, a.Direction, a.Threshold, price)
		fired = append(fired, a)
		if e.notifier == nil {
			continue
		}
		if err := e.notifier.NotifyAlarm(ctx, a, price); err != nil {
			logger.Warnf("alarm %s: notify failed: %v", a.ID, err)
		}
	}
	return fired
}
