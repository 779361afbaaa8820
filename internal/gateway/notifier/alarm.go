package notifier

import (
	"context"
	"time"

	"pricewatch/internal/logger"
	"pricewatch/internal/market"
)

// AlarmSender turns triggered alarms into text messages.
type AlarmSender struct {
	text   TextNotifier
	format FormatFunc
	nowFn  func() time.Time
}

func NewAlarmSender(text TextNotifier, format FormatFunc) *AlarmSender {
	return &AlarmSender{text: text, format: format, nowFn: time.Now}
}

func (s *AlarmSender) NotifyAlarm(ctx context.Context, a market.Alarm, price float64) error {
	msg := AlarmMessage{Alarm: a, Price: price, Format: s.format, FiredAt: s.nowFn()}
	return s.text.SendText(ctx, msg.Markdown())
}

// Log writes every message to the application log. It is the notifier used
// when no chat integration is configured.
type Log struct{}

func (Log) SendText(_ context.Context, text string) error {
	logger.InfoBlock(text)
	return nil
}

// Multi fans a message out to several notifiers and returns the first error.
type Multi []TextNotifier

func (m Multi) SendText(ctx context.Context, text string) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.SendText(ctx, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}
