package notifier

import (
	"fmt"
	"strings"
	"time"

	"pricewatch/internal/market"
	"pricewatch/internal/pkg/text"
)

// maxMessageRunes stays below the Telegram limit of 4096 characters.
const maxMessageRunes = 3800

// FormatFunc renders a price for humans.
type FormatFunc func(price float64) string

// AlarmMessage is the notification sent when an alarm fires.
type AlarmMessage struct {
	Alarm   market.Alarm
	Price   float64
	Format  FormatFunc
	FiredAt time.Time
}

func (m AlarmMessage) format(v float64) string {
	if m.Format == nil {
		return fmt.Sprintf("%.2f", v)
	}
	return m.Format(v)
}

// Headline reads like "BTCUSD rose above 5000.00".
func (m AlarmMessage) Headline() string {
	verb := "rose above"
	if m.Alarm.Direction == market.Below {
		verb = "fell below"
	}
	return fmt.Sprintf("%s %s %s", m.Alarm.MarketID().Market, verb, m.format(m.Alarm.Threshold))
}

// Markdown renders the message for Telegram: the headline, then the alarm
// details in a code block.
func (m AlarmMessage) Markdown() string {
	id := m.Alarm.MarketID()
	var b strings.Builder
	b.WriteString("⏰ " + escapeFence(m.Headline()) + "\n\n```\n")
	fmt.Fprintf(&b, "Exchange: %s\n", escapeFence(id.Source))
	fmt.Fprintf(&b, "Market: %s\n", escapeFence(id.Market))
	fmt.Fprintf(&b, "Condition: %s %s\n", m.Alarm.Direction, m.format(m.Alarm.Threshold))
	fmt.Fprintf(&b, "Price: %s\n", m.format(m.Price))
	if m.Alarm.ID != "" {
		fmt.Fprintf(&b, "Alarm: %s\n", escapeFence(m.Alarm.ID))
	}
	b.WriteString("```")
	if !m.FiredAt.IsZero() {
		b.WriteString("\nTime: " + m.FiredAt.Format("2006-01-02 15:04:05 MST"))
	}
	return text.Truncate(b.String(), maxMessageRunes)
}

func escapeFence(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "```", "'''")
}
