package config

import (
	"fmt"
	"strings"

	"pricewatch/internal/market"
)

// validate rejects configurations the engine cannot run with. Individual
// market entries are not checked here: the engine skips unusable ones with a
// warning so one bad entry never blocks the rest.
func validate(c *Config) error {
	if c.UpdateIntervalSec <= 0 {
		return fmt.Errorf("update_interval_sec must be > 0")
	}
	if c.GraphIntervalSec <= 0 {
		return fmt.Errorf("graph_interval_sec must be > 0")
	}
	if c.GraphPeriodSec <= 0 {
		return fmt.Errorf("graph_period_sec must be > 0")
	}
	if c.GraphRes <= 0 {
		return fmt.Errorf("graph_res must be > 0")
	}
	if len(c.GraphCurrency) != 3 {
		return fmt.Errorf("graph_currency must be a 3-letter currency code, got %q", c.GraphCurrency)
	}
	for i, a := range c.Alarms {
		if err := validateAlarm(a); err != nil {
			return fmt.Errorf("alarms[%d]: %w", i, err)
		}
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Backfill.validate(); err != nil {
		return err
	}
	return nil
}

func validateAlarm(a market.Alarm) error {
	if _, err := market.ParseDirection(string(a.Direction)); err != nil {
		return err
	}
	if a.Threshold <= 0 {
		return fmt.Errorf("price must be > 0")
	}
	return a.MarketID().Validate()
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

func (b *BackfillConfig) validate() error {
	if b.TIDStep <= 0 {
		return fmt.Errorf("backfill.tid_step must be > 0")
	}
	if b.MaxPages <= 0 {
		return fmt.Errorf("backfill.max_pages must be > 0")
	}
	return nil
}
