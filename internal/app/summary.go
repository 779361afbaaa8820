package app

import (
	"fmt"
	"strings"

	"pricewatch/internal/config"
	statushttp "pricewatch/internal/transport/http/status"
)

type StartupSummary struct {
	Sources        []string
	Markets        []string
	Alarms         int
	UpdateInterval string
	GraphInterval  string
	GraphWindow    string
	GraphCurrency  string
	HTTPAddr       string
}

func newStartupSummary(cfg config.Config, sources []string, srv *statushttp.Server) *StartupSummary {
	markets := make([]string, 0, len(cfg.Markets))
	for _, tm := range cfg.Markets {
		var flags []string
		if tm.Ticker {
			flags = append(flags, "ticker")
		}
		if tm.Graph {
			flags = append(flags, "graph")
		}
		if tm.Title {
			flags = append(flags, "title")
		}
		markets = append(markets, fmt.Sprintf("%s [%s]", tm.ID(), strings.Join(flags, ",")))
	}
	return &StartupSummary{
		Sources:        sources,
		Markets:        markets,
		Alarms:         len(cfg.Alarms),
		UpdateInterval: cfg.UpdateInterval().String(),
		GraphInterval:  cfg.GraphInterval().String(),
		GraphWindow:    fmt.Sprintf("%ds / %d points", cfg.GraphPeriodSec, cfg.GraphRes),
		GraphCurrency:  cfg.GraphCurrency,
		HTTPAddr:       srv.Addr(),
	}
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("  PRICEWATCH STARTUP SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  Sources:   %s\n", formatList(s.Sources))
	fmt.Println("  Markets:")
	if len(s.Markets) == 0 {
		fmt.Println("    - (none)")
	}
	for _, m := range s.Markets {
		fmt.Printf("    - %s\n", m)
	}
	fmt.Printf("  Alarms:    %d\n", s.Alarms)
	fmt.Printf("  Ticker:    every %s\n", s.UpdateInterval)
	fmt.Printf("  Graph:     every %s, %s, in %s\n", s.GraphInterval, s.GraphWindow, s.GraphCurrency)
	if s.HTTPAddr != "" {
		fmt.Printf("  HTTP:      %s\n", s.HTTPAddr)
	}
	fmt.Println(strings.Repeat("=", 60))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
