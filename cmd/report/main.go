package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/vkoshel/tradegate/internal/config"
	"github.com/vkoshel/tradegate/internal/journal"
	"github.com/vkoshel/tradegate/internal/logger"
	"github.com/vkoshel/tradegate/internal/risk"
	"github.com/vkoshel/tradegate/pkg/reporting"
)

func main() {
	_ = godotenv.Load()

	var (
		limit    = flag.Int("limit", 50, "number of recent trades to show")
		xlsxPath = flag.String("xlsx", "", "write an Excel report to this path")
	)
	flag.Parse()

	cfg := config.Load()

	if err := run(cfg, *limit, *xlsxPath); err != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, limit int, xlsxPath string) error {
	jrnl, err := journal.Open(cfg.Paths.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jrnl.Close()

	trades, err := jrnl.ListTrades(limit)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}

	limits, err := risk.LoadLimits(cfg.Paths.RiskLimits)
	if err != nil {
		return fmt.Errorf("load risk limits: %w", err)
	}
	store, err := risk.NewFileStore(cfg.Paths.State)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	acct, err := risk.NewAccountant(limits, store, nil, logger.NewNop())
	if err != nil {
		return fmt.Errorf("load risk state: %w", err)
	}
	status := acct.Status()

	console := reporting.NewConsoleReporter()
	console.PrintTrades(trades)
	console.PrintRiskStatus(status)

	if xlsxPath != "" {
		excel := reporting.NewExcelReporter()
		if err := excel.WriteReport(trades, status, xlsxPath); err != nil {
			return fmt.Errorf("write excel report: %w", err)
		}
		fmt.Printf("Excel report written to %s\n", xlsxPath)
	}
	return nil
}
