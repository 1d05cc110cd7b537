// Command custodyrun executes the monthly custody calculation once and
// exits. Useful for backfilling a missed month or re-running after a broker
// config change (with -force).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/advisor"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/config"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/logger"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/notifier"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/portfolio"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/quotes"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/scheduler"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/storage"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/uva"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	force := flag.Bool("force", false, "run even when the month is already charged")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	portfolioSvc := portfolio.NewService(db, repo, log)
	quotesClient := quotes.NewClient(cfg.Quotes.BaseURL, cfg.QuotesTimeout(), log)
	uvaClient := uva.NewClient(cfg.UVA.BaseURL, cfg.UVATimeout(), log)
	n := notifier.New(cfg, repo, log)
	sched := scheduler.New(quotesClient, uvaClient, portfolioSvc, advisor.New(cfg, log), repo, n, cfg, log)

	fee, err := sched.RunCustody(*force)
	if err != nil {
		log.Error("custody run failed", "error", err)
		os.Exit(1)
	}
	if fee == nil {
		log.Info("custody already charged this month, nothing to do")
		return
	}

	log.Info("custody run completed",
		"month", fee.Month,
		"portfolio_value", fee.PortfolioValue,
		"total_charged", fee.TotalCharged,
		"exempt", fee.IsExempt)
}
