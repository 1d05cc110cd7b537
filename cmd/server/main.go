package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/advisor"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/config"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/logger"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/notifier"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/portfolio"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/quotes"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/scheduler"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/storage"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/uva"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("starting cedears-manager", "port", cfg.Server.Port)

	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	repo := storage.NewRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	portfolioSvc := portfolio.NewService(db, repo, log)
	quotesClient := quotes.NewClient(cfg.Quotes.BaseURL, cfg.QuotesTimeout(), log)
	uvaClient := uva.NewClient(cfg.UVA.BaseURL, cfg.UVATimeout(), log)
	advisorClient := advisor.New(cfg, log)
	n := notifier.New(cfg, repo, log)
	sched := scheduler.New(quotesClient, uvaClient, portfolioSvc, advisorClient, repo, n, cfg, log)
	webServer := web.NewServer(repo, portfolioSvc, sched, n, cfg, log)

	go sched.Run(ctx)

	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	n.NotifyStatus("🤖 CEDEARs Manager iniciado")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	cancel() // stop scheduler

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	n.NotifyStatus("🛑 CEDEARs Manager detenido")
	log.Info("cedears-manager stopped")
}
