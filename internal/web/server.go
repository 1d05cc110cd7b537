package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/config"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/logger"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/metrics"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/notifier"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/portfolio"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/scheduler"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/storage"
)

type Server struct {
	httpServer *http.Server
	repo       *storage.Repository
	portfolio  *portfolio.Service
	scheduler  *scheduler.Scheduler
	notifier   *notifier.Notifier
	config     *config.Config
	logger     *logger.Logger
}

func NewServer(
	repo *storage.Repository,
	portfolioSvc *portfolio.Service,
	sched *scheduler.Scheduler,
	n *notifier.Notifier,
	cfg *config.Config,
	log *logger.Logger,
) *Server {
	s := &Server{
		repo:      repo,
		portfolio: portfolioSvc,
		scheduler: sched,
		notifier:  n,
		config:    cfg,
		logger:    log,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(metrics.Middleware())

	s.routes(router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String())
	}
}

func (s *Server) routes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")

	api.GET("/instruments", s.listInstruments)
	api.POST("/instruments", s.createInstrument)
	api.GET("/instruments/:id", s.getInstrument)
	api.PUT("/instruments/:id", s.updateInstrument)
	api.DELETE("/instruments/:id", s.deactivateInstrument)

	api.POST("/trades", s.createTrade)
	api.GET("/trades", s.listTrades)
	api.GET("/trades/:id", s.getTrade)

	api.GET("/positions", s.listPositions)
	api.GET("/positions/:symbol", s.getPosition)

	api.POST("/commissions/calculate", s.calculateCommission)
	api.POST("/commissions/projection", s.commissionProjection)
	api.GET("/commissions/compare", s.compareBrokers)
	api.GET("/commissions/minimum-investment", s.minimumInvestment)

	api.GET("/brokers", s.listBrokers)
	api.PUT("/brokers/:key", s.saveBroker)
	api.POST("/brokers/:key/activate", s.activateBroker)

	api.GET("/custody/history", s.custodyHistory)
	api.POST("/custody/run", s.runCustody)

	api.GET("/analysis/breakeven/:symbol", s.breakEven)
	api.POST("/analysis/sell/run", s.runSellAnalysis)
	api.GET("/analysis/sell/:symbol/history", s.sellHistory)

	api.GET("/quotes/:symbol/history", s.quoteHistory)
	api.POST("/quotes/refresh", s.refreshQuotes)

	api.GET("/uva/latest", s.latestUVA)
	api.GET("/uva/adjust", s.adjustUVA)

	api.GET("/notifications", s.listNotifications)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
