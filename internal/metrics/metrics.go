// Package metrics provides Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts registered trades, partitioned by type.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cedears_trades_total",
		Help: "Total number of trades registered",
	}, []string{"type"})

	// JobRunsTotal counts scheduler cycles by job and outcome.
	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cedears_job_runs_total",
		Help: "Total scheduler job runs",
	}, []string{"job", "status"})

	// QuotesFetched counts quote rows upserted by the refresh job.
	QuotesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cedears_quotes_fetched_total",
		Help: "Quote observations ingested",
	})

	// OpenPositions tracks positions with non-zero holdings.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cedears_open_positions",
		Help: "Number of open portfolio positions",
	})

	// PortfolioValue tracks the last computed total market value.
	PortfolioValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cedears_portfolio_value",
		Help: "Total portfolio market value in pesos",
	})

	// SellSignalsTotal counts non-HOLD recommendations produced.
	SellSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cedears_sell_signals_total",
		Help: "Sell-analysis recommendations other than HOLD",
	}, []string{"recommendation"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cedears_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cedears_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records per-request metrics. The route pattern is used for the
// path label to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
