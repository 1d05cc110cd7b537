package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/analysis"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/commission"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/metrics"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/portfolio"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/storage"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/uva"
)

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response{Success: true, Data: data})
}

func (s *Server) created(c *gin.Context, data any, message string) {
	c.JSON(http.StatusCreated, response{Success: true, Data: data, Message: message})
}

// fail maps the error taxonomy onto HTTP statuses. Persistence detail is
// logged, never surfaced.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, response{Success: false, Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, response{Success: false, Error: err.Error()})
	case errors.Is(err, domain.ErrInsufficientQuantity):
		c.JSON(http.StatusConflict, response{Success: false, Error: err.Error()})
	default:
		s.logger.Error("internal error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, response{Success: false, Error: "internal server error"})
	}
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response{Success: false, Error: msg})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func parseBoolQuery(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.Validationf(name, "invalid boolean %q", raw)
	}
	return &v, nil
}

// resolveSchedule loads the schedule for a broker key, falling back to the
// single active config when the key is empty. The schedule is always passed
// down explicitly from here.
func (s *Server) resolveSchedule(brokerKey string) (*storage.CommissionConfig, error) {
	if brokerKey == "" {
		return s.repo.GetActiveCommissionConfig()
	}
	return s.repo.GetCommissionConfigByKey(brokerKey)
}

// --- Instruments ---

func (s *Server) listInstruments(c *gin.Context) {
	var filter storage.InstrumentFilter
	var err error
	if filter.ESG, err = parseBoolQuery(c, "esg"); err != nil {
		s.fail(c, err)
		return
	}
	if filter.Vegan, err = parseBoolQuery(c, "vegan"); err != nil {
		s.fail(c, err)
		return
	}
	if filter.Active, err = parseBoolQuery(c, "active"); err != nil {
		s.fail(c, err)
		return
	}

	instruments, err := s.repo.ListInstruments(filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, instruments)
}

type instrumentRequest struct {
	Symbol             string  `json:"symbol"`
	CompanyName        string  `json:"company_name"`
	Sector             string  `json:"sector"`
	Industry           string  `json:"industry"`
	IsESG              bool    `json:"is_esg"`
	IsVegan            bool    `json:"is_vegan"`
	UnderlyingSymbol   string  `json:"underlying_symbol"`
	Ratio              float64 `json:"ratio"`
	UnderlyingCurrency string  `json:"underlying_currency"`
}

func (r *instrumentRequest) validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return domain.Validationf("symbol", "is required")
	}
	if strings.TrimSpace(r.CompanyName) == "" {
		return domain.Validationf("company_name", "is required")
	}
	if r.Ratio < 0 {
		return domain.Validationf("ratio", "must not be negative")
	}
	return nil
}

func (s *Server) createInstrument(c *gin.Context) {
	var req instrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		s.fail(c, err)
		return
	}

	inst := &storage.Instrument{
		Symbol:             req.Symbol,
		CompanyName:        req.CompanyName,
		Sector:             req.Sector,
		Industry:           req.Industry,
		IsESG:              req.IsESG,
		IsVegan:            req.IsVegan,
		UnderlyingSymbol:   req.UnderlyingSymbol,
		Ratio:              req.Ratio,
		UnderlyingCurrency: req.UnderlyingCurrency,
		Active:             true,
	}
	if err := s.repo.SaveInstrument(inst); err != nil {
		s.fail(c, err)
		return
	}
	s.created(c, inst, "instrument created")
}

func (s *Server) getInstrument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.badRequest(c, "invalid instrument id")
		return
	}
	inst, err := s.repo.GetInstrument(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, inst)
}

func (s *Server) updateInstrument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.badRequest(c, "invalid instrument id")
		return
	}

	inst, err := s.repo.GetInstrument(id)
	if err != nil {
		s.fail(c, err)
		return
	}

	var req instrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		s.fail(c, err)
		return
	}

	inst.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	inst.CompanyName = req.CompanyName
	inst.Sector = req.Sector
	inst.Industry = req.Industry
	inst.IsESG = req.IsESG
	inst.IsVegan = req.IsVegan
	inst.UnderlyingSymbol = req.UnderlyingSymbol
	inst.Ratio = req.Ratio
	inst.UnderlyingCurrency = req.UnderlyingCurrency

	if err := s.repo.UpdateInstrument(inst); err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, inst)
}

func (s *Server) deactivateInstrument(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.badRequest(c, "invalid instrument id")
		return
	}
	if err := s.repo.DeactivateInstrument(id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response{Success: true, Message: "instrument deactivated"})
}

// --- Trades ---

type tradeRequest struct {
	Symbol    string  `json:"symbol"`
	Type      string  `json:"type"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	TradeDate string  `json:"trade_date"` // YYYY-MM-DD, optional
	Note      string  `json:"note"`
	Broker    string  `json:"broker"` // optional, defaults to active config
}

func (s *Server) createTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON body")
		return
	}

	tradeType, ok := domain.ParseTradeType(req.Type)
	if !ok {
		s.fail(c, domain.Validationf("type", "must be BUY or SELL, got %q", req.Type))
		return
	}

	var tradeDate time.Time
	if req.TradeDate != "" {
		var err error
		tradeDate, err = time.Parse("2006-01-02", req.TradeDate)
		if err != nil {
			s.fail(c, domain.Validationf("trade_date", "must be YYYY-MM-DD, got %q", req.TradeDate))
			return
		}
	}

	cfg, err := s.resolveSchedule(req.Broker)
	if err != nil {
		s.fail(c, err)
		return
	}

	trade, err := s.portfolio.RegisterTrade(portfolio.TradeInput{
		Symbol:    req.Symbol,
		Type:      tradeType,
		Quantity:  req.Quantity,
		Price:     req.Price,
		TradeDate: tradeDate,
		Note:      req.Note,
	}, cfg.Schedule())
	if err != nil {
		s.fail(c, err)
		return
	}

	metrics.TradesTotal.WithLabelValues(trade.Type).Inc()
	s.notifier.NotifyTrade(strings.ToUpper(strings.TrimSpace(req.Symbol)), trade.Type,
		trade.Quantity, trade.Price, trade.Commission)
	s.created(c, trade, "trade registered")
}

func (s *Server) listTrades(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 100, 1, 1000)

	var instrumentID uint
	if symbol := c.Query("symbol"); symbol != "" {
		inst, err := s.repo.GetInstrumentBySymbol(symbol)
		if err != nil {
			s.fail(c, err)
			return
		}
		instrumentID = inst.ID
	}

	trades, err := s.repo.ListTrades(instrumentID, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, trades)
}

func (s *Server) getTrade(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.badRequest(c, "invalid trade id")
		return
	}
	trade, err := s.repo.GetTrade(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, trade)
}

// --- Positions ---

func (s *Server) listPositions(c *gin.Context) {
	views, err := s.portfolio.OpenPositions()
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, views)
}

func (s *Server) getPosition(c *gin.Context) {
	view, err := s.portfolio.PositionBySymbol(c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, view)
}

// --- Commission calculators ---

type commissionRequest struct {
	Type           string  `json:"type"`
	Amount         float64 `json:"amount"`
	PortfolioValue float64 `json:"portfolio_value"`
	Broker         string  `json:"broker"`
}

func (s *Server) calculateCommission(c *gin.Context) {
	var req commissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON body")
		return
	}

	opType, ok := domain.ParseTradeType(req.Type)
	if !ok {
		s.fail(c, domain.Validationf("type", "must be BUY or SELL, got %q", req.Type))
		return
	}

	cfg, err := s.resolveSchedule(req.Broker)
	if err != nil {
		s.fail(c, err)
		return
	}

	result, err := commission.Operation(opType, req.Amount, cfg.Schedule())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, gin.H{"broker": cfg.Key, "commission": result})
}

func (s *Server) commissionProjection(c *gin.Context) {
	var req commissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON body")
		return
	}

	opType, ok := domain.ParseTradeType(req.Type)
	if !ok {
		s.fail(c, domain.Validationf("type", "must be BUY or SELL, got %q", req.Type))
		return
	}

	cfg, err := s.resolveSchedule(req.Broker)
	if err != nil {
		s.fail(c, err)
		return
	}

	proj, err := commission.Projection(opType, req.Amount, req.PortfolioValue, cfg.Schedule())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, gin.H{"broker": cfg.Key, "projection": proj})
}

func (s *Server) compareBrokers(c *gin.Context) {
	opType, ok := domain.ParseTradeType(c.DefaultQuery("type", "BUY"))
	if !ok {
		s.fail(c, domain.Validationf("type", "must be BUY or SELL"))
		return
	}
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil {
		s.fail(c, domain.Validationf("amount", "invalid number %q", c.Query("amount")))
		return
	}
	portfolioValue, _ := strconv.ParseFloat(c.Query("portfolio_value"), 64)

	configs, err := s.repo.ListCommissionConfigs()
	if err != nil {
		s.fail(c, err)
		return
	}
	schedules := make([]commission.NamedSchedule, 0, len(configs))
	for _, cfg := range configs {
		schedules = append(schedules, commission.NamedSchedule{
			Key:   cfg.Key,
			Name:  cfg.Name,
			Sched: cfg.Schedule(),
		})
	}

	ranking, err := commission.CompareBrokers(opType, amount, portfolioValue, schedules)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, ranking)
}

func (s *Server) minimumInvestment(c *gin.Context) {
	threshold, err := strconv.ParseFloat(c.Query("threshold"), 64)
	if err != nil {
		s.fail(c, domain.Validationf("threshold", "invalid number %q", c.Query("threshold")))
		return
	}

	cfg, err := s.resolveSchedule(c.Query("broker"))
	if err != nil {
		s.fail(c, err)
		return
	}

	amount, err := commission.MinimumInvestmentForThreshold(threshold, cfg.Schedule())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, gin.H{
		"broker":             cfg.Key,
		"threshold_pct":      threshold,
		"minimum_investment": amount,
	})
}

// --- Broker configs ---

func (s *Server) listBrokers(c *gin.Context) {
	configs, err := s.repo.ListCommissionConfigs()
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, configs)
}

type brokerRequest struct {
	Name                     string  `json:"name"`
	BuyPercentage            float64 `json:"buy_percentage"`
	BuyMinimum               float64 `json:"buy_minimum"`
	SellPercentage           float64 `json:"sell_percentage"`
	SellMinimum              float64 `json:"sell_minimum"`
	IVARate                  float64 `json:"iva_rate"`
	CustodyExemptAmount      float64 `json:"custody_exempt_amount"`
	CustodyMonthlyPercentage float64 `json:"custody_monthly_percentage"`
	CustodyMonthlyMinimum    float64 `json:"custody_monthly_minimum"`
}

func (r *brokerRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.Validationf("name", "is required")
	}
	for field, v := range map[string]float64{
		"buy_percentage":             r.BuyPercentage,
		"buy_minimum":                r.BuyMinimum,
		"sell_percentage":            r.SellPercentage,
		"sell_minimum":               r.SellMinimum,
		"iva_rate":                   r.IVARate,
		"custody_exempt_amount":      r.CustodyExemptAmount,
		"custody_monthly_percentage": r.CustodyMonthlyPercentage,
		"custody_monthly_minimum":    r.CustodyMonthlyMinimum,
	} {
		if v < 0 {
			return domain.Validationf(field, "must not be negative")
		}
	}
	return nil
}

func (s *Server) saveBroker(c *gin.Context) {
	key := strings.ToLower(strings.TrimSpace(c.Param("key")))
	if key == "" {
		s.badRequest(c, "broker key is required")
		return
	}

	var req brokerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		s.fail(c, err)
		return
	}

	cfg, err := s.repo.GetCommissionConfigByKey(key)
	if errors.Is(err, domain.ErrNotFound) {
		cfg = &storage.CommissionConfig{Key: key}
	} else if err != nil {
		s.fail(c, err)
		return
	}

	cfg.Name = req.Name
	cfg.BuyPercentage = req.BuyPercentage
	cfg.BuyMinimum = req.BuyMinimum
	cfg.SellPercentage = req.SellPercentage
	cfg.SellMinimum = req.SellMinimum
	cfg.IVARate = req.IVARate
	cfg.CustodyExemptAmount = req.CustodyExemptAmount
	cfg.CustodyMonthlyPercentage = req.CustodyMonthlyPercentage
	cfg.CustodyMonthlyMinimum = req.CustodyMonthlyMinimum

	if err := s.repo.SaveCommissionConfig(cfg); err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, cfg)
}

func (s *Server) activateBroker(c *gin.Context) {
	key := strings.ToLower(strings.TrimSpace(c.Param("key")))
	cfg, err := s.repo.ActivateCommissionConfig(key)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, cfg)
}

// --- Custody ---

func (s *Server) custodyHistory(c *gin.Context) {
	fees, err := s.repo.ListCustodyFees(parseLimit(c.Query("limit"), 24, 1, 240))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, fees)
}

func (s *Server) runCustody(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	fee, err := s.scheduler.RunCustody(force)
	if err != nil {
		s.fail(c, err)
		return
	}
	if fee == nil {
		c.JSON(http.StatusOK, response{Success: true, Message: "custody already charged this month"})
		return
	}
	s.ok(c, fee)
}

// --- Analysis ---

func (s *Server) breakEven(c *gin.Context) {
	view, err := s.portfolio.PositionBySymbol(c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if view.CurrentPrice <= 0 {
		s.fail(c, domain.Validationf("symbol", "no quote available for %s", view.Instrument.Symbol))
		return
	}

	cfg, err := s.resolveSchedule(c.Query("broker"))
	if err != nil {
		s.fail(c, err)
		return
	}
	sched := cfg.Schedule()

	totalValue, err := s.portfolio.TotalMarketValue()
	if err != nil {
		s.fail(c, err)
		return
	}
	holdingDays := s.portfolio.HoldingDays(view.Instrument.ID, time.Now())
	accrued := analysis.CustodyAccrued(totalValue, view.MarketValue, sched, holdingDays)

	result, err := analysis.BreakEven(view.Position, view.CurrentPrice, sched, accrued)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, gin.H{"symbol": view.Instrument.Symbol, "break_even": result})
}

func (s *Server) runSellAnalysis(c *gin.Context) {
	count, err := s.scheduler.RunSellAnalysis(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, gin.H{"positions_analyzed": count})
}

func (s *Server) sellHistory(c *gin.Context) {
	inst, err := s.repo.GetInstrumentBySymbol(c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	analyses, err := s.repo.ListSellAnalyses(inst.ID, parseLimit(c.Query("limit"), 50, 1, 500))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, analyses)
}

// --- Quotes ---

func (s *Server) quoteHistory(c *gin.Context) {
	inst, err := s.repo.GetInstrumentBySymbol(c.Param("symbol"))
	if err != nil {
		s.fail(c, err)
		return
	}
	history, err := s.repo.ListQuotes(inst.ID, parseLimit(c.Query("limit"), 90, 1, 1000))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, history)
}

func (s *Server) refreshQuotes(c *gin.Context) {
	count, err := s.scheduler.RefreshQuotes(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, gin.H{"quotes_updated": count})
}

// --- UVA ---

func (s *Server) latestUVA(c *gin.Context) {
	value, err := s.repo.GetLatestUVAValue()
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, value)
}

func (s *Server) adjustUVA(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil {
		s.fail(c, domain.Validationf("amount", "invalid number %q", c.Query("amount")))
		return
	}

	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		s.fail(c, domain.Validationf("from", "must be YYYY-MM-DD, got %q", c.Query("from")))
		return
	}

	fromValue, err := s.repo.GetUVAValueOn(from)
	if err != nil {
		s.fail(c, err)
		return
	}

	var toValue *storage.UVAValue
	if rawTo := c.Query("to"); rawTo != "" {
		to, err := time.Parse("2006-01-02", rawTo)
		if err != nil {
			s.fail(c, domain.Validationf("to", "must be YYYY-MM-DD, got %q", rawTo))
			return
		}
		toValue, err = s.repo.GetUVAValueOn(to)
		if err != nil {
			s.fail(c, err)
			return
		}
	} else {
		toValue, err = s.repo.GetLatestUVAValue()
		if err != nil {
			s.fail(c, err)
			return
		}
	}

	adjusted, err := uva.Adjust(amount, fromValue.Value, toValue.Value)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.ok(c, gin.H{
		"original_amount": amount,
		"adjusted_amount": adjusted,
		"from":            fromValue,
		"to":              toValue,
	})
}

// --- Notifications ---

func (s *Server) listNotifications(c *gin.Context) {
	notifications, err := s.repo.ListNotifications(parseLimit(c.Query("limit"), 50, 1, 500))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.ok(c, notifications)
}

func parseLimit(v string, def, min, max int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}
