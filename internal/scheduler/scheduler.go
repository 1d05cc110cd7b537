package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/advisor"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/analysis"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/commission"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/config"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/logger"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/metrics"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/notifier"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/portfolio"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/quotes"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/storage"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/uva"
)

const (
	jobQuotes   = "quote_refresh"
	jobUVA      = "uva_update"
	jobCustody  = "monthly_custody"
	jobAnalysis = "sell_analysis"
)

type Scheduler struct {
	quotes    *quotes.Client
	uva       *uva.Client
	portfolio *portfolio.Service
	advisor   *advisor.Client
	repo      *storage.Repository
	notifier  *notifier.Notifier
	config    *config.Config
	logger    *logger.Logger
	loc       *time.Location
}

func New(
	quotesClient *quotes.Client,
	uvaClient *uva.Client,
	portfolioSvc *portfolio.Service,
	advisorClient *advisor.Client,
	repo *storage.Repository,
	n *notifier.Notifier,
	cfg *config.Config,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		quotes:    quotesClient,
		uva:       uvaClient,
		portfolio: portfolioSvc,
		advisor:   advisorClient,
		repo:      repo,
		notifier:  n,
		config:    cfg,
		logger:    log,
		loc:       cfg.MarketLocation(),
	}
}

// Run drives all periodic jobs until ctx is cancelled. Each job ticks on
// its own interval; period idempotence is enforced by data checks, not
// locks, so a manual trigger racing a tick is benign.
func (s *Scheduler) Run(ctx context.Context) {
	quoteTicker := time.NewTicker(s.config.QuoteInterval())
	analysisTicker := time.NewTicker(s.config.AnalysisInterval())
	uvaTicker := time.NewTicker(s.config.UVACheckInterval())
	custodyTicker := time.NewTicker(1 * time.Hour)
	defer quoteTicker.Stop()
	defer analysisTicker.Stop()
	defer uvaTicker.Stop()
	defer custodyTicker.Stop()

	s.logger.Info("scheduler started",
		"quote_interval", s.config.QuoteInterval().String(),
		"analysis_interval", s.config.AnalysisInterval().String(),
		"uva_interval", s.config.UVACheckInterval().String())

	// Prime market data on start
	s.cycle(jobQuotes, func() (int, error) { return s.refreshQuotes(ctx) })
	s.cycle(jobUVA, func() (int, error) { return s.updateUVA(ctx) })

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-quoteTicker.C:
			if s.isWithinTradingHours() {
				s.cycle(jobQuotes, func() (int, error) { return s.refreshQuotes(ctx) })
			} else {
				s.logger.Debug("outside trading hours, skipping quote refresh")
			}
		case <-analysisTicker.C:
			s.cycle(jobAnalysis, func() (int, error) { return s.runSellAnalysis(ctx) })
		case <-uvaTicker.C:
			s.cycle(jobUVA, func() (int, error) { return s.updateUVA(ctx) })
		case <-custodyTicker.C:
			if s.custodyDue() {
				s.cycle(jobCustody, func() (int, error) { return s.runCustody(false) })
			}
		}
	}
}

// cycle wraps one job execution with panic recovery, the JobRun audit row
// and run counters.
func (s *Scheduler) cycle(job string, fn func() (int, error)) {
	run := &storage.JobRun{
		RunID:     uuid.NewString(),
		Job:       job,
		StartedAt: time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in job", "job", job, "panic", fmt.Sprint(r))
			s.notifier.NotifyError(job, fmt.Errorf("panic: %v", r))
			run.FinishedAt = time.Now()
			run.Error = fmt.Sprintf("panic: %v", r)
			s.saveRun(run, "panic")
		}
	}()

	items, err := fn()
	run.FinishedAt = time.Now()
	run.Items = items

	status := "ok"
	if err != nil {
		status = "error"
		run.Error = err.Error()
		s.logger.Error("job failed", "job", job, "run_id", run.RunID, "error", err)
	} else {
		run.Success = true
		s.logger.Info("job completed", "job", job, "run_id", run.RunID, "items", items)
	}
	s.saveRun(run, status)
}

func (s *Scheduler) saveRun(run *storage.JobRun, status string) {
	metrics.JobRunsTotal.WithLabelValues(run.Job, status).Inc()
	if err := s.repo.SaveJobRun(run); err != nil {
		s.logger.Error("save job run", "job", run.Job, "error", err)
	}
}

// RefreshQuotes fetches the live board and upserts one observation per
// active instrument for today. Safe to call manually.
func (s *Scheduler) RefreshQuotes(ctx context.Context) (int, error) {
	var count int
	var err error
	s.cycle(jobQuotes, func() (int, error) {
		count, err = s.refreshQuotes(ctx)
		return count, err
	})
	return count, err
}

func (s *Scheduler) refreshQuotes(ctx context.Context) (int, error) {
	board, err := s.quotes.FetchCEDEARQuotes(ctx)
	if err != nil {
		return 0, err
	}

	active := true
	instruments, err := s.repo.ListInstruments(storage.InstrumentFilter{Active: &active})
	if err != nil {
		return 0, err
	}

	bySymbol := make(map[string]quotes.MarketQuote, len(board))
	for _, q := range board {
		bySymbol[q.Symbol] = q
	}

	today := dateOnly(time.Now().In(s.loc))
	count := 0
	for _, inst := range instruments {
		q, ok := bySymbol[inst.Symbol]
		if !ok {
			continue
		}
		err := s.repo.UpsertQuote(&storage.Quote{
			InstrumentID: inst.ID,
			Date:         today,
			Price:        q.Price,
			Volume:       q.Volume,
			Source:       "data912",
		})
		if err != nil {
			s.logger.Error("upsert quote", "symbol", inst.Symbol, "error", err)
			continue
		}
		count++
	}

	metrics.QuotesFetched.Add(float64(count))
	return count, nil
}

// updateUVA stores today's UVA value. Skipped when already stored, which
// makes the daily period check. An empty local series triggers a full
// history backfill so historical adjustments have reference values.
func (s *Scheduler) updateUVA(ctx context.Context) (int, error) {
	today := dateOnly(time.Now().In(s.loc))
	latest, err := s.repo.GetLatestUVAValue()
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.backfillUVA(ctx)
	case err != nil:
		return 0, err
	case !latest.Date.Before(today):
		s.logger.Debug("uva value already current", "date", latest.Date.Format("2006-01-02"))
		return 0, nil
	}

	value, err := s.uva.FetchLatest(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.repo.UpsertUVAValue(&storage.UVAValue{
		Date:  dateOnly(value.Date),
		Value: value.Value,
	}); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Scheduler) backfillUVA(ctx context.Context) (int, error) {
	history, err := s.uva.FetchHistory(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, v := range history {
		if err := s.repo.UpsertUVAValue(&storage.UVAValue{
			Date:  dateOnly(v.Date),
			Value: v.Value,
		}); err != nil {
			s.logger.Error("upsert uva value", "date", v.Date.Format("2006-01-02"), "error", err)
			continue
		}
		count++
	}
	s.logger.Info("uva history backfilled", "values", count)
	return count, nil
}

// custodyDue reports whether the monthly custody run should fire: the
// configured day of month has passed and no fee row exists for the month.
func (s *Scheduler) custodyDue() bool {
	now := time.Now().In(s.loc)
	if now.Day() < s.config.Jobs.CustodyDay {
		return false
	}
	exists, err := s.repo.CustodyFeeExists(now.Format("2006-01"))
	if err != nil {
		s.logger.Error("custody period check", "error", err)
		return false
	}
	return !exists
}

// RunCustody computes and persists the custody fee for the current month
// using the active broker schedule. With force=false the run is skipped
// when the month is already charged.
func (s *Scheduler) RunCustody(force bool) (*storage.CustodyFee, error) {
	var fee *storage.CustodyFee
	var err error
	s.cycle(jobCustody, func() (int, error) {
		fee, err = s.computeCustody(force)
		if err != nil {
			return 0, err
		}
		if fee == nil {
			return 0, nil
		}
		return 1, nil
	})
	return fee, err
}

func (s *Scheduler) runCustody(force bool) (int, error) {
	fee, err := s.computeCustody(force)
	if err != nil {
		return 0, err
	}
	if fee == nil {
		return 0, nil
	}
	return 1, nil
}

func (s *Scheduler) computeCustody(force bool) (*storage.CustodyFee, error) {
	month := time.Now().In(s.loc).Format("2006-01")

	if !force {
		exists, err := s.repo.CustodyFeeExists(month)
		if err != nil {
			return nil, err
		}
		if exists {
			s.logger.Info("custody already charged", "month", month)
			return nil, nil
		}
	}

	cfg, err := s.repo.GetActiveCommissionConfig()
	if err != nil {
		return nil, err
	}

	value, err := s.portfolio.TotalMarketValue()
	if err != nil {
		return nil, err
	}
	metrics.PortfolioValue.Set(value)

	result := commission.Custody(value, cfg.Schedule())

	fee := &storage.CustodyFee{
		Month:            month,
		BrokerKey:        cfg.Key,
		PortfolioValue:   result.PortfolioValue,
		ApplicableAmount: result.ApplicableAmount,
		MonthlyFee:       result.MonthlyFee,
		IVAAmount:        result.IVA,
		TotalCharged:     result.TotalMonthly,
		IsExempt:         result.IsExempt,
	}
	if err := s.repo.SaveCustodyFee(fee); err != nil {
		return nil, err
	}

	s.notifier.NotifyCustody(month, fee.TotalCharged, fee.IsExempt)
	return fee, nil
}

// RunSellAnalysis produces break-even and sell-score snapshots for every
// open position. Safe to call manually.
func (s *Scheduler) RunSellAnalysis(ctx context.Context) (int, error) {
	var count int
	var err error
	s.cycle(jobAnalysis, func() (int, error) {
		count, err = s.runSellAnalysis(ctx)
		return count, err
	})
	return count, err
}

func (s *Scheduler) runSellAnalysis(ctx context.Context) (int, error) {
	cfg, err := s.repo.GetActiveCommissionConfig()
	if err != nil {
		return 0, err
	}
	sched := cfg.Schedule()

	views, err := s.portfolio.OpenPositions()
	if err != nil {
		return 0, err
	}
	metrics.OpenPositions.Set(float64(len(views)))

	totalValue := 0.0
	for _, v := range views {
		totalValue += v.MarketValue
	}

	// Market-condition proxy: average one-week change across the held
	// universe.
	histories := make(map[uint][]storage.Quote, len(views))
	var weekSum float64
	var weekN int
	for _, v := range views {
		history, err := s.repo.ListQuotes(v.Instrument.ID, 30)
		if err != nil {
			s.logger.Error("load quote history", "symbol", v.Instrument.Symbol, "error", err)
			continue
		}
		histories[v.Instrument.ID] = history
		if v.CurrentPrice > 0 {
			if ch := changeOver(history, 5, v.CurrentPrice); ch != 0 {
				weekSum += ch
				weekN++
			}
		}
	}
	marketChange1w := 0.0
	if weekN > 0 {
		marketChange1w = weekSum / float64(weekN)
	}

	now := time.Now().In(s.loc)
	count := 0
	for _, view := range views {
		if view.CurrentPrice <= 0 {
			s.logger.Debug("no quote for position, skipping", "symbol", view.Instrument.Symbol)
			continue
		}
		if err := s.analyzePosition(ctx, view, histories[view.Instrument.ID], sched, totalValue, marketChange1w, now); err != nil {
			s.logger.Error("analyze position", "symbol", view.Instrument.Symbol, "error", err)
			continue
		}
		count++
	}
	return count, nil
}

func (s *Scheduler) analyzePosition(ctx context.Context, view portfolio.PositionView, history []storage.Quote, sched commission.Schedule, totalValue, marketChange1w float64, now time.Time) error {
	pos := view.Position
	inst := view.Instrument

	holdingDays := s.portfolio.HoldingDays(inst.ID, now)

	custodyAccrued := analysis.CustodyAccrued(totalValue, view.MarketValue, sched, holdingDays)

	be, err := analysis.BreakEven(pos, view.CurrentPrice, sched, custodyAccrued)
	if err != nil {
		return err
	}
	if err := s.repo.SaveBreakEvenAnalysis(&storage.BreakEvenAnalysis{
		InstrumentID:   inst.ID,
		CalcDate:       now,
		BreakEvenPrice: be.BreakEvenPrice,
		CurrentPrice:   be.CurrentPrice,
		DistanceAbs:    be.DistanceAbs,
		DistancePct:    be.DistancePct,
		SellCommission: be.SellCommission,
		CustodyAccrued: be.CustodyAccrued,
	}); err != nil {
		return err
	}

	// History is newest first; volatility wants oldest first.
	prices := make([]float64, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		prices = append(prices, history[i].Price)
	}

	score := analysis.Score(analysis.ScoreInput{
		ProfitPct:        view.PnLPercent,
		Change1d:         changeOver(history, 1, view.CurrentPrice),
		Change1w:         changeOver(history, 5, view.CurrentPrice),
		Change1m:         changeOver(history, 21, view.CurrentPrice),
		HoldingDays:      holdingDays,
		Volatility:       analysis.Volatility(prices),
		MarketChange1w:   marketChange1w,
		BreakEvenDistPct: be.DistancePct,
	})

	snapshot := &storage.SellAnalysis{
		InstrumentID:     inst.ID,
		CalcDate:         now,
		TechnicalScore:   score.Technical,
		FundamentalScore: score.Fundamental,
		ProfitScore:      score.Profit,
		TimeScore:        score.Time,
		MarketScore:      score.Market,
		CompositeScore:   score.Composite,
		ProfitPct:        view.PnLPercent,
		Recommendation:   score.Recommend.String(),
		RiskLevel:        score.Risk.String(),
	}

	if score.Recommend != domain.RecommendHold {
		metrics.SellSignalsTotal.WithLabelValues(score.Recommend.String()).Inc()
		s.notifier.NotifySellSignal(inst.Symbol, score.Recommend, score.Composite, view.PnLPercent)

		if s.advisor.Enabled() {
			commentary, err := s.advisor.Commentary(ctx, advisor.PositionBrief{
				Symbol:         inst.Symbol,
				CompanyName:    inst.CompanyName,
				Quantity:       pos.Quantity,
				AverageCost:    pos.AverageCost,
				CurrentPrice:   view.CurrentPrice,
				ProfitPct:      view.PnLPercent,
				CompositeScore: score.Composite,
				Recommendation: score.Recommend.String(),
				RiskLevel:      score.Risk.String(),
				HoldingDays:    holdingDays,
			})
			if err != nil {
				s.logger.Error("advisor commentary", "symbol", inst.Symbol, "error", err)
			} else {
				snapshot.Commentary = commentary
			}
		}
	}

	return s.repo.SaveSellAnalysis(snapshot)
}

// changeOver is the percent change from n trading days ago to now.
func changeOver(newestFirst []storage.Quote, n int, current float64) float64 {
	if len(newestFirst) <= n {
		return 0
	}
	return analysis.PctChange(newestFirst[n].Price, current)
}

func (s *Scheduler) isWithinTradingHours() bool {
	return withinTradingHours(time.Now().In(s.loc))
}

func withinTradingHours(now time.Time) bool {
	weekday := now.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}

	totalMinutes := now.Hour()*60 + now.Minute()

	// BYMA continuous session: 11:00 - 17:00 ART
	return totalMinutes >= 660 && totalMinutes <= 1020
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
