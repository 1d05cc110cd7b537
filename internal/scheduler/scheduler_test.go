package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/advisor"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/config"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/logger"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/notifier"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/portfolio"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/quotes"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/storage"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/uva"
)

func newTestScheduler(t *testing.T, quotesURL, uvaURL string) (*Scheduler, *storage.Repository, *portfolio.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	if err := db.AutoMigrate(
		&storage.Instrument{}, &storage.Trade{}, &storage.PortfolioPosition{},
		&storage.Quote{}, &storage.CommissionConfig{}, &storage.CustodyFee{},
		&storage.BreakEvenAnalysis{}, &storage.SellAnalysis{},
		&storage.UVAValue{}, &storage.JobRun{}, &storage.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{}
	cfg.Jobs.QuoteInterval = "15m"
	cfg.Jobs.AnalysisInterval = "1h"
	cfg.Jobs.UVACheckInterval = "6h"
	cfg.Jobs.CustodyDay = 1

	log := logger.New("error")
	repo := storage.NewRepository(db)
	portfolioSvc := portfolio.NewService(db, repo, log)
	sched := New(
		quotes.NewClient(quotesURL, time.Second, log),
		uva.NewClient(uvaURL, time.Second, log),
		portfolioSvc, advisor.New(cfg, log), repo,
		notifier.New(cfg, repo, log), cfg, log,
	)
	return sched, repo, portfolioSvc
}

func seedActiveBroker(t *testing.T, repo *storage.Repository) *storage.CommissionConfig {
	t.Helper()
	cfg := &storage.CommissionConfig{
		Key: "banco", Name: "Banco", Active: true,
		BuyPercentage: 0.005, BuyMinimum: 150,
		SellPercentage: 0.005, SellMinimum: 150,
		IVARate:             0.21,
		CustodyExemptAmount: 2_000_000, CustodyMonthlyPercentage: 0.0025,
		CustodyMonthlyMinimum: 300,
	}
	if err := repo.SaveCommissionConfig(cfg); err != nil {
		t.Fatalf("seed broker: %v", err)
	}
	return cfg
}

func seedPosition(t *testing.T, repo *storage.Repository, svc *portfolio.Service, broker *storage.CommissionConfig, symbol string, quantity, price float64) *storage.Instrument {
	t.Helper()
	inst := &storage.Instrument{Symbol: symbol, CompanyName: symbol + " Inc", Active: true}
	if err := repo.SaveInstrument(inst); err != nil {
		t.Fatalf("seed instrument: %v", err)
	}
	_, err := svc.RegisterTrade(portfolio.TradeInput{
		Symbol:    symbol,
		Type:      domain.TradeBuy,
		Quantity:  quantity,
		Price:     price,
		TradeDate: time.Now().AddDate(0, 0, -30),
	}, broker.Schedule())
	if err != nil {
		t.Fatalf("seed trade: %v", err)
	}
	if err := repo.UpsertQuote(&storage.Quote{
		InstrumentID: inst.ID,
		Date:         time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Price:        price,
		Source:       "test",
	}); err != nil {
		t.Fatalf("seed quote: %v", err)
	}
	return inst
}

func TestRunCustody_SkipsChargedMonthUnlessForced(t *testing.T) {
	s, repo, svc := newTestScheduler(t, "http://127.0.0.1:0", "http://127.0.0.1:0")
	broker := seedActiveBroker(t, repo)
	seedPosition(t, repo, svc, broker, "AAPL", 100, 25_000)

	fee, err := s.RunCustody(false)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if fee == nil {
		t.Fatal("first run charged nothing")
	}
	if fee.TotalCharged != 1512.50 {
		t.Errorf("total charged: got %v, want 1512.50", fee.TotalCharged)
	}
	if fee.IsExempt {
		t.Error("portfolio above the exempt amount marked exempt")
	}

	again, err := s.RunCustody(false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again != nil {
		t.Errorf("charged month was charged again: %+v", again)
	}

	forced, err := s.RunCustody(true)
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if forced == nil || forced.TotalCharged != 1512.50 {
		t.Errorf("forced run: got %+v, want recomputed charge 1512.50", forced)
	}

	fees, err := repo.ListCustodyFees(0)
	if err != nil {
		t.Fatalf("list fees: %v", err)
	}
	if len(fees) != 1 {
		t.Errorf("forced run duplicated the month row: %d rows", len(fees))
	}
}

func TestSellAnalysis_SnapshotsAreAppendOnly(t *testing.T) {
	s, repo, svc := newTestScheduler(t, "http://127.0.0.1:0", "http://127.0.0.1:0")
	broker := seedActiveBroker(t, repo)
	inst := seedPosition(t, repo, svc, broker, "MSFT", 10, 150)

	count, err := s.RunSellAnalysis(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if count != 1 {
		t.Fatalf("analyzed %d positions, want 1", count)
	}

	history, err := repo.ListSellAnalyses(inst.ID, 0)
	if err != nil {
		t.Fatalf("list analyses: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("got %d snapshots after one run", len(history))
	}
	first := history[0]
	if !domain.Recommendation(first.Recommendation).Valid() {
		t.Errorf("invalid recommendation %q", first.Recommendation)
	}
	if first.CompositeScore < 0 || first.CompositeScore > 100 {
		t.Errorf("composite out of bounds: %v", first.CompositeScore)
	}

	if _, err := s.RunSellAnalysis(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	history, err = repo.ListSellAnalyses(inst.ID, 0)
	if err != nil {
		t.Fatalf("list analyses: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d snapshots after two runs, want 2", len(history))
	}
	older := history[1]
	if older.ID != first.ID || older.CompositeScore != first.CompositeScore {
		t.Errorf("earlier snapshot mutated: had %+v, now %+v", first, older)
	}

	be, err := repo.LatestBreakEvenAnalysis(inst.ID)
	if err != nil {
		t.Fatalf("break-even snapshot: %v", err)
	}
	if be.BreakEvenPrice <= 150 {
		t.Errorf("break-even %v not above average cost", be.BreakEvenPrice)
	}
}

func TestUpdateUVA_BackfillsEmptySeriesThenSkips(t *testing.T) {
	loc := (&config.Config{}).MarketLocation()
	today := time.Now().In(loc)
	row := func(daysAgo int, value float64) map[string]any {
		return map[string]any{
			"fecha": today.AddDate(0, 0, -daysAgo).Format("2006-01-02"),
			"valor": value,
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/finanzas/indices/uva", func(w http.ResponseWriter, r *http.Request) {
		// Out of order on purpose
		json.NewEncoder(w).Encode([]map[string]any{row(0, 1520), row(2, 1500), row(1, 1510)})
	})
	mux.HandleFunc("/v1/finanzas/indices/uva/ultimo", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(row(0, 1520))
	})
	feed := httptest.NewServer(mux)
	defer feed.Close()

	s, repo, _ := newTestScheduler(t, "http://127.0.0.1:0", feed.URL)

	count, err := s.updateUVA(context.Background())
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if count != 3 {
		t.Errorf("backfilled %d values, want 3", count)
	}

	latest, err := repo.GetLatestUVAValue()
	if err != nil {
		t.Fatalf("latest after backfill: %v", err)
	}
	if got, want := latest.Date.Format("2006-01-02"), today.Format("2006-01-02"); got != want {
		t.Errorf("latest date: got %s, want %s", got, want)
	}
	if latest.Value != 1520 {
		t.Errorf("latest value: got %v, want 1520", latest.Value)
	}

	count, err = s.updateUVA(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if count != 0 {
		t.Errorf("current series refetched %d values", count)
	}
}

func TestWithinTradingHours(t *testing.T) {
	// 2026-01-07 is a Wednesday, 2026-01-10 a Saturday.
	at := func(day, hour, minute int) time.Time {
		return time.Date(2026, 1, day, hour, minute, 0, 0, time.UTC)
	}
	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"midday weekday", at(7, 12, 30), true},
		{"session open", at(7, 11, 0), true},
		{"session close", at(7, 17, 0), true},
		{"before open", at(7, 10, 59), false},
		{"after close", at(7, 17, 1), false},
		{"saturday", at(10, 13, 0), false},
		{"sunday", at(11, 13, 0), false},
	}
	for _, c := range cases {
		if got := withinTradingHours(c.now); got != c.want {
			t.Errorf("%s (%s): got %v, want %v", c.name, c.now, got, c.want)
		}
	}
}

func TestChangeOver(t *testing.T) {
	history := []storage.Quote{{Price: 110}, {Price: 108}, {Price: 100}}

	if got := changeOver(history, 2, 110); got != 10 {
		t.Errorf("two days back: got %v, want 10", got)
	}
	if got := changeOver(history, 5, 110); got != 0 {
		t.Errorf("short history: got %v, want 0", got)
	}
	if got := changeOver(nil, 1, 110); got != 0 {
		t.Errorf("empty history: got %v, want 0", got)
	}
}
