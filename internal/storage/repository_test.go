package storage

import (
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	if err := db.AutoMigrate(
		&Instrument{}, &Trade{}, &PortfolioPosition{}, &Quote{},
		&CommissionConfig{}, &CustodyFee{}, &BreakEvenAnalysis{},
		&SellAnalysis{}, &UVAValue{}, &JobRun{}, &Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepository(db)
}

func TestActivateCommissionConfig_SingleActiveInvariant(t *testing.T) {
	repo := newTestRepo(t)

	for _, key := range []string{"galicia", "iol", "balanz"} {
		cfg := &CommissionConfig{Key: key, Name: key, BuyPercentage: 0.005, IVARate: 0.21}
		if err := repo.SaveCommissionConfig(cfg); err != nil {
			t.Fatalf("save %s: %v", key, err)
		}
	}

	if _, err := repo.ActivateCommissionConfig("galicia"); err != nil {
		t.Fatalf("activate galicia: %v", err)
	}
	if _, err := repo.ActivateCommissionConfig("iol"); err != nil {
		t.Fatalf("activate iol: %v", err)
	}

	configs, err := repo.ListCommissionConfigs()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	activeCount := 0
	for _, cfg := range configs {
		if cfg.Active {
			activeCount++
			if cfg.Key != "iol" {
				t.Errorf("wrong active config: %s", cfg.Key)
			}
		}
	}
	if activeCount != 1 {
		t.Errorf("expected exactly one active config, got %d", activeCount)
	}

	active, err := repo.GetActiveCommissionConfig()
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.Key != "iol" {
		t.Errorf("active config: got %s, want iol", active.Key)
	}
}

func TestActivateCommissionConfig_UnknownKey(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.ActivateCommissionConfig("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetActiveCommissionConfig_NoneActive(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetActiveCommissionConfig(); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCustodyFee_MonthUniqueAndExists(t *testing.T) {
	repo := newTestRepo(t)

	fee := &CustodyFee{Month: "2026-08", TotalCharged: 1512.50}
	if err := repo.SaveCustodyFee(fee); err != nil {
		t.Fatalf("save fee: %v", err)
	}

	exists, err := repo.CustodyFeeExists("2026-08")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Error("expected fee for 2026-08 to exist")
	}

	exists, _ = repo.CustodyFeeExists("2026-07")
	if exists {
		t.Error("unexpected fee for 2026-07")
	}

	// Second row for the same month breaches the unique index.
	if err := repo.SaveCustodyFee(&CustodyFee{Month: "2026-08"}); err == nil {
		t.Error("expected error on duplicate month")
	}
}

func TestGetUVAValueOn_FallsBackToEarlierDate(t *testing.T) {
	repo := newTestRepo(t)

	day := func(n int) time.Time { return time.Date(2026, 8, n, 0, 0, 0, 0, time.UTC) }
	for n, v := range map[int]float64{25: 1500, 27: 1510} {
		if err := repo.UpsertUVAValue(&UVAValue{Date: day(n), Value: v}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	// Exact date
	v, err := repo.GetUVAValueOn(day(27))
	if err != nil {
		t.Fatalf("exact date: %v", err)
	}
	if v.Value != 1510 {
		t.Errorf("exact date: got %v, want 1510", v.Value)
	}

	// Weekend/holiday gap falls back to the closest earlier value.
	v, err = repo.GetUVAValueOn(day(26))
	if err != nil {
		t.Fatalf("gap date: %v", err)
	}
	if v.Value != 1500 {
		t.Errorf("gap date: got %v, want 1500", v.Value)
	}

	if _, err := repo.GetUVAValueOn(day(24)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("before series start: expected ErrNotFound, got %v", err)
	}
}

func TestInstrumentSymbolUppercasedAndFiltered(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.SaveInstrument(&Instrument{Symbol: " aapl ", CompanyName: "Apple", IsVegan: true, Active: true}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveInstrument(&Instrument{Symbol: "ko", CompanyName: "Coca-Cola", Active: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	inst, err := repo.GetInstrumentBySymbol("aapl")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if inst.Symbol != "AAPL" {
		t.Errorf("symbol not normalized: %q", inst.Symbol)
	}

	vegan := true
	rows, err := repo.ListInstruments(InstrumentFilter{Vegan: &vegan})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Symbol != "AAPL" {
		t.Errorf("vegan filter: got %d rows", len(rows))
	}
}
