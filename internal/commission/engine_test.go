package commission

import (
	"math"
	"testing"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
)

func galicia() Schedule {
	return Schedule{
		BuyPercentage:            0.005,
		BuyMinimum:               150,
		SellPercentage:           0.005,
		SellMinimum:              150,
		IVARate:                  0.21,
		CustodyExemptAmount:      2_000_000,
		CustodyMonthlyPercentage: 0.0025,
		CustodyMonthlyMinimum:    300,
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

// --- Operation ---

func TestOperation_PercentageAboveMinimum(t *testing.T) {
	res, err := Operation(domain.TradeBuy, 100_000, galicia())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "base", res.Base, 500)
	approx(t, "iva", res.IVA, 105)
	approx(t, "total", res.Total, 605)
	approx(t, "net", res.Net, 99_395)
	if res.MinApplied {
		t.Error("minimum floor should not apply at 100000")
	}
}

func TestOperation_MinimumFloorApplied(t *testing.T) {
	res, err := Operation(domain.TradeBuy, 10_000, galicia())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// base 50 < minimum 150
	approx(t, "base", res.Base, 150)
	approx(t, "total", res.Total, 150*1.21)
	if !res.MinApplied {
		t.Error("minimum floor should apply at 10000")
	}
}

func TestOperation_TotalNeverBelowMinimumWithIVA(t *testing.T) {
	s := galicia()
	floor := s.BuyMinimum * (1 + s.IVARate)
	for _, amount := range []float64{1, 100, 10_000, 30_000, 1_000_000} {
		res, err := Operation(domain.TradeBuy, amount, s)
		if err != nil {
			t.Fatalf("amount %v: %v", amount, err)
		}
		if res.Total < floor-1e-9 {
			t.Errorf("amount %v: total %v below floor %v", amount, res.Total, floor)
		}
		approx(t, "net", res.Net, amount-res.Total)
	}
}

func TestOperation_SellNetIsProceedsMinusCosts(t *testing.T) {
	res, err := Operation(domain.TradeSell, 200_000, galicia())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "net", res.Net, 200_000-res.Total)
}

func TestOperation_RejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []float64{0, -1, -100_000} {
		if _, err := Operation(domain.TradeBuy, amount, galicia()); !domain.IsValidation(err) {
			t.Errorf("amount %v: expected validation error, got %v", amount, err)
		}
	}
}

func TestOperation_RejectsUnknownType(t *testing.T) {
	if _, err := Operation(domain.TradeType("SHORT"), 1000, galicia()); !domain.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// --- Custody ---

func TestCustody_ExemptBelowThreshold(t *testing.T) {
	for _, value := range []float64{0, 1_000_000, 2_000_000} {
		res := Custody(value, galicia())
		if !res.IsExempt {
			t.Errorf("value %v: expected exempt", value)
		}
		approx(t, "monthly", res.TotalMonthly, 0)
		approx(t, "annual", res.AnnualFee, 0)
	}
}

func TestCustody_WorkedExample(t *testing.T) {
	res := Custody(2_500_000, galicia())
	if res.IsExempt {
		t.Fatal("expected non-exempt")
	}
	approx(t, "applicable", res.ApplicableAmount, 500_000)
	approx(t, "monthly fee", res.MonthlyFee, 1250)
	approx(t, "total monthly", res.TotalMonthly, 1512.50)
	approx(t, "annual", res.AnnualFee, 1512.50*12)
}

func TestCustody_MinimumApplies(t *testing.T) {
	// applicable 50000 * 0.0025 = 125 < 300 minimum
	res := Custody(2_050_000, galicia())
	approx(t, "monthly fee", res.MonthlyFee, 300)
	approx(t, "total monthly", res.TotalMonthly, 363)
}

// --- Projection ---

func TestProjection_ComposesOperationAndCustody(t *testing.T) {
	proj, err := Projection(domain.TradeBuy, 500_000, 2_500_000, galicia())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantOp := 500_000 * 0.005 * 1.21
	wantCustody := 1512.50 * 12
	approx(t, "total first year", proj.TotalFirstYear, wantOp+wantCustody)
	approx(t, "impact pct", proj.BreakEvenImpactPct, (wantOp+wantCustody)/500_000*100)
}

// --- CompareBrokers ---

func TestCompareBrokers_RanksAscending(t *testing.T) {
	cheap := galicia()
	cheap.BuyPercentage = 0.002
	cheap.BuyMinimum = 0

	schedules := []NamedSchedule{
		{Key: "galicia", Name: "Banco Galicia", Sched: galicia()},
		{Key: "cheap", Name: "Discount Broker", Sched: cheap},
	}

	ranking, err := CompareBrokers(domain.TradeBuy, 100_000, 0, schedules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranking[0].Key != "cheap" || ranking[1].Key != "galicia" {
		t.Errorf("unexpected ranking order: %s, %s", ranking[0].Key, ranking[1].Key)
	}
	if ranking[0].Rank != 1 || ranking[1].Rank != 2 {
		t.Errorf("ranks not assigned: %d, %d", ranking[0].Rank, ranking[1].Rank)
	}
}

func TestCompareBrokers_StableOnTiesAndIdempotent(t *testing.T) {
	schedules := []NamedSchedule{
		{Key: "a", Sched: galicia()},
		{Key: "b", Sched: galicia()},
		{Key: "c", Sched: galicia()},
	}

	first, err := CompareBrokers(domain.TradeBuy, 100_000, 0, schedules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if first[i].Key != want {
			t.Errorf("tie order broken at %d: got %s, want %s", i, first[i].Key, want)
		}
	}

	second, _ := CompareBrokers(domain.TradeBuy, 100_000, 0, schedules)
	for i := range first {
		if first[i].Key != second[i].Key || first[i].Rank != second[i].Rank {
			t.Errorf("re-run changed ranking at %d", i)
		}
	}
}

// --- MinimumInvestmentForThreshold ---

func TestMinimumInvestment_WorkedExample(t *testing.T) {
	amount, err := MinimumInvestmentForThreshold(2.5, galicia())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "amount", amount, 7260)

	// At that amount the effective rate equals the threshold.
	res, err := Operation(domain.TradeBuy, amount, galicia())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, "effective pct", res.EffectivePct, 2.5)
}

func TestMinimumInvestment_UnreachableThreshold(t *testing.T) {
	// Flat rate is 0.605%; asking for 0.1% can never be met.
	if _, err := MinimumInvestmentForThreshold(0.1, galicia()); !domain.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestMinimumInvestment_RejectsNonPositive(t *testing.T) {
	if _, err := MinimumInvestmentForThreshold(0, galicia()); !domain.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
