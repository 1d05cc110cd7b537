package analysis

import (
	"math"
	"testing"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
)

func TestScore_Deterministic(t *testing.T) {
	in := ScoreInput{
		ProfitPct: 12, Change1d: -1.5, Change1w: -4, Change1m: 8,
		HoldingDays: 120, Volatility: 2.5, MarketChange1w: -2,
		BreakEvenDistPct: 5,
	}
	first := Score(in)
	second := Score(in)
	if first != second {
		t.Errorf("same input produced different snapshots:\n%+v\n%+v", first, second)
	}
}

func TestScore_CompositeWithinBounds(t *testing.T) {
	inputs := []ScoreInput{
		{},
		{ProfitPct: 100, Change1d: -50, Change1w: -50, Change1m: -50, HoldingDays: 5000, Volatility: 50, MarketChange1w: -50, BreakEvenDistPct: -90},
		{ProfitPct: -100, Change1d: 50, Change1w: 50, Change1m: 50, MarketChange1w: 50, BreakEvenDistPct: 90},
	}
	for _, in := range inputs {
		res := Score(in)
		if res.Composite < 0 || res.Composite > 100 {
			t.Errorf("composite out of bounds: %v for %+v", res.Composite, in)
		}
		if !res.Recommend.Valid() {
			t.Errorf("invalid recommendation %q", res.Recommend)
		}
	}
}

func TestScore_StopLossOnDeepLoss(t *testing.T) {
	res := Score(ScoreInput{ProfitPct: -9})
	if res.Recommend != domain.RecommendStopLoss {
		t.Errorf("deep loss: got %s, want STOP_LOSS", res.Recommend)
	}
}

func TestScore_HoldOnFlatPosition(t *testing.T) {
	res := Score(ScoreInput{ProfitPct: 0, HoldingDays: 10})
	if res.Recommend != domain.RecommendHold {
		t.Errorf("flat recent position: got %s, want HOLD", res.Recommend)
	}
}

func TestScore_TakeProfitTiersNeedProfit(t *testing.T) {
	// Strong urgency signals but little profit: never TAKE_PROFIT.
	res := Score(ScoreInput{
		ProfitPct: 5, Change1d: -8, Change1w: -12, Change1m: -15,
		HoldingDays: 400, MarketChange1w: -6,
	})
	if res.Recommend == domain.RecommendTakeProfit1 || res.Recommend == domain.RecommendTakeProfit2 {
		t.Errorf("take-profit without the profit gate: %s", res.Recommend)
	}

	// Large profit with the market and momentum turning: TAKE_PROFIT_2.
	res = Score(ScoreInput{
		ProfitPct: 30, Change1d: -6, Change1w: -10, Change1m: 10,
		HoldingDays: 400, MarketChange1w: -5,
	})
	if res.Recommend != domain.RecommendTakeProfit2 {
		t.Errorf("expected TAKE_PROFIT_2, got %s (composite %v)", res.Recommend, res.Composite)
	}
}

func TestRiskLevel_Thresholds(t *testing.T) {
	cases := []struct {
		vol, dist float64
		want      domain.RiskLevel
	}{
		{0.5, 10, domain.RiskLow},
		{2, 5, domain.RiskMedium},
		{4, 0, domain.RiskHigh},
		{4, -15, domain.RiskCritical},
	}
	for _, c := range cases {
		got := riskLevel(c.vol, c.dist)
		if got != c.want {
			t.Errorf("riskLevel(%v, %v): got %s, want %s", c.vol, c.dist, got, c.want)
		}
	}
}

func TestVolatility(t *testing.T) {
	if v := Volatility([]float64{100, 100}); v != 0 {
		t.Errorf("short series: got %v, want 0", v)
	}
	if v := Volatility([]float64{100, 100, 100, 100}); v != 0 {
		t.Errorf("flat series: got %v, want 0", v)
	}
	v := Volatility([]float64{100, 110, 99, 108, 97})
	if v <= 0 {
		t.Errorf("choppy series: got %v, want > 0", v)
	}
}

func TestPctChange(t *testing.T) {
	if got := PctChange(100, 110); math.Abs(got-10) > 1e-9 {
		t.Errorf("got %v, want 10", got)
	}
	if got := PctChange(0, 110); got != 0 {
		t.Errorf("zero base: got %v, want 0", got)
	}
}
