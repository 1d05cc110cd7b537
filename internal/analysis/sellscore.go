package analysis

import (
	"math"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
)

// Composite weights. Fixed configuration constants, they must sum to 1.
const (
	weightTechnical   = 0.25
	weightFundamental = 0.15
	weightProfit      = 0.25
	weightTime        = 0.15
	weightMarket      = 0.20
)

// Recommendation thresholds on the composite score.
const (
	takeProfit2Score  = 80.0
	takeProfit1Score  = 65.0
	trailingStopScore = 50.0

	takeProfit1Pct = 10.0  // profit pct gates for the take-profit tiers
	takeProfit2Pct = 20.0
	stopLossPct    = -8.0
)

// ScoreInput carries everything the sell-score needs. All fields are plain
// observations; the function itself is deterministic.
type ScoreInput struct {
	ProfitPct        float64 // unrealized gain over cost basis, percent
	Change1d         float64 // price changes, percent
	Change1w         float64
	Change1m         float64
	HoldingDays      int
	Volatility       float64 // stddev of daily returns, percent
	MarketChange1w   float64 // broad-market proxy change, percent
	BreakEvenDistPct float64 // current price vs break-even, percent
}

// ScoreResult is one immutable scoring snapshot.
type ScoreResult struct {
	Technical   float64               `json:"technical"`
	Fundamental float64               `json:"fundamental"`
	Profit      float64               `json:"profit"`
	Time        float64               `json:"time"`
	Market      float64               `json:"market"`
	Composite   float64               `json:"composite"`
	Recommend   domain.Recommendation `json:"recommendation"`
	Risk        domain.RiskLevel      `json:"risk_level"`
}

// Score computes the 0-100 sell-urgency composite and maps it, together with
// the profit sign, onto a recommendation and a risk level.
func Score(in ScoreInput) ScoreResult {
	res := ScoreResult{
		Technical:   technicalScore(in),
		Fundamental: fundamentalScore(in),
		Profit:      profitScore(in.ProfitPct),
		Time:        timeScore(in.HoldingDays),
		Market:      marketScore(in.MarketChange1w),
	}

	res.Composite = clamp(
		res.Technical*weightTechnical+
			res.Fundamental*weightFundamental+
			res.Profit*weightProfit+
			res.Time*weightTime+
			res.Market*weightMarket,
		0, 100)

	res.Recommend = recommend(res.Composite, in.ProfitPct)
	res.Risk = riskLevel(in.Volatility, in.BreakEvenDistPct)
	return res
}

// technicalScore rises when recent momentum turns against the position:
// a falling price is a reason to exit.
func technicalScore(in ScoreInput) float64 {
	// Weighted momentum, short windows dominate.
	momentum := in.Change1d*0.5 + in.Change1w*0.3 + in.Change1m*0.2
	// momentum -10% -> 100, +10% -> 0
	return clamp(50-momentum*5, 0, 100)
}

// fundamentalScore proxies overextension: the further above one month ago,
// the more of the easy gain is already realized.
func fundamentalScore(in ScoreInput) float64 {
	return clamp(50+in.Change1m*2, 0, 100)
}

// profitScore rewards realizing large gains and flags deep losses.
func profitScore(profitPct float64) float64 {
	switch {
	case profitPct >= 0:
		// 0% -> 0, 25%+ -> 100
		return clamp(profitPct*4, 0, 100)
	default:
		// losses build urgency toward the stop-loss region
		return clamp(-profitPct*6, 0, 100)
	}
}

// timeScore decays holding inertia: the longer held, the easier to let go.
func timeScore(days int) float64 {
	if days <= 0 {
		return 0
	}
	// saturates around one year
	return clamp(float64(days)/365*100, 0, 100)
}

func marketScore(marketChange1w float64) float64 {
	// A falling market argues for exiting; +5% -> 0, -5% -> 100.
	return clamp(50-marketChange1w*10, 0, 100)
}

func recommend(composite, profitPct float64) domain.Recommendation {
	if profitPct <= stopLossPct {
		return domain.RecommendStopLoss
	}
	switch {
	case composite >= takeProfit2Score && profitPct >= takeProfit2Pct:
		return domain.RecommendTakeProfit2
	case composite >= takeProfit1Score && profitPct >= takeProfit1Pct:
		return domain.RecommendTakeProfit1
	case composite >= trailingStopScore && profitPct > 0:
		return domain.RecommendTrailingStop
	default:
		return domain.RecommendHold
	}
}

// riskLevel maps volatility and break-even distance onto the closed set.
// Being below break-even in a volatile name is the critical combination.
func riskLevel(volatility, breakEvenDistPct float64) domain.RiskLevel {
	score := volatility * 10
	if breakEvenDistPct < 0 {
		score += -breakEvenDistPct * 2
	}
	switch {
	case score >= 60:
		return domain.RiskCritical
	case score >= 35:
		return domain.RiskHigh
	case score >= 15:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// PctChange is the percent change from from to to, zero-safe.
func PctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// Volatility is the standard deviation of day-over-day percent changes in
// the given price series (oldest first).
func Volatility(prices []float64) float64 {
	if len(prices) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns = append(returns, PctChange(prices[i-1], prices[i]))
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}
