package domain

import "strings"

// TradeType is the closed set of trade operations.
type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

func (t TradeType) String() string { return string(t) }

func (t TradeType) Valid() bool {
	return t == TradeBuy || t == TradeSell
}

func ParseTradeType(s string) (TradeType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return TradeBuy, true
	case "SELL":
		return TradeSell, true
	default:
		return "", false
	}
}

// Recommendation is the closed set of sell-analysis outcomes.
type Recommendation string

const (
	RecommendHold         Recommendation = "HOLD"
	RecommendTakeProfit1  Recommendation = "TAKE_PROFIT_1"
	RecommendTakeProfit2  Recommendation = "TAKE_PROFIT_2"
	RecommendStopLoss     Recommendation = "STOP_LOSS"
	RecommendTrailingStop Recommendation = "TRAILING_STOP"
)

func (r Recommendation) String() string { return string(r) }

func (r Recommendation) Valid() bool {
	switch r {
	case RecommendHold, RecommendTakeProfit1, RecommendTakeProfit2,
		RecommendStopLoss, RecommendTrailingStop:
		return true
	default:
		return false
	}
}

// RiskLevel classifies a position by volatility and break-even distance.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

func (r RiskLevel) String() string { return string(r) }
