// Package commission computes operation commissions, custody fees and their
// projections for a broker fee schedule. Everything here is pure: callers
// pass the schedule explicitly, nothing reads process-wide state.
package commission

import (
	"sort"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
)

// Schedule is a broker fee schedule. Percentages are fractions (0.005 = 0.5%).
type Schedule struct {
	BuyPercentage  float64
	BuyMinimum     float64
	SellPercentage float64
	SellMinimum    float64
	IVARate        float64

	CustodyExemptAmount      float64
	CustodyMonthlyPercentage float64
	CustodyMonthlyMinimum    float64
}

// NamedSchedule pairs a schedule with its broker key for comparisons.
type NamedSchedule struct {
	Key   string
	Name  string
	Sched Schedule
}

// OperationResult is the cost breakdown of a single BUY or SELL.
type OperationResult struct {
	Amount       float64 `json:"amount"`
	Base         float64 `json:"base"`
	MinApplied   bool    `json:"min_applied"`
	IVA          float64 `json:"iva"`
	Total        float64 `json:"total"`
	Net          float64 `json:"net"`
	EffectivePct float64 `json:"effective_pct"`
}

// Operation computes the commission for a BUY or SELL of the given gross
// amount. The minimum-fee floor is flagged because it skews break-even
// estimates for small operations.
func Operation(op domain.TradeType, amount float64, s Schedule) (OperationResult, error) {
	if amount <= 0 {
		return OperationResult{}, domain.Validationf("amount", "must be positive, got %v", amount)
	}
	if !op.Valid() {
		return OperationResult{}, domain.Validationf("type", "unknown operation %q", op)
	}

	pct, min := s.BuyPercentage, s.BuyMinimum
	if op == domain.TradeSell {
		pct, min = s.SellPercentage, s.SellMinimum
	}

	base := amount * pct
	applied := base
	minApplied := false
	if applied < min {
		applied = min
		minApplied = true
	}

	iva := applied * s.IVARate
	total := applied + iva

	return OperationResult{
		Amount:       amount,
		Base:         applied,
		MinApplied:   minApplied,
		IVA:          iva,
		Total:        total,
		Net:          amount - total,
		EffectivePct: total / amount * 100,
	}, nil
}

// CustodyResult is the monthly/annual custody fee for a portfolio value.
type CustodyResult struct {
	PortfolioValue   float64 `json:"portfolio_value"`
	ApplicableAmount float64 `json:"applicable_amount"`
	IsExempt         bool    `json:"is_exempt"`
	MonthlyFee       float64 `json:"monthly_fee"`
	IVA              float64 `json:"iva"`
	TotalMonthly     float64 `json:"total_monthly"`
	AnnualFee        float64 `json:"annual_fee"`
}

// Custody computes the custody fee on the portion of portfolio value above
// the exempt threshold.
func Custody(portfolioValue float64, s Schedule) CustodyResult {
	applicable := portfolioValue - s.CustodyExemptAmount
	if applicable <= 0 {
		return CustodyResult{
			PortfolioValue: portfolioValue,
			IsExempt:       true,
		}
	}

	fee := applicable * s.CustodyMonthlyPercentage
	if fee < s.CustodyMonthlyMinimum {
		fee = s.CustodyMonthlyMinimum
	}
	iva := fee * s.IVARate
	totalMonthly := fee + iva

	return CustodyResult{
		PortfolioValue:   portfolioValue,
		ApplicableAmount: applicable,
		MonthlyFee:       fee,
		IVA:              iva,
		TotalMonthly:     totalMonthly,
		AnnualFee:        totalMonthly * 12,
	}
}

// ProjectionResult composes an operation with a year of custody into the
// total first-year cost of entering (or exiting) a position.
type ProjectionResult struct {
	Operation          OperationResult `json:"operation"`
	Custody            CustodyResult   `json:"custody"`
	TotalFirstYear     float64         `json:"total_first_year"`
	BreakEvenImpactPct float64         `json:"break_even_impact_pct"`
}

// Projection estimates the first-year cost of an operation given the
// resulting portfolio value. BreakEvenImpactPct is the minimum price
// appreciation needed to offset all costs.
func Projection(op domain.TradeType, amount, portfolioValue float64, s Schedule) (ProjectionResult, error) {
	opRes, err := Operation(op, amount, s)
	if err != nil {
		return ProjectionResult{}, err
	}

	custody := Custody(portfolioValue, s)
	total := opRes.Total + custody.AnnualFee

	return ProjectionResult{
		Operation:          opRes,
		Custody:            custody,
		TotalFirstYear:     total,
		BreakEvenImpactPct: total / amount * 100,
	}, nil
}

// Comparison ranks one broker in a CompareBrokers result.
type Comparison struct {
	Key            string           `json:"key"`
	Name           string           `json:"name"`
	Rank           int              `json:"rank"`
	Projection     ProjectionResult `json:"projection"`
	TotalFirstYear float64          `json:"total_first_year"`
}

// CompareBrokers ranks the given schedules ascending by total first-year
// cost. The sort is stable: ties keep the input order.
func CompareBrokers(op domain.TradeType, amount, portfolioValue float64, schedules []NamedSchedule) ([]Comparison, error) {
	if amount <= 0 {
		return nil, domain.Validationf("amount", "must be positive, got %v", amount)
	}

	result := make([]Comparison, 0, len(schedules))
	for _, ns := range schedules {
		proj, err := Projection(op, amount, portfolioValue, ns.Sched)
		if err != nil {
			return nil, err
		}
		result = append(result, Comparison{
			Key:            ns.Key,
			Name:           ns.Name,
			Projection:     proj,
			TotalFirstYear: proj.TotalFirstYear,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TotalFirstYear < result[j].TotalFirstYear
	})
	for i := range result {
		result[i].Rank = i + 1
	}
	return result, nil
}

// MinimumInvestmentForThreshold inverts the buy fee formula: the smallest
// amount at which the effective commission percentage drops to thresholdPct
// (in percent units, 2.5 = 2.5%). Below the floor break-even amount the
// minimum fee dominates, so the answer is where
// minimum*(1+iva)/amount == thresholdPct/100. Above it the effective rate is
// flat at percentage*(1+iva); a threshold under that flat rate is
// unreachable at any amount.
func MinimumInvestmentForThreshold(thresholdPct float64, s Schedule) (float64, error) {
	if thresholdPct <= 0 {
		return 0, domain.Validationf("threshold", "must be positive, got %v", thresholdPct)
	}

	flatPct := s.BuyPercentage * (1 + s.IVARate) * 100
	if flatPct > thresholdPct {
		return 0, domain.Validationf("threshold",
			"unreachable: flat commission rate is %.4f%%, above the %.4f%% target", flatPct, thresholdPct)
	}

	if s.BuyMinimum <= 0 {
		// No floor: any positive amount already sits at the flat rate.
		return 0, nil
	}

	return s.BuyMinimum * (1 + s.IVARate) * 100 / thresholdPct, nil
}
