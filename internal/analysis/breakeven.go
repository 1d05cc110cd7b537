// Package analysis derives break-even prices and sell-urgency scores from
// positions, quotes and commission schedules.
package analysis

import (
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/commission"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/storage"
)

// BreakEvenResult is the price at which selling the whole position exactly
// offsets cost basis plus transaction costs.
type BreakEvenResult struct {
	BreakEvenPrice float64 `json:"break_even_price"`
	CurrentPrice   float64 `json:"current_price"`
	DistanceAbs    float64 `json:"distance_abs"`
	DistancePct    float64 `json:"distance_pct"`
	SellCommission float64 `json:"sell_commission"`
	CustodyAccrued float64 `json:"custody_accrued"`
}

// CustodyAccrued estimates the custody cost a position has carried since
// purchase: the portfolio's monthly custody charge, apportioned by the
// position's share of market value, over the months held.
func CustodyAccrued(totalValue, positionValue float64, sched commission.Schedule, holdingDays int) float64 {
	if totalValue <= 0 || positionValue <= 0 || holdingDays <= 0 {
		return 0
	}
	custody := commission.Custody(totalValue, sched)
	share := positionValue / totalValue
	return custody.TotalMonthly * float64(holdingDays) / 30 * share
}

// BreakEven computes the break-even price for a position. The sell
// commission is estimated on current market value; custodyAccrued is the
// custody cost charged since purchase, apportioned to this position.
func BreakEven(pos storage.PortfolioPosition, currentPrice float64, sched commission.Schedule, custodyAccrued float64) (BreakEvenResult, error) {
	if pos.Quantity <= 0 {
		return BreakEvenResult{}, domain.Validationf("position", "no held quantity")
	}
	if currentPrice <= 0 {
		return BreakEvenResult{}, domain.Validationf("current_price", "must be positive, got %v", currentPrice)
	}

	marketValue := pos.Quantity * currentPrice
	sellOp, err := commission.Operation(domain.TradeSell, marketValue, sched)
	if err != nil {
		return BreakEvenResult{}, err
	}

	breakEven := (pos.TotalCost + sellOp.Total + custodyAccrued) / pos.Quantity
	distance := currentPrice - breakEven

	return BreakEvenResult{
		BreakEvenPrice: breakEven,
		CurrentPrice:   currentPrice,
		DistanceAbs:    distance,
		DistancePct:    distance / breakEven * 100,
		SellCommission: sellOp.Total,
		CustodyAccrued: custodyAccrued,
	}, nil
}
