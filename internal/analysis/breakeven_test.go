package analysis

import (
	"math"
	"testing"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/commission"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/storage"
)

func sched() commission.Schedule {
	return commission.Schedule{
		BuyPercentage:  0.005,
		BuyMinimum:     150,
		SellPercentage: 0.005,
		SellMinimum:    150,
		IVARate:        0.21,
	}
}

func TestBreakEven_CoversCostsExactly(t *testing.T) {
	pos := storage.PortfolioPosition{Quantity: 100, AverageCost: 150, TotalCost: 15000}

	res, err := BreakEven(pos, 160, sched(), 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// sell commission on market value 16000: 80 < min 150 -> 150*1.21
	wantCommission := 150 * 1.21
	if math.Abs(res.SellCommission-wantCommission) > 1e-6 {
		t.Errorf("sell commission: got %v, want %v", res.SellCommission, wantCommission)
	}

	want := (15000 + wantCommission + 500) / 100
	if math.Abs(res.BreakEvenPrice-want) > 1e-6 {
		t.Errorf("break-even: got %v, want %v", res.BreakEvenPrice, want)
	}
	if math.Abs(res.DistanceAbs-(160-want)) > 1e-6 {
		t.Errorf("distance abs: got %v", res.DistanceAbs)
	}
	if math.Abs(res.DistancePct-(160-want)/want*100) > 1e-6 {
		t.Errorf("distance pct: got %v", res.DistancePct)
	}
}

func TestBreakEven_AboveAverageCost(t *testing.T) {
	pos := storage.PortfolioPosition{Quantity: 10, AverageCost: 100, TotalCost: 1000}
	res, err := BreakEven(pos, 100, sched(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Transaction costs always push break-even above the average cost.
	if res.BreakEvenPrice <= pos.AverageCost {
		t.Errorf("break-even %v not above average cost %v", res.BreakEvenPrice, pos.AverageCost)
	}
}

func TestBreakEven_RejectsClosedPositionAndBadPrice(t *testing.T) {
	closed := storage.PortfolioPosition{Quantity: 0}
	if _, err := BreakEven(closed, 100, sched(), 0); !domain.IsValidation(err) {
		t.Errorf("expected validation error for closed position, got %v", err)
	}

	open := storage.PortfolioPosition{Quantity: 10, TotalCost: 1000}
	if _, err := BreakEven(open, 0, sched(), 0); !domain.IsValidation(err) {
		t.Errorf("expected validation error for zero price, got %v", err)
	}
}
