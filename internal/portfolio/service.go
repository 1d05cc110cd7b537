// Package portfolio keeps portfolio positions consistent with the trade
// ledger using weighted-average-cost accounting.
package portfolio

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/commission"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/logger"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/storage"
)

type Service struct {
	db     *gorm.DB
	repo   *storage.Repository
	logger *logger.Logger
}

func NewService(db *gorm.DB, repo *storage.Repository, log *logger.Logger) *Service {
	return &Service{db: db, repo: repo, logger: log}
}

// TradeInput is a user-entered execution to register.
type TradeInput struct {
	Symbol    string
	Type      domain.TradeType
	Quantity  float64
	Price     float64
	TradeDate time.Time
	Note      string
}

func (in *TradeInput) validate() error {
	if !in.Type.Valid() {
		return domain.Validationf("type", "unknown trade type %q", in.Type)
	}
	if in.Quantity <= 0 {
		return domain.Validationf("quantity", "must be positive, got %v", in.Quantity)
	}
	if in.Price <= 0 {
		return domain.Validationf("price", "must be positive, got %v", in.Price)
	}
	return nil
}

// RegisterTrade writes the trade row and updates the instrument's position
// in a single transaction: either both commit or neither does.
//
// Cost basis convention: total_cost tracks quantity*price only; the
// commission computed from the schedule is stored on the trade row and
// enters break-even math, never the average cost.
func (s *Service) RegisterTrade(in TradeInput, sched commission.Schedule) (*storage.Trade, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	inst, err := s.repo.GetInstrumentBySymbol(in.Symbol)
	if err != nil {
		return nil, err
	}
	if !inst.Active {
		return nil, domain.Validationf("symbol", "instrument %s is deactivated", inst.Symbol)
	}

	amount := in.Quantity * in.Price
	opRes, err := commission.Operation(in.Type, amount, sched)
	if err != nil {
		return nil, err
	}

	tradeDate := in.TradeDate
	if tradeDate.IsZero() {
		tradeDate = time.Now()
	}

	trade := &storage.Trade{
		InstrumentID: inst.ID,
		Type:         in.Type.String(),
		Quantity:     in.Quantity,
		Price:        in.Price,
		TotalAmount:  amount,
		Commission:   opRes.Total - opRes.IVA,
		Taxes:        opRes.IVA,
		NetAmount:    opRes.Net,
		TradeDate:    tradeDate,
		Note:         in.Note,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trade).Error; err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
		return applyToPosition(tx, inst.ID, in.Type, in.Quantity, in.Price)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientQuantity) {
			return nil, err
		}
		return nil, domain.Persistence("register trade", err)
	}

	s.logger.Info("trade registered",
		"symbol", inst.Symbol, "type", trade.Type,
		"quantity", trade.Quantity, "price", trade.Price,
		"commission", trade.Commission)

	return trade, nil
}

// applyToPosition recomputes the position row for one trade. Runs inside
// the caller's transaction.
func applyToPosition(tx *gorm.DB, instrumentID uint, tradeType domain.TradeType, quantity, price float64) error {
	var pos storage.PortfolioPosition
	err := tx.Where("instrument_id = ?", instrumentID).First(&pos).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if tradeType == domain.TradeSell {
			return fmt.Errorf("no position for instrument %d: %w", instrumentID, domain.ErrInsufficientQuantity)
		}
		pos = storage.PortfolioPosition{
			InstrumentID: instrumentID,
			Quantity:     quantity,
			AverageCost:  price,
			TotalCost:    quantity * price,
		}
		return tx.Create(&pos).Error

	case err != nil:
		return fmt.Errorf("load position: %w", err)
	}

	if tradeType == domain.TradeBuy {
		newQty := pos.Quantity + quantity
		newTotal := pos.TotalCost + quantity*price
		pos.Quantity = newQty
		pos.TotalCost = newTotal
		pos.AverageCost = newTotal / newQty
		return tx.Save(&pos).Error
	}

	// SELL
	if quantity > pos.Quantity {
		return fmt.Errorf("sell %v exceeds held %v: %w", quantity, pos.Quantity, domain.ErrInsufficientQuantity)
	}

	pos.Quantity -= quantity
	pos.TotalCost -= pos.AverageCost * quantity
	if pos.Quantity < 1e-9 {
		// Closed: average cost is meaningless with nothing held.
		pos.Quantity = 0
		pos.TotalCost = 0
	}
	return tx.Save(&pos).Error
}

// PositionView joins a position with its instrument and latest quote.
// Derived on read, never stored.
type PositionView struct {
	Position      storage.PortfolioPosition `json:"position"`
	Instrument    storage.Instrument        `json:"instrument"`
	CurrentPrice  float64                   `json:"current_price"`
	QuoteDate     time.Time                 `json:"quote_date"`
	MarketValue   float64                   `json:"market_value"`
	UnrealizedPnL float64                   `json:"unrealized_pnl"`
	PnLPercent    float64                   `json:"pnl_percent"`
}

func (s *Service) OpenPositions() ([]PositionView, error) {
	positions, err := s.repo.ListOpenPositions()
	if err != nil {
		return nil, err
	}

	views := make([]PositionView, 0, len(positions))
	for _, pos := range positions {
		view, err := s.buildView(pos)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) PositionBySymbol(symbol string) (*PositionView, error) {
	inst, err := s.repo.GetInstrumentBySymbol(symbol)
	if err != nil {
		return nil, err
	}
	pos, err := s.repo.GetPosition(inst.ID)
	if err != nil {
		return nil, err
	}
	view, err := s.buildView(*pos)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) buildView(pos storage.PortfolioPosition) (PositionView, error) {
	inst, err := s.repo.GetInstrument(pos.InstrumentID)
	if err != nil {
		return PositionView{}, err
	}

	view := PositionView{Position: pos, Instrument: *inst}

	quote, err := s.repo.GetLatestQuote(pos.InstrumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return view, nil // no market data yet
		}
		return PositionView{}, err
	}

	view.CurrentPrice = quote.Price
	view.QuoteDate = quote.Date
	view.MarketValue = quote.Price * pos.Quantity
	view.UnrealizedPnL = view.MarketValue - pos.TotalCost
	if pos.TotalCost > 0 {
		view.PnLPercent = view.UnrealizedPnL / pos.TotalCost * 100
	}
	return view, nil
}

// HoldingDays counts from the oldest trade recorded for the instrument.
func (s *Service) HoldingDays(instrumentID uint, now time.Time) int {
	trades, err := s.repo.ListTrades(instrumentID, 0)
	if err != nil || len(trades) == 0 {
		return 0
	}
	oldest := trades[len(trades)-1].TradeDate
	days := int(now.Sub(oldest).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// TotalMarketValue sums the market value of all open positions, used by the
// monthly custody run.
func (s *Service) TotalMarketValue() (float64, error) {
	views, err := s.OpenPositions()
	if err != nil {
		return 0, err
	}
	var total float64
	for _, v := range views {
		total += v.MarketValue
	}
	return total, nil
}
