package storage

import (
	"time"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/commission"
)

type Instrument struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Symbol      string `gorm:"uniqueIndex;not null" json:"symbol"`
	CompanyName string `gorm:"not null" json:"company_name"`
	Sector      string `json:"sector"`
	Industry    string `json:"industry"`

	IsESG   bool `json:"is_esg"`
	IsVegan bool `json:"is_vegan"`

	UnderlyingSymbol   string  `json:"underlying_symbol"`
	Ratio              float64 `json:"ratio"` // CEDEARs per underlying share
	UnderlyingCurrency string  `gorm:"default:'USD'" json:"underlying_currency"`

	Active bool `gorm:"default:true" json:"active"`
}

// Trade is an immutable record of an executed BUY or SELL.
type Trade struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InstrumentID uint   `gorm:"index;not null" json:"instrument_id"`
	Type         string `gorm:"not null" json:"type"` // BUY or SELL

	Quantity    float64   `gorm:"not null" json:"quantity"`
	Price       float64   `gorm:"not null" json:"price"`
	TotalAmount float64   `gorm:"not null" json:"total_amount"` // quantity * price
	Commission  float64   `json:"commission"`
	Taxes       float64   `json:"taxes"`
	NetAmount   float64   `json:"net_amount"`
	TradeDate   time.Time `gorm:"index;not null" json:"trade_date"`
	Note        string    `json:"note"`
}

// PortfolioPosition holds one current-holdings row per instrument.
// Rows reach quantity zero when closed but are never deleted.
type PortfolioPosition struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InstrumentID uint    `gorm:"uniqueIndex;not null" json:"instrument_id"`
	Quantity     float64 `gorm:"not null" json:"quantity"`
	AverageCost  float64 `json:"average_cost"`
	TotalCost    float64 `json:"total_cost"`
}

type Quote struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InstrumentID uint      `gorm:"uniqueIndex:idx_quote_instrument_date;not null" json:"instrument_id"`
	Date         time.Time `gorm:"uniqueIndex:idx_quote_instrument_date;not null" json:"date"`
	Price        float64   `gorm:"not null" json:"price"`
	Volume       float64   `json:"volume"`
	Source       string    `json:"source"`
}

// CommissionConfig is a named broker fee schedule. Exactly one row is
// active at a time.
type CommissionConfig struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Key    string `gorm:"uniqueIndex;not null" json:"key"`
	Name   string `gorm:"not null" json:"name"`
	Active bool   `gorm:"index" json:"active"`

	BuyPercentage  float64 `json:"buy_percentage"`
	BuyMinimum     float64 `json:"buy_minimum"`
	SellPercentage float64 `json:"sell_percentage"`
	SellMinimum    float64 `json:"sell_minimum"`
	IVARate        float64 `json:"iva_rate"`

	CustodyExemptAmount      float64 `json:"custody_exempt_amount"`
	CustodyMonthlyPercentage float64 `json:"custody_monthly_percentage"`
	CustodyMonthlyMinimum    float64 `json:"custody_monthly_minimum"`
}

// Schedule projects the persisted config into the pure engine's value type.
func (c *CommissionConfig) Schedule() commission.Schedule {
	return commission.Schedule{
		BuyPercentage:            c.BuyPercentage,
		BuyMinimum:               c.BuyMinimum,
		SellPercentage:           c.SellPercentage,
		SellMinimum:              c.SellMinimum,
		IVARate:                  c.IVARate,
		CustodyExemptAmount:      c.CustodyExemptAmount,
		CustodyMonthlyPercentage: c.CustodyMonthlyPercentage,
		CustodyMonthlyMinimum:    c.CustodyMonthlyMinimum,
	}
}

// CustodyFee is an append-only monthly custody snapshot.
type CustodyFee struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Month            string  `gorm:"uniqueIndex;not null" json:"month"` // YYYY-MM
	BrokerKey        string  `json:"broker_key"`
	PortfolioValue   float64 `json:"portfolio_value"`
	ApplicableAmount float64 `json:"applicable_amount"`
	MonthlyFee       float64 `json:"monthly_fee"`
	IVAAmount        float64 `json:"iva_amount"`
	TotalCharged     float64 `json:"total_charged"`
	IsExempt         bool    `json:"is_exempt"`
}

// BreakEvenAnalysis is an append-only per-position snapshot.
type BreakEvenAnalysis struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InstrumentID   uint      `gorm:"index;not null" json:"instrument_id"`
	CalcDate       time.Time `gorm:"index;not null" json:"calc_date"`
	BreakEvenPrice float64   `json:"break_even_price"`
	CurrentPrice   float64   `json:"current_price"`
	DistanceAbs    float64   `json:"distance_abs"`
	DistancePct    float64   `json:"distance_pct"`
	SellCommission float64   `json:"sell_commission"`
	CustodyAccrued float64   `json:"custody_accrued"`
}

// SellAnalysis is an append-only per-position scoring snapshot.
type SellAnalysis struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InstrumentID uint      `gorm:"index;not null" json:"instrument_id"`
	CalcDate     time.Time `gorm:"index;not null" json:"calc_date"`

	TechnicalScore   float64 `json:"technical_score"`
	FundamentalScore float64 `json:"fundamental_score"`
	ProfitScore      float64 `json:"profit_score"`
	TimeScore        float64 `json:"time_score"`
	MarketScore      float64 `json:"market_score"`
	CompositeScore   float64 `json:"composite_score"`

	ProfitPct      float64 `json:"profit_pct"`
	Recommendation string  `gorm:"not null" json:"recommendation"`
	RiskLevel      string  `gorm:"not null" json:"risk_level"`
	Commentary     string  `gorm:"type:text" json:"commentary"`
}

type UVAValue struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Date  time.Time `gorm:"uniqueIndex;not null" json:"date"`
	Value float64   `gorm:"not null" json:"value"`
}

// JobRun records one scheduler cycle for audit and period checks.
type JobRun struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	RunID      string    `gorm:"index;not null" json:"run_id"`
	Job        string    `gorm:"index;not null" json:"job"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Items      int       `json:"items"`
	Error      string    `json:"error"`
}

type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Level     string `gorm:"index" json:"level"` // info, alert, error
	Title     string `json:"title"`
	Body      string `gorm:"type:text" json:"body"`
	Delivered bool   `json:"delivered"`
}
