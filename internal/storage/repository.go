package storage

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle for services that need transactions.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Instruments

func (r *Repository) SaveInstrument(inst *Instrument) error {
	inst.Symbol = strings.ToUpper(strings.TrimSpace(inst.Symbol))
	if err := r.db.Create(inst).Error; err != nil {
		return domain.Persistence("save instrument", err)
	}
	return nil
}

func (r *Repository) UpdateInstrument(inst *Instrument) error {
	if err := r.db.Save(inst).Error; err != nil {
		return domain.Persistence("update instrument", err)
	}
	return nil
}

func (r *Repository) GetInstrument(id uint) (*Instrument, error) {
	var inst Instrument
	err := r.db.First(&inst, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("instrument %d", id)
	}
	if err != nil {
		return nil, domain.Persistence("get instrument", err)
	}
	return &inst, nil
}

func (r *Repository) GetInstrumentBySymbol(symbol string) (*Instrument, error) {
	var inst Instrument
	err := r.db.Where("symbol = ?", strings.ToUpper(strings.TrimSpace(symbol))).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("instrument %s", symbol)
	}
	if err != nil {
		return nil, domain.Persistence("get instrument by symbol", err)
	}
	return &inst, nil
}

// InstrumentFilter narrows ListInstruments. Nil fields mean no filter.
type InstrumentFilter struct {
	ESG    *bool
	Vegan  *bool
	Active *bool
}

func (r *Repository) ListInstruments(f InstrumentFilter) ([]Instrument, error) {
	q := r.db.Order("symbol")
	if f.ESG != nil {
		q = q.Where("is_esg = ?", *f.ESG)
	}
	if f.Vegan != nil {
		q = q.Where("is_vegan = ?", *f.Vegan)
	}
	if f.Active != nil {
		q = q.Where("active = ?", *f.Active)
	}
	var instruments []Instrument
	if err := q.Find(&instruments).Error; err != nil {
		return nil, domain.Persistence("list instruments", err)
	}
	return instruments, nil
}

// DeactivateInstrument soft-deletes: the row stays for the audit trail.
func (r *Repository) DeactivateInstrument(id uint) error {
	res := r.db.Model(&Instrument{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return domain.Persistence("deactivate instrument", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundf("instrument %d", id)
	}
	return nil
}

// Trades

func (r *Repository) GetTrade(id uint) (*Trade, error) {
	var trade Trade
	err := r.db.First(&trade, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("trade %d", id)
	}
	if err != nil {
		return nil, domain.Persistence("get trade", err)
	}
	return &trade, nil
}

func (r *Repository) ListTrades(instrumentID uint, limit int) ([]Trade, error) {
	q := r.db.Order("trade_date DESC, id DESC")
	if instrumentID != 0 {
		q = q.Where("instrument_id = ?", instrumentID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var trades []Trade
	if err := q.Find(&trades).Error; err != nil {
		return nil, domain.Persistence("list trades", err)
	}
	return trades, nil
}

// Positions

func (r *Repository) GetPosition(instrumentID uint) (*PortfolioPosition, error) {
	var pos PortfolioPosition
	err := r.db.Where("instrument_id = ?", instrumentID).First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("position for instrument %d", instrumentID)
	}
	if err != nil {
		return nil, domain.Persistence("get position", err)
	}
	return &pos, nil
}

// ListOpenPositions returns positions with non-zero holdings. Closed rows
// are kept in the table but excluded from active views.
func (r *Repository) ListOpenPositions() ([]PortfolioPosition, error) {
	var positions []PortfolioPosition
	err := r.db.Where("quantity > 0").Order("instrument_id").Find(&positions).Error
	if err != nil {
		return nil, domain.Persistence("list open positions", err)
	}
	return positions, nil
}

// Quotes

// UpsertQuote inserts or replaces the observation for (instrument, date),
// keeping ingestion idempotent.
func (r *Repository) UpsertQuote(q *Quote) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "volume", "source"}),
	}).Create(q).Error
	if err != nil {
		return domain.Persistence("upsert quote", err)
	}
	return nil
}

// GetLatestQuote returns the most recent observation, ties broken by
// latest insertion.
func (r *Repository) GetLatestQuote(instrumentID uint) (*Quote, error) {
	var quote Quote
	err := r.db.Where("instrument_id = ?", instrumentID).
		Order("date DESC, id DESC").First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("quote for instrument %d", instrumentID)
	}
	if err != nil {
		return nil, domain.Persistence("get latest quote", err)
	}
	return &quote, nil
}

func (r *Repository) ListQuotes(instrumentID uint, limit int) ([]Quote, error) {
	q := r.db.Where("instrument_id = ?", instrumentID).Order("date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var quotes []Quote
	if err := q.Find(&quotes).Error; err != nil {
		return nil, domain.Persistence("list quotes", err)
	}
	return quotes, nil
}

// Commission configs

func (r *Repository) SaveCommissionConfig(cfg *CommissionConfig) error {
	if err := r.db.Save(cfg).Error; err != nil {
		return domain.Persistence("save commission config", err)
	}
	return nil
}

func (r *Repository) GetCommissionConfigByKey(key string) (*CommissionConfig, error) {
	var cfg CommissionConfig
	err := r.db.Where("key = ?", key).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("broker config %s", key)
	}
	if err != nil {
		return nil, domain.Persistence("get commission config", err)
	}
	return &cfg, nil
}

func (r *Repository) GetActiveCommissionConfig() (*CommissionConfig, error) {
	var cfg CommissionConfig
	err := r.db.Where("active = ?", true).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("active broker config")
	}
	if err != nil {
		return nil, domain.Persistence("get active commission config", err)
	}
	return &cfg, nil
}

func (r *Repository) ListCommissionConfigs() ([]CommissionConfig, error) {
	var cfgs []CommissionConfig
	if err := r.db.Order("id").Find(&cfgs).Error; err != nil {
		return nil, domain.Persistence("list commission configs", err)
	}
	return cfgs, nil
}

// ActivateCommissionConfig flips the active flag to the given key inside a
// transaction so that exactly one config is active at any time.
func (r *Repository) ActivateCommissionConfig(key string) (*CommissionConfig, error) {
	var cfg CommissionConfig
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("key = ?", key).First(&cfg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundf("broker config %s", key)
			}
			return err
		}
		if err := tx.Model(&CommissionConfig{}).Where("active = ?", true).
			Update("active", false).Error; err != nil {
			return err
		}
		cfg.Active = true
		return tx.Save(&cfg).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.Persistence("activate commission config", err)
	}
	return &cfg, nil
}

// Custody fees

// SaveCustodyFee upserts on month so a forced recomputation replaces the
// existing charge instead of tripping the unique index.
func (r *Repository) SaveCustodyFee(fee *CustodyFee) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"broker_key", "portfolio_value", "applicable_amount",
			"monthly_fee", "iva_amount", "total_charged", "is_exempt",
		}),
	}).Create(fee).Error
	if err != nil {
		return domain.Persistence("save custody fee", err)
	}
	return nil
}

func (r *Repository) CustodyFeeExists(month string) (bool, error) {
	var count int64
	err := r.db.Model(&CustodyFee{}).Where("month = ?", month).Count(&count).Error
	if err != nil {
		return false, domain.Persistence("check custody fee", err)
	}
	return count > 0, nil
}

func (r *Repository) ListCustodyFees(limit int) ([]CustodyFee, error) {
	q := r.db.Order("month DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var fees []CustodyFee
	if err := q.Find(&fees).Error; err != nil {
		return nil, domain.Persistence("list custody fees", err)
	}
	return fees, nil
}

// Analysis snapshots

func (r *Repository) SaveBreakEvenAnalysis(a *BreakEvenAnalysis) error {
	if err := r.db.Create(a).Error; err != nil {
		return domain.Persistence("save break-even analysis", err)
	}
	return nil
}

func (r *Repository) LatestBreakEvenAnalysis(instrumentID uint) (*BreakEvenAnalysis, error) {
	var a BreakEvenAnalysis
	err := r.db.Where("instrument_id = ?", instrumentID).
		Order("calc_date DESC, id DESC").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("break-even analysis for instrument %d", instrumentID)
	}
	if err != nil {
		return nil, domain.Persistence("latest break-even analysis", err)
	}
	return &a, nil
}

func (r *Repository) SaveSellAnalysis(a *SellAnalysis) error {
	if err := r.db.Create(a).Error; err != nil {
		return domain.Persistence("save sell analysis", err)
	}
	return nil
}

func (r *Repository) ListSellAnalyses(instrumentID uint, limit int) ([]SellAnalysis, error) {
	q := r.db.Where("instrument_id = ?", instrumentID).Order("calc_date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var analyses []SellAnalysis
	if err := q.Find(&analyses).Error; err != nil {
		return nil, domain.Persistence("list sell analyses", err)
	}
	return analyses, nil
}

// UVA values

func (r *Repository) UpsertUVAValue(v *UVAValue) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(v).Error
	if err != nil {
		return domain.Persistence("upsert uva value", err)
	}
	return nil
}

func (r *Repository) GetLatestUVAValue() (*UVAValue, error) {
	var v UVAValue
	err := r.db.Order("date DESC").First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("uva value")
	}
	if err != nil {
		return nil, domain.Persistence("get latest uva value", err)
	}
	return &v, nil
}

// GetUVAValueOn returns the value for the given date, or the closest
// earlier one when the exact date is missing (weekends, holidays).
func (r *Repository) GetUVAValueOn(date time.Time) (*UVAValue, error) {
	var v UVAValue
	err := r.db.Where("date <= ?", date).Order("date DESC").First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("uva value on %s", date.Format("2006-01-02"))
	}
	if err != nil {
		return nil, domain.Persistence("get uva value on date", err)
	}
	return &v, nil
}

// Job runs

func (r *Repository) SaveJobRun(run *JobRun) error {
	if err := r.db.Create(run).Error; err != nil {
		return domain.Persistence("save job run", err)
	}
	return nil
}

func (r *Repository) LastJobRun(job string) (*JobRun, error) {
	var run JobRun
	err := r.db.Where("job = ?", job).Order("started_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("job run for %s", job)
	}
	if err != nil {
		return nil, domain.Persistence("last job run", err)
	}
	return &run, nil
}

// Notifications

func (r *Repository) SaveNotification(n *Notification) error {
	if err := r.db.Create(n).Error; err != nil {
		return domain.Persistence("save notification", err)
	}
	return nil
}

func (r *Repository) ListNotifications(limit int) ([]Notification, error) {
	q := r.db.Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var notifications []Notification
	if err := q.Find(&notifications).Error; err != nil {
		return nil, domain.Persistence("list notifications", err)
	}
	return notifications, nil
}
