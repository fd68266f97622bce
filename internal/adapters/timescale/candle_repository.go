package timescale

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/quantgrid/marketdata-service/internal/domain"
)

// CandleRepository is the gorm-backed read path over the market_data
// hypertable.
type CandleRepository struct {
	db *gorm.DB
}

// NewCandleRepository binds the repository to the store's gorm handle.
func NewCandleRepository(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// Range returns candles for one symbol and interval, newest first.
func (r *CandleRepository) Range(ctx context.Context, q domain.CandleQuery) ([]domain.Candle, error) {
	tx := r.db.WithContext(ctx).
		Where("symbol = ? AND interval = ?", q.Symbol, q.Interval)
	if !q.From.IsZero() {
		tx = tx.Where("time >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where("time < ?", q.To)
	}

	var rows []domain.Candle
	if err := tx.Order("time DESC").Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("range candles: %w", err)
	}
	return rows, nil
}
