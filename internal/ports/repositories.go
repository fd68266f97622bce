package ports

import (
	"context"

	"github.com/quantgrid/marketdata-service/internal/domain"
)

// CandleRepository reads OHLCV rows from the market_data hypertable.
// Write paths belong to the ingestion pipeline, which is not built yet.
type CandleRepository interface {
	Range(ctx context.Context, q domain.CandleQuery) ([]domain.Candle, error)
}
