package application

import (
	"context"
	"strings"

	"github.com/quantgrid/marketdata-service/internal/domain"
	"github.com/quantgrid/marketdata-service/internal/ports"
)

// Service is the application layer of the scaffold. Candle reads are wired to
// storage; everything else returns ErrNotImplemented until its module lands.
type Service struct {
	candles ports.CandleRepository
}

// Dependencies lists the ports the service consumes.
type Dependencies struct {
	Candles ports.CandleRepository
}

// NewService wires the application service.
func NewService(deps Dependencies) *Service {
	return &Service{candles: deps.Candles}
}

func (s *Service) Register(_ context.Context) error {
	return domain.ErrNotImplemented
}

func (s *Service) Login(_ context.Context) error {
	return domain.ErrNotImplemented
}

func (s *Service) PlaceOrder(_ context.Context) error {
	return domain.ErrNotImplemented
}

func (s *Service) ListOrders(_ context.Context) error {
	return domain.ErrNotImplemented
}

// ListCandles serves OHLCV rows from the hypertable.
func (s *Service) ListCandles(ctx context.Context, q domain.CandleQuery) ([]domain.Candle, error) {
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	q.Interval = strings.TrimSpace(q.Interval)
	if q.Symbol == "" || q.Interval == "" {
		return nil, domain.ErrInvalidInput
	}
	if q.Limit <= 0 || q.Limit > 1000 {
		q.Limit = 1000
	}
	if s.candles == nil {
		return nil, domain.ErrNotImplemented
	}
	return s.candles.Range(ctx, q)
}
