package cache

import (
	"context"
	"time"

	"resaleledger/backend/internal/domain"
)

// StockCache holds computed stock projections per owner. Entries must be
// dropped whenever a purchase of that owner changes.
type StockCache interface {
	Get(ctx context.Context, userID string) (*domain.StockResponse, bool, error)
	Set(ctx context.Context, userID string, value *domain.StockResponse, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
}

type NoopStockCache struct{}

func (NoopStockCache) Get(_ context.Context, _ string) (*domain.StockResponse, bool, error) {
	return nil, false, nil
}

func (NoopStockCache) Set(_ context.Context, _ string, _ *domain.StockResponse, _ time.Duration) error {
	return nil
}

func (NoopStockCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

func stockKey(userID string) string {
	return "stock:" + userID
}
