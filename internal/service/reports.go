package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"resaleledger/backend/internal/analytics"
	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/finance"
	"resaleledger/backend/internal/store"
)

// Stock serves the per-product stock projection. Concurrent misses for the
// same user share one computation, and a result computed across a mutation
// is returned but not cached.
func (s *Service) Stock(ctx context.Context) (domain.StockResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.StockResponse{}, err
	}

	cached, hit, err := s.stockCache.Get(ctx, actor.UserID)
	if err != nil {
		log.Printf("[cache] WARN: stock cache read failed user=%s: %v", actor.UserID, err)
	}
	if hit && cached != nil {
		return *cached, nil
	}

	value, err, _ := s.stockGroup.Do(actor.UserID, func() (any, error) {
		version := s.stockVersion(actor.UserID)
		response, err := s.computeStock(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if version != s.stockVersion(actor.UserID) {
			return response, nil
		}
		if err := s.stockCache.Set(ctx, actor.UserID, &response, s.stockTTL); err != nil {
			log.Printf("[cache] WARN: stock cache write failed user=%s: %v", actor.UserID, err)
		}
		// A mutation that lands between the check and the write may have had
		// its invalidation overwritten by this projection.
		if version != s.stockVersion(actor.UserID) {
			if err := s.stockCache.Invalidate(ctx, actor.UserID); err != nil {
				log.Printf("[cache] WARN: stale stock eviction failed user=%s: %v", actor.UserID, err)
			}
		}
		return response, nil
	})
	if err != nil {
		return domain.StockResponse{}, err
	}
	return value.(domain.StockResponse), nil
}

func (s *Service) computeStock(ctx context.Context, userID string) (domain.StockResponse, error) {
	purchases, err := s.repo.ListPurchases(ctx, userID, domain.PurchaseFilter{})
	if err != nil {
		return domain.StockResponse{}, err
	}
	names, err := s.productNames(ctx, userID)
	if err != nil {
		return domain.StockResponse{}, err
	}

	now := s.now()
	entries := analytics.ComputeStock(purchases, now)
	response := domain.StockResponse{
		Items:       make([]domain.StockEntry, 0, len(entries)),
		TotalValue:  finance.Round(analytics.StockValue(entries)),
		GeneratedAt: now,
	}
	for _, entry := range entries {
		entry.ProductName = names[entry.ProductID]
		response.TotalInStock += entry.InStock
		response.TotalOnTheWay += entry.OnTheWay
		response.Items = append(response.Items, entry)
	}
	return response, nil
}

func (s *Service) invalidateStock(ctx context.Context, userID string) {
	s.stockMu.Lock()
	s.stockVersions[userID]++
	s.stockMu.Unlock()

	s.stockGroup.Forget(userID)
	if err := s.stockCache.Invalidate(ctx, userID); err != nil {
		log.Printf("[cache] WARN: stock cache invalidation failed user=%s: %v", userID, err)
	}
}

func (s *Service) stockVersion(userID string) uint64 {
	s.stockMu.Lock()
	defer s.stockMu.Unlock()
	return s.stockVersions[userID]
}

func (s *Service) Points(ctx context.Context) (domain.PointsSummary, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.PointsSummary{}, err
	}

	purchases, err := s.repo.ListPurchases(ctx, actor.UserID, domain.PurchaseFilter{})
	if err != nil {
		return domain.PointsSummary{}, err
	}
	return analytics.SummarizePoints(analytics.GroupPointsByOrder(purchases)), nil
}

func (s *Service) Report(ctx context.Context, req domain.ReportRequest) (domain.Report, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Report{}, err
	}

	now := s.now().In(s.loc)
	period, err := analytics.ResolvePeriod(req.Period, req.Start, req.End, now)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidPeriod) {
			return domain.Report{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		return domain.Report{}, err
	}

	purchases, err := s.repo.ListPurchases(ctx, actor.UserID, domain.PurchaseFilter{})
	if err != nil {
		return domain.Report{}, err
	}
	names, err := s.productNames(ctx, actor.UserID)
	if err != nil {
		return domain.Report{}, err
	}

	return analytics.BuildReport(purchases, names, period, now, req.Top), nil
}

func (s *Service) productNames(ctx context.Context, userID string) (map[string]string, error) {
	products, err := s.repo.ListProducts(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(products))
	for _, product := range products {
		names[product.ID] = product.Name
	}
	return names, nil
}
