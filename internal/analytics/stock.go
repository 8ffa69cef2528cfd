package analytics

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/finance"
)

type stockAccumulator struct {
	inStock       int
	onTheWay      int
	deliveredCost decimal.Decimal
	pendingCost   decimal.Decimal
	daysTotal     int
}

// ComputeStock projects per-product inventory from purchase rows. DELIVERED
// rows are in stock, PENDING rows are on the way; SOLD rows only keep the
// product visible with zero counts.
func ComputeStock(purchases []domain.Purchase, now time.Time) []domain.StockEntry {
	byProduct := make(map[string]*stockAccumulator)
	for _, p := range purchases {
		acc, ok := byProduct[p.ProductID]
		if !ok {
			acc = &stockAccumulator{}
			byProduct[p.ProductID] = acc
		}
		switch p.Status {
		case domain.PurchaseStatusDelivered:
			acc.inStock++
			acc.deliveredCost = acc.deliveredCost.Add(finance.Decimal(p.FinalCost))
			acc.daysTotal += DaysInStock(p, now)
		case domain.PurchaseStatusPending:
			acc.onTheWay++
			acc.pendingCost = acc.pendingCost.Add(finance.Decimal(p.FinalCost))
		}
	}

	entries := make([]domain.StockEntry, 0, len(byProduct))
	for productID, acc := range byProduct {
		entries = append(entries, domain.StockEntry{
			ProductID:           productID,
			InStock:             acc.inStock,
			OnTheWay:            acc.onTheWay,
			AverageCost:         finance.Round(finance.Mean(acc.deliveredCost, acc.inStock)),
			AverageCostOnTheWay: finance.Round(finance.Mean(acc.pendingCost, acc.onTheWay)),
			TotalValue:          finance.Round(acc.deliveredCost),
			TotalValueOnTheWay:  finance.Round(acc.pendingCost),
			AverageDaysInStock:  finance.Round(finance.Mean(decimal.NewFromInt(int64(acc.daysTotal)), acc.inStock)),
		})
	}
	slices.SortFunc(entries, func(a, b domain.StockEntry) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return entries
}

// StockValue sums the in-stock valuation over all products.
func StockValue(entries []domain.StockEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(finance.Decimal(entry.TotalValue))
	}
	return total
}

// DaysInStock counts whole days since the unit arrived, falling back to the
// purchase date when no delivery date was recorded.
func DaysInStock(p domain.Purchase, now time.Time) int {
	since := p.PurchaseDate
	if p.DeliveryDate != nil {
		since = *p.DeliveryDate
	}
	if since.IsZero() || now.Before(since) {
		return 0
	}
	return int(math.Floor(now.Sub(since).Hours() / 24))
}
