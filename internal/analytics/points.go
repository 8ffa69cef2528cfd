package analytics

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/finance"
)

// PointsGroupKey returns the grouping key for a purchase. Rows without an
// order number never share a group.
func PointsGroupKey(p domain.Purchase) string {
	order := strings.TrimSpace(p.OrderNumber)
	if order == "" {
		return "purchase:" + p.ID
	}
	return "order:" + order
}

// GroupPointsByOrder merges purchases of the same order. A group counts as
// received only when every member is.
func GroupPointsByOrder(purchases []domain.Purchase) []domain.PointsGroup {
	index := make(map[string]int)
	values := make([]decimal.Decimal, 0, len(purchases))
	groups := make([]domain.PointsGroup, 0, len(purchases))

	for _, p := range purchases {
		key := PointsGroupKey(p)
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, domain.PointsGroup{
				Key:            key,
				OrderNumber:    strings.TrimSpace(p.OrderNumber),
				Account:        p.Account,
				ClubAndStore:   p.ClubAndStore,
				PurchaseDate:   p.PurchaseDate,
				PointsReceived: true,
			})
			values = append(values, decimal.Zero)
		}
		group := &groups[pos]
		group.PurchaseIDs = append(group.PurchaseIDs, p.ID)
		group.TotalPoints += p.Points
		values[pos] = values[pos].Add(finance.Decimal(p.PaidValue))
		if !p.PointsReceived {
			group.PointsReceived = false
		}
		if p.PurchaseDate.Before(group.PurchaseDate) {
			group.PurchaseDate = p.PurchaseDate
		}
	}

	for i := range groups {
		groups[i].TotalValue = finance.Round(values[i])
		slices.Sort(groups[i].PurchaseIDs)
	}
	slices.SortFunc(groups, func(a, b domain.PointsGroup) int {
		if !a.PurchaseDate.Equal(b.PurchaseDate) {
			if a.PurchaseDate.After(b.PurchaseDate) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Key, b.Key)
	})
	return groups
}

func SummarizePoints(groups []domain.PointsGroup) domain.PointsSummary {
	summary := domain.PointsSummary{
		Pending:  make([]domain.PointsGroup, 0),
		Received: make([]domain.PointsGroup, 0),
	}
	pendingValue, receivedValue := decimal.Zero, decimal.Zero
	for _, group := range groups {
		if group.PointsReceived {
			summary.Received = append(summary.Received, group)
			summary.ReceivedPoints += group.TotalPoints
			receivedValue = receivedValue.Add(finance.Decimal(group.TotalValue))
			continue
		}
		summary.Pending = append(summary.Pending, group)
		summary.PendingPoints += group.TotalPoints
		pendingValue = pendingValue.Add(finance.Decimal(group.TotalValue))
	}
	summary.PendingValue = finance.Round(pendingValue)
	summary.ReceivedValue = finance.Round(receivedValue)
	return summary
}
