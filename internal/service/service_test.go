package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/store"
	"resaleledger/backend/internal/store/memory"
)

var testNow = time.Date(2026, time.October, 17, 15, 0, 0, 0, time.UTC)

const (
	iphoneID = "prd-iphone-15-128-black"
	galaxyID = "prd-galaxy-s24-256"
)

type countingStockCache struct {
	mu          sync.Mutex
	entries     map[string]domain.StockResponse
	sets        int
	invalidated int
	// beforeSet runs once, outside the lock, ahead of the next write.
	beforeSet func()
}

func newCountingStockCache() *countingStockCache {
	return &countingStockCache{entries: make(map[string]domain.StockResponse)}
}

func (c *countingStockCache) Get(_ context.Context, userID string) (*domain.StockResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[userID]
	if !ok {
		return nil, false, nil
	}
	return &value, true, nil
}

func (c *countingStockCache) Set(_ context.Context, userID string, value *domain.StockResponse, _ time.Duration) error {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = *value
	c.sets++
	return nil
}

func (c *countingStockCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.invalidated++
	return nil
}

func newTestService(t *testing.T) (*Service, *countingStockCache) {
	t.Helper()
	stockCache := newCountingStockCache()
	svc := New(memory.NewSeeded(), stockCache, Options{
		StockTTL:    time.Minute,
		MonthLocale: "pt-BR",
		Reference: domain.ReferenceData{
			Accounts:       []string{"Livelo", "Esfera", "livelo"},
			ClubsAndStores: []string{"Clube Livelo / Apple Store"},
		},
	})
	svc.now = func() time.Time { return testNow }
	return svc, stockCache
}

func ownerContext() context.Context {
	return WithActor(context.Background(), domain.Actor{
		UserID:   memory.SeedOwnerID,
		Username: "owner",
		Role:     "owner",
	})
}

func float(v float64) *float64 { return &v }

func mustCreatePurchase(t *testing.T, svc *Service, req domain.PurchaseCreateRequest) domain.Purchase {
	t.Helper()
	if req.ProductID == "" {
		req.ProductID = iphoneID
	}
	if req.PaidValue == nil {
		req.PaidValue = float(1000)
	}
	purchase, err := svc.CreatePurchase(ownerContext(), req)
	if err != nil {
		t.Fatalf("create purchase failed: %v", err)
	}
	return purchase
}

func mustSell(t *testing.T, svc *Service, soldValue float64) domain.Purchase {
	t.Helper()
	ctx := ownerContext()
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})
	if _, err := svc.MarkDelivered(ctx, purchase.ID, domain.DeliverRequest{}); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	sold, err := svc.Sell(ctx, purchase.ID, domain.SaleRequest{SoldValue: float(soldValue), Customer: "Maria"})
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	return sold
}

func TestCreatePurchaseComputesFinalCost(t *testing.T) {
	svc, _ := newTestService(t)
	points := int64(10000)

	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{
		PaidValue:       float(1000),
		Shipping:        30,
		AdvanceDiscount: 50,
		Cashback:        20,
		Points:          &points,
		Thousand:        100,
		OrderNumber:     " PED-1 ",
		Account:         "Livelo",
	})

	if purchase.FinalCost != 860 {
		t.Fatalf("expected final cost 860, got %.2f", purchase.FinalCost)
	}
	if purchase.Status != domain.PurchaseStatusPending {
		t.Fatalf("expected PENDING, got %s", purchase.Status)
	}
	if purchase.OrderNumber != "PED-1" {
		t.Fatalf("expected trimmed order number, got %q", purchase.OrderNumber)
	}
	if !purchase.PurchaseDate.Equal(testNow) {
		t.Fatalf("expected purchase date defaulted to now, got %v", purchase.PurchaseDate)
	}
	if purchase.SoldValue != nil || purchase.Profit != nil || purchase.SaleDate != nil {
		t.Fatalf("expected no sale fields on a new purchase, got %+v", purchase)
	}
}

func TestCreatePurchaseDerivesPointsFromRate(t *testing.T) {
	svc, _ := newTestService(t)

	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{
		PaidValue:     float(1000),
		PointsPerReal: 2,
		Thousand:      100,
	})

	if purchase.Points != 2000 {
		t.Fatalf("expected 2000 derived points, got %d", purchase.Points)
	}
	if purchase.FinalCost != 980 {
		t.Fatalf("expected final cost 980, got %.2f", purchase.FinalCost)
	}
}

func TestCreatePurchaseAllowsNegativeFinalCost(t *testing.T) {
	svc, _ := newTestService(t)

	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{
		PaidValue: float(100),
		Cashback:  150,
	})
	if purchase.FinalCost != -50 {
		t.Fatalf("expected final cost -50, got %.2f", purchase.FinalCost)
	}
}

func TestCreatePurchaseValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()

	cases := []struct {
		name string
		req  domain.PurchaseCreateRequest
		want error
	}{
		{"missing paid value", domain.PurchaseCreateRequest{ProductID: iphoneID}, store.ErrValidation},
		{"missing product", domain.PurchaseCreateRequest{PaidValue: float(10)}, store.ErrValidation},
		{"negative shipping", domain.PurchaseCreateRequest{ProductID: iphoneID, PaidValue: float(10), Shipping: -1}, store.ErrValidation},
		{"unknown product", domain.PurchaseCreateRequest{ProductID: "prd-missing", PaidValue: float(10)}, store.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreatePurchase(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOperationsRequireActor(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreatePurchase(context.Background(), domain.PurchaseCreateRequest{ProductID: iphoneID, PaidValue: float(10)})
	if !errors.Is(err, store.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if _, err := svc.Stock(context.Background()); !errors.Is(err, store.ErrPermission) {
		t.Fatalf("expected permission error for stock, got %v", err)
	}
}

func TestOtherOwnerCannotSeePurchase(t *testing.T) {
	svc, _ := newTestService(t)
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})

	stranger := WithActor(context.Background(), domain.Actor{UserID: "usr-stranger", Username: "stranger"})
	if _, err := svc.GetPurchase(stranger, purchase.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for foreign purchase, got %v", err)
	}
	if _, err := svc.MarkDelivered(stranger, purchase.ID, domain.DeliverRequest{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for foreign deliver, got %v", err)
	}
}

func TestPurchaseLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{PaidValue: float(1000), Cashback: 125})

	delivered, err := svc.MarkDelivered(ctx, purchase.ID, domain.DeliverRequest{})
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if delivered.Status != domain.PurchaseStatusDelivered || delivered.DeliveryDate == nil || !delivered.DeliveryDate.Equal(testNow) {
		t.Fatalf("expected DELIVERED with delivery date now, got %+v", delivered)
	}

	saleDate := time.Date(2026, time.October, 20, 10, 0, 0, 0, time.UTC)
	sold, err := svc.Sell(ctx, purchase.ID, domain.SaleRequest{
		SoldValue:    float(1200),
		SaleDate:     &saleDate,
		Customer:     " Maria ",
		SerialNumber: "SN123",
	})
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if sold.Status != domain.PurchaseStatusSold || sold.Profit == nil || *sold.Profit != 325 {
		t.Fatalf("expected SOLD with profit 325, got %+v", sold)
	}
	if sold.Month != "out/2026" || sold.Customer != "Maria" {
		t.Fatalf("unexpected sale fields month=%q customer=%q", sold.Month, sold.Customer)
	}

	cancelled, err := svc.CancelSale(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("cancel sale failed: %v", err)
	}
	if cancelled.Status != domain.PurchaseStatusDelivered {
		t.Fatalf("expected DELIVERED after cancel, got %s", cancelled.Status)
	}
	if cancelled.SoldValue != nil || cancelled.Profit != nil || cancelled.SaleDate != nil || cancelled.Customer != "" || cancelled.SerialNumber != "" || cancelled.Month != "" {
		t.Fatalf("expected sale fields cleared, got %+v", cancelled)
	}
	if cancelled.DeliveryDate == nil {
		t.Fatalf("expected delivery date kept after cancel")
	}
}

func TestInvalidTransitionsLeaveStateUntouched(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})

	if _, err := svc.Sell(ctx, purchase.ID, domain.SaleRequest{SoldValue: float(1200)}); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition selling PENDING, got %v", err)
	}
	if _, err := svc.CancelSale(ctx, purchase.ID); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition cancelling PENDING, got %v", err)
	}
	if _, err := svc.EditSale(ctx, purchase.ID, domain.SaleEditRequest{SoldValue: float(1)}); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition editing PENDING sale, got %v", err)
	}

	if _, err := svc.MarkDelivered(ctx, purchase.ID, domain.DeliverRequest{}); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if _, err := svc.MarkDelivered(ctx, purchase.ID, domain.DeliverRequest{}); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected second deliver rejected, got %v", err)
	}

	got, err := svc.GetPurchase(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("get purchase failed: %v", err)
	}
	if got.Status != domain.PurchaseStatusDelivered || got.SoldValue != nil {
		t.Fatalf("expected DELIVERED without sale, got %+v", got)
	}
}

func TestSellRequiresSoldValue(t *testing.T) {
	svc, _ := newTestService(t)
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})

	if _, err := svc.Sell(ownerContext(), purchase.ID, domain.SaleRequest{}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkDeliveredRejectsDateBeforePurchase(t *testing.T) {
	svc, _ := newTestService(t)
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})

	early := testNow.AddDate(0, 0, -3)
	if _, err := svc.MarkDelivered(ownerContext(), purchase.ID, domain.DeliverRequest{DeliveryDate: &early}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEditSaleRecomputesProfitAndMonth(t *testing.T) {
	svc, _ := newTestService(t)
	sold := mustSell(t, svc, 1200)

	saleDate := time.Date(2026, time.November, 2, 12, 0, 0, 0, time.UTC)
	edited, err := svc.EditSale(ownerContext(), sold.ID, domain.SaleEditRequest{SoldValue: float(900), SaleDate: &saleDate})
	if err != nil {
		t.Fatalf("edit sale failed: %v", err)
	}
	if edited.Profit == nil || *edited.Profit != -100 {
		t.Fatalf("expected loss of 100, got %+v", edited.Profit)
	}
	if edited.Month != "nov/2026" {
		t.Fatalf("expected month nov/2026, got %q", edited.Month)
	}
	if edited.Customer != "Maria" {
		t.Fatalf("expected customer kept, got %q", edited.Customer)
	}
}

func TestUpdatePurchaseRecomputesCostAndProfit(t *testing.T) {
	svc, _ := newTestService(t)
	sold := mustSell(t, svc, 1200)

	updated, err := svc.UpdatePurchase(ownerContext(), sold.ID, domain.PurchaseUpdateRequest{Shipping: float(50)})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.FinalCost != 1050 {
		t.Fatalf("expected final cost 1050, got %.2f", updated.FinalCost)
	}
	if updated.Profit == nil || *updated.Profit != 150 {
		t.Fatalf("expected profit 150, got %+v", updated.Profit)
	}
	if updated.Status != domain.PurchaseStatusSold {
		t.Fatalf("expected status unchanged, got %s", updated.Status)
	}
}

func TestUpdateSoldValueRequiresSoldPurchase(t *testing.T) {
	svc, _ := newTestService(t)
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})

	if _, err := svc.UpdatePurchase(ownerContext(), purchase.ID, domain.PurchaseUpdateRequest{SoldValue: float(10)}); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

type deleteRecordingRepo struct {
	store.Repository
	guarded int
}

func (r *deleteRecordingRepo) DeletePurchase(ctx context.Context, userID string, id string, guard store.PurchaseGuard) (*domain.Purchase, error) {
	if guard != nil {
		r.guarded++
	}
	return r.Repository.DeletePurchase(ctx, userID, id, guard)
}

func TestDeletePurchaseAuditsLockedRow(t *testing.T) {
	repo := &deleteRecordingRepo{Repository: memory.NewSeeded()}
	svc := New(repo, newCountingStockCache(), Options{})
	svc.now = func() time.Time { return testNow }
	ctx := ownerContext()
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})

	if err := svc.DeletePurchase(ctx, purchase.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if repo.guarded != 1 {
		t.Fatalf("expected delete to inspect the locked row, got %d guarded deletes", repo.guarded)
	}

	logs, err := svc.ListAuditLogs(ctx, "", 50)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	for _, entry := range logs {
		if entry.Action == "purchase_delete" && entry.EntityID == purchase.ID {
			if !strings.Contains(entry.Detail, "status=PENDING") || strings.Contains(entry.Detail, "reversed_sale") {
				t.Fatalf("unexpected delete detail %q", entry.Detail)
			}
			return
		}
	}
	t.Fatalf("expected delete audit entry, got %+v", logs)
}

func TestDeleteSoldPurchaseRecordsReversal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()
	sold := mustSell(t, svc, 1200)

	if err := svc.DeletePurchase(ctx, sold.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.GetPurchase(ctx, sold.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected purchase gone, got %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, "", 50)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.Action == "purchase_delete" && entry.EntityID == sold.ID {
			found = strings.Contains(entry.Detail, "reversed_sale=1200.00") && strings.Contains(entry.Detail, "reversed_profit=200.00")
		}
	}
	if !found {
		t.Fatalf("expected reversal audit entry, got %+v", logs)
	}

	report, err := svc.Report(ctx, domain.ReportRequest{Period: "monthly"})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.TotalSales != 0 || report.TotalRevenue != 0 {
		t.Fatalf("expected deleted sale out of reports, got %+v", report)
	}
}

func TestSetPointsReceivedMarksWholeOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()
	points := int64(500)
	first := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{OrderNumber: "PED-9", Points: &points})
	mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{ProductID: galaxyID, OrderNumber: "PED-9", Points: &points})
	mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{Points: &points})

	resp, err := svc.SetPointsReceived(ctx, first.ID, true)
	if err != nil {
		t.Fatalf("set points received failed: %v", err)
	}
	if resp.Updated != 2 || resp.OrderNumber != "PED-9" {
		t.Fatalf("expected both order rows updated, got %+v", resp)
	}

	summary, err := svc.Points(ctx)
	if err != nil {
		t.Fatalf("points failed: %v", err)
	}
	if len(summary.Received) != 1 || summary.ReceivedPoints != 1000 {
		t.Fatalf("expected one received group with 1000 points, got %+v", summary.Received)
	}
	if len(summary.Pending) != 1 || summary.PendingPoints != 500 {
		t.Fatalf("expected one pending singleton group, got %+v", summary.Pending)
	}
}

func TestStockCountsDeliveredAndPending(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()

	delivered := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{PaidValue: float(1000)})
	if _, err := svc.MarkDelivered(ctx, delivered.ID, domain.DeliverRequest{}); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{PaidValue: float(800)})
	mustSell(t, svc, 1500)

	stock, err := svc.Stock(ctx)
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	if stock.TotalInStock != 1 || stock.TotalOnTheWay != 1 {
		t.Fatalf("expected 1 in stock and 1 on the way, got %d/%d", stock.TotalInStock, stock.TotalOnTheWay)
	}
	if stock.TotalValue != 1000 {
		t.Fatalf("expected stock value 1000, got %.2f", stock.TotalValue)
	}
	for _, item := range stock.Items {
		if item.ProductID == iphoneID && item.ProductName != "iPhone 15" {
			t.Fatalf("expected product name resolved, got %q", item.ProductName)
		}
	}
}

func TestStockCacheInvalidatedOnEveryMutation(t *testing.T) {
	svc, stockCache := newTestService(t)
	ctx := ownerContext()
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})

	first, err := svc.Stock(ctx)
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	if first.TotalInStock != 0 || first.TotalOnTheWay != 1 {
		t.Fatalf("unexpected initial stock %+v", first)
	}
	if stockCache.sets != 1 {
		t.Fatalf("expected stock cached once, got %d", stockCache.sets)
	}
	if _, err := svc.Stock(ctx); err != nil {
		t.Fatalf("cached stock failed: %v", err)
	}
	if stockCache.sets != 1 {
		t.Fatalf("expected cache hit on second read, got %d sets", stockCache.sets)
	}

	before := stockCache.invalidated
	if _, err := svc.MarkDelivered(ctx, purchase.ID, domain.DeliverRequest{}); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if stockCache.invalidated != before+1 {
		t.Fatalf("expected invalidation after deliver")
	}

	after, err := svc.Stock(ctx)
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	if after.TotalInStock != 1 || after.TotalOnTheWay != 0 {
		t.Fatalf("expected fresh stock after deliver, got %+v", after)
	}
}

func TestStockNotCachedAcrossConcurrentMutation(t *testing.T) {
	svc, stockCache := newTestService(t)
	ctx := ownerContext()
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})

	// The deliver commits after the projection is computed but before it is written.
	stockCache.beforeSet = func() {
		if _, err := svc.MarkDelivered(ctx, purchase.ID, domain.DeliverRequest{}); err != nil {
			t.Errorf("deliver failed: %v", err)
		}
	}
	if _, err := svc.Stock(ctx); err != nil {
		t.Fatalf("stock failed: %v", err)
	}

	after, err := svc.Stock(ctx)
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	if after.TotalInStock != 1 || after.TotalOnTheWay != 0 {
		t.Fatalf("expected stock to reflect committed deliver, got in_stock=%d on_the_way=%d", after.TotalInStock, after.TotalOnTheWay)
	}
}

func inStock(t *testing.T, svc *Service) int {
	t.Helper()
	stock, err := svc.Stock(ownerContext())
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	return stock.TotalInStock
}

func TestSellThenCancelRestoresStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})
	if _, err := svc.MarkDelivered(ctx, purchase.ID, domain.DeliverRequest{}); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	if got := inStock(t, svc); got != 1 {
		t.Fatalf("expected 1 in stock before sell, got %d", got)
	}
	if _, err := svc.Sell(ctx, purchase.ID, domain.SaleRequest{SoldValue: float(1200)}); err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if got := inStock(t, svc); got != 0 {
		t.Fatalf("expected 0 in stock after sell, got %d", got)
	}
	if _, err := svc.CancelSale(ctx, purchase.ID); err != nil {
		t.Fatalf("cancel sale failed: %v", err)
	}
	if got := inStock(t, svc); got != 1 {
		t.Fatalf("expected 1 in stock after cancel, got %d", got)
	}
}

func TestUnrelatedUpdateLeavesStockCounts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()
	delivered := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})
	if _, err := svc.MarkDelivered(ctx, delivered.ID, domain.DeliverRequest{}); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{ProductID: galaxyID})

	before, err := svc.Stock(ctx)
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	account := "Esfera"
	if _, err := svc.UpdatePurchase(ctx, delivered.ID, domain.PurchaseUpdateRequest{Account: &account}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	after, err := svc.Stock(ctx)
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}

	if before.TotalInStock != after.TotalInStock || before.TotalOnTheWay != after.TotalOnTheWay || len(before.Items) != len(after.Items) {
		t.Fatalf("expected unchanged stock, before=%+v after=%+v", before, after)
	}
	for i := range before.Items {
		if before.Items[i].InStock != after.Items[i].InStock || before.Items[i].OnTheWay != after.Items[i].OnTheWay {
			t.Fatalf("expected unchanged counts for %s", before.Items[i].ProductID)
		}
	}
}

func TestEditSaleProfitChain(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()
	points := int64(1400)
	purchase := mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{
		PaidValue:       float(1000),
		Shipping:        20,
		AdvanceDiscount: 30,
		Cashback:        15,
		Points:          &points,
		Thousand:        14,
	})
	if purchase.FinalCost != 875 {
		t.Fatalf("expected final cost 875, got %.2f", purchase.FinalCost)
	}
	if _, err := svc.MarkDelivered(ctx, purchase.ID, domain.DeliverRequest{}); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if _, err := svc.Sell(ctx, purchase.ID, domain.SaleRequest{SoldValue: float(1000)}); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	for _, tc := range []struct {
		sold   float64
		profit float64
	}{
		{1200, 325},
		{800, -75},
	} {
		edited, err := svc.EditSale(ctx, purchase.ID, domain.SaleEditRequest{SoldValue: float(tc.sold)})
		if err != nil {
			t.Fatalf("edit sale %.0f failed: %v", tc.sold, err)
		}
		if edited.Profit == nil || *edited.Profit != tc.profit {
			t.Fatalf("edit sale %.0f: expected profit %.0f, got %v", tc.sold, tc.profit, edited.Profit)
		}
	}
}

func TestCreatePurchaseRejectsSubCentAmounts(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreatePurchase(ownerContext(), domain.PurchaseCreateRequest{
		ProductID: iphoneID,
		PaidValue: float(10.005),
		Shipping:  10.005,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePurchaseRejectsPointsOverflow(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreatePurchase(ownerContext(), domain.PurchaseCreateRequest{
		ProductID:     iphoneID,
		PaidValue:     float(1e15),
		PointsPerReal: 1e6,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteProductDeactivatesWhenPurchased(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()
	mustCreatePurchase(t, svc, domain.PurchaseCreateRequest{})

	resp, err := svc.DeleteProduct(ctx, iphoneID)
	if err != nil {
		t.Fatalf("delete product failed: %v", err)
	}
	if !resp.Deactivated || resp.Deleted {
		t.Fatalf("expected deactivation, got %+v", resp)
	}
	if _, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{ProductID: iphoneID, PaidValue: float(10)}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected inactive product rejected, got %v", err)
	}

	resp, err = svc.DeleteProduct(ctx, galaxyID)
	if err != nil {
		t.Fatalf("delete unused product failed: %v", err)
	}
	if !resp.Deleted {
		t.Fatalf("expected hard delete, got %+v", resp)
	}
}

func TestCreateProductRequiresName(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.CreateProduct(ownerContext(), domain.ProductCreateRequest{Name: "  "}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	product, err := svc.CreateProduct(ownerContext(), domain.ProductCreateRequest{Name: "Pixel 9", Storage: "128GB"})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if !product.Active || product.UserID != memory.SeedOwnerID {
		t.Fatalf("unexpected product %+v", product)
	}
}

func TestReportMonthly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := ownerContext()
	mustSell(t, svc, 1200)
	mustSell(t, svc, 1100)

	report, err := svc.Report(ctx, domain.ReportRequest{})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if report.Period != "monthly" {
		t.Fatalf("expected monthly default, got %s", report.Period)
	}
	if report.TotalSales != 2 || report.TotalRevenue != 2300 || report.TotalProfit != 300 {
		t.Fatalf("unexpected totals %+v", report)
	}
	if report.TotalPurchases != 2 || report.TotalInvestment != 2000 {
		t.Fatalf("unexpected purchase totals %+v", report)
	}
	if len(report.TopCustomers) != 1 || report.TopCustomers[0].Customer != "Maria" || report.TopCustomers[0].Sales != 2 {
		t.Fatalf("unexpected top customers %+v", report.TopCustomers)
	}
}

func TestReportRejectsUnknownPeriod(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Report(ownerContext(), domain.ReportRequest{Period: "fortnight"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReferenceIsDeduplicated(t *testing.T) {
	svc, _ := newTestService(t)

	ref := svc.Reference()
	if len(ref.Accounts) != 2 || ref.Accounts[0] != "Livelo" {
		t.Fatalf("expected deduplicated accounts, got %+v", ref.Accounts)
	}
	ref.Accounts[0] = "mutated"
	if svc.Reference().Accounts[0] != "Livelo" {
		t.Fatalf("expected reference copy to be independent")
	}
}
