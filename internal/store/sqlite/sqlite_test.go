package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/store"
)

const testUser = "usr-sqlite"

// setupTestStore creates an in-memory SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func createTestPurchase(t *testing.T, s *Store, orderNumber string) (*domain.Product, *domain.Purchase) {
	t.Helper()
	ctx := context.Background()

	product, err := s.CreateProduct(ctx, domain.Product{UserID: testUser, Name: "Galaxy S24", Storage: "256GB"})
	if err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	purchase, err := s.CreatePurchase(ctx, domain.Purchase{
		UserID:       testUser,
		ProductID:    product.ID,
		PaidValue:    1000,
		FinalCost:    875,
		Points:       100,
		OrderNumber:  orderNumber,
		Status:       domain.PurchaseStatusPending,
		PurchaseDate: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreatePurchase() error = %v", err)
	}
	return product, purchase
}

func TestStore_ProductLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	product, err := s.CreateProduct(ctx, domain.Product{UserID: testUser, Name: "iPhone 15"})
	if err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}

	product.Active = false
	if _, err := s.UpdateProduct(ctx, *product); err != nil {
		t.Fatalf("UpdateProduct() error = %v", err)
	}

	active, _ := s.ListProducts(ctx, testUser, false)
	if len(active) != 0 {
		t.Fatalf("expected inactive product hidden, got %d", len(active))
	}
	all, _ := s.ListProducts(ctx, testUser, true)
	if len(all) != 1 || all[0].Active {
		t.Fatalf("expected one inactive product, got %+v", all)
	}

	if err := s.DeleteProduct(ctx, "usr-other", product.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for foreign delete, got %v", err)
	}
	if err := s.DeleteProduct(ctx, testUser, product.ID); err != nil {
		t.Fatalf("DeleteProduct() error = %v", err)
	}
}

func TestStore_MutatePurchasePersistsNullableFields(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, purchase := createTestPurchase(t, s, "")

	sold, profit := 1200.0, 325.0
	saleDate := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	_, err := s.MutatePurchase(ctx, testUser, purchase.ID, func(p *domain.Purchase) error {
		p.Status = domain.PurchaseStatusSold
		p.SoldValue = &sold
		p.Profit = &profit
		p.SaleDate = &saleDate
		p.Month = "out/2026"
		return nil
	})
	if err != nil {
		t.Fatalf("MutatePurchase() error = %v", err)
	}

	got, err := s.GetPurchase(ctx, testUser, purchase.ID)
	if err != nil {
		t.Fatalf("GetPurchase() error = %v", err)
	}
	if got.SoldValue == nil || *got.SoldValue != 1200 || got.Profit == nil || *got.Profit != 325 {
		t.Fatalf("expected sale values persisted, got %+v", got)
	}
	if got.SaleDate == nil || !got.SaleDate.Equal(saleDate) {
		t.Fatalf("expected sale date %v, got %v", saleDate, got.SaleDate)
	}

	_, err = s.MutatePurchase(ctx, testUser, purchase.ID, func(p *domain.Purchase) error {
		p.Status = domain.PurchaseStatusDelivered
		p.ClearSale()
		return nil
	})
	if err != nil {
		t.Fatalf("MutatePurchase() clear error = %v", err)
	}
	got, _ = s.GetPurchase(ctx, testUser, purchase.ID)
	if got.SoldValue != nil || got.Profit != nil || got.SaleDate != nil || got.Month != "" {
		t.Fatalf("expected sale fields cleared, got %+v", got)
	}
}

func TestStore_MutatePurchaseRollsBackOnError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, purchase := createTestPurchase(t, s, "")

	_, err := s.MutatePurchase(ctx, testUser, purchase.ID, func(p *domain.Purchase) error {
		p.Status = domain.PurchaseStatusSold
		return store.ErrInvalidTransition
	})
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	got, _ := s.GetPurchase(ctx, testUser, purchase.ID)
	if got.Status != domain.PurchaseStatusPending {
		t.Fatalf("expected pending after rollback, got %s", got.Status)
	}
}

func TestStore_SetPointsReceivedByOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	product, first := createTestPurchase(t, s, "PED123")
	if _, err := s.CreatePurchase(ctx, domain.Purchase{
		UserID: testUser, ProductID: product.ID, PaidValue: 500, FinalCost: 500, Points: 50,
		OrderNumber: "PED123", Status: domain.PurchaseStatusPending, PurchaseDate: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreatePurchase() error = %v", err)
	}

	updated, err := s.SetPointsReceived(ctx, testUser, first.ID, true)
	if err != nil {
		t.Fatalf("SetPointsReceived() error = %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 rows updated, got %d", updated)
	}
	rows, _ := s.ListPurchases(ctx, testUser, domain.PurchaseFilter{OrderNumber: "PED123"})
	for _, row := range rows {
		if !row.PointsReceived {
			t.Fatalf("expected %s received", row.ID)
		}
	}
}

func TestStore_DeletePurchaseAndCounts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	product, purchase := createTestPurchase(t, s, "")

	count, err := s.CountPurchasesByProduct(ctx, testUser, product.ID)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 purchase, got %d (%v)", count, err)
	}
	if _, err := s.DeletePurchase(ctx, testUser, purchase.ID, nil); err != nil {
		t.Fatalf("DeletePurchase() error = %v", err)
	}
	if _, err := s.GetPurchase(ctx, testUser, purchase.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStore_UsersAndAuditLogs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, domain.UserAccount{Username: "Owner", Password: "hash", Active: true}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := s.CreateUser(ctx, domain.UserAccount{Username: "owner", Password: "hash"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected duplicate username rejected, got %v", err)
	}
	users, _ := s.ListUsers(ctx)
	if len(users) != 1 || users[0].Username != "owner" || users[0].ID == "" {
		t.Fatalf("unexpected users %+v", users)
	}

	now := time.Now().UTC()
	if err := s.CreateAuditLog(ctx, domain.AuditLog{UserID: testUser, Action: "purchase_create", CreatedAt: now}); err != nil {
		t.Fatalf("CreateAuditLog() error = %v", err)
	}
	logs, err := s.ListAuditLogs(ctx, testUser, now.Add(-time.Hour), now.Add(time.Hour), 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one audit log, got %d (%v)", len(logs), err)
	}
}
