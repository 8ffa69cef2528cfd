package store

import (
	"context"
	"errors"
	"time"

	"resaleledger/backend/internal/domain"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrPermission        = errors.New("permission denied")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// PurchaseMutation edits a purchase in place inside the repository's atomic
// read-modify-write. Returning an error aborts the write.
type PurchaseMutation func(p *domain.Purchase) error

// PurchaseGuard inspects the row about to be deleted. Returning an error
// aborts the delete.
type PurchaseGuard func(p domain.Purchase) error

// Repository is scoped by user id on every call. Rows owned by another user
// are reported as ErrNotFound.
type Repository interface {
	ListProducts(ctx context.Context, userID string, includeInactive bool) ([]domain.Product, error)
	GetProduct(ctx context.Context, userID string, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, userID string, id string) error
	CountPurchasesByProduct(ctx context.Context, userID string, productID string) (int, error)

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchase(ctx context.Context, userID string, id string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, userID string, filter domain.PurchaseFilter) ([]domain.Purchase, error)
	MutatePurchase(ctx context.Context, userID string, id string, mutate PurchaseMutation) (*domain.Purchase, error)
	DeletePurchase(ctx context.Context, userID string, id string, guard PurchaseGuard) (*domain.Purchase, error)
	// SetPointsReceived flips the flag on every purchase sharing the order
	// number of purchaseID, or on purchaseID alone when it has none.
	SetPointsReceived(ctx context.Context, userID string, purchaseID string, received bool) (int, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, userID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
