package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/store"
	"resaleledger/backend/internal/xid"
)

const SeedOwnerID = "usr-owner"

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	purchases       map[string]domain.Purchase
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the owner account for dev/demo mode. The password is read
// from SEED_OWNER_PASSWORD; when unset a dev default is used with a warning.
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD to override.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(ownerPwd), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	return map[string]domain.UserAccount{
		"owner": {
			ID:        SeedOwnerID,
			Username:  "owner",
			Password:  string(hash),
			Role:      "owner",
			Active:    true,
			CreatedAt: time.Now().UTC(),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store with no users.
func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		purchases:       make(map[string]domain.Purchase),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with the demo owner and a small phone catalog.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()

	now := time.Now().UTC()
	for _, p := range []domain.Product{
		{ID: "prd-iphone-15-128-black", Name: "iPhone 15", Model: "A3090", Storage: "128GB", Color: "Black"},
		{ID: "prd-iphone-15-pro-256", Name: "iPhone 15 Pro", Model: "A3102", Storage: "256GB", Color: "Natural Titanium"},
		{ID: "prd-galaxy-s24-256", Name: "Galaxy S24", Model: "SM-S921B", Storage: "256GB", Color: "Onyx Black"},
		{ID: "prd-redmi-note-13", Name: "Redmi Note 13", Model: "23129RAA4G", Storage: "256GB", Color: "Ice Blue"},
	} {
		p.UserID = SeedOwnerID
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	return s
}

func (s *Store) ListProducts(_ context.Context, userID string, includeInactive bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.UserID != userID {
			continue
		}
		if !p.Active && !includeInactive {
			continue
		}
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b domain.Product) int {
		if a.Name != b.Name {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) GetProduct(_ context.Context, userID string, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok || p.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.UserID) == "" || strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrValidation
	}
	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok || existing.UserID != product.UserID {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, userID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[id]
	if !ok || existing.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) CountPurchasesByProduct(_ context.Context, userID string, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.purchases {
		if p.UserID == userID && p.ProductID == productID {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if strings.TrimSpace(purchase.UserID) == "" || strings.TrimSpace(purchase.ProductID) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[purchase.ProductID]
	if !ok || product.UserID != purchase.UserID {
		return nil, store.ErrNotFound
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	now := time.Now().UTC()
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = now
	}
	purchase.UpdatedAt = now
	s.purchases[purchase.ID] = clonePurchase(purchase)

	created := clonePurchase(purchase)
	return &created, nil
}

func (s *Store) GetPurchase(_ context.Context, userID string, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.purchases[id]
	if !ok || p.UserID != userID {
		return nil, store.ErrNotFound
	}
	dup := clonePurchase(p)
	return &dup, nil
}

func (s *Store) ListPurchases(_ context.Context, userID string, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orderNumber := strings.TrimSpace(filter.OrderNumber)
	result := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		if p.UserID != userID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.ProductID != "" && p.ProductID != filter.ProductID {
			continue
		}
		if orderNumber != "" && strings.TrimSpace(p.OrderNumber) != orderNumber {
			continue
		}
		result = append(result, clonePurchase(p))
	}

	slices.SortFunc(result, comparePurchaseRecency)
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) MutatePurchase(_ context.Context, userID string, id string, mutate store.PurchaseMutation) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.purchases[id]
	if !ok || current.UserID != userID {
		return nil, store.ErrNotFound
	}

	working := clonePurchase(current)
	if err := mutate(&working); err != nil {
		return nil, err
	}
	if product, ok := s.products[working.ProductID]; !ok || product.UserID != userID {
		return nil, store.ErrNotFound
	}
	working.ID = current.ID
	working.UserID = current.UserID
	working.CreatedAt = current.CreatedAt
	working.UpdatedAt = time.Now().UTC()
	s.purchases[id] = working

	updated := clonePurchase(working)
	return &updated, nil
}

func (s *Store) DeletePurchase(_ context.Context, userID string, id string, guard store.PurchaseGuard) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.purchases[id]
	if !ok || current.UserID != userID {
		return nil, store.ErrNotFound
	}
	if guard != nil {
		if err := guard(clonePurchase(current)); err != nil {
			return nil, err
		}
	}
	delete(s.purchases, id)

	removed := clonePurchase(current)
	return &removed, nil
}

func (s *Store) SetPointsReceived(_ context.Context, userID string, purchaseID string, received bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.purchases[purchaseID]
	if !ok || target.UserID != userID {
		return 0, store.ErrNotFound
	}

	orderNumber := strings.TrimSpace(target.OrderNumber)
	now := time.Now().UTC()
	updated := 0
	for id, p := range s.purchases {
		if p.UserID != userID {
			continue
		}
		if id != purchaseID && (orderNumber == "" || strings.TrimSpace(p.OrderNumber) != orderNumber) {
			continue
		}
		p.PointsReceived = received
		p.UpdatedAt = now
		s.purchases[id] = p
		updated++
	}
	return updated, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, userID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if userID != "" && entry.UserID != userID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrValidation
	}
	user.Username = username
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.Role == "" {
		user.Role = "owner"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func comparePurchaseRecency(a, b domain.Purchase) int {
	if !a.PurchaseDate.Equal(b.PurchaseDate) {
		if a.PurchaseDate.After(b.PurchaseDate) {
			return -1
		}
		return 1
	}
	return cmpString(a.ID, b.ID)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func clonePurchase(src domain.Purchase) domain.Purchase {
	dup := src
	if src.DeliveryDate != nil {
		at := *src.DeliveryDate
		dup.DeliveryDate = &at
	}
	if src.SaleDate != nil {
		at := *src.SaleDate
		dup.SaleDate = &at
	}
	if src.SoldValue != nil {
		v := *src.SoldValue
		dup.SoldValue = &v
	}
	if src.Profit != nil {
		v := *src.Profit
		dup.Profit = &v
	}
	return dup
}
