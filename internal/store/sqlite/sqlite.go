// Package sqlite is a single-file Repository backed by GORM, meant for a
// reseller running the backend on one machine without a database server.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/store"
	"resaleledger/backend/internal/xid"
)

type Store struct {
	db *gorm.DB
}

// New opens (or creates) the database at path and migrates the tables.
// ":memory:" gives a private in-process database.
func New(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one writer; also keeps ":memory:" on a single shared connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&productRow{}, &purchaseRow{}, &auditLogRow{}, &userRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) ListProducts(ctx context.Context, userID string, includeInactive bool) ([]domain.Product, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	var rows []productRow
	if err := query.Order("name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toDomain())
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, userID string, id string) (*domain.Product, error) {
	var row productRow
	if err := s.db.WithContext(ctx).First(&row, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, translateError(err)
	}
	p := row.toDomain()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.UserID) == "" || strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now

	row := productRowFrom(product)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, translateError(err)
	}
	created := row.toDomain()
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrValidation
	}

	var updated productRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing productRow
		if err := tx.First(&existing, "id = ? AND user_id = ?", product.ID, product.UserID).Error; err != nil {
			return translateError(err)
		}
		existing.Name = product.Name
		existing.Model = product.Model
		existing.Storage = product.Storage
		existing.Color = product.Color
		existing.Active = product.Active
		existing.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	p := updated.toDomain()
	return &p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, userID string, id string) error {
	result := s.db.WithContext(ctx).Delete(&productRow{}, "id = ? AND user_id = ?", id, userID)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountPurchasesByProduct(ctx context.Context, userID string, productID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&purchaseRow{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&count).Error
	return int(count), err
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if strings.TrimSpace(purchase.UserID) == "" || strings.TrimSpace(purchase.ProductID) == "" {
		return nil, store.ErrValidation
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	now := time.Now().UTC()
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = now
	}
	purchase.UpdatedAt = now

	row := purchaseRowFrom(purchase)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureProductOwned(tx, purchase.UserID, purchase.ProductID); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, translateError(err)
	}
	created := row.toDomain()
	return &created, nil
}

func (s *Store) GetPurchase(ctx context.Context, userID string, id string) (*domain.Purchase, error) {
	var row purchaseRow
	if err := s.db.WithContext(ctx).First(&row, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, translateError(err)
	}
	p := row.toDomain()
	return &p, nil
}

func (s *Store) ListPurchases(ctx context.Context, userID string, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.ProductID != "" {
		query = query.Where("product_id = ?", filter.ProductID)
	}
	if orderNumber := strings.TrimSpace(filter.OrderNumber); orderNumber != "" {
		query = query.Where("trim(order_number) = ?", orderNumber)
	}
	query = query.Order("purchase_date DESC, id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []purchaseRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	purchases := make([]domain.Purchase, 0, len(rows))
	for _, row := range rows {
		purchases = append(purchases, row.toDomain())
	}
	return purchases, nil
}

func (s *Store) MutatePurchase(ctx context.Context, userID string, id string, mutate store.PurchaseMutation) (*domain.Purchase, error) {
	var result domain.Purchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row purchaseRow
		if err := tx.First(&row, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			return translateError(err)
		}
		current := row.toDomain()
		working := current
		if err := mutate(&working); err != nil {
			return err
		}
		working.ID = current.ID
		working.UserID = current.UserID
		working.CreatedAt = current.CreatedAt
		working.UpdatedAt = time.Now().UTC()

		if working.ProductID != current.ProductID {
			if err := ensureProductOwned(tx, userID, working.ProductID); err != nil {
				return err
			}
		}

		updated := purchaseRowFrom(working)
		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		result = updated.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) DeletePurchase(ctx context.Context, userID string, id string, guard store.PurchaseGuard) (*domain.Purchase, error) {
	var removed domain.Purchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row purchaseRow
		if err := tx.First(&row, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			return translateError(err)
		}
		removed = row.toDomain()
		if guard != nil {
			if err := guard(removed); err != nil {
				return err
			}
		}
		return tx.Delete(&purchaseRow{}, "id = ? AND user_id = ?", id, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

func (s *Store) SetPointsReceived(ctx context.Context, userID string, purchaseID string, received bool) (int, error) {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row purchaseRow
		if err := tx.First(&row, "id = ? AND user_id = ?", purchaseID, userID).Error; err != nil {
			return translateError(err)
		}

		query := tx.Model(&purchaseRow{})
		if orderNumber := strings.TrimSpace(row.OrderNumber); orderNumber == "" {
			query = query.Where("id = ? AND user_id = ?", purchaseID, userID)
		} else {
			query = query.Where("user_id = ? AND trim(order_number) = ?", userID, orderNumber)
		}
		result := query.Updates(map[string]any{
			"points_received": received,
			"updated_at":      time.Now().UTC(),
		})
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	row := auditLogRow(entry)
	row.CreatedAt = row.CreatedAt.UTC()
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) ListAuditLogs(ctx context.Context, userID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	var rows []auditLogRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from.UTC(), to.UTC()).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	logs := make([]domain.AuditLog, 0, len(rows))
	for _, row := range rows {
		entry := domain.AuditLog(row)
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.Role == "" {
		user.Role = "owner"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	row := userRow{
		ID:        user.ID,
		Username:  user.Username,
		Password:  user.Password,
		Role:      user.Role,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]domain.UserAccount, 0, len(rows))
	for _, row := range rows {
		users = append(users, domain.UserAccount{
			ID:        row.ID,
			Username:  row.Username,
			Password:  row.Password,
			Role:      row.Role,
			Active:    row.Active,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	result := s.db.WithContext(ctx).Model(&userRow{}).
		Where("username = ?", username).
		Updates(map[string]any{"password": password, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func ensureProductOwned(tx *gorm.DB, userID string, productID string) error {
	var count int64
	if err := tx.Model(&productRow{}).Where("id = ? AND user_id = ?", productID, userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return nil
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrValidation
	}
	return err
}
