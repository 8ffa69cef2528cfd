package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"resaleledger/backend/internal/domain"
	"resaleledger/backend/internal/store"
	"resaleledger/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

const productColumns = `id, user_id, name, model, storage, color, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Model, &p.Storage, &p.Color, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, userID string, includeInactive bool) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE user_id = $1 AND (active = true OR $2)
		ORDER BY name, id
	`, userID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, userID string, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, user_id, name, model, storage, color, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, product.ID, product.UserID, product.Name, product.Model, product.Storage, product.Color, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrValidation
	}

	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $3, model = $4, storage = $5, color = $6, active = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+productColumns,
		product.ID, product.UserID, product.Name, product.Model, product.Storage, product.Color, product.Active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, userID string, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountPurchasesByProduct(ctx context.Context, userID string, productID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM purchases WHERE user_id = $1 AND product_id = $2
	`, userID, productID).Scan(&count)
	return count, err
}

const purchaseColumns = `id, product_id, user_id, paid_value, shipping, advance_discount, cashback, points,
	thousand, points_per_real, account, club_and_store, order_number, purchase_date, delivery_date,
	final_cost, points_received, status, sold_value, sale_date, customer, serial_number, profit, month,
	created_at, updated_at`

func scanPurchase(row rowScanner) (domain.Purchase, error) {
	var (
		p            domain.Purchase
		status       string
		deliveryDate sql.NullTime
		saleDate     sql.NullTime
		soldValue    sql.NullFloat64
		profit       sql.NullFloat64
	)
	err := row.Scan(
		&p.ID, &p.ProductID, &p.UserID, &p.PaidValue, &p.Shipping, &p.AdvanceDiscount, &p.Cashback, &p.Points,
		&p.Thousand, &p.PointsPerReal, &p.Account, &p.ClubAndStore, &p.OrderNumber, &p.PurchaseDate, &deliveryDate,
		&p.FinalCost, &p.PointsReceived, &status, &soldValue, &saleDate, &p.Customer, &p.SerialNumber, &profit, &p.Month,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Purchase{}, err
	}
	p.Status = domain.PurchaseStatus(status)
	p.PurchaseDate = p.PurchaseDate.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if deliveryDate.Valid {
		at := deliveryDate.Time.UTC()
		p.DeliveryDate = &at
	}
	if saleDate.Valid {
		at := saleDate.Time.UTC()
		p.SaleDate = &at
	}
	if soldValue.Valid {
		v := soldValue.Float64
		p.SoldValue = &v
	}
	if profit.Valid {
		v := profit.Float64
		p.Profit = &v
	}
	return p, nil
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureProductOwned(ctx, tx, purchase.UserID, purchase.ProductID); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
	`, purchaseArgs(purchase)...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := purchase
	return &created, nil
}

func (s *Store) GetPurchase(ctx context.Context, userID string, id string) (*domain.Purchase, error) {
	p, err := scanPurchase(s.db.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPurchases(ctx context.Context, userID string, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id = $1`
	args := []any{userID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if orderNumber := strings.TrimSpace(filter.OrderNumber); orderNumber != "" {
		args = append(args, orderNumber)
		query += fmt.Sprintf(" AND btrim(order_number) = $%d", len(args))
	}
	query += " ORDER BY purchase_date DESC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 64)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) MutatePurchase(ctx context.Context, userID string, id string, mutate store.PurchaseMutation) (*domain.Purchase, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := lockPurchase(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}

	working := current
	if err := mutate(&working); err != nil {
		return nil, err
	}
	working.ID = current.ID
	working.UserID = current.UserID
	working.CreatedAt = current.CreatedAt
	working.UpdatedAt = time.Now().UTC()

	if working.ProductID != current.ProductID {
		if err := ensureProductOwned(ctx, tx, userID, working.ProductID); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE purchases
		SET product_id = $2, paid_value = $4, shipping = $5, advance_discount = $6, cashback = $7, points = $8,
			thousand = $9, points_per_real = $10, account = $11, club_and_store = $12, order_number = $13,
			purchase_date = $14, delivery_date = $15, final_cost = $16, points_received = $17, status = $18,
			sold_value = $19, sale_date = $20, customer = $21, serial_number = $22, profit = $23, month = $24,
			updated_at = $26
		WHERE id = $1 AND user_id = $3
	`, purchaseArgs(working)...)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &working, nil
}

func (s *Store) DeletePurchase(ctx context.Context, userID string, id string, guard store.PurchaseGuard) (*domain.Purchase, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := lockPurchase(ctx, tx, userID, id)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(current); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE id = $1 AND user_id = $2`, id, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &current, nil
}

func (s *Store) SetPointsReceived(ctx context.Context, userID string, purchaseID string, received bool) (int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var orderNumber string
	err = tx.QueryRowContext(ctx, `
		SELECT btrim(order_number)
		FROM purchases
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, purchaseID, userID).Scan(&orderNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}

	var res sql.Result
	if orderNumber == "" {
		res, err = tx.ExecContext(ctx, `
			UPDATE purchases SET points_received = $3, updated_at = now()
			WHERE id = $1 AND user_id = $2
		`, purchaseID, userID, received)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE purchases SET points_received = $3, updated_at = now()
			WHERE user_id = $1 AND btrim(order_number) = $2
		`, userID, orderNumber, received)
	}
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, actor_username, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.UserID, entry.ActorUsername, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, userID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, actor_username, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE user_id = $1
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, userID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.ActorUsername, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.ID, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrValidation
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 4)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func lockPurchase(ctx context.Context, tx *sql.Tx, userID string, id string) (domain.Purchase, error) {
	p, err := scanPurchase(tx.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Purchase{}, store.ErrNotFound
		}
		return domain.Purchase{}, err
	}
	return p, nil
}

func ensureProductOwned(ctx context.Context, tx *sql.Tx, userID string, productID string) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND user_id = $2)
	`, productID, userID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}

// purchaseArgs follows the purchaseColumns order.
func purchaseArgs(p domain.Purchase) []any {
	return []any{
		p.ID, p.ProductID, p.UserID, p.PaidValue, p.Shipping, p.AdvanceDiscount, p.Cashback, p.Points,
		p.Thousand, p.PointsPerReal, p.Account, p.ClubAndStore, p.OrderNumber, p.PurchaseDate, nullTime(p.DeliveryDate),
		p.FinalCost, p.PointsReceived, string(p.Status), nullFloat(p.SoldValue), nullTime(p.SaleDate), p.Customer,
		p.SerialNumber, nullFloat(p.Profit), p.Month, p.CreatedAt, p.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullFloat(val *float64) any {
	if val == nil {
		return nil
	}
	return *val
}
