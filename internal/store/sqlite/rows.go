package sqlite

import (
	"time"

	"resaleledger/backend/internal/domain"
)

type productRow struct {
	ID        string    `gorm:"primarykey;size:64"`
	UserID    string    `gorm:"size:64;not null;index"`
	Name      string    `gorm:"size:200;not null"`
	Model     string    `gorm:"size:100"`
	Storage   string    `gorm:"size:50"`
	Color     string    `gorm:"size:50"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (productRow) TableName() string {
	return "products"
}

func productRowFrom(p domain.Product) productRow {
	return productRow(p)
}

func (r productRow) toDomain() domain.Product {
	p := domain.Product(r)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p
}

type purchaseRow struct {
	ID              string  `gorm:"primarykey;size:64"`
	ProductID       string  `gorm:"size:64;not null;index"`
	UserID          string  `gorm:"size:64;not null;index:idx_purchases_user_status,priority:1;index:idx_purchases_user_order,priority:1"`
	PaidValue       float64 `gorm:"not null"`
	Shipping        float64 `gorm:"not null;default:0"`
	AdvanceDiscount float64 `gorm:"not null;default:0"`
	Cashback        float64 `gorm:"not null;default:0"`
	Points          int64   `gorm:"not null;default:0"`
	Thousand        float64 `gorm:"not null;default:0"`
	PointsPerReal   float64 `gorm:"not null;default:0"`
	Account         string  `gorm:"size:100"`
	ClubAndStore    string  `gorm:"size:100"`
	OrderNumber     string  `gorm:"size:100;index:idx_purchases_user_order,priority:2"`
	PurchaseDate    time.Time
	DeliveryDate    *time.Time
	FinalCost       float64 `gorm:"not null"`
	PointsReceived  bool    `gorm:"not null;default:false"`
	Status          string  `gorm:"size:16;not null;index:idx_purchases_user_status,priority:2"`
	SoldValue       *float64
	SaleDate        *time.Time
	Customer        string `gorm:"size:200"`
	SerialNumber    string `gorm:"size:100"`
	Profit          *float64
	Month           string `gorm:"size:20"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (purchaseRow) TableName() string {
	return "purchases"
}

func purchaseRowFrom(p domain.Purchase) purchaseRow {
	return purchaseRow{
		ID:              p.ID,
		ProductID:       p.ProductID,
		UserID:          p.UserID,
		PaidValue:       p.PaidValue,
		Shipping:        p.Shipping,
		AdvanceDiscount: p.AdvanceDiscount,
		Cashback:        p.Cashback,
		Points:          p.Points,
		Thousand:        p.Thousand,
		PointsPerReal:   p.PointsPerReal,
		Account:         p.Account,
		ClubAndStore:    p.ClubAndStore,
		OrderNumber:     p.OrderNumber,
		PurchaseDate:    p.PurchaseDate.UTC(),
		DeliveryDate:    utcPtr(p.DeliveryDate),
		FinalCost:       p.FinalCost,
		PointsReceived:  p.PointsReceived,
		Status:          string(p.Status),
		SoldValue:       p.SoldValue,
		SaleDate:        utcPtr(p.SaleDate),
		Customer:        p.Customer,
		SerialNumber:    p.SerialNumber,
		Profit:          p.Profit,
		Month:           p.Month,
		CreatedAt:       p.CreatedAt.UTC(),
		UpdatedAt:       p.UpdatedAt.UTC(),
	}
}

func (r purchaseRow) toDomain() domain.Purchase {
	return domain.Purchase{
		ID:              r.ID,
		ProductID:       r.ProductID,
		UserID:          r.UserID,
		PaidValue:       r.PaidValue,
		Shipping:        r.Shipping,
		AdvanceDiscount: r.AdvanceDiscount,
		Cashback:        r.Cashback,
		Points:          r.Points,
		Thousand:        r.Thousand,
		PointsPerReal:   r.PointsPerReal,
		Account:         r.Account,
		ClubAndStore:    r.ClubAndStore,
		OrderNumber:     r.OrderNumber,
		PurchaseDate:    r.PurchaseDate.UTC(),
		DeliveryDate:    utcPtr(r.DeliveryDate),
		FinalCost:       r.FinalCost,
		PointsReceived:  r.PointsReceived,
		Status:          domain.PurchaseStatus(r.Status),
		SoldValue:       r.SoldValue,
		SaleDate:        utcPtr(r.SaleDate),
		Customer:        r.Customer,
		SerialNumber:    r.SerialNumber,
		Profit:          r.Profit,
		Month:           r.Month,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

type auditLogRow struct {
	ID            string `gorm:"primarykey;size:64"`
	UserID        string `gorm:"size:64;not null;index"`
	ActorUsername string `gorm:"size:100"`
	Action        string `gorm:"size:64"`
	EntityType    string `gorm:"size:32"`
	EntityID      string `gorm:"size:64"`
	Detail        string
	CreatedAt     time.Time `gorm:"index"`
}

func (auditLogRow) TableName() string {
	return "audit_logs"
}

type userRow struct {
	ID        string `gorm:"primarykey;size:64"`
	Username  string `gorm:"size:100;not null;uniqueIndex"`
	Password  string `gorm:"not null"`
	Role      string `gorm:"size:32;not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string {
	return "app_users"
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	at := t.UTC()
	return &at
}
