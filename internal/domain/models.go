package domain

import "time"

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "PENDING"
	PurchaseStatusDelivered PurchaseStatus = "DELIVERED"
	PurchaseStatusSold      PurchaseStatus = "SOLD"
	// PurchaseStatusCancelled is reserved; no transition produces it.
	PurchaseStatusCancelled PurchaseStatus = "CANCELLED"
)

var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseStatusPending:   {PurchaseStatusDelivered},
	PurchaseStatusDelivered: {PurchaseStatusSold},
	PurchaseStatusSold:      {PurchaseStatusDelivered},
}

func (s PurchaseStatus) IsValid() bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusDelivered, PurchaseStatusSold, PurchaseStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s PurchaseStatus) CanTransitionTo(next PurchaseStatus) bool {
	for _, allowed := range purchaseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Product struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Storage   string    `json:"storage"`
	Color     string    `json:"color"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name    string `json:"name"`
	Model   string `json:"model"`
	Storage string `json:"storage"`
	Color   string `json:"color"`
}

type ProductUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Model   *string `json:"model,omitempty"`
	Storage *string `json:"storage,omitempty"`
	Color   *string `json:"color,omitempty"`
	Active  *bool   `json:"active,omitempty"`
}

type ProductDeleteResponse struct {
	ProductID   string `json:"product_id"`
	Deactivated bool   `json:"deactivated"`
	Deleted     bool   `json:"deleted"`
}

type Purchase struct {
	ID              string         `json:"id"`
	ProductID       string         `json:"product_id"`
	UserID          string         `json:"user_id"`
	PaidValue       float64        `json:"paid_value"`
	Shipping        float64        `json:"shipping"`
	AdvanceDiscount float64        `json:"advance_discount"`
	Cashback        float64        `json:"cashback"`
	Points          int64          `json:"points"`
	Thousand        float64        `json:"thousand"`
	PointsPerReal   float64        `json:"points_per_real"`
	Account         string         `json:"account"`
	ClubAndStore    string         `json:"club_and_store"`
	OrderNumber     string         `json:"order_number"`
	PurchaseDate    time.Time      `json:"purchase_date"`
	DeliveryDate    *time.Time     `json:"delivery_date,omitempty"`
	FinalCost       float64        `json:"final_cost"`
	PointsReceived  bool           `json:"points_received"`
	Status          PurchaseStatus `json:"status"`
	SoldValue       *float64       `json:"sold_value,omitempty"`
	SaleDate        *time.Time     `json:"sale_date,omitempty"`
	Customer        string         `json:"customer,omitempty"`
	SerialNumber    string         `json:"serial_number,omitempty"`
	Profit          *float64       `json:"profit,omitempty"`
	Month           string         `json:"month,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ClearSale drops every sale-phase field together.
func (p *Purchase) ClearSale() {
	p.SoldValue = nil
	p.SaleDate = nil
	p.Customer = ""
	p.SerialNumber = ""
	p.Profit = nil
	p.Month = ""
}

type PurchaseCreateRequest struct {
	ProductID       string     `json:"product_id"`
	PaidValue       *float64   `json:"paid_value"`
	Shipping        float64    `json:"shipping"`
	AdvanceDiscount float64    `json:"advance_discount"`
	Cashback        float64    `json:"cashback"`
	Points          *int64     `json:"points,omitempty"`
	Thousand        float64    `json:"thousand"`
	PointsPerReal   float64    `json:"points_per_real"`
	Account         string     `json:"account"`
	ClubAndStore    string     `json:"club_and_store"`
	OrderNumber     string     `json:"order_number"`
	PurchaseDate    *time.Time `json:"purchase_date,omitempty"`
	DeliveryDate    *time.Time `json:"delivery_date,omitempty"`
	PointsReceived  bool       `json:"points_received"`
}

type PurchaseUpdateRequest struct {
	ProductID       *string    `json:"product_id,omitempty"`
	PaidValue       *float64   `json:"paid_value,omitempty"`
	Shipping        *float64   `json:"shipping,omitempty"`
	AdvanceDiscount *float64   `json:"advance_discount,omitempty"`
	Cashback        *float64   `json:"cashback,omitempty"`
	Points          *int64     `json:"points,omitempty"`
	Thousand        *float64   `json:"thousand,omitempty"`
	PointsPerReal   *float64   `json:"points_per_real,omitempty"`
	Account         *string    `json:"account,omitempty"`
	ClubAndStore    *string    `json:"club_and_store,omitempty"`
	OrderNumber     *string    `json:"order_number,omitempty"`
	PurchaseDate    *time.Time `json:"purchase_date,omitempty"`
	DeliveryDate    *time.Time `json:"delivery_date,omitempty"`
	SoldValue       *float64   `json:"sold_value,omitempty"`
}

// TouchesCost reports whether any final cost input is present in the patch.
func (r PurchaseUpdateRequest) TouchesCost() bool {
	return r.PaidValue != nil || r.Shipping != nil || r.AdvanceDiscount != nil ||
		r.Cashback != nil || r.Points != nil || r.Thousand != nil
}

type DeliverRequest struct {
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
}

type SaleRequest struct {
	SoldValue    *float64   `json:"sold_value"`
	SaleDate     *time.Time `json:"sale_date,omitempty"`
	Customer     string     `json:"customer"`
	SerialNumber string     `json:"serial_number"`
}

type SaleEditRequest struct {
	SoldValue    *float64   `json:"sold_value,omitempty"`
	SaleDate     *time.Time `json:"sale_date,omitempty"`
	Customer     *string    `json:"customer,omitempty"`
	SerialNumber *string    `json:"serial_number,omitempty"`
}

type PointsReceivedRequest struct {
	Received bool `json:"received"`
}

type PointsReceivedResponse struct {
	PurchaseID  string `json:"purchase_id"`
	OrderNumber string `json:"order_number,omitempty"`
	Received    bool   `json:"received"`
	Updated     int    `json:"updated"`
}

type PurchaseFilter struct {
	Status      PurchaseStatus
	ProductID   string
	OrderNumber string
	Limit       int
}

type StockEntry struct {
	ProductID           string  `json:"product_id"`
	ProductName         string  `json:"product_name,omitempty"`
	InStock             int     `json:"in_stock"`
	OnTheWay            int     `json:"on_the_way"`
	AverageCost         float64 `json:"average_cost"`
	AverageCostOnTheWay float64 `json:"average_cost_on_the_way"`
	TotalValue          float64 `json:"total_value"`
	TotalValueOnTheWay  float64 `json:"total_value_on_the_way"`
	AverageDaysInStock  float64 `json:"average_days_in_stock"`
}

type StockResponse struct {
	Items         []StockEntry `json:"items"`
	TotalInStock  int          `json:"total_in_stock"`
	TotalOnTheWay int          `json:"total_on_the_way"`
	TotalValue    float64      `json:"total_value"`
	GeneratedAt   time.Time    `json:"generated_at"`
}

type PointsGroup struct {
	Key            string    `json:"key"`
	OrderNumber    string    `json:"order_number,omitempty"`
	PurchaseIDs    []string  `json:"purchase_ids"`
	Account        string    `json:"account,omitempty"`
	ClubAndStore   string    `json:"club_and_store,omitempty"`
	PurchaseDate   time.Time `json:"purchase_date"`
	TotalValue     float64   `json:"total_value"`
	TotalPoints    int64     `json:"total_points"`
	PointsReceived bool      `json:"points_received"`
}

type PointsSummary struct {
	Pending        []PointsGroup `json:"pending"`
	Received       []PointsGroup `json:"received"`
	PendingPoints  int64         `json:"pending_points"`
	ReceivedPoints int64         `json:"received_points"`
	PendingValue   float64       `json:"pending_value"`
	ReceivedValue  float64       `json:"received_value"`
}

type ReportRequest struct {
	Period string
	Start  string
	End    string
	Top    int
}

type ProductBreakdown struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Sales       int     `json:"sales"`
	Revenue     float64 `json:"revenue"`
	Profit      float64 `json:"profit"`
}

type CustomerBreakdown struct {
	Customer string  `json:"customer"`
	Sales    int     `json:"sales"`
	Revenue  float64 `json:"revenue"`
}

type ClubBreakdown struct {
	ClubAndStore string  `json:"club_and_store"`
	Purchases    int     `json:"purchases"`
	Points       int64   `json:"points"`
	Investment   float64 `json:"investment"`
}

type Report struct {
	Period          string              `json:"period"`
	Start           time.Time           `json:"start"`
	End             time.Time           `json:"end"`
	TotalPurchases  int                 `json:"total_purchases"`
	TotalInvestment float64             `json:"total_investment"`
	TotalSales      int                 `json:"total_sales"`
	TotalRevenue    float64             `json:"total_revenue"`
	TotalProfit     float64             `json:"total_profit"`
	ProfitMargin    float64             `json:"profit_margin"`
	StockValue      float64             `json:"stock_value"`
	PointsEarned    int64               `json:"points_earned"`
	TotalCashback   float64             `json:"total_cashback"`
	TotalDiscounts  float64             `json:"total_discounts"`
	PointsToReceive int64               `json:"points_to_receive"`
	AverageDiscount float64             `json:"average_discount"`
	TopProducts     []ProductBreakdown  `json:"top_products"`
	TopCustomers    []CustomerBreakdown `json:"top_customers"`
	TopClubs        []ClubBreakdown     `json:"top_clubs"`
}

type ReferenceData struct {
	Accounts       []string `json:"accounts"`
	ClubsAndStores []string `json:"clubs_and_stores"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	UserID   string
	Username string
	Role     string
}

type UserAccount struct {
	ID        string
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ActorUsername string    `json:"actor_username"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
