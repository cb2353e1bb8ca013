package domain

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every known order status.
var OrderStatuses = []OrderStatus{OrderPending, OrderCompleted, OrderCancelled}

func (s OrderStatus) Valid() bool {
	for _, st := range OrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Relations an order can eager-load.
const (
	RelationProducts = "products"
	RelationInvoice  = "invoice"
)

type Product struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// OrderProduct is a line item: a product attached to an order with a quantity.
type OrderProduct struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// ProductRef references a product when attaching it to an order.
type ProductRef struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type Invoice struct {
	ID       int64     `json:"id"`
	OrderID  int64     `json:"order_id"`
	Number   string    `json:"number"`
	Amount   int64     `json:"amount"`
	IssuedAt time.Time `json:"issued_at"`
}

// Order amounts are in minor currency units.
type Order struct {
	ID        int64          `json:"id"`
	ClientID  int64          `json:"client_id"`
	Status    OrderStatus    `json:"status"`
	Total     int64          `json:"total"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Products  []OrderProduct `json:"products,omitempty"`
	Invoice   *Invoice       `json:"invoice,omitempty"`
}

// NewOrder is the creation payload of an order.
type NewOrder struct {
	ClientID int64
	Status   OrderStatus
	Total    int64
	Products []ProductRef
}

// OrderPatch holds the mutable fields of an order; nil fields are left as is.
// The client reference is deliberately absent.
type OrderPatch struct {
	Status *OrderStatus
	Total  *int64
}

// Actor is the authenticated caller. ClientID is zero when the user has no client record.
type Actor struct {
	UserID   int64
	ClientID int64
}

func (a Actor) HasClient() bool { return a.ClientID > 0 }
