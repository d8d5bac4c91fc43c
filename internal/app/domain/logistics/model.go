package logistics

import (
	"time"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/pagination"
)

// OrderType distinguishes user drop-offs from courier pick-ups.
type OrderType string

const (
	TypeDropOff OrderType = "drop_off"
	TypePickUp  OrderType = "pick_up"
)

// Status tracks an order through review.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Category classifies a recyclable item.
type Category string

const (
	CategoryPlastic    Category = "plastic"
	CategoryPaper      Category = "paper"
	CategoryMetal      Category = "metal"
	CategoryGlass      Category = "glass"
	CategoryElectronic Category = "electronic"
	CategoryTextile    Category = "textile"
	CategoryOther      Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPlastic, CategoryPaper, CategoryMetal, CategoryGlass,
		CategoryElectronic, CategoryTextile, CategoryOther:
		return true
	}
	return false
}

// Order is a request to hand recyclables over to the platform.
type Order struct {
	ID           string     `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	Type         OrderType  `json:"type" db:"type"`
	Status       Status     `json:"status" db:"status"`
	DropPointID  string     `json:"drop_point_id,omitempty" db:"drop_point_id"`
	Address      string     `json:"address,omitempty" db:"address"`
	PickupAt     *time.Time `json:"pickup_at,omitempty" db:"pickup_at"`
	Items        []Item     `json:"items" db:"-"`
	TotalPoints  int64      `json:"total_points" db:"total_points"`
	Notes        string     `json:"notes,omitempty" db:"notes"`
	RejectReason string     `json:"reject_reason,omitempty" db:"reject_reason"`
	ReviewedBy   string     `json:"reviewed_by,omitempty" db:"reviewed_by"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Item is one line of recyclables within an order. Points is assigned on approval.
type Item struct {
	ID       string   `json:"id" db:"id"`
	OrderID  string   `json:"-" db:"order_id"`
	Name     string   `json:"name" db:"name"`
	Category Category `json:"category" db:"category"`
	Quantity int      `json:"quantity" db:"quantity"`
	WeightKg float64  `json:"weight_kg" db:"weight_kg"`
	Points   int64    `json:"points" db:"points"`
}

// Filter narrows an order listing.
type Filter struct {
	UserID string
	Status Status
}

// PageKey returns the keyset position used for newest-first listings.
func (o Order) PageKey() pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}
