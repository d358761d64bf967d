package models

import "time"

// Listing status values. SOLD and CANCELLED are terminal.
const (
	ListingStatusActive    = "ACTIVE"
	ListingStatusSold      = "SOLD"
	ListingStatusCancelled = "CANCELLED"
)

// Order status values. The synchronous engine fulfills orders in one atomic
// unit, so FULFILLED is the only status it produces.
const (
	OrderStatusFulfilled = "FULFILLED"
)

// Listing is an item a seller has put up on the guild market. Quantity
// decrements per fulfilled order; at zero the listing flips to SOLD.
type Listing struct {
	ListingID    string    `json:"listing_id" db:"listing_id"`
	GuildID      string    `json:"guild_id" db:"guild_id"`
	SellerID     string    `json:"seller_id" db:"seller_id"`
	Title        string    `json:"title" db:"title"`
	UnitPrice    int64     `json:"unit_price" db:"unit_price"`
	RemainingQty int64     `json:"remaining_qty" db:"remaining_qty"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Order records a fulfilled purchase. Immutable once written.
type Order struct {
	OrderID   string    `json:"order_id" db:"order_id"`
	ListingID string    `json:"listing_id" db:"listing_id"`
	GuildID   string    `json:"guild_id" db:"guild_id"`
	BuyerID   string    `json:"buyer_id" db:"buyer_id"`
	Qty       int64     `json:"qty" db:"qty"`
	UnitPrice int64     `json:"unit_price" db:"unit_price"` // price at purchase time
	Fee       int64     `json:"fee" db:"fee"`
	Total     int64     `json:"total" db:"total"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
