package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CartItem is a user-owned selectable line. Purchased items are pruned from
// the cart only after the order settles.
type CartItem struct {
	bun.BaseModel `bun:"table:cart_items"`

	CartItemID    string    `bun:"cart_item_id,pk" json:"cart_item_id"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	CatalogItemID string    `bun:"catalog_item_id,notnull" json:"catalog_item_id"`
	Quantity      int       `bun:"quantity,notnull" json:"quantity"`
	AddedAt       time.Time `bun:"added_at,notnull" json:"added_at"`
}

type AddCartItemRequest struct {
	CatalogItemID string `json:"catalog_item_id"`
	Quantity      int    `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Items     []CartItem `json:"items"`
	ItemCount int        `json:"item_count"`
}
