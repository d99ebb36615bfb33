package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order is the immutable priced snapshot created at checkout.
// Totals are never recomputed after creation.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID          string    `bun:"order_id,pk" json:"order_id"`
	UserID           string    `bun:"user_id,notnull" json:"user_id"`
	TotalAmount      float64   `bun:"total_amount,notnull" json:"total_amount"`
	DiscountAmount   float64   `bun:"discount_amount,notnull" json:"discount_amount"`
	FinalAmount      float64   `bun:"final_amount,notnull" json:"final_amount"`
	PrimaryVoucherID string    `bun:"primary_voucher_id,nullzero" json:"primary_voucher_id,omitempty"`
	CreatedAt        time.Time `bun:"created_at,notnull" json:"created_at"`
}

// OrderDetail is one line per distinct catalog item in an order. UnitPrice is
// frozen at order-build time and is immune to later catalog price changes.
type OrderDetail struct {
	bun.BaseModel `bun:"table:order_details"`

	OrderDetailID string    `bun:"order_detail_id,pk" json:"order_detail_id"`
	OrderID       string    `bun:"order_id,notnull" json:"order_id"`
	CatalogItemID string    `bun:"catalog_item_id,notnull" json:"catalog_item_id"`
	ItemName      string    `bun:"item_name" json:"item_name"`
	OwnerType     OwnerType `bun:"owner_type,notnull" json:"owner_type"`
	Quantity      int       `bun:"quantity,notnull" json:"quantity"`
	UnitPrice     float64   `bun:"unit_price,notnull" json:"unit_price"`
}

// OrderVoucher links an order to a consumed voucher instance and records the
// discount that instance contributed. One row per applied voucher.
type OrderVoucher struct {
	bun.BaseModel `bun:"table:order_vouchers"`

	OrderVoucherID string  `bun:"order_voucher_id,pk" json:"order_voucher_id"`
	OrderID        string  `bun:"order_id,notnull" json:"order_id"`
	UserVoucherID  string  `bun:"user_voucher_id,notnull" json:"user_voucher_id"`
	VoucherID      string  `bun:"voucher_id,notnull" json:"voucher_id"`
	DiscountAmount float64 `bun:"discount_amount,notnull" json:"discount_amount"`
}

type OrderRequest struct {
	CartItemIDs []string `json:"cart_item_ids"`
	VoucherIDs  []string `json:"voucher_ids"`
}

type OrderWithDetails struct {
	Order       Order         `json:"order"`
	Details     []OrderDetail `json:"details"`
	Transaction *Transaction  `json:"transaction,omitempty"`
}

type OrderResponse struct {
	Order       Order         `json:"order"`
	Details     []OrderDetail `json:"details"`
	Transaction Transaction   `json:"transaction"`
	CheckoutURL string        `json:"checkout_url,omitempty"`
}

type PreviewRequest struct {
	CartItemIDs []string `json:"cart_item_ids"`
	VoucherIDs  []string `json:"voucher_ids"`
}
