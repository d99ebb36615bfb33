package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	DiscountPercent = "PERCENT"
	DiscountFixed   = "FIXED"
)

// Voucher is a discount definition. Optional constraints are pointers; nil
// means unconstrained on that dimension.
type Voucher struct {
	bun.BaseModel `bun:"table:vouchers"`

	VoucherID        string    `bun:"voucher_id,pk" json:"voucher_id"`
	Code             string    `bun:"code,notnull,unique" json:"code"`
	DiscountType     string    `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue    float64   `bun:"discount_value,notnull" json:"discount_value"`
	MaxDiscountValue *float64  `bun:"max_discount_value" json:"max_discount_value,omitempty"`
	MinOrderValue    *float64  `bun:"min_order_value" json:"min_order_value,omitempty"`
	UsageLimit       *int      `bun:"usage_limit" json:"usage_limit,omitempty"`
	UsageCount       int       `bun:"usage_count,notnull,default:0" json:"usage_count"`
	StartDate        time.Time `bun:"start_date,notnull" json:"start_date"`
	EndDate          time.Time `bun:"end_date,notnull" json:"end_date"`
}

// UserVoucher is one obtained instance of a voucher. IsUsed flips to true at
// most once, at settlement, and never reverts.
type UserVoucher struct {
	bun.BaseModel `bun:"table:user_vouchers,alias:uv"`

	UserVoucherID string    `bun:"user_voucher_id,pk" json:"user_voucher_id"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	VoucherID     string    `bun:"voucher_id,notnull" json:"voucher_id"`
	IsUsed        bool      `bun:"is_used,notnull,default:false" json:"is_used"`
	ObtainedAt    time.Time `bun:"obtained_at,notnull" json:"obtained_at"`
	UsedAt        time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`

	Voucher *Voucher `bun:"rel:belongs-to,join:voucher_id=voucher_id" json:"voucher,omitempty"`
}

type ClaimVoucherRequest struct {
	Code string `json:"code"`
}
