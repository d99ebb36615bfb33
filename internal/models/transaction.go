package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const (
	TransactionPending = "PENDING"
	TransactionSuccess = "SUCCESS"
	TransactionFailed  = "FAILED"
)

// GatewayRefPrefix is prepended to the numeric order code to form the
// system-wide unique correlation key shared with the payment gateway.
const GatewayRefPrefix = "PAYOS_"

// GatewayRef builds the correlation key for an order code.
func GatewayRef(orderCode int64) string {
	return fmt.Sprintf("%s%d", GatewayRefPrefix, orderCode)
}

// Transaction is a single payment attempt for an order. Status moves
// PENDING -> SUCCESS exactly once; there is no way back.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions"`

	TransactionID string    `bun:"transaction_id,pk" json:"transaction_id"`
	OrderID       string    `bun:"order_id,notnull,unique" json:"order_id"`
	OrderCode     int64     `bun:"order_code,notnull,unique" json:"order_code"`
	GatewayRef    string    `bun:"gateway_ref,notnull,unique" json:"gateway_ref"`
	Amount        float64   `bun:"amount,notnull" json:"amount"`
	Currency      string    `bun:"currency,notnull" json:"currency"`
	Status        string    `bun:"status,notnull" json:"status"`
	Description   string    `bun:"description" json:"description"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	SettledAt     time.Time `bun:"settled_at,nullzero" json:"settled_at,omitempty"`
}

// voucherSuffixMarker delimits the voucher-instance list smuggled through the
// transaction description. Internal format only; consumers of the description
// must not depend on it.
const voucherSuffixMarker = " | Vouchers: "

// EncodeVoucherList appends the applied voucher-instance ids to a
// description. With no vouchers the description is returned unchanged.
func EncodeVoucherList(description string, userVoucherIDs []string) string {
	if len(userVoucherIDs) == 0 {
		return description
	}
	return description + voucherSuffixMarker + strings.Join(userVoucherIDs, ",")
}

// DecodeVoucherList extracts the voucher-instance ids encoded by
// EncodeVoucherList. Returns nil when no suffix is present.
func DecodeVoucherList(description string) []string {
	idx := strings.LastIndex(description, voucherSuffixMarker)
	if idx < 0 {
		return nil
	}
	raw := strings.TrimSpace(description[idx+len(voucherSuffixMarker):])
	if raw == "" {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// GatewayStatus is the authoritative answer from the payment gateway for one
// order code.
type GatewayStatus struct {
	OrderCode  int64  `json:"orderCode"`
	Status     string `json:"status"`
	PaidAmount int64  `json:"amountPaid"`
}

const (
	GatewayStatusPaid      = "PAID"
	GatewayStatusPending   = "PENDING"
	GatewayStatusCancelled = "CANCELLED"
)

// PaymentResult reports the outcome of a payment confirmation.
type PaymentResult struct {
	OrderID        string `json:"order_id"`
	OrderCode      int64  `json:"order_code"`
	Status         string `json:"status"`
	AlreadySettled bool   `json:"already_settled"`
	TicketsIssued  int    `json:"tickets_issued"`
}
