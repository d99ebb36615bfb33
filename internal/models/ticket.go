package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	TicketTypeEvent    = "EVENT"
	TicketTypeWorkshop = "WORKSHOP"
	TicketTypeEntrance = "ENTRANCE"
)

const (
	TicketActive  = "ACTIVE"
	TicketUsed    = "USED"
	TicketExpired = "EXPIRED"
)

// Ticket is one redeemable unit, issued only after payment settles. An order
// detail with quantity N yields exactly N tickets.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID       string    `bun:"ticket_id,pk" json:"ticket_id"`
	OrderID        string    `bun:"order_id,notnull" json:"order_id"`
	OrderDetailID  string    `bun:"order_detail_id,notnull" json:"order_detail_id"`
	UserID         string    `bun:"user_id,notnull" json:"user_id"`
	CatalogItemID  string    `bun:"catalog_item_id,notnull" json:"catalog_item_id"`
	Type           string    `bun:"type,notnull" json:"type"`
	TicketCode     string    `bun:"ticket_code,notnull,unique" json:"ticket_code"`
	RedemptionCode string    `bun:"redemption_code,notnull,unique" json:"redemption_code"`
	QRCode         []byte    `bun:"qr_code" json:"qr_code,omitempty"`
	Status         string    `bun:"status,notnull" json:"status"`
	IssuedAt       time.Time `bun:"issued_at,notnull" json:"issued_at"`
	ExpiresAt      time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	RedeemedAt     time.Time `bun:"redeemed_at,nullzero" json:"redeemed_at,omitempty"`
}

type RedeemTicketRequest struct {
	RedemptionCode string `json:"redemption_code"`
}

type OrderWithTickets struct {
	Order   Order    `json:"order"`
	Tickets []Ticket `json:"tickets"`
}
