package models

import "time"

// CheckoutItem is one display line sent to the gateway when creating a
// checkout link. Price is in major units; the gateway client converts.
type CheckoutItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// PaymentLink is the audit record kept for every checkout link created at the
// gateway. It never drives settlement; the Transaction does.
type PaymentLink struct {
	PaymentID   string    `json:"payment_id"`
	OrderID     string    `json:"order_id"`
	OrderCode   int64     `json:"order_code"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	URL         string    `json:"url"`
	CreatedDate time.Time `json:"created_date"`
}
