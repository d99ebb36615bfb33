package analytics

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

// Service aggregates sales data over settled orders. Only transactions in
// SUCCESS state count; pending and failed attempts are invisible here.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// SalesSummary is the headline view of settled checkout volume.
type SalesSummary struct {
	TotalOrders    int     `json:"total_orders"`
	TotalRevenue   float64 `json:"total_revenue"`
	TotalDiscounts float64 `json:"total_discounts"`
	TicketsIssued  int     `json:"tickets_issued"`
}

// DailySalesMetrics contains per-day settled sales.
type DailySalesMetrics struct {
	Date        string  `json:"date"`
	OrderCount  int     `json:"order_count"`
	Revenue     float64 `json:"revenue"`
	TicketsSold int     `json:"tickets_sold"`
}

// VoucherUsageMetrics reports how much discount each voucher has driven on
// settled orders.
type VoucherUsageMetrics struct {
	VoucherID     string  `json:"voucher_id"`
	TimesUsed     int     `json:"times_used"`
	TotalDiscount float64 `json:"total_discount"`
}

// GetSalesSummary aggregates all settled orders.
func (s *Service) GetSalesSummary(ctx context.Context) (*SalesSummary, error) {
	summary := &SalesSummary{}

	err := s.db.NewSelect().
		ColumnExpr("COUNT(*) AS total_orders").
		ColumnExpr("COALESCE(SUM(o.final_amount), 0) AS total_revenue").
		ColumnExpr("COALESCE(SUM(o.discount_amount), 0) AS total_discounts").
		TableExpr("orders AS o").
		Join("JOIN transactions AS t ON t.order_id = o.order_id").
		Where("t.status = ?", models.TransactionSuccess).
		Scan(ctx, &summary.TotalOrders, &summary.TotalRevenue, &summary.TotalDiscounts)
	if err != nil {
		return nil, err
	}

	count, err := s.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Count(ctx)
	if err != nil {
		return nil, err
	}
	summary.TicketsIssued = count

	return summary, nil
}

// GetDailySales returns per-day settled sales for the trailing window.
func (s *Service) GetDailySales(ctx context.Context, days int) ([]DailySalesMetrics, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	var metrics []DailySalesMetrics
	err := s.db.NewSelect().
		ColumnExpr("DATE(t.settled_at)::text AS date").
		ColumnExpr("COUNT(*) AS order_count").
		ColumnExpr("COALESCE(SUM(o.final_amount), 0) AS revenue").
		ColumnExpr("COALESCE(SUM((SELECT SUM(od.quantity) FROM order_details od WHERE od.order_id = o.order_id)), 0) AS tickets_sold").
		TableExpr("orders AS o").
		Join("JOIN transactions AS t ON t.order_id = o.order_id").
		Where("t.status = ?", models.TransactionSuccess).
		Where("t.settled_at >= ?", since).
		GroupExpr("DATE(t.settled_at)").
		OrderExpr("DATE(t.settled_at) ASC").
		Scan(ctx, &metrics)
	if err != nil {
		return nil, err
	}
	return metrics, nil
}

// GetVoucherUsage aggregates discount contribution per voucher over settled
// orders.
func (s *Service) GetVoucherUsage(ctx context.Context) ([]VoucherUsageMetrics, error) {
	var metrics []VoucherUsageMetrics
	err := s.db.NewSelect().
		ColumnExpr("ov.voucher_id AS voucher_id").
		ColumnExpr("COUNT(*) AS times_used").
		ColumnExpr("COALESCE(SUM(ov.discount_amount), 0) AS total_discount").
		TableExpr("order_vouchers AS ov").
		Join("JOIN transactions AS t ON t.order_id = ov.order_id").
		Where("t.status = ?", models.TransactionSuccess).
		GroupExpr("ov.voucher_id").
		OrderExpr("total_discount DESC").
		Scan(ctx, &metrics)
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
