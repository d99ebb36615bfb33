package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-checkout/internal/catalog"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/pricing"
)

type DBLayer interface {
	GetCartItemsByIDs(ctx context.Context, ids []string) ([]models.CartItem, error)
	GetUserVouchers(ctx context.Context, userID string) ([]models.UserVoucher, error)
	CreateOrderGraph(ctx context.Context, order models.Order, details []models.OrderDetail, vouchers []models.OrderVoucher, tx models.Transaction) error
	GetOrderWithDetails(ctx context.Context, orderID string) (*models.OrderWithDetails, error)
}

// PaymentGateway creates hosted checkout links. Creating a link never changes
// transaction state.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, orderCode int64, amount float64, description string, items []models.CheckoutItem) (string, error)
}

// LinkStore keeps an audit record per checkout link created.
type LinkStore interface {
	SavePaymentLink(link *models.PaymentLink) error
}

type KafkaPublisher interface {
	PublishOrderCreated(order models.Order) error
}

// OrderService converts validated cart selections into priced, immutable
// orders with a PENDING transaction pointing at the payment gateway.
type OrderService struct {
	DB        DBLayer
	Catalog   catalog.Fetcher
	Gateway   PaymentGateway
	Links     LinkStore
	Kafka     KafkaPublisher
	evaluator *pricing.Evaluator
	currency  string
	logger    *logger.Logger
}

func NewOrderService(db DBLayer, cat catalog.Fetcher, gateway PaymentGateway, links LinkStore, kafka KafkaPublisher, currency string, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:        db,
		Catalog:   cat,
		Gateway:   gateway,
		Links:     links,
		Kafka:     kafka,
		evaluator: pricing.NewEvaluator(),
		currency:  currency,
		logger:    log,
	}
}

// resolveSelection loads the requested cart items, verifies each one belongs
// to the user, and resolves prices against the catalog.
func (s *OrderService) resolveSelection(ctx context.Context, userID string, cartItemIDs []string) ([]pricing.LineItem, error) {
	items, err := s.DB.GetCartItemsByIDs(ctx, cartItemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}

	byID := make(map[string]models.CartItem, len(items))
	for _, item := range items {
		byID[item.CartItemID] = item
	}

	lines := make([]pricing.LineItem, 0, len(cartItemIDs))
	for _, id := range cartItemIDs {
		item, ok := byID[id]
		if !ok {
			return nil, &NotFoundError{Resource: "cart item", ID: id}
		}
		if item.UserID != userID {
			return nil, &OwnershipError{CartItemID: id}
		}

		catalogItem, err := s.Catalog.GetItem(ctx, item.CatalogItemID)
		if err != nil {
			return nil, &ExternalError{Service: "catalog service", Err: err}
		}

		lines = append(lines, pricing.LineItem{
			CatalogItemID: item.CatalogItemID,
			Name:          catalogItem.Name,
			OwnerType:     catalogItem.OwnerType,
			UnitPrice:     catalogItem.UnitPrice,
			Quantity:      item.Quantity,
		})
	}

	return lines, nil
}

// Preview prices a tentative selection without committing anything. Vouchers
// are re-validated at PlaceOrder time since eligibility can shift in between.
func (s *OrderService) Preview(ctx context.Context, userID string, req models.PreviewRequest) (*pricing.Quote, error) {
	if len(req.CartItemIDs) == 0 {
		return nil, ErrEmptySelection
	}

	lines, err := s.resolveSelection(ctx, userID, req.CartItemIDs)
	if err != nil {
		return nil, err
	}

	owned, err := s.DB.GetUserVouchers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vouchers: %w", err)
	}

	return s.evaluator.Evaluate(lines, owned, req.VoucherIDs, time.Now())
}

// PlaceOrder builds the order atomically: order, detail lines with frozen
// prices, applied-voucher rows, and a PENDING transaction carrying the
// gateway correlation key. Nothing is removed from the cart here.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, req models.OrderRequest) (*models.OrderResponse, error) {
	if len(req.CartItemIDs) == 0 {
		return nil, ErrEmptySelection
	}

	lines, err := s.resolveSelection(ctx, userID, req.CartItemIDs)
	if err != nil {
		return nil, err
	}

	owned, err := s.DB.GetUserVouchers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vouchers: %w", err)
	}

	// Never trust a client-supplied price: re-run the evaluator at commit
	quote, err := s.evaluator.Evaluate(lines, owned, req.VoucherIDs, time.Now())
	if err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	now := time.Now()

	order := models.Order{
		OrderID:        orderID,
		UserID:         userID,
		TotalAmount:    quote.Subtotal,
		DiscountAmount: quote.DiscountAmount,
		FinalAmount:    quote.FinalAmount,
		CreatedAt:      now,
	}
	// The order row holds a single primary voucher reference; the full list
	// travels in the transaction description and the order_vouchers rows.
	if len(quote.Applied) > 0 {
		order.PrimaryVoucherID = quote.Applied[0].VoucherID
	}

	details := make([]models.OrderDetail, 0, len(lines))
	for _, line := range lines {
		details = append(details, models.OrderDetail{
			OrderDetailID: uuid.NewString(),
			OrderID:       orderID,
			CatalogItemID: line.CatalogItemID,
			ItemName:      line.Name,
			OwnerType:     line.OwnerType,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
		})
	}

	orderVouchers := make([]models.OrderVoucher, 0, len(quote.Applied))
	appliedIDs := make([]string, 0, len(quote.Applied))
	for _, applied := range quote.Applied {
		orderVouchers = append(orderVouchers, models.OrderVoucher{
			OrderVoucherID: uuid.NewString(),
			OrderID:        orderID,
			UserVoucherID:  applied.UserVoucherID,
			VoucherID:      applied.VoucherID,
			DiscountAmount: applied.Amount,
		})
		appliedIDs = append(appliedIDs, applied.UserVoucherID)
	}

	description := models.EncodeVoucherList(fmt.Sprintf("Payment for order %s", orderID), appliedIDs)

	tx := models.Transaction{
		TransactionID: uuid.NewString(),
		OrderID:       orderID,
		Amount:        quote.FinalAmount,
		Currency:      s.currency,
		Status:        models.TransactionPending,
		Description:   description,
		CreatedAt:     now,
	}

	// One retry with a fresh code if the unique constraint trips
	for attempt := 0; ; attempt++ {
		tx.OrderCode = NextOrderCode()
		tx.GatewayRef = models.GatewayRef(tx.OrderCode)

		err = s.DB.CreateOrderGraph(ctx, order, details, orderVouchers, tx)
		if err == nil {
			break
		}
		if attempt == 0 && isDuplicateKey(err) {
			s.logger.Warn("CHECKOUT", fmt.Sprintf("Order code %d collided, regenerating", tx.OrderCode))
			continue
		}
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	s.logger.LogCheckout("CREATE", orderID, fmt.Sprintf("total=%.2f discount=%.2f final=%.2f code=%d",
		quote.Subtotal, quote.DiscountAmount, quote.FinalAmount, tx.OrderCode))

	checkoutItems := make([]models.CheckoutItem, 0, len(details))
	for _, d := range details {
		checkoutItems = append(checkoutItems, models.CheckoutItem{
			Name:     d.ItemName,
			Quantity: d.Quantity,
			Price:    d.UnitPrice,
		})
	}

	checkoutURL, err := s.Gateway.CreatePaymentLink(ctx, tx.OrderCode, tx.Amount, description, checkoutItems)
	if err != nil {
		// The transaction is persisted and stays PENDING; the caller can
		// retry link creation later
		s.logger.Error("GATEWAY", fmt.Sprintf("Failed to create checkout link for order %s: %v", orderID, err))
		return nil, &ExternalError{Service: "payment gateway", Err: err}
	}

	if s.Links != nil {
		link := &models.PaymentLink{
			PaymentID:   uuid.NewString(),
			OrderID:     orderID,
			OrderCode:   tx.OrderCode,
			Amount:      tx.Amount,
			Status:      models.TransactionPending,
			URL:         checkoutURL,
			CreatedDate: time.Now(),
		}
		if err := s.Links.SavePaymentLink(link); err != nil {
			s.logger.Warn("PAYMENT", fmt.Sprintf("Failed to record payment link for order %s: %v", orderID, err))
		}
	}

	if s.Kafka != nil {
		if err := s.Kafka.PublishOrderCreated(order); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish order created event: %v", err))
		}
	}

	return &models.OrderResponse{
		Order:       order,
		Details:     details,
		Transaction: tx,
		CheckoutURL: checkoutURL,
	}, nil
}

// GetOrder returns an order with its detail lines and transaction.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.OrderWithDetails, error) {
	return s.DB.GetOrderWithDetails(ctx, orderID)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
