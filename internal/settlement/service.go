package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

type DBLayer interface {
	GetTransactionByGatewayRef(ctx context.Context, gatewayRef string) (*models.Transaction, error)
	GetOrderWithDetails(ctx context.Context, orderID string) (*models.OrderWithDetails, error)
	SettleOrder(ctx context.Context, transactionID string, tickets []models.Ticket, userID string, catalogItemIDs []string) (bool, int, error)
	GetOrderVouchers(ctx context.Context, orderID string) ([]models.OrderVoucher, error)
	ConsumeUserVoucher(ctx context.Context, userVoucherID string) (*models.UserVoucher, bool, error)
	FindUnusedUserVoucher(ctx context.Context, userID, voucherID string) (*models.UserVoucher, error)
	IncrementVoucherUsage(ctx context.Context, voucherID string) (bool, error)
}

// StatusChecker asks the gateway which state an order code is really in. The
// gateway's answer, not the redirect that triggered the confirmation, decides
// whether settlement runs.
type StatusChecker interface {
	GetPaymentStatus(ctx context.Context, orderCode int64) (*models.GatewayStatus, error)
}

type Locker interface {
	LockSettlement(ctx context.Context, orderCode int64, owner string) (bool, error)
	UnlockSettlement(ctx context.Context, orderCode int64, owner string) error
}

// QRGenerator renders the scannable payload for a ticket.
type QRGenerator interface {
	Generate(ticketCode string) ([]byte, error)
}

type KafkaPublisher interface {
	PublishPaymentSucceeded(result models.PaymentResult) error
}

// Notifier pushes the settlement outcome to live listeners.
type Notifier interface {
	NotifySettled(result models.PaymentResult)
}

// LinkAuditor mirrors the settled status onto the payment-link audit row so
// the audit trail does not report PENDING links for settled orders.
type LinkAuditor interface {
	GetPaymentLinkByOrderCode(orderCode int64) (*models.PaymentLink, error)
	UpdatePaymentLinkStatus(id, status string) error
}

// Service settles paid orders. Settlement is idempotent: the first
// confirmation wins the status transition and runs the side effects, every
// later one reports success without repeating them.
type Service struct {
	DB      DBLayer
	Gateway StatusChecker
	Lock    Locker
	QR      QRGenerator
	Audit   LinkAuditor
	Kafka   KafkaPublisher
	Notify  Notifier
	logger  *logger.Logger
}

func NewService(db DBLayer, gateway StatusChecker, lock Locker, qr QRGenerator, audit LinkAuditor, kafka KafkaPublisher, notify Notifier, log *logger.Logger) *Service {
	return &Service{
		DB:      db,
		Gateway: gateway,
		Lock:    lock,
		QR:      qr,
		Audit:   audit,
		Kafka:   kafka,
		Notify:  notify,
		logger:  log,
	}
}

// ConfirmPayment processes a payment confirmation for an order code. Calling
// it any number of times yields the same outcome as calling it once.
func (s *Service) ConfirmPayment(ctx context.Context, orderCode int64) (*models.PaymentResult, error) {
	tx, err := s.DB.GetTransactionByGatewayRef(ctx, models.GatewayRef(orderCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &UnknownOrderCodeError{OrderCode: orderCode}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	// Fast path: already settled, nothing left to do
	if tx.Status == models.TransactionSuccess {
		s.logger.LogSettlement(orderCode, "Already settled, returning prior result")
		return &models.PaymentResult{
			OrderID:        tx.OrderID,
			OrderCode:      orderCode,
			Status:         models.TransactionSuccess,
			AlreadySettled: true,
		}, nil
	}

	// The gateway is the authority on whether money actually moved
	status, err := s.Gateway.GetPaymentStatus(ctx, orderCode)
	if err != nil {
		return nil, &GatewayError{Err: err}
	}
	if status.Status != models.GatewayStatusPaid {
		s.logger.LogSettlement(orderCode, fmt.Sprintf("Gateway reports %s, not settling", status.Status))
		return &models.PaymentResult{
			OrderID:   tx.OrderID,
			OrderCode: orderCode,
			Status:    tx.Status,
		}, nil
	}

	owner := uuid.NewString()
	locked, err := s.Lock.LockSettlement(ctx, orderCode, owner)
	if err != nil {
		s.logger.Warn("SETTLEMENT", fmt.Sprintf("Lock acquisition failed for order code %d: %v", orderCode, err))
	} else if !locked {
		// Another confirmation is mid-flight. Re-read: if it already won,
		// report its result instead of an error.
		fresh, ferr := s.DB.GetTransactionByGatewayRef(ctx, models.GatewayRef(orderCode))
		if ferr == nil && fresh.Status == models.TransactionSuccess {
			return &models.PaymentResult{
				OrderID:        fresh.OrderID,
				OrderCode:      orderCode,
				Status:         models.TransactionSuccess,
				AlreadySettled: true,
			}, nil
		}
		return nil, ErrSettlementInProgress
	}
	if locked {
		defer func() {
			if err := s.Lock.UnlockSettlement(ctx, orderCode, owner); err != nil {
				s.logger.Warn("SETTLEMENT", fmt.Sprintf("Failed to release lock for order code %d: %v", orderCode, err))
			}
		}()
	}

	// Load the order first: tickets must be ready before the settlement
	// transaction opens. A load failure leaves the transaction PENDING so the
	// next confirmation retries from scratch.
	order, err := s.DB.GetOrderWithDetails(ctx, tx.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", tx.OrderID, err)
	}

	tickets := s.buildTickets(&order.Order, order.Details)
	catalogIDs := make([]string, 0, len(order.Details))
	for _, detail := range order.Details {
		catalogIDs = append(catalogIDs, detail.CatalogItemID)
	}

	// The settlement unit: status CAS, ticket insertion, and cart pruning
	// commit together. An error rolls the CAS back and keeps the retry path
	// open; a settled order always carries its tickets.
	won, removed, err := s.DB.SettleOrder(ctx, tx.TransactionID, tickets, order.Order.UserID, catalogIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to settle transaction: %w", err)
	}
	if !won {
		s.logger.LogSettlement(orderCode, "Lost settlement race, another confirmation completed")
		return &models.PaymentResult{
			OrderID:        tx.OrderID,
			OrderCode:      orderCode,
			Status:         models.TransactionSuccess,
			AlreadySettled: true,
		}, nil
	}

	s.logger.LogSettlement(orderCode, fmt.Sprintf("Transaction %s settled", tx.TransactionID))
	s.logger.LogCheckout("TICKETS", tx.OrderID, fmt.Sprintf("Issued %d tickets", len(tickets)))
	s.logger.LogCheckout("PRUNE", tx.OrderID, fmt.Sprintf("Removed %d cart items", removed))

	s.consumeVouchers(ctx, tx, &order.Order)
	s.mirrorAuditStatus(orderCode)

	result := models.PaymentResult{
		OrderID:       tx.OrderID,
		OrderCode:     orderCode,
		Status:        models.TransactionSuccess,
		TicketsIssued: len(tickets),
	}

	if s.Kafka != nil {
		if err := s.Kafka.PublishPaymentSucceeded(result); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish payment succeeded event: %v", err))
		}
	}
	if s.Notify != nil {
		s.Notify.NotifySettled(result)
	}

	return &result, nil
}

// consumeVouchers marks the order's voucher instances used and bumps the
// definitions' usage counters. Resolution order: the order_vouchers rows,
// then the list encoded in the transaction description, then the order's
// primary voucher reference. Failures here never fail the settlement.
func (s *Service) consumeVouchers(ctx context.Context, tx *models.Transaction, order *models.Order) {
	rows, err := s.DB.GetOrderVouchers(ctx, order.OrderID)
	if err != nil {
		s.logger.Warn("VOUCHER", fmt.Sprintf("Failed to load voucher rows for order %s: %v", order.OrderID, err))
	}

	if len(rows) > 0 {
		for _, row := range rows {
			s.consumeInstance(ctx, row.UserVoucherID)
		}
		return
	}

	if ids := models.DecodeVoucherList(tx.Description); len(ids) > 0 {
		for _, id := range ids {
			s.consumeInstance(ctx, id)
		}
		return
	}

	// Orders written before the voucher rows existed carry only the primary
	// voucher reference
	if order.PrimaryVoucherID == "" {
		return
	}
	uv, err := s.DB.FindUnusedUserVoucher(ctx, order.UserID, order.PrimaryVoucherID)
	if err != nil {
		s.logger.Warn("VOUCHER", fmt.Sprintf("Failed to resolve primary voucher %s: %v", order.PrimaryVoucherID, err))
		return
	}
	if uv == nil {
		s.logger.Warn("VOUCHER", fmt.Sprintf("No unused instance of voucher %s for user %s", order.PrimaryVoucherID, order.UserID))
		return
	}
	s.consumeInstance(ctx, uv.UserVoucherID)
}

func (s *Service) consumeInstance(ctx context.Context, userVoucherID string) {
	uv, consumed, err := s.DB.ConsumeUserVoucher(ctx, userVoucherID)
	if err != nil {
		s.logger.Warn("VOUCHER", fmt.Sprintf("Failed to consume voucher instance %s: %v", userVoucherID, err))
		return
	}
	if !consumed {
		s.logger.LogVoucher("SKIP", userVoucherID, "Instance already consumed")
		return
	}

	bumped, err := s.DB.IncrementVoucherUsage(ctx, uv.VoucherID)
	if err != nil {
		s.logger.Warn("VOUCHER", fmt.Sprintf("Failed to increment usage of voucher %s: %v", uv.VoucherID, err))
		return
	}
	if !bumped {
		s.logger.Warn("VOUCHER", fmt.Sprintf("Voucher %s hit its usage limit at settlement", uv.VoucherID))
		return
	}
	s.logger.LogVoucher("CONSUME", userVoucherID, "Voucher instance consumed")
}

// buildTickets creates one ticket per unit of quantity on each detail line.
// QR rendering failures leave the ticket without an image rather than
// blocking issuance.
func (s *Service) buildTickets(order *models.Order, details []models.OrderDetail) []models.Ticket {
	var tickets []models.Ticket
	now := time.Now()

	for _, detail := range details {
		for i := 0; i < detail.Quantity; i++ {
			ticket := models.Ticket{
				TicketID:       uuid.NewString(),
				OrderID:        order.OrderID,
				OrderDetailID:  detail.OrderDetailID,
				UserID:         order.UserID,
				CatalogItemID:  detail.CatalogItemID,
				Type:           models.TicketTypeFor(detail.OwnerType),
				TicketCode:     uuid.NewString(),
				RedemptionCode: uuid.NewString(),
				Status:         models.TicketActive,
				IssuedAt:       now,
			}
			if s.QR != nil {
				qr, err := s.QR.Generate(ticket.TicketCode)
				if err != nil {
					s.logger.Warn("TICKET", fmt.Sprintf("QR generation failed for ticket %s: %v", ticket.TicketID, err))
				} else {
					ticket.QRCode = qr
				}
			}
			tickets = append(tickets, ticket)
		}
	}

	return tickets
}

// mirrorAuditStatus marks the payment-link audit row settled. The audit trail
// is a side store; failures here never fail the settlement.
func (s *Service) mirrorAuditStatus(orderCode int64) {
	if s.Audit == nil {
		return
	}

	link, err := s.Audit.GetPaymentLinkByOrderCode(orderCode)
	if err != nil {
		s.logger.Warn("SETTLEMENT", fmt.Sprintf("Failed to resolve payment link for order code %d: %v", orderCode, err))
		return
	}
	if err := s.Audit.UpdatePaymentLinkStatus(link.PaymentID, models.TransactionSuccess); err != nil {
		s.logger.Warn("SETTLEMENT", fmt.Sprintf("Failed to mark payment link %s settled: %v", link.PaymentID, err))
	}
}
