package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrAlreadyRedeemed   = errors.New("ticket already redeemed")
	ErrTicketExpired     = errors.New("ticket expired")
	ErrTicketNotRedeemed = errors.New("ticket could not be redeemed")
)

type DBLayer interface {
	GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	GetTicketByRedemptionCode(ctx context.Context, code string) (*models.Ticket, error)
	GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	RedeemTicket(ctx context.Context, ticketID string) (bool, error)
}

// PDFRenderer turns a ticket into a printable document.
type PDFRenderer interface {
	Generate(ticket models.Ticket) ([]byte, error)
}

type Service struct {
	DB     DBLayer
	PDF    PDFRenderer
	logger *logger.Logger
}

func NewService(db DBLayer, pdf PDFRenderer, log *logger.Logger) *Service {
	return &Service{DB: db, PDF: pdf, logger: log}
}

func (s *Service) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("ticket %s not found: %w", ticketID, err)
	}
	return ticket, nil
}

func (s *Service) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickets for order %s: %w", orderID, err)
	}
	return tickets, nil
}

func (s *Service) GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickets for user %s: %w", userID, err)
	}
	return tickets, nil
}

// Redeem consumes a ticket at the gate. Exactly one call per ticket succeeds;
// later calls report what went wrong instead of silently passing.
func (s *Service) Redeem(ctx context.Context, redemptionCode string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByRedemptionCode(ctx, redemptionCode)
	if err != nil {
		return nil, fmt.Errorf("failed to look up redemption code: %w", err)
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}

	switch ticket.Status {
	case models.TicketUsed:
		return nil, ErrAlreadyRedeemed
	case models.TicketExpired:
		return nil, ErrTicketExpired
	}
	if !ticket.ExpiresAt.IsZero() && time.Now().After(ticket.ExpiresAt) {
		return nil, ErrTicketExpired
	}

	redeemed, err := s.DB.RedeemTicket(ctx, ticket.TicketID)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem ticket %s: %w", ticket.TicketID, err)
	}
	if !redeemed {
		// Lost the race against another scanner
		return nil, ErrAlreadyRedeemed
	}

	s.logger.Info("TICKET", fmt.Sprintf("Ticket %s redeemed", ticket.TicketID))

	ticket.Status = models.TicketUsed
	ticket.RedeemedAt = time.Now()
	return ticket, nil
}

// RenderPDF produces the printable version of a ticket.
func (s *Service) RenderPDF(ctx context.Context, ticketID string) ([]byte, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("ticket %s not found: %w", ticketID, err)
	}
	if s.PDF == nil {
		return nil, errors.New("pdf rendering not configured")
	}
	return s.PDF.Generate(*ticket)
}
