package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/auth"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/tickets"
)

type Handler struct {
	TicketService *tickets.Service
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.Service, log *logger.Logger) *Handler {
	return &Handler{
		TicketService: ticketService,
		Logger:        log,
	}
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	h.Logger.Info("API", fmt.Sprintf("GetTicket: ticketId=%s", ticketID))

	ticket, err := h.TicketService.GetTicket(r.Context(), ticketID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTicket: ticket not found: %v", err))
		http.Error(w, "Ticket not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ticket); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTicket: failed to encode response: %v", err))
	}
}

func (h *Handler) GetMyTickets(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	list, err := h.TicketService.GetTicketsByUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetMyTickets: %v", err))
		http.Error(w, "Could not load tickets", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetMyTickets: failed to encode response: %v", err))
	}
}

func (h *Handler) GetOrderTickets(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	list, err := h.TicketService.GetTicketsByOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrderTickets: %v", err))
		http.Error(w, "Could not load tickets", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrderTickets: failed to encode response: %v", err))
	}
}

// RedeemTicket consumes a ticket at the gate by its redemption code.
func (h *Handler) RedeemTicket(w http.ResponseWriter, r *http.Request) {
	var req models.RedeemTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.RedemptionCode == "" {
		http.Error(w, "Redemption code cannot be empty", http.StatusBadRequest)
		return
	}

	ticket, err := h.TicketService.Redeem(r.Context(), req.RedemptionCode)
	switch {
	case errors.Is(err, tickets.ErrTicketNotFound):
		http.Error(w, "Ticket not found", http.StatusNotFound)
		return
	case errors.Is(err, tickets.ErrAlreadyRedeemed):
		http.Error(w, "Ticket already redeemed", http.StatusConflict)
		return
	case errors.Is(err, tickets.ErrTicketExpired):
		http.Error(w, "Ticket expired", http.StatusGone)
		return
	case err != nil:
		h.Logger.Error("API", fmt.Sprintf("RedeemTicket: %v", err))
		http.Error(w, "Could not redeem ticket", http.StatusInternalServerError)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("RedeemTicket: ticket %s redeemed", ticket.TicketID))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ticket); err != nil {
		h.Logger.Error("API", fmt.Sprintf("RedeemTicket: failed to encode response: %v", err))
	}
}

// DownloadTicketPDF streams the printable ticket.
func (h *Handler) DownloadTicketPDF(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")

	pdf, err := h.TicketService.RenderPDF(r.Context(), ticketID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("DownloadTicketPDF: %v", err))
		http.Error(w, "Could not render ticket", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=ticket-%s.pdf", ticketID))
	if _, err := w.Write(pdf); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DownloadTicketPDF: failed to write response: %v", err))
	}
}
