package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/auth"
	"ms-checkout/internal/checkout"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"ms-checkout/internal/pricing"
	"ms-checkout/internal/settlement"
	"ms-checkout/internal/sse"
)

type Handler struct {
	OrderService      *checkout.OrderService
	SettlementService *settlement.Service
	Emitter           *sse.SettlementEventEmitter
	Logger            *logger.Logger
}

func NewHandler(orderService *checkout.OrderService, settlementService *settlement.Service, emitter *sse.SettlementEventEmitter, log *logger.Logger) *Handler {
	return &Handler{
		OrderService:      orderService,
		SettlementService: settlementService,
		Emitter:           emitter,
		Logger:            log,
	}
}

// Preview prices a tentative cart selection with vouchers, committing
// nothing.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	quote, err := h.OrderService.Preview(r.Context(), userID, req)
	if err != nil {
		h.writeCheckoutError(w, "Preview", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(quote); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Preview: failed to encode response: %v", err))
	}
}

// PlaceOrder builds the immutable order and returns the gateway checkout URL.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.OrderService.PlaceOrder(r.Context(), userID, req)
	if err != nil {
		h.writeCheckoutError(w, "PlaceOrder", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("PlaceOrder: failed to encode response: %v", err))
	}
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: order not found: %v", err))
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(order); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: failed to encode response: %v", err))
	}
}

// PaymentSuccess is the gateway return endpoint. It settles the order
// idempotently: hitting it repeatedly (redirect plus webhook plus refresh)
// yields one settlement and the same response.
func (h *Handler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	codeParam := r.URL.Query().Get("orderCode")
	orderCode, err := strconv.ParseInt(codeParam, 10, 64)
	if err != nil {
		http.Error(w, "Invalid order code", http.StatusBadRequest)
		return
	}

	result, err := h.SettlementService.ConfirmPayment(r.Context(), orderCode)
	if err != nil {
		var unknown *settlement.UnknownOrderCodeError
		var gateway *settlement.GatewayError
		switch {
		case errors.As(err, &unknown):
			http.Error(w, "Unknown order code", http.StatusNotFound)
		case errors.As(err, &gateway):
			h.Logger.Error("API", fmt.Sprintf("PaymentSuccess: %v", err))
			http.Error(w, "Payment gateway unavailable", http.StatusBadGateway)
		case errors.Is(err, settlement.ErrSettlementInProgress):
			http.Error(w, "Settlement in progress, retry shortly", http.StatusConflict)
		default:
			h.Logger.Error("API", fmt.Sprintf("PaymentSuccess: %v", err))
			http.Error(w, "Could not confirm payment", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.Logger.Error("API", fmt.Sprintf("PaymentSuccess: failed to encode response: %v", err))
	}
}

// SubscribeOrderEvents streams settlement events for one order over SSE.
// EventSource cannot set request headers, so the bearer token may arrive as a
// query parameter; only claims are read here, verification happened when the
// token was issued.
func (h *Handler) SubscribeOrderEvents(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	rawToken := r.URL.Query().Get("token")
	if rawToken == "" {
		var err error
		rawToken, err = auth.ExtractTokenFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	userID, err := auth.ExtractUserIDFromJWT(rawToken)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	order, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil || order.Order.UserID != userID {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.Emitter.SubscribeToOrder(r.Context(), orderID)
	h.Logger.Info("SSE", fmt.Sprintf("Client subscribed to order %s", orderID))

	for {
		select {
		case <-r.Context().Done():
			return
		case result, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(result)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to marshal settlement event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: settlement\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, op string, err error) {
	var notFound *checkout.NotFoundError
	var ownership *checkout.OwnershipError
	var external *checkout.ExternalError
	var ineligible *pricing.IneligibleVoucherError

	switch {
	case errors.Is(err, checkout.ErrEmptySelection):
		http.Error(w, "Cart selection cannot be empty", http.StatusBadRequest)
	case errors.As(err, &ineligible):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &ownership):
		http.Error(w, "Cart item does not belong to you", http.StatusForbidden)
	case errors.As(err, &external):
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		http.Error(w, "Upstream service unavailable, please retry", http.StatusBadGateway)
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		http.Error(w, "Checkout failed", http.StatusInternalServerError)
	}
}
