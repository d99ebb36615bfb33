package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-checkout/internal/auth"
	"ms-checkout/internal/cart"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

type Handler struct {
	CartService *cart.Service
	Logger      *logger.Logger
}

func NewHandler(cartService *cart.Service, log *logger.Logger) *Handler {
	return &Handler{
		CartService: cartService,
		Logger:      log,
	}
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.AddCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.CartService.AddItem(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("AddItem: %v", err))
		http.Error(w, "Could not add item: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(item); err != nil {
		h.Logger.Error("API", fmt.Sprintf("AddItem: failed to encode response: %v", err))
	}
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	resp, err := h.CartService.ListItems(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListItems: %v", err))
		http.Error(w, "Could not load cart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListItems: failed to encode response: %v", err))
	}
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	cartItemID := chi.URLParam(r, "cartItemId")

	var req models.UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.CartService.UpdateItem(r.Context(), userID, cartItemID, req)
	if err != nil {
		h.writeCartError(w, "UpdateItem", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(item); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateItem: failed to encode response: %v", err))
	}
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	cartItemID := chi.URLParam(r, "cartItemId")

	if err := h.CartService.RemoveItem(r.Context(), userID, cartItemID); err != nil {
		h.writeCartError(w, "RemoveItem", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCartError(w http.ResponseWriter, op string, err error) {
	var notOwned *cart.NotOwnedError
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &notOwned):
		http.Error(w, "Cart item does not belong to you", http.StatusForbidden)
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		http.Error(w, "Cart item not found", http.StatusNotFound)
	}
}
